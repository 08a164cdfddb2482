package telegram

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/freshpress-app/freshpress-backend/pkg/db/models"
	"github.com/freshpress-app/freshpress-backend/pkg/logger"
)

const (
	maxLoggedPollErrors    = 3
	pollErrorStopThreshold = 5

	defaultPollTimeoutSeconds = 30
	defaultPollRetryDelay     = 3 * time.Second
)

// SettingsStore reads the current bot configuration.
type SettingsStore interface {
	Current(ctx context.Context) (*models.BotSettings, error)
}

// SiblingProbe reports whether a standalone dispatch worker is reachable.
type SiblingProbe interface {
	Available(ctx context.Context) bool
}

// ClientFactory builds a BotClient for a validated token.
type ClientFactory func(token string) (BotClient, error)

// TokenValidator checks a token without side effects.
type TokenValidator func(ctx context.Context, token string) bool

// ManagerParams configure the bot manager.
type ManagerParams struct {
	Logger   *logger.Logger
	Settings SettingsStore
	Probe    SiblingProbe
	Factory  ClientFactory
	Validate TokenValidator

	PollTimeoutSeconds int
	PollRetryDelay     time.Duration
}

// Manager owns the process-wide bot instance and its polling lifecycle. It is
// constructed once per process and passed by reference; there is no package
// global. Polling defaults to local ownership and defers to the sibling worker
// whenever the probe answers, so a bot token is long-polled from at most one
// process (best effort, no distributed lock).
type Manager struct {
	logg     *logger.Logger
	settings SettingsStore
	probe    SiblingProbe
	factory  ClientFactory
	validate TokenValidator

	pollTimeout    int
	pollRetryDelay time.Duration

	mu          sync.Mutex
	client      BotClient
	token       string
	polling     bool
	pollCancel  context.CancelFunc
	handler     UpdateHandler
	warnedToken string
	warnedEmpty bool
}

// NewManager wires a bot manager.
func NewManager(params ManagerParams) (*Manager, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Settings == nil {
		return nil, fmt.Errorf("settings store required")
	}
	factory := params.Factory
	if factory == nil {
		factory = NewClient
	}
	validate := params.Validate
	if validate == nil {
		validate = ValidateToken
	}
	pollTimeout := params.PollTimeoutSeconds
	if pollTimeout <= 0 {
		pollTimeout = defaultPollTimeoutSeconds
	}
	retryDelay := params.PollRetryDelay
	if retryDelay <= 0 {
		retryDelay = defaultPollRetryDelay
	}
	return &Manager{
		logg:           params.Logger,
		settings:       params.Settings,
		probe:          params.Probe,
		factory:        factory,
		validate:       validate,
		pollTimeout:    pollTimeout,
		pollRetryDelay: retryDelay,
	}, nil
}

// SetHandler registers the consumer for inbound callback presses. It must be
// called before polling starts; presses arriving with no handler are dropped.
func (m *Manager) SetHandler(handler UpdateHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = handler
}

// Instance returns the bot bound to the currently configured token, creating
// or replacing it as needed. A nil return means "no usable bot" (missing or
// disabled settings, invalid token) and is not an error. When enablePolling is
// set, polling is started lazily unless the sibling worker is reachable.
func (m *Manager) Instance(ctx context.Context, enablePolling bool) BotClient {
	m.mu.Lock()
	defer m.mu.Unlock()

	settings, err := m.settings.Current(ctx)
	if err != nil {
		m.logg.Error(ctx, "loading bot settings failed", err)
		return nil
	}
	if settings == nil || !settings.Enabled || strings.TrimSpace(settings.APIToken) == "" {
		if !m.warnedEmpty {
			m.logg.Warn(ctx, "telegram bot not configured; order dispatch disabled")
			m.warnedEmpty = true
		}
		m.teardownLocked(ctx)
		return nil
	}
	m.warnedEmpty = false

	token := strings.TrimSpace(settings.APIToken)
	if m.client == nil || m.token != token {
		if !m.validate(ctx, token) {
			if m.warnedToken != token {
				m.logg.Warn(ctx, "telegram token validation failed; order dispatch disabled")
				m.warnedToken = token
			}
			return nil
		}
		m.warnedToken = ""

		// Token changed: stop the old instance's polling before replacing it.
		m.teardownLocked(ctx)

		client, err := m.factory(token)
		if err != nil {
			m.logg.Error(ctx, "creating telegram client failed", err)
			return nil
		}
		m.client = client
		m.token = token
		m.logg.Info(m.logg.WithField(ctx, "bot", client.Username()), "telegram client ready")
	}

	if enablePolling && !m.polling {
		if m.probe != nil && m.probe.Available(ctx) {
			m.logg.Info(ctx, "dispatch worker reachable; suppressing local polling")
		} else {
			m.startPollingLocked(ctx)
		}
	}

	return m.client
}

// Polling reports whether this process currently long-polls Telegram.
func (m *Manager) Polling() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.polling
}

// Shutdown stops polling and discards the client.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.teardownLocked(ctx)
}

func (m *Manager) teardownLocked(ctx context.Context) {
	if m.pollCancel != nil {
		m.pollCancel()
		m.pollCancel = nil
	}
	if m.polling {
		m.polling = false
		m.logg.Info(ctx, "telegram polling stopped")
	}
	m.client = nil
	m.token = ""
}

func (m *Manager) startPollingLocked(ctx context.Context) {
	pollCtx, cancel := context.WithCancel(context.Background())
	m.pollCancel = cancel
	m.polling = true
	m.logg.Info(ctx, "telegram polling started")
	go m.pollLoop(pollCtx, m.client)
}

func (m *Manager) pollLoop(ctx context.Context, client BotClient) {
	offset := 0
	consecutiveErrors := 0

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		callbacks, next, err := client.GetUpdates(ctx, offset, m.pollTimeout)
		if err != nil {
			consecutiveErrors++
			if consecutiveErrors <= maxLoggedPollErrors {
				m.logg.Error(ctx, "telegram polling error", err)
			}
			if consecutiveErrors >= pollErrorStopThreshold {
				m.logg.Warn(ctx, "too many consecutive polling errors; stopping polling")
				m.stopPollingOnly()
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(m.pollRetryDelay):
			}
			continue
		}

		consecutiveErrors = 0
		offset = next

		handler := m.handlerSnapshot()
		for _, cb := range callbacks {
			if handler == nil {
				continue
			}
			handler(ctx, cb)
		}
	}
}

// stopPollingOnly clears the polling flag without discarding the client, so a
// later Instance call with polling enabled can resume.
func (m *Manager) stopPollingOnly() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.polling = false
	if m.pollCancel != nil {
		m.pollCancel()
		m.pollCancel = nil
	}
}

func (m *Manager) handlerSnapshot() UpdateHandler {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handler
}
