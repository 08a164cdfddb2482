package telegram

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freshpress-app/freshpress-backend/pkg/db/models"
	"github.com/freshpress-app/freshpress-backend/pkg/logger"
)

type stubSettings struct {
	mu       sync.Mutex
	settings *models.BotSettings
	err      error
}

func (s *stubSettings) Current(context.Context) (*models.BotSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	if s.settings == nil {
		return nil, nil
	}
	clone := *s.settings
	return &clone, nil
}

func (s *stubSettings) set(settings *models.BotSettings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
}

type stubProbe struct {
	available atomic.Bool
}

func (s *stubProbe) Available(context.Context) bool {
	return s.available.Load()
}

type stubClient struct {
	token   string
	updates chan []Callback
	calls   atomic.Int32

	mu      sync.Mutex
	pollErr error
}

func newStubClient(token string) *stubClient {
	return &stubClient{token: token, updates: make(chan []Callback, 16)}
}

func (c *stubClient) setPollErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pollErr = err
}

func (c *stubClient) Token() string    { return c.token }
func (c *stubClient) Username() string { return "stub_bot" }

func (c *stubClient) SendMessage(context.Context, int64, string, ...Button) error { return nil }

func (c *stubClient) AnswerCallback(context.Context, string, string, bool) error { return nil }

func (c *stubClient) GetUpdates(ctx context.Context, offset, _ int) ([]Callback, int, error) {
	c.calls.Add(1)
	c.mu.Lock()
	pollErr := c.pollErr
	c.mu.Unlock()
	if pollErr != nil {
		return nil, offset, pollErr
	}
	select {
	case <-ctx.Done():
		return nil, offset, ctx.Err()
	case batch := <-c.updates:
		return batch, offset + len(batch), nil
	}
}

type managerFixture struct {
	manager  *Manager
	settings *stubSettings
	probe    *stubProbe
	client   *stubClient
	built    atomic.Int32
	validOK  atomic.Bool
}

func newManagerFixture(t *testing.T) *managerFixture {
	t.Helper()

	fx := &managerFixture{
		settings: &stubSettings{},
		probe:    &stubProbe{},
		client:   newStubClient("token-1"),
	}
	fx.validOK.Store(true)

	manager, err := NewManager(ManagerParams{
		Logger:   logger.New(logger.Options{ServiceName: "test"}),
		Settings: fx.settings,
		Probe:    fx.probe,
		Factory: func(token string) (BotClient, error) {
			fx.built.Add(1)
			fx.client.token = token
			return fx.client, nil
		},
		Validate: func(context.Context, string) bool {
			return fx.validOK.Load()
		},
		PollTimeoutSeconds: 1,
		PollRetryDelay:     time.Millisecond,
	})
	require.NoError(t, err)
	fx.manager = manager
	t.Cleanup(func() { manager.Shutdown(context.Background()) })
	return fx
}

func enabledSettings(token string) *models.BotSettings {
	return &models.BotSettings{APIToken: token, Enabled: true, ReminderIntervalMinutes: 5}
}

func TestManager_NoSettingsMeansNoBot(t *testing.T) {
	fx := newManagerFixture(t)

	assert.Nil(t, fx.manager.Instance(context.Background(), true))
	assert.False(t, fx.manager.Polling())
	assert.Zero(t, fx.built.Load())
}

func TestManager_DisabledOrEmptyTokenMeansNoBot(t *testing.T) {
	fx := newManagerFixture(t)

	fx.settings.set(&models.BotSettings{APIToken: "token-1", Enabled: false})
	assert.Nil(t, fx.manager.Instance(context.Background(), true))

	fx.settings.set(&models.BotSettings{APIToken: "   ", Enabled: true})
	assert.Nil(t, fx.manager.Instance(context.Background(), true))
	assert.Zero(t, fx.built.Load())
}

func TestManager_InvalidTokenMeansNoBot(t *testing.T) {
	fx := newManagerFixture(t)
	fx.validOK.Store(false)
	fx.settings.set(enabledSettings("bad-token"))

	assert.Nil(t, fx.manager.Instance(context.Background(), true))
	assert.Nil(t, fx.manager.Instance(context.Background(), true))
	assert.Zero(t, fx.built.Load())
}

func TestManager_ReusesClientForSameToken(t *testing.T) {
	fx := newManagerFixture(t)
	fx.settings.set(enabledSettings("token-1"))

	first := fx.manager.Instance(context.Background(), false)
	require.NotNil(t, first)
	second := fx.manager.Instance(context.Background(), false)
	assert.Same(t, first, second)
	assert.EqualValues(t, 1, fx.built.Load())
	assert.False(t, fx.manager.Polling(), "polling must not start unless requested")
}

func TestManager_TokenChangeRebuildsClient(t *testing.T) {
	fx := newManagerFixture(t)
	fx.settings.set(enabledSettings("token-1"))

	require.NotNil(t, fx.manager.Instance(context.Background(), true))
	assert.True(t, fx.manager.Polling())

	fx.settings.set(enabledSettings("token-2"))
	require.NotNil(t, fx.manager.Instance(context.Background(), false))
	assert.EqualValues(t, 2, fx.built.Load())
	assert.False(t, fx.manager.Polling(), "old token's polling must stop on replacement")
}

func TestManager_ProbeSuppressesPolling(t *testing.T) {
	fx := newManagerFixture(t)
	fx.settings.set(enabledSettings("token-1"))
	fx.probe.available.Store(true)

	require.NotNil(t, fx.manager.Instance(context.Background(), true))
	assert.False(t, fx.manager.Polling())

	// Sibling went away: the next call takes over polling.
	fx.probe.available.Store(false)
	require.NotNil(t, fx.manager.Instance(context.Background(), true))
	assert.True(t, fx.manager.Polling())
}

func TestManager_DispatchesCallbacksToHandler(t *testing.T) {
	fx := newManagerFixture(t)
	fx.settings.set(enabledSettings("token-1"))

	received := make(chan Callback, 1)
	fx.manager.SetHandler(func(_ context.Context, cb Callback) {
		received <- cb
	})

	require.NotNil(t, fx.manager.Instance(context.Background(), true))
	require.True(t, fx.manager.Polling())

	fx.client.updates <- []Callback{{ID: "cb-1", ActorID: 7, Data: "order_accept_x"}}

	select {
	case cb := <-received:
		assert.Equal(t, "cb-1", cb.ID)
		assert.EqualValues(t, 7, cb.ActorID)
	case <-time.After(time.Second):
		t.Fatal("callback was not dispatched to the handler")
	}
}

func TestManager_StopsPollingAfterConsecutiveErrors(t *testing.T) {
	fx := newManagerFixture(t)
	fx.settings.set(enabledSettings("token-1"))
	fx.client.setPollErr(errors.New("telegram down"))

	require.NotNil(t, fx.manager.Instance(context.Background(), true))

	require.Eventually(t, func() bool {
		return !fx.manager.Polling()
	}, 2*time.Second, 5*time.Millisecond, "polling should stop after the error threshold")
	assert.GreaterOrEqual(t, fx.client.calls.Load(), int32(pollErrorStopThreshold))

	// The client survives; a later request resumes polling.
	fx.client.setPollErr(nil)
	require.NotNil(t, fx.manager.Instance(context.Background(), true))
	assert.True(t, fx.manager.Polling())
	assert.EqualValues(t, 1, fx.built.Load())
}

func TestManager_ShutdownStopsPolling(t *testing.T) {
	fx := newManagerFixture(t)
	fx.settings.set(enabledSettings("token-1"))

	require.NotNil(t, fx.manager.Instance(context.Background(), true))
	require.True(t, fx.manager.Polling())

	fx.manager.Shutdown(context.Background())
	assert.False(t, fx.manager.Polling())
}
