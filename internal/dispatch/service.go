package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/freshpress-app/freshpress-backend/internal/telegram"
	"github.com/freshpress-app/freshpress-backend/pkg/db/models"
	"github.com/freshpress-app/freshpress-backend/pkg/enums"
	"github.com/freshpress-app/freshpress-backend/pkg/errors"
	"github.com/freshpress-app/freshpress-backend/pkg/logger"
	"github.com/freshpress-app/freshpress-backend/pkg/metrics"
)

// OrderStore reads and updates storefront orders on behalf of dispatch.
type OrderStore interface {
	Find(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) error
}

// RecipientStore lists the Telegram accounts that receive notifications.
type RecipientStore interface {
	ListActive(ctx context.Context) ([]models.Recipient, error)
}

// SettingsStore reads the current bot configuration.
type SettingsStore interface {
	Current(ctx context.Context) (*models.BotSettings, error)
}

// BotProvider hands out the process bot instance. A nil client means no usable
// bot is configured right now.
type BotProvider interface {
	Instance(ctx context.Context, enablePolling bool) telegram.BotClient
}

// Service is the order dispatch engine: it broadcasts new orders, arbitrates
// courier claims, confirms deliveries and drives the reminder loops.
type Service interface {
	SendOrderNotification(ctx context.Context, orderID uuid.UUID) (bool, error)
	HandleCallback(ctx context.Context, cb telegram.Callback)
	HandleOrderAccept(ctx context.Context, orderID uuid.UUID, courierID int64) (bool, error)
	HandleOrderDelivered(ctx context.Context, orderID uuid.UUID, courierID int64) (bool, error)
	Recover(ctx context.Context) error
	Shutdown()
}

// ServiceParams configure the dispatch service.
type ServiceParams struct {
	Logger     *logger.Logger
	Repo       Repository
	Orders     OrderStore
	Recipients RecipientStore
	Settings   SettingsStore
	Bot        BotProvider
	Metrics    *metrics.DispatchMetrics

	// DefaultReminderInterval applies when bot settings carry no interval.
	DefaultReminderInterval time.Duration
	// ExpireAfter is the order age beyond which recovery gives up on a
	// dispatch instead of re-arming its reminders.
	ExpireAfter time.Duration

	now func() time.Time
}

type service struct {
	logg       *logger.Logger
	repo       Repository
	orders     OrderStore
	recipients RecipientStore
	settings   SettingsStore
	bot        BotProvider
	metrics    *metrics.DispatchMetrics
	scheduler  *Scheduler

	defaultInterval time.Duration
	expireAfter     time.Duration
	now             func() time.Time
}

// NewService wires the dispatch engine.
func NewService(params ServiceParams) (Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("dispatch repository required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order store required")
	}
	if params.Recipients == nil {
		return nil, fmt.Errorf("recipient store required")
	}
	if params.Settings == nil {
		return nil, fmt.Errorf("settings store required")
	}
	if params.Bot == nil {
		return nil, fmt.Errorf("bot provider required")
	}
	if params.DefaultReminderInterval <= 0 {
		return nil, fmt.Errorf("default reminder interval must be positive")
	}
	if params.ExpireAfter <= 0 {
		return nil, fmt.Errorf("expire-after must be positive")
	}
	now := params.now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		logg:            params.Logger,
		repo:            params.Repo,
		orders:          params.Orders,
		recipients:      params.Recipients,
		settings:        params.Settings,
		bot:             params.Bot,
		metrics:         params.Metrics,
		scheduler:       NewScheduler(),
		defaultInterval: params.DefaultReminderInterval,
		expireAfter:     params.ExpireAfter,
		now:             now,
	}, nil
}

// SendOrderNotification broadcasts a new order to every active recipient and
// arms the pending reminder loop. It reports whether at least one message was
// sent. Orders whose dispatch already progressed past pending are skipped so
// repeated submissions cannot reset an accepted order.
func (s *service) SendOrderNotification(ctx context.Context, orderID uuid.UUID) (bool, error) {
	ctx = s.logg.WithOrderID(ctx, orderID.String())

	order, err := s.orders.Find(ctx, orderID)
	if err != nil {
		return false, errors.Wrap(errors.CodeInternal, err, "loading order")
	}
	if order == nil {
		return false, errors.New(errors.CodeNotFound, "order not found")
	}

	existing, err := s.repo.FindByOrder(ctx, orderID)
	if err != nil {
		return false, errors.Wrap(errors.CodeInternal, err, "loading dispatch row")
	}
	if existing != nil && existing.Status != enums.DispatchStatusPending {
		s.logg.Warn(ctx, "dispatch already in progress; skipping re-notification")
		return false, nil
	}

	client := s.bot.Instance(ctx, false)
	if client == nil {
		s.logg.Warn(ctx, "telegram bot not configured; order not dispatched")
		return false, nil
	}

	recipients, err := s.recipients.ListActive(ctx)
	if err != nil {
		return false, errors.Wrap(errors.CodeInternal, err, "listing recipients")
	}
	if len(recipients) == 0 {
		s.logg.Warn(ctx, "no active recipients; order not dispatched")
		return false, nil
	}

	// The row and its reminder timer are committed before the fan-out, so a
	// total send outage still leaves state for the reminder loop and recovery
	// to retry from.
	if err := s.repo.UpsertPending(ctx, orderID, s.now()); err != nil {
		return false, errors.Wrap(errors.CodeInternal, err, "recording dispatch")
	}
	s.armReminder(ctx, orderID, enums.DispatchStatusPending)

	sent := s.broadcast(ctx, client, order, recipients, "")
	if sent == 0 {
		return false, errors.New(errors.CodeDependency, "all telegram sends failed")
	}

	s.logg.Info(ctx, fmt.Sprintf("order dispatched to %d of %d recipients", sent, len(recipients)))
	return true, nil
}

// broadcast sends the role-appropriate rendering to each recipient, returning
// the number of successful sends. A non-empty header is prepended to delivery
// messages (used by pending reminders).
func (s *service) broadcast(ctx context.Context, client telegram.BotClient, order *models.Order, recipients []models.Recipient, header string) int {
	sent := 0
	for _, recipient := range recipients {
		rctx := s.logg.WithChatID(ctx, recipient.TelegramID)

		var text string
		var buttons []telegram.Button
		switch recipient.Role {
		case enums.RecipientRoleKitchen:
			text = kitchenMessage(order)
		case enums.RecipientRoleDelivery:
			text = header + deliveryMessage(order)
			buttons = []telegram.Button{{
				Label: buttonAcceptLabel,
				Data:  AcceptCallbackData(order.ID),
			}}
		case enums.RecipientRoleObserver:
			text = observerMessage(order)
		default:
			s.logg.Warn(rctx, fmt.Sprintf("unknown recipient role %q; skipping", recipient.Role))
			continue
		}

		if err := client.SendMessage(rctx, recipient.TelegramID, text, buttons...); err != nil {
			s.logg.Error(rctx, "sending order notification failed", err)
			if s.metrics != nil {
				s.metrics.IncSendFailure(recipient.Role.String())
			}
			continue
		}
		if s.metrics != nil {
			s.metrics.IncSend(recipient.Role.String())
		}
		sent++
	}
	return sent
}

// HandleCallback routes an inbound button press. Unknown payloads are
// acknowledged silently so the Telegram client stops its spinner.
func (s *service) HandleCallback(ctx context.Context, cb telegram.Callback) {
	action, orderID, ok := ParseCallbackData(cb.Data)
	if !ok {
		s.logg.Warn(ctx, fmt.Sprintf("unrecognized callback payload %q", cb.Data))
		s.answer(ctx, cb.ID, "", false)
		return
	}
	ctx = s.logg.WithOrderID(ctx, orderID.String())

	switch action {
	case CallbackActionAccept:
		won, err := s.HandleOrderAccept(ctx, orderID, cb.ActorID)
		if err != nil {
			s.logg.Error(ctx, "handling accept failed", err)
			s.answer(ctx, cb.ID, "", false)
			return
		}
		if won {
			s.answer(ctx, cb.ID, replyAcceptedShort, false)
		} else {
			s.answer(ctx, cb.ID, replyAlreadyTaken, true)
		}
	case CallbackActionDelivered:
		done, err := s.HandleOrderDelivered(ctx, orderID, cb.ActorID)
		if err != nil {
			s.logg.Error(ctx, "handling delivery confirmation failed", err)
			s.answer(ctx, cb.ID, "", false)
			return
		}
		if done {
			s.answer(ctx, cb.ID, replyDeliveredShort, false)
		} else {
			s.answer(ctx, cb.ID, replyNotDeliverable, true)
		}
	}
}

// HandleOrderAccept claims the order for a courier. The claim is a conditional
// update, so under concurrent presses exactly one courier wins; the rest get
// false with no error.
func (s *service) HandleOrderAccept(ctx context.Context, orderID uuid.UUID, courierID int64) (bool, error) {
	now := s.now()
	won, err := s.repo.Claim(ctx, orderID, courierID, now)
	if err != nil {
		return false, errors.Wrap(errors.CodeInternal, err, "claiming order")
	}
	if !won {
		return false, nil
	}

	if err := s.orders.UpdateStatus(ctx, orderID, enums.OrderStatusInProgress); err != nil {
		s.logg.Error(ctx, "updating order status failed", err)
	}

	order, err := s.orders.Find(ctx, orderID)
	if err != nil || order == nil {
		s.logg.Warn(ctx, "order claimed but not loadable for confirmation")
	} else if client := s.bot.Instance(ctx, false); client != nil {
		confirmErr := client.SendMessage(ctx, courierID, acceptConfirmation(order), telegram.Button{
			Label: buttonDeliveredLabel,
			Data:  DeliveredCallbackData(orderID),
		})
		if confirmErr != nil {
			s.logg.Error(ctx, "sending accept confirmation failed", confirmErr)
		}
	}

	// The pending loop is replaced, not stacked: from here reminders nudge
	// only the assigned courier.
	s.scheduler.Stop(orderID)
	s.armReminder(ctx, orderID, enums.DispatchStatusInProgress)
	s.logg.Info(s.logg.WithChatID(ctx, courierID), "order accepted by courier")
	return true, nil
}

// HandleOrderDelivered completes the dispatch. Only the assigned courier can
// complete it; anyone else gets false with no error.
func (s *service) HandleOrderDelivered(ctx context.Context, orderID uuid.UUID, courierID int64) (bool, error) {
	done, err := s.repo.MarkDelivered(ctx, orderID, courierID, s.now())
	if err != nil {
		return false, errors.Wrap(errors.CodeInternal, err, "marking delivered")
	}
	if !done {
		return false, nil
	}

	s.scheduler.Stop(orderID)

	if err := s.orders.UpdateStatus(ctx, orderID, enums.OrderStatusDelivered); err != nil {
		s.logg.Error(ctx, "updating order status failed", err)
	}

	if order, loadErr := s.orders.Find(ctx, orderID); loadErr == nil && order != nil {
		if client := s.bot.Instance(ctx, false); client != nil {
			if sendErr := client.SendMessage(ctx, courierID, deliveredConfirmation(order)); sendErr != nil {
				s.logg.Error(ctx, "sending delivery confirmation failed", sendErr)
			}
		}
	}

	s.logg.Info(s.logg.WithChatID(ctx, courierID), "order delivered")
	return true, nil
}

// Shutdown stops every reminder timer.
func (s *service) Shutdown() {
	s.scheduler.Shutdown()
}

func (s *service) answer(ctx context.Context, callbackID, text string, alert bool) {
	if callbackID == "" {
		return
	}
	client := s.bot.Instance(ctx, false)
	if client == nil {
		return
	}
	if err := client.AnswerCallback(ctx, callbackID, text, alert); err != nil {
		s.logg.Error(ctx, "answering callback failed", err)
	}
}

func (s *service) armReminder(ctx context.Context, orderID uuid.UUID, stage enums.DispatchStatus) {
	s.scheduler.Arm(orderID, stage, s.reminderInterval(ctx), s.remind)
}

// reminderInterval resolves the configured interval, falling back to the
// process default when settings are unavailable or carry no value.
func (s *service) reminderInterval(ctx context.Context) time.Duration {
	settings, err := s.settings.Current(ctx)
	if err != nil {
		s.logg.Error(ctx, "loading bot settings for reminder interval failed", err)
		return s.defaultInterval
	}
	if settings == nil {
		return s.defaultInterval
	}
	return settings.ReminderInterval(s.defaultInterval)
}

// remind is the scheduler tick. It re-reads the dispatch row every fire so a
// timer whose order progressed (or vanished) terminates itself; transient
// failures keep the timer alive for the next tick.
func (s *service) remind(ctx context.Context, orderID uuid.UUID, stage enums.DispatchStatus) bool {
	ctx = s.logg.WithOrderID(ctx, orderID.String())

	row, err := s.repo.FindByOrder(ctx, orderID)
	if err != nil {
		s.logg.Error(ctx, "loading dispatch row for reminder failed", err)
		return true
	}
	if row == nil || row.Status != stage {
		return false
	}

	client := s.bot.Instance(ctx, false)
	if client == nil {
		// Bot currently unconfigured; keep the timer so reminders resume once
		// a token is restored.
		return true
	}

	order, err := s.orders.Find(ctx, orderID)
	if err != nil {
		s.logg.Error(ctx, "loading order for reminder failed", err)
		return true
	}
	if order == nil {
		return false
	}

	now := s.now()
	switch stage {
	case enums.DispatchStatusPending:
		recipients, err := s.recipients.ListActive(ctx)
		if err != nil {
			s.logg.Error(ctx, "listing recipients for reminder failed", err)
			return true
		}
		couriers := make([]models.Recipient, 0, len(recipients))
		for _, r := range recipients {
			if r.Role == enums.RecipientRoleDelivery {
				couriers = append(couriers, r)
			}
		}
		if len(couriers) == 0 {
			s.logg.Warn(ctx, "no active couriers to remind")
			return true
		}
		s.broadcast(ctx, client, order, couriers, reminderHeaderPending)
		// A pending re-broadcast counts as a notification; the status guard in
		// the upsert keeps this from touching rows that already progressed.
		if err := s.repo.UpsertPending(ctx, orderID, now); err != nil {
			s.logg.Error(ctx, "refreshing notification timestamp failed", err)
		}
	case enums.DispatchStatusInProgress:
		if row.CourierTelegramID == nil {
			return false
		}
		if err := client.SendMessage(ctx, *row.CourierTelegramID, courierReminder(order), telegram.Button{
			Label: buttonDeliveredLabel,
			Data:  DeliveredCallbackData(orderID),
		}); err != nil {
			s.logg.Error(ctx, "sending courier reminder failed", err)
			return true
		}
	default:
		return false
	}

	if s.metrics != nil {
		s.metrics.IncReminder(stage.String())
	}
	if err := s.repo.TouchReminder(ctx, orderID, now); err != nil {
		s.logg.Error(ctx, "recording reminder timestamp failed", err)
	}
	return true
}
