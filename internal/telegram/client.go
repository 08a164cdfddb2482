package telegram

import (
	"context"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Button is an inline keyboard control attached to an outbound message.
type Button struct {
	Label string
	Data  string
}

// Callback is an inbound button press forwarded to the dispatch engine.
type Callback struct {
	ID      string
	ActorID int64
	ChatID  int64
	Data    string
}

// UpdateHandler consumes inbound callbacks from the poll loop.
type UpdateHandler func(ctx context.Context, cb Callback)

// BotClient abstracts the Telegram surface the dispatch engine uses.
type BotClient interface {
	Token() string
	Username() string
	SendMessage(ctx context.Context, chatID int64, text string, buttons ...Button) error
	AnswerCallback(ctx context.Context, callbackID, text string, showAlert bool) error
	GetUpdates(ctx context.Context, offset, timeoutSeconds int) ([]Callback, int, error)
}

const validateTimeout = 10 * time.Second

// ValidateToken performs a single getMe call against the Telegram API.
// It starts no polling and never propagates the failure reason; any
// network or auth error means the token is unusable.
func ValidateToken(_ context.Context, token string) bool {
	if token == "" {
		return false
	}
	httpClient := &http.Client{Timeout: validateTimeout}
	if _, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, httpClient); err != nil {
		return false
	}
	return true
}

type botClient struct {
	api *tgbotapi.BotAPI
}

// NewClient builds a BotClient bound to the given token. The underlying
// constructor performs a getMe call, so an invalid token fails fast.
func NewClient(token string) (BotClient, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &botClient{api: api}, nil
}

func (c *botClient) Token() string {
	return c.api.Token
}

func (c *botClient) Username() string {
	return c.api.Self.UserName
}

func (c *botClient) SendMessage(_ context.Context, chatID int64, text string, buttons ...Button) error {
	msg := tgbotapi.NewMessage(chatID, text)
	if len(buttons) > 0 {
		row := make([]tgbotapi.InlineKeyboardButton, 0, len(buttons))
		for _, b := range buttons {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(b.Label, b.Data))
		}
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(row)
	}
	_, err := c.api.Send(msg)
	return err
}

func (c *botClient) AnswerCallback(_ context.Context, callbackID, text string, showAlert bool) error {
	cb := tgbotapi.NewCallback(callbackID, text)
	cb.ShowAlert = showAlert
	_, err := c.api.Request(cb)
	return err
}

// GetUpdates long-polls for updates and returns the callback presses plus the
// next offset to resume from. Non-callback updates advance the offset silently.
func (c *botClient) GetUpdates(_ context.Context, offset, timeoutSeconds int) ([]Callback, int, error) {
	u := tgbotapi.NewUpdate(offset)
	u.Timeout = timeoutSeconds
	updates, err := c.api.GetUpdates(u)
	if err != nil {
		return nil, offset, err
	}

	next := offset
	var callbacks []Callback
	for _, update := range updates {
		if update.UpdateID >= next {
			next = update.UpdateID + 1
		}
		cq := update.CallbackQuery
		if cq == nil || cq.From == nil {
			continue
		}
		cb := Callback{
			ID:      cq.ID,
			ActorID: cq.From.ID,
			Data:    cq.Data,
		}
		if cq.Message != nil {
			cb.ChatID = cq.Message.Chat.ID
		}
		callbacks = append(callbacks, cb)
	}
	return callbacks, next, nil
}
