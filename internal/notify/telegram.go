package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramSender is the part of the Telegram bot API used for pushes.
type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// NewTelegramAPI authenticates a bot API client whose HTTP requests give up
// after timeout.
func NewTelegramAPI(token string, timeout time.Duration) (*tgbotapi.BotAPI, error) {
	return newTelegramAPI(token, tgbotapi.APIEndpoint, timeout)
}

func newTelegramAPI(token, endpoint string, timeout time.Duration) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPIWithClient(token, endpoint, &http.Client{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	return api, nil
}

// Telegram pushes alert messages to one chat.
type Telegram struct {
	api    TelegramSender
	chatID int64
}

// NewTelegram creates a Telegram transport for chatID.
func NewTelegram(api TelegramSender, chatID int64) *Telegram {
	return &Telegram{api: api, chatID: chatID}
}

// Name implements Transport.
func (t *Telegram) Name() string { return "telegram" }

// Send implements Transport. The bot API has no context support, so the
// call is abandoned (not cancelled) when ctx expires.
func (t *Telegram) Send(ctx context.Context, msg string) error {
	m := tgbotapi.NewMessage(t.chatID, msg)
	m.DisableWebPagePreview = true

	done := make(chan error, 1)
	go func() {
		_, err := t.api.Send(m)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send message to chat %d: %w", t.chatID, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("send message to chat %d: %w", t.chatID, ctx.Err())
	}
}
