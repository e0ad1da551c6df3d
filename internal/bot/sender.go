package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Sender wraps the Telegram client for the reminder dispatcher.
type Sender struct {
	api *tgbotapi.BotAPI
}

// NewSender creates a sender over an authorized bot client.
func NewSender(api *tgbotapi.BotAPI) *Sender {
	return &Sender{api: api}
}

// Send delivers one text message to one chat.
func (s *Sender) Send(_ context.Context, chatID int64, text string) error {
	_, err := s.api.Send(tgbotapi.NewMessage(chatID, text))
	return err
}
