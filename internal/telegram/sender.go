package telegram

import (
	"context"
	"errors"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/krishnarajt/second-thought-backend/internal/dispatch"
)

// BotSender delivers dispatcher notifications through the Bot API.
// It satisfies dispatch.Sender.
type BotSender struct {
	bot *tgbotapi.BotAPI
}

func NewBotSender(bot *tgbotapi.BotAPI) *BotSender {
	return &BotSender{bot: bot}
}

// Send pushes one HTML message. Failures that mean the chat is gone for
// good are wrapped in dispatch.PermanentError so the caller stops
// retrying and disables the user.
func (s *BotSender) Send(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err := s.bot.Send(msg)
	if err == nil {
		return nil
	}
	if isUnreachable(err) {
		return &dispatch.PermanentError{Err: err}
	}
	return err
}

// isUnreachable reports whether the API says this chat can never be
// delivered to again: the user blocked the bot, deleted their account,
// or the chat no longer exists.
func isUnreachable(err error) bool {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == 403 {
			return true
		}
		msg := strings.ToLower(apiErr.Message)
		return strings.Contains(msg, "chat not found") ||
			strings.Contains(msg, "user is deactivated") ||
			strings.Contains(msg, "bot was blocked")
	}
	return false
}
