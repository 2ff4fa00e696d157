package telegram

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/krishnarajt/second-thought-backend/internal/domain"
	"github.com/krishnarajt/second-thought-backend/internal/store"
)

// --- Generic helpers ---

func (r *Router) sendText(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := r.bot.Send(msg); err != nil {
		r.log.Warn("send failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (r *Router) answerCallback(id, text string) error {
	_, err := r.bot.Request(tgbotapi.NewCallback(id, text))
	return err
}

// linkedUser resolves the account behind a chat, telling the chat to
// link first when there is none.
func (r *Router) linkedUser(ctx context.Context, chatID int64) (*domain.User, bool) {
	u, err := r.repo.GetUserByChatID(ctx, chatID)
	if errors.Is(err, store.ErrNotFound) {
		r.sendText(chatID, notLinkedText)
		return nil, false
	}
	if err != nil {
		r.log.Error("lookup by chat failed", zap.Int64("chat_id", chatID), zap.Error(err))
		r.sendText(chatID, "Something went wrong. Please try again later.")
		return nil, false
	}
	return u, true
}

// --- Core commands ---

func (r *Router) handleStart(ctx context.Context, chatID int64) {
	if _, err := r.repo.GetUserByChatID(ctx, chatID); err == nil {
		r.sendText(chatID, startLinkedText)
		return
	}
	r.sendText(chatID, startUnlinkedText)
}

func (r *Router) handleLink(ctx context.Context, chatID int64, username, code string) {
	if !linkCodeRe.MatchString(code) {
		r.sendText(chatID, "Usage: /link <6-digit code>")
		return
	}
	u, err := r.repo.ConsumeLinkCode(ctx, code, time.Now().UTC(), chatID, username)
	if errors.Is(err, store.ErrNotFound) {
		r.sendText(chatID, badCodeText)
		return
	}
	if err != nil {
		r.log.Error("link failed", zap.Int64("chat_id", chatID), zap.Error(err))
		r.sendText(chatID, "Could not link right now. Please try again later.")
		return
	}
	r.log.Info("chat linked", zap.Int64("chat_id", chatID), zap.Int64("user_id", u.ID))
	r.sendText(chatID, linkedOKText)
}

func (r *Router) handleToday(ctx context.Context, chatID int64) {
	u, ok := r.linkedUser(ctx, chatID)
	if !ok {
		return
	}
	loc, err := time.LoadLocation(u.Timezone)
	if err != nil {
		loc = time.UTC
	}
	date := time.Now().In(loc).Format(domain.DateLayout)
	blocks, err := r.repo.ScheduleForDate(ctx, u.ID, date)
	if err != nil {
		r.log.Error("schedule lookup failed", zap.Int64("user_id", u.ID), zap.Error(err))
		r.sendText(chatID, "Could not load today's schedule.")
		return
	}
	if len(blocks) == 0 {
		r.sendText(chatID, emptyDayText)
		return
	}

	var sb strings.Builder
	sb.WriteString("🗓 <b>Today, " + date + "</b>\n\n")
	open := 0
	for _, b := range blocks {
		mark := "▫️"
		if b.Completed {
			mark = "✔️"
		} else {
			open++
		}
		fmt.Fprintf(&sb, "%s %s–%s %s\n", mark, b.StartTime, b.EndTime, html.EscapeString(b.Description))
	}

	msg := tgbotapi.NewMessage(chatID, sb.String())
	msg.ParseMode = tgbotapi.ModeHTML
	if open > 0 {
		msg.ReplyMarkup = todayKeyboard(blocks)
	}
	if _, err := r.bot.Send(msg); err != nil {
		r.log.Warn("send failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (r *Router) handleSettings(ctx context.Context, chatID int64) {
	u, ok := r.linkedUser(ctx, chatID)
	if !ok {
		return
	}
	msg := tgbotapi.NewMessage(chatID, "⚙️ Tap to toggle a reminder:")
	msg.ReplyMarkup = settingsKeyboard(u.Prefs, u.Timezone)
	if _, err := r.bot.Send(msg); err != nil {
		r.log.Warn("send failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (r *Router) handleUnlink(ctx context.Context, chatID int64) {
	u, ok := r.linkedUser(ctx, chatID)
	if !ok {
		return
	}
	if err := r.repo.UnlinkTelegram(ctx, u.ID); err != nil {
		r.log.Error("unlink failed", zap.Int64("user_id", u.ID), zap.Error(err))
		r.sendText(chatID, "Could not unlink. Please try again later.")
		return
	}
	r.sendText(chatID, unlinkedText)
}

// --- Preference toggles ---

func (r *Router) handlePrefToggle(ctx context.Context, chatID int64, which, cbID string) {
	u, err := r.repo.GetUserByChatID(ctx, chatID)
	if err != nil {
		_ = r.answerCallback(cbID, "Not linked")
		return
	}
	p := u.Prefs
	switch which {
	case "before":
		p.RemindBeforeActivity = !p.RemindBeforeActivity
	case "start":
		p.RemindOnStart = !p.RemindOnStart
	case "nudge":
		p.NudgeDuringActivity = !p.NudgeDuringActivity
	case "finish":
		p.CongratulateOnFinish = !p.CongratulateOnFinish
	default:
		_ = r.answerCallback(cbID, "")
		return
	}
	if err := r.repo.UpdateSettings(ctx, u.ID, p, u.Timezone, u.DefaultSlotDuration); err != nil {
		r.log.Error("toggle failed", zap.Int64("user_id", u.ID), zap.Error(err))
		_ = r.answerCallback(cbID, "Could not save")
		return
	}
	_ = r.answerCallback(cbID, "Saved")
	msg := tgbotapi.NewMessage(chatID, "⚙️ Tap to toggle a reminder:")
	msg.ReplyMarkup = settingsKeyboard(p, u.Timezone)
	_, _ = r.bot.Send(msg)
}

// --- Timezone flow ---

func (r *Router) askTZPresets(ctx context.Context, chatID int64, cbID string) {
	_ = r.answerCallback(cbID, "")
	msg := tgbotapi.NewMessage(chatID, "Choose a timezone or enter your own (Region/City):")
	msg.ReplyMarkup = tzPresetsKeyboard()
	_, _ = r.bot.Send(msg)
}

func (r *Router) handleTZCallback(ctx context.Context, chatID int64, tz, cbID string) {
	_ = r.answerCallback(cbID, "")
	r.applyTZ(ctx, chatID, tz)
}

func (r *Router) applyTZ(ctx context.Context, chatID int64, tz string) {
	tz, err := domain.ValidateTZ(strings.TrimSpace(tz))
	if err != nil {
		r.sendText(chatID, badTZText)
		return
	}
	u, ok := r.linkedUser(ctx, chatID)
	if !ok {
		return
	}
	if err := r.repo.UpdateSettings(ctx, u.ID, u.Prefs, tz, u.DefaultSlotDuration); err != nil {
		r.log.Error("save tz failed", zap.Int64("user_id", u.ID), zap.Error(err))
		r.sendText(chatID, "Could not save timezone.")
		return
	}
	r.sendText(chatID, "Timezone updated: "+tz)
}

// --- Completing a block from the chat ---

func (r *Router) handleDoneCallback(ctx context.Context, chatID int64, taskUUID, cbID string) {
	u, err := r.repo.GetUserByChatID(ctx, chatID)
	if err != nil {
		_ = r.answerCallback(cbID, "Not linked")
		return
	}
	err = r.repo.CompleteTask(ctx, u.ID, taskUUID, time.Now().UTC())
	if errors.Is(err, store.ErrNotFound) {
		_ = r.answerCallback(cbID, "Already gone")
		return
	}
	if err != nil {
		r.log.Error("complete failed", zap.Int64("user_id", u.ID), zap.String("task", taskUUID), zap.Error(err))
		_ = r.answerCallback(cbID, "Could not save")
		return
	}
	_ = r.answerCallback(cbID, "Done!")
	r.sendText(chatID, doneText)
}
