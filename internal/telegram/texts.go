package telegram

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/krishnarajt/second-thought-backend/internal/domain"
)

// UI texts in English
const (
	startLinkedText = "👋 Welcome back, your Telegram is linked.\n\n" +
		"I will remind you about your planned time blocks: before they start, when they start, " +
		"halfway through, and when they finish.\n\n" +
		"Use /today to see today's plan and /settings to tune the reminders."
	startUnlinkedText = "👋 I am your day-planner reminder bot.\n\n" +
		"To link this chat, generate a link code in the app and send it here with /link <code>, " +
		"or just paste the 6-digit code."
	helpText = "Commands:\n" +
		"/today — today's schedule\n" +
		"/settings — reminder preferences and timezone\n" +
		"/link <code> — link this chat to your account\n" +
		"/unlink — unlink this chat\n" +
		"/help — this message"
	notLinkedText = "This chat is not linked yet. Send /link <code> with a code from the app."
	linkedOKText  = "✅ Linked! You will now get reminders here. Try /today."
	badCodeText   = "That code is invalid or expired. Generate a fresh one in the app."
	unlinkedText  = "🔕 Unlinked. You will not receive reminders in this chat anymore."
	emptyDayText  = "🗓 Nothing planned for today."
	askTZText     = "Enter your timezone as Region/City (e.g., Asia/Kolkata):"
	badTZText     = "Invalid timezone. Example: Asia/Kolkata"
	doneText      = "🎯 Marked as done. Remaining reminders for it are off."
)

func onOff(v bool) string {
	if v {
		return "✅"
	}
	return "❌"
}

// settingsKeyboard renders the four reminder toggles with their current
// state plus the timezone row.
func settingsKeyboard(p domain.Preferences, tz string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(onOff(p.RemindBeforeActivity)+" 10-min heads-up", "pref:before"),
			tgbotapi.NewInlineKeyboardButtonData(onOff(p.RemindOnStart)+" Start ping", "pref:start"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(onOff(p.NudgeDuringActivity)+" Midway nudge", "pref:nudge"),
			tgbotapi.NewInlineKeyboardButtonData(onOff(p.CongratulateOnFinish)+" Finish cheer", "pref:finish"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🌍 Timezone: "+tz, "set_tz"),
		),
	)
}

func tzPresetsKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Asia/Kolkata", "tz:Asia/Kolkata"),
			tgbotapi.NewInlineKeyboardButtonData("Europe/London", "tz:Europe/London"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("America/New_York", "tz:America/New_York"),
			tgbotapi.NewInlineKeyboardButtonData("UTC", "tz:UTC"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✍️ Custom…", "tz:custom"),
		),
	)
}

// todayKeyboard offers a Done button per still-open block.
func todayKeyboard(blocks []domain.TimeBlock) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, b := range blocks {
		if b.Completed {
			continue
		}
		label := "✅ Done: " + b.StartTime + " " + truncate(b.Description, 24)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, "done:"+b.ID),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
