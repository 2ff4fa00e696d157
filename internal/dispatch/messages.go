package dispatch

import (
	"fmt"
	"html"

	"github.com/krishnarajt/second-thought-backend/internal/domain"
)

// RenderMessage produces the HTML notification text for one event.
func RenderMessage(k domain.EventKind, b *domain.TimeBlock) string {
	desc := html.EscapeString(b.Description)
	switch k {
	case domain.KindBeforeStart:
		return fmt.Sprintf("⏰ <b>Coming up in 10 minutes!</b>\n\n📋 %s\n🕐 %s – %s", desc, b.StartTime, b.EndTime)
	case domain.KindOnStart:
		return fmt.Sprintf("🚀 <b>Time to start!</b>\n\n📋 %s\n🕐 Now until %s", desc, b.EndTime)
	case domain.KindDuringNudge:
		return fmt.Sprintf("💪 <b>Keep going!</b>\n\n📋 %s\n\nYou're doing great, stay focused!", desc)
	case domain.KindOnFinish:
		return fmt.Sprintf("🎉 <b>Time's up!</b>\n\n📋 %s\n\nGreat job completing this task!", desc)
	default:
		return ""
	}
}
