package domain

import "time"

// User holds a planner account's profile, Telegram link and
// notification settings.
type User struct {
	ID               int64
	Username         string
	DisplayName      string
	TelegramChatID   *int64 // nil until the user links their chat
	TelegramUsername string

	Prefs               Preferences
	DefaultSlotDuration int    // minutes; used only by the schedule-editing UI
	Timezone            string // IANA name, validated at save time

	APIToken  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Linked reports whether the user has a Telegram chat attached.
func (u *User) Linked() bool {
	return u.TelegramChatID != nil
}
