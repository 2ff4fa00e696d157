package store

import (
	"context"
	"time"

	"github.com/krishnarajt/second-thought-backend/internal/domain"
)

// Repo defines storage operations for users, schedules and the
// notification delivery state. It is the single writer of the delivered
// flags; no in-memory copy of delivery state may be trusted across a
// dispatch cycle boundary.
type Repo interface {
	// Users and settings.
	CreateUser(ctx context.Context, u *domain.User) error
	GetUserByID(ctx context.Context, id int64) (*domain.User, error)
	GetUserByToken(ctx context.Context, token string) (*domain.User, error)
	GetUserByChatID(ctx context.Context, chatID int64) (*domain.User, error)
	UpdateSettings(ctx context.Context, userID int64, prefs domain.Preferences, tz string, slotDuration int) error
	DisableAllNotifications(ctx context.Context, userID int64) error

	// Telegram account linking.
	CreateLinkCode(ctx context.Context, userID int64, code string, expiresAt time.Time) error
	ConsumeLinkCode(ctx context.Context, code string, now time.Time, chatID int64, tgUsername string) (*domain.User, error)
	UnlinkTelegram(ctx context.Context, userID int64) error

	// Schedules. ReplaceSchedule swaps the whole day: existing tasks for
	// the date are dropped (claims included) and the new set starts with
	// clean delivery flags.
	ReplaceSchedule(ctx context.Context, userID int64, date string, blocks []domain.TimeBlock) error
	ScheduleForDate(ctx context.Context, userID int64, date string) ([]domain.TimeBlock, error)
	CompleteTask(ctx context.Context, userID int64, taskUUID string, at time.Time) error

	// Dispatch reads.
	ListEligibleUsers(ctx context.Context) ([]domain.User, error)
	ListUndeliveredBlocks(ctx context.Context, userID int64, date string) ([]domain.TimeBlock, error)

	// Delivery state machine. ClaimEvent is the atomic Pending→Claimed
	// transition and the system's sole concurrency guard: exactly one
	// racing worker wins, the rest observe ErrAlreadyClaimed. A claim
	// older than staleAfter with no terminal outcome is treated as dead
	// and may be taken over. MarkDelivered and MarkAbandoned are the
	// terminal transitions; both set the durable delivered flag (an
	// abandoned event is never re-attempted) and release the claim.
	ClaimEvent(ctx context.Context, taskUUID string, kind domain.EventKind, now time.Time, staleAfter time.Duration) error
	MarkDelivered(ctx context.Context, taskUUID string, kind domain.EventKind) error
	MarkAbandoned(ctx context.Context, taskUUID string, kind domain.EventKind) error

	Close() error
}
