package domain

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidInterval = errors.New("invalid interval")

// BeforeStartOffset is how far ahead of a block's start the pre-start
// reminder fires.
const BeforeStartOffset = 10 * time.Minute

// TimeBlock is one scheduled task occupying a start–end interval on a
// single calendar date in its owner's local timezone.
//
// The four delivered flags are the durable terminal state of the
// delivery machinery; they transition false→true exactly once and are
// never reset except by a whole-day schedule replacement.
type TimeBlock struct {
	ID          string // stable uuid, independent of storage row ids
	UserID      int64
	Date        string // YYYY-MM-DD
	StartTime   string // HH:MM, local
	EndTime     string // HH:MM, local
	Description string
	Completed   bool
	CompletedAt *time.Time

	RemindedBefore  bool
	RemindedOnStart bool
	NudgedDuring    bool
	Congratulated   bool
}

// Delivered reports whether the flag for the given kind is set.
func (b *TimeBlock) Delivered(k EventKind) bool {
	switch k {
	case KindBeforeStart:
		return b.RemindedBefore
	case KindOnStart:
		return b.RemindedOnStart
	case KindDuringNudge:
		return b.NudgedDuring
	case KindOnFinish:
		return b.Congratulated
	default:
		return true
	}
}

// Validate checks the block's time fields without touching a timezone:
// both clock strings must parse and start must precede end within the
// same calendar date.
func (b *TimeBlock) Validate() error {
	startM, err := ParseClock(b.StartTime)
	if err != nil {
		return err
	}
	endM, err := ParseClock(b.EndTime)
	if err != nil {
		return err
	}
	if startM >= endM {
		return fmt.Errorf("%w: %s >= %s", ErrInvalidInterval, b.StartTime, b.EndTime)
	}
	return nil
}

// FireInstants derives the four absolute notification instants for a
// block in the given timezone:
//
//	KindBeforeStart  start − 10m (may already be past; never suppressed)
//	KindOnStart      start
//	KindDuringNudge  midpoint of start and end
//	KindOnFinish     end
func FireInstants(b *TimeBlock, tz string) (map[EventKind]time.Time, error) {
	startM, err := ParseClock(b.StartTime)
	if err != nil {
		return nil, err
	}
	endM, err := ParseClock(b.EndTime)
	if err != nil {
		return nil, err
	}
	if startM >= endM {
		return nil, fmt.Errorf("%w: %s >= %s", ErrInvalidInterval, b.StartTime, b.EndTime)
	}

	start, err := LocalInstant(b.Date, b.StartTime, tz)
	if err != nil {
		return nil, err
	}
	end, err := LocalInstant(b.Date, b.EndTime, tz)
	if err != nil {
		return nil, err
	}
	mid, err := LocalInstant(b.Date, FormatMinutes((startM+endM)/2), tz)
	if err != nil {
		return nil, err
	}

	return map[EventKind]time.Time{
		KindBeforeStart: start.Add(-BeforeStartOffset),
		KindOnStart:     start,
		KindDuringNudge: mid,
		KindOnFinish:    end,
	}, nil
}
