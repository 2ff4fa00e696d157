package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrUnknownZone      = errors.New("unknown timezone")
	ErrInvalidLocalTime = errors.New("invalid local time")
	ErrInvalidDate      = errors.New("invalid date")
)

// DateLayout is the wire format for calendar dates (YYYY-MM-DD).
const DateLayout = "2006-01-02"

// ParseClock parses "HH:MM" into minutes since midnight (0..1439).
func ParseClock(s string) (int, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("%w: expected HH:MM, got %q", ErrInvalidLocalTime, s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("%w: invalid hour in %q", ErrInvalidLocalTime, s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("%w: invalid minute in %q", ErrInvalidLocalTime, s)
	}
	return h*60 + m, nil
}

// ParseDate validates a "YYYY-MM-DD" calendar date string.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t, nil
}

// ValidateTZ checks that tz is a resolvable IANA location name.
func ValidateTZ(tz string) (string, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrUnknownZone, tz)
	}
	return loc.String(), nil
}

// FormatMinutes returns HH:MM for minutes since midnight (00:00..23:59).
func FormatMinutes(mins int) string {
	if mins < 0 {
		mins = 0
	}
	h := mins / 60
	m := mins % 60
	return fmt.Sprintf("%02d:%02d", h, m)
}

// LocalInstant converts a calendar date plus an "HH:MM" wall time in the
// named zone into an absolute instant.
//
// DST transitions are normalized deterministically: a wall time skipped
// by a forward jump resolves to the first valid instant at or after it;
// a wall time that occurs twice after a backward jump resolves to its
// first occurrence.
func LocalInstant(date, hhmm, tz string) (time.Time, error) {
	day, err := ParseDate(date)
	if err != nil {
		return time.Time{}, err
	}
	mins, err := ParseClock(hhmm)
	if err != nil {
		return time.Time{}, err
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnknownZone, tz)
	}

	t := time.Date(day.Year(), day.Month(), day.Day(), mins/60, mins%60, 0, 0, loc)

	want := date + " " + FormatMinutes(mins)
	if got := wallClock(t); got != want {
		// The wall time fell into a forward-jump gap. time.Date may
		// normalize to either side of it (02:30 in a 02:00–03:00 gap can
		// come back as 01:30 or 03:30 depending on the offset it picked),
		// so bracket the transition on whichever side t landed and
		// resolve to the first instant whose wall clock reads at or
		// after the request, never before.
		lo, hi := t.Add(-4*time.Hour), t
		if got < want {
			lo, hi = t, t.Add(4*time.Hour)
		}
		return firstWallAtOrAfter(lo, hi, want), nil
	}

	// The wall time may be ambiguous after a backward jump. Prefer the
	// first occurrence. DST deltas in practice are 30 or 60 minutes.
	for _, back := range []time.Duration{time.Hour, 30 * time.Minute} {
		if early := t.Add(-back); wallClock(early.In(loc)) == want {
			return early.UTC(), nil
		}
	}
	return t.UTC(), nil
}

func wallClock(t time.Time) string {
	return t.Format(DateLayout + " 15:04")
}

// firstWallAtOrAfter binary-searches [lo, hi] for the instant at which
// the local wall clock first reads >= want. The caller guarantees the
// wall clock at lo reads before want and at hi reads at or after it;
// DST deltas are at most a couple of hours, so a 4h bracket suffices.
func firstWallAtOrAfter(lo, hi time.Time, want string) time.Time {
	loc := hi.Location()
	for hi.Sub(lo) > time.Second {
		mid := lo.Add(hi.Sub(lo) / 2)
		if wallClock(mid.In(loc)) >= want {
			hi = mid
		} else {
			lo = mid
		}
	}
	return hi.Truncate(time.Second).UTC()
}
