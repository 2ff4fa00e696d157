package domain

import (
	"sort"
	"time"
)

// Event is one derived notification occurrence: a (block, kind) pair
// with its computed fire instant. Events are never persisted; the
// durable truth about them is the block's delivered flag, so
// recomputing the same event any number of times is harmless.
type Event struct {
	Block  TimeBlock
	Kind   EventKind
	FireAt time.Time
}

// DueEvents computes the notifications that have come due: every
// (block, kind) whose fire instant is at or before now, whose kind is
// enabled by prefs, and whose delivered flag is still false. Completed
// blocks emit nothing.
//
// Emission order is block start time ascending, then fixed kind order.
// Blocks with malformed time fields are skipped rather than failing the
// whole set; those are rejected at save time and a corrupt row must not
// wedge a dispatch cycle. An unresolvable zone fails the call.
func DueEvents(blocks []TimeBlock, prefs Preferences, tz string, now time.Time) ([]Event, error) {
	if _, err := ValidateTZ(tz); err != nil {
		return nil, err
	}

	var due []Event
	for _, b := range blocks {
		if b.Completed {
			continue
		}
		instants, err := FireInstants(&b, tz)
		if err != nil {
			continue
		}
		for _, k := range Kinds {
			if !prefs.Enabled(k) || b.Delivered(k) {
				continue
			}
			if at := instants[k]; !at.After(now) {
				due = append(due, Event{Block: b, Kind: k, FireAt: at})
			}
		}
	}

	sort.SliceStable(due, func(i, j int) bool {
		if due[i].Block.StartTime != due[j].Block.StartTime {
			return due[i].Block.StartTime < due[j].Block.StartTime
		}
		if due[i].Block.ID != due[j].Block.ID {
			return due[i].Block.ID < due[j].Block.ID
		}
		return due[i].Kind < due[j].Kind
	})
	return due, nil
}
