package domain

import (
	"testing"
	"time"
)

var allPrefs = Preferences{
	RemindBeforeActivity: true,
	RemindOnStart:        true,
	NudgeDuringActivity:  true,
	CongratulateOnFinish: true,
}

func scenarioBlock() TimeBlock {
	return TimeBlock{
		ID:        "b1",
		UserID:    1,
		Date:      "2025-06-15",
		StartTime: "09:00",
		EndTime:   "09:30",
	}
}

func kindsOf(events []Event) []EventKind {
	out := make([]EventKind, 0, len(events))
	for _, e := range events {
		out = append(out, e.Kind)
	}
	return out
}

func sameKinds(got, want []EventKind) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestDueEvents_Scenario(t *testing.T) {
	blocks := []TimeBlock{scenarioBlock()}
	cases := []struct {
		now  time.Time
		want []EventKind
	}{
		{utc(8, 49), nil},
		// BeforeStart fires at 08:50:00; due means fire instant <= now.
		{utc(8, 50), []EventKind{KindBeforeStart}},
		{utc(8, 50).Add(time.Second), []EventKind{KindBeforeStart}},
		{utc(9, 15), []EventKind{KindBeforeStart, KindOnStart, KindDuringNudge}},
		{utc(9, 30), []EventKind{KindBeforeStart, KindOnStart, KindDuringNudge, KindOnFinish}},
	}
	for _, c := range cases {
		due, err := DueEvents(blocks, allPrefs, "UTC", c.now)
		if err != nil {
			t.Fatal(err)
		}
		if got := kindsOf(due); !sameKinds(got, c.want) {
			t.Errorf("now=%v: got %v, want %v", c.now, got, c.want)
		}
	}
}

func TestDueEvents_SkipsDeliveredFlags(t *testing.T) {
	b := scenarioBlock()
	b.RemindedBefore = true
	b.RemindedOnStart = true
	due, err := DueEvents([]TimeBlock{b}, allPrefs, "UTC", utc(9, 20))
	if err != nil {
		t.Fatal(err)
	}
	if got := kindsOf(due); !sameKinds(got, []EventKind{KindDuringNudge}) {
		t.Fatalf("got %v", got)
	}
}

func TestDueEvents_IdempotentAfterDelivery(t *testing.T) {
	b := scenarioBlock()
	b.RemindedBefore = true
	b.RemindedOnStart = true
	b.NudgedDuring = true
	b.Congratulated = true
	due, err := DueEvents([]TimeBlock{b}, allPrefs, "UTC", utc(23, 0))
	if err != nil {
		t.Fatal(err)
	}
	if len(due) != 0 {
		t.Fatalf("re-resolution of a fully delivered block must be empty, got %v", kindsOf(due))
	}
}

func TestDueEvents_PolicyFilter(t *testing.T) {
	prefs := Preferences{CongratulateOnFinish: true}
	due, err := DueEvents([]TimeBlock{scenarioBlock()}, prefs, "UTC", utc(23, 0))
	if err != nil {
		t.Fatal(err)
	}
	if got := kindsOf(due); !sameKinds(got, []EventKind{KindOnFinish}) {
		t.Fatalf("only OnFinish may fire, got %v", got)
	}
}

func TestDueEvents_CatchUpAfterMissedCycles(t *testing.T) {
	// First resolution happens at 09:17 even though OnStart was 09:00:
	// every passed undelivered event is found exactly once.
	due, err := DueEvents([]TimeBlock{scenarioBlock()}, allPrefs, "UTC", utc(9, 17))
	if err != nil {
		t.Fatal(err)
	}
	if got := kindsOf(due); !sameKinds(got, []EventKind{KindBeforeStart, KindOnStart, KindDuringNudge}) {
		t.Fatalf("got %v", got)
	}
}

func TestDueEvents_SkipsCompleted(t *testing.T) {
	b := scenarioBlock()
	b.Completed = true
	due, err := DueEvents([]TimeBlock{b}, allPrefs, "UTC", utc(23, 0))
	if err != nil {
		t.Fatal(err)
	}
	if len(due) != 0 {
		t.Fatalf("completed block emitted %v", kindsOf(due))
	}
}

func TestDueEvents_Ordering(t *testing.T) {
	early := scenarioBlock()
	late := TimeBlock{ID: "b2", UserID: 1, Date: "2025-06-15", StartTime: "10:00", EndTime: "11:00"}
	due, err := DueEvents([]TimeBlock{late, early}, allPrefs, "UTC", utc(12, 0))
	if err != nil {
		t.Fatal(err)
	}
	if len(due) != 8 {
		t.Fatalf("want 8 events, got %d", len(due))
	}
	for i, e := range due[:4] {
		if e.Block.ID != "b1" || e.Kind != Kinds[i] {
			t.Fatalf("event %d out of order: block=%s kind=%s", i, e.Block.ID, e.Kind)
		}
	}
	for i, e := range due[4:] {
		if e.Block.ID != "b2" || e.Kind != Kinds[i] {
			t.Fatalf("event %d out of order: block=%s kind=%s", i+4, e.Block.ID, e.Kind)
		}
	}
}

func TestDueEvents_UnknownZone(t *testing.T) {
	if _, err := DueEvents([]TimeBlock{scenarioBlock()}, allPrefs, "Nope/Nowhere", utc(9, 0)); err == nil {
		t.Fatal("expected error")
	}
}

func TestDueEvents_SkipsMalformedBlock(t *testing.T) {
	corrupt := TimeBlock{ID: "bad", Date: "2025-06-15", StartTime: "10:00", EndTime: "09:00"}
	due, err := DueEvents([]TimeBlock{corrupt, scenarioBlock()}, allPrefs, "UTC", utc(12, 0))
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range due {
		if e.Block.ID == "bad" {
			t.Fatal("malformed block must not emit events")
		}
	}
	if len(due) != 4 {
		t.Fatalf("healthy block lost: %d events", len(due))
	}
}

func TestEnabledKinds(t *testing.T) {
	p := Preferences{RemindOnStart: true, CongratulateOnFinish: true}
	got := p.EnabledKinds()
	if !sameKinds(got, []EventKind{KindOnStart, KindOnFinish}) {
		t.Fatalf("got %v", got)
	}
	if !p.Any() {
		t.Fatal("Any() = false")
	}
	if (Preferences{}).Any() {
		t.Fatal("zero prefs Any() = true")
	}
}
