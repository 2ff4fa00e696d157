package domain

// EventKind identifies one of the four notification moments in a time
// block's lifecycle.
type EventKind int

const (
	KindBeforeStart EventKind = iota
	KindOnStart
	KindDuringNudge
	KindOnFinish
)

// Kinds lists every event kind in its fixed dispatch order.
var Kinds = [4]EventKind{KindBeforeStart, KindOnStart, KindDuringNudge, KindOnFinish}

// String returns the stable name used in logs and the claims table.
func (k EventKind) String() string {
	switch k {
	case KindBeforeStart:
		return "before_start"
	case KindOnStart:
		return "on_start"
	case KindDuringNudge:
		return "during_nudge"
	case KindOnFinish:
		return "on_finish"
	default:
		return "unknown"
	}
}
