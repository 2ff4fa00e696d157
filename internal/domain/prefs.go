package domain

// Preferences are a user's four independent notification switches, one
// per event kind. Pure lookup; no side effects.
type Preferences struct {
	RemindBeforeActivity bool
	RemindOnStart        bool
	NudgeDuringActivity  bool
	CongratulateOnFinish bool
}

// Enabled reports whether notifications of the given kind are on.
func (p Preferences) Enabled(k EventKind) bool {
	switch k {
	case KindBeforeStart:
		return p.RemindBeforeActivity
	case KindOnStart:
		return p.RemindOnStart
	case KindDuringNudge:
		return p.NudgeDuringActivity
	case KindOnFinish:
		return p.CongratulateOnFinish
	default:
		return false
	}
}

// EnabledKinds returns the enabled subset in fixed kind order.
func (p Preferences) EnabledKinds() []EventKind {
	var out []EventKind
	for _, k := range Kinds {
		if p.Enabled(k) {
			out = append(out, k)
		}
	}
	return out
}

// Any reports whether at least one kind is enabled.
func (p Preferences) Any() bool {
	return p.RemindBeforeActivity || p.RemindOnStart || p.NudgeDuringActivity || p.CongratulateOnFinish
}
