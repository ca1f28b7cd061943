package domain

type NoteGrade string

const (
	NoteExcellent   NoteGrade = "excellent"
	NoteGood        NoteGrade = "good"
	NotePass        NoteGrade = "pass"
	NoteNeedWork    NoteGrade = "needWork"
	NoteNotMeasured NoteGrade = "notMeasured"
)

func (g NoteGrade) Valid() bool {
	switch g {
	case NoteExcellent, NoteGood, NotePass, NoteNeedWork, NoteNotMeasured:
		return true
	}
	return false
}

// Passing reports whether the note counts toward a session's pass count.
func (g NoteGrade) Passing() bool {
	return g == NoteExcellent || g == NoteGood || g == NotePass
}

type SessionGrade string

const (
	SessionExcellent SessionGrade = "excellent"
	SessionGood      SessionGrade = "good"
	SessionPass      SessionGrade = "pass"
	SessionNeedWork  SessionGrade = "needWork"
)

func (g SessionGrade) Valid() bool {
	switch g {
	case SessionExcellent, SessionGood, SessionPass, SessionNeedWork:
		return true
	}
	return false
}

type OverallGrade string

const (
	OverallS OverallGrade = "S"
	OverallA OverallGrade = "A"
	OverallB OverallGrade = "B"
	OverallC OverallGrade = "C"
	OverallD OverallGrade = "D"
	OverallE OverallGrade = "E"
)

func (g OverallGrade) Valid() bool {
	switch g {
	case OverallS, OverallA, OverallB, OverallC, OverallD, OverallE:
		return true
	}
	return false
}

const (
	excellentCentsLimit = 30
	goodCentsLimit      = 60
	passCentsLimit      = 120
)

// EvaluateNote grades a signed cents deviation. Each bound is inclusive on the
// better grade; nil means nothing was measured.
func EvaluateNote(cents *float64) NoteGrade {
	if cents == nil {
		return NoteNotMeasured
	}
	abs := *cents
	if abs < 0 {
		abs = -abs
	}
	switch {
	case abs <= excellentCentsLimit:
		return NoteExcellent
	case abs <= goodCentsLimit:
		return NoteGood
	case abs <= passCentsLimit:
		return NotePass
	default:
		return NoteNeedWork
	}
}
