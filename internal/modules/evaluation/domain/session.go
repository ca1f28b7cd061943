package domain

import (
	"fmt"
	"math"
	"time"
)

// MaxSessionsPerCycle is the number of sessions that completes a training cycle.
const MaxSessionsPerCycle = 8

// unmeasuredAverageError stands in for the average error of a session with no measured notes.
const unmeasuredAverageError = 100

type SessionStats struct {
	Measured      int
	NotMeasured   int
	TotalAbsError float64
	AverageError  float64
	Excellent     int
	Good          int
	Pass          int
	NeedWork      int
	PassCount     int
}

// AccuracyPercent is the share of the session's notes that passed.
func (s SessionStats) AccuracyPercent() float64 {
	return float64(s.PassCount) / NotesPerSession * 100
}

func SessionStatsOf(notes []NoteResult) SessionStats {
	var s SessionStats
	for _, n := range notes {
		switch n.Grade {
		case NoteExcellent:
			s.Excellent++
		case NoteGood:
			s.Good++
		case NotePass:
			s.Pass++
		case NoteNeedWork:
			s.NeedWork++
		}
		if n.Cents == nil {
			s.NotMeasured++
			continue
		}
		s.Measured++
		s.TotalAbsError += math.Abs(*n.Cents)
	}
	s.PassCount = s.Excellent + s.Good + s.Pass
	s.AverageError = unmeasuredAverageError
	if s.Measured > 0 {
		s.AverageError = s.TotalAbsError / float64(s.Measured)
	}
	return s
}

// EvaluateSession grades exactly eight notes. The first matching rule wins.
func EvaluateSession(notes []NoteResult) (SessionGrade, SessionStats, error) {
	if len(notes) != NotesPerSession {
		return "", SessionStats{}, fmt.Errorf("%w: got %d", ErrWrongNoteCount, len(notes))
	}
	s := SessionStatsOf(notes)
	switch {
	case s.NotMeasured > 3 || s.Measured == 0:
		return SessionNeedWork, s, nil
	case s.AverageError <= 40 && s.Excellent >= 5:
		return SessionExcellent, s, nil
	case s.AverageError <= 60 && s.PassCount >= 6:
		return SessionGood, s, nil
	case s.PassCount >= 4:
		return SessionPass, s, nil
	default:
		return SessionNeedWork, s, nil
	}
}

type SessionResult struct {
	SessionID         int          `json:"sessionId"`
	BaseNote          string       `json:"baseNote"`
	BaseFrequencyHz   float64      `json:"baseFrequencyHz"`
	NoteResults       []NoteResult `json:"noteResults"`
	Grade             SessionGrade `json:"grade"`
	AccuracyPercent   float64      `json:"accuracyPercent"`
	AverageErrorCents float64      `json:"averageErrorCents"`
	CompletedAt       time.Time    `json:"completedAt"`
}

func NewSessionResult(sessionID int, baseNote string, baseHz float64, notes []NoteResult, completedAt time.Time) (SessionResult, error) {
	if sessionID < 1 || sessionID > MaxSessionsPerCycle {
		return SessionResult{}, fmt.Errorf("%w: session id %d", ErrInvalidSessionResult, sessionID)
	}
	if baseNote == "" {
		return SessionResult{}, fmt.Errorf("%w: base note is required", ErrInvalidSessionResult)
	}
	for _, n := range notes {
		if err := n.Validate(); err != nil {
			return SessionResult{}, err
		}
	}
	grade, stats, err := EvaluateSession(notes)
	if err != nil {
		return SessionResult{}, err
	}
	return SessionResult{
		SessionID:         sessionID,
		BaseNote:          baseNote,
		BaseFrequencyHz:   baseHz,
		NoteResults:       append([]NoteResult(nil), notes...),
		Grade:             grade,
		AccuracyPercent:   stats.AccuracyPercent(),
		AverageErrorCents: stats.AverageError,
		CompletedAt:       completedAt.UTC(),
	}, nil
}

func (r SessionResult) Validate() error {
	if r.SessionID < 1 || r.SessionID > MaxSessionsPerCycle {
		return fmt.Errorf("%w: session id %d", ErrInvalidSessionResult, r.SessionID)
	}
	if r.BaseNote == "" {
		return fmt.Errorf("%w: session %d has no base note", ErrInvalidSessionResult, r.SessionID)
	}
	if !r.Grade.Valid() {
		return fmt.Errorf("%w: session %d grade %q", ErrInvalidSessionResult, r.SessionID, r.Grade)
	}
	if len(r.NoteResults) != NotesPerSession {
		return fmt.Errorf("%w: session %d has %d notes", ErrInvalidSessionResult, r.SessionID, len(r.NoteResults))
	}
	for _, n := range r.NoteResults {
		if err := n.Validate(); err != nil {
			return fmt.Errorf("session %d: %w", r.SessionID, err)
		}
	}
	return nil
}
