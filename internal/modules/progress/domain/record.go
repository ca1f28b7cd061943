package domain

import (
	"time"

	evaluation "reltone/internal/modules/evaluation/domain"
)

// SessionRecord is the flattened, cross-cycle view of one recorded session.
type SessionRecord struct {
	CycleID           string
	SessionID         int
	BaseNote          string
	Grade             evaluation.SessionGrade
	AccuracyPercent   float64
	AverageErrorCents float64
	CompletedAt       time.Time
}

func RecordOf(cycleID string, s evaluation.SessionResult) SessionRecord {
	return SessionRecord{
		CycleID:           cycleID,
		SessionID:         s.SessionID,
		BaseNote:          s.BaseNote,
		Grade:             s.Grade,
		AccuracyPercent:   s.AccuracyPercent,
		AverageErrorCents: s.AverageErrorCents,
		CompletedAt:       s.CompletedAt,
	}
}

// Archive is a completed cycle moved aside when a new cycle starts.
type Archive struct {
	Key        string
	ArchivedAt time.Time
	Progress   TrainingProgress
}
