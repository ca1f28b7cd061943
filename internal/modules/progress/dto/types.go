package dto

import (
	"time"

	evaluation "reltone/internal/modules/evaluation/domain"
)

type NoteOutput struct {
	TargetNote        string
	TargetFrequencyHz float64
	UserFrequencyHz   *float64
	Cents             *float64
	Grade             string
}

type SessionOutput struct {
	SessionID         int
	BaseNote          string
	BaseFrequencyHz   float64
	Grade             string
	AccuracyPercent   float64
	AverageErrorCents float64
	CompletedAt       time.Time
	Notes             []NoteOutput
}

type HealthOutput struct {
	Found       bool
	FromVersion int
	Repaired    []string
	Discarded   bool
	Reason      string
	CorruptKey  string
}

type ProgressOutput struct {
	CycleID            string
	VoiceRange         string
	CreatedAt          time.Time
	LastUpdatedAt      time.Time
	CurrentSessionID   int
	SessionsCompleted  int
	IsCompleted        bool
	UsedBaseNotes      []string
	RemainingBaseNotes []string
	// OverallGrade and OverallAccuracy are set once the cycle is completed.
	OverallGrade    string
	OverallAccuracy *float64
	Sessions        []SessionOutput
	Health          HealthOutput
}

type NextBaseNoteOutput struct {
	SessionID       int
	BaseNote        string
	BaseFrequencyHz float64
}

// RecordSessionInput carries eight graded notes in scale order. An empty
// BaseNote uses the pending pick from NextBaseNote.
type RecordSessionInput struct {
	BaseNote string
	Notes    []evaluation.NoteResult
}

// RecordFromCentsInput carries one deviation per scale degree; nil marks a
// note that was not measured.
type RecordFromCentsInput struct {
	BaseNote string
	Cents    []*float64
}

type RecordSessionOutput struct {
	Session        SessionOutput
	Progress       ProgressOutput
	CycleCompleted bool
	// Durable is false when the result is held in memory only.
	Durable     bool
	JournalPath string
}

type NewCycleOutput struct {
	Started  bool
	Progress ProgressOutput
}

type ArchiveOutput struct {
	Key             string
	ArchivedAt      time.Time
	CycleID         string
	VoiceRange      string
	Sessions        int
	OverallGrade    string
	OverallAccuracy *float64
}

type SessionRecordOutput struct {
	CycleID           string
	SessionID         int
	BaseNote          string
	Grade             string
	AccuracyPercent   float64
	AverageErrorCents float64
	CompletedAt       time.Time
}

type ExportInput struct {
	Path string
}

type ExportOutput struct {
	Path     string
	Sessions int
}

// ScaleDegreeNames lists the sung degrees in recording order.
func ScaleDegreeNames() []string {
	names := make([]string, 0, len(evaluation.ScaleDegrees))
	for _, d := range evaluation.ScaleDegrees {
		names = append(names, d.Name)
	}
	return names
}
