package domain

import (
	"errors"
	"fmt"
	"slices"
	"time"

	evaluation "reltone/internal/modules/evaluation/domain"
	pitch "reltone/internal/modules/pitch/domain"
)

const SchemaVersion = 2

var (
	ErrInvalidProgress    = errors.New("invalid training progress")
	ErrUnsupportedVersion = errors.New("unsupported progress version")
	ErrCycleCompleted     = errors.New("training cycle completed")
	ErrSessionOutOfOrder  = errors.New("session result out of order")
)

type TrainingProgress struct {
	Version            int                        `json:"version"`
	CycleID            string                     `json:"cycleId,omitempty"`
	CreatedAt          time.Time                  `json:"createdAt"`
	LastUpdatedAt      time.Time                  `json:"lastUpdatedAt"`
	SessionHistory     []evaluation.SessionResult `json:"sessionHistory"`
	CurrentSessionID   int                        `json:"currentSessionId"`
	IsCompleted        bool                       `json:"isCompleted"`
	AvailableBaseNotes []string                   `json:"availableBaseNotes"`
	UsedBaseNotes      []string                   `json:"usedBaseNotes"`
	VoiceRange         VoiceRange                 `json:"voiceRange"`
	OverallGrade       *evaluation.OverallGrade   `json:"overallGrade,omitempty"`
	OverallAccuracy    *float64                   `json:"overallAccuracy,omitempty"`
}

func New(cycleID string, voice VoiceRange, now time.Time) TrainingProgress {
	if !voice.Valid() {
		voice = VoiceMedium
	}
	now = now.UTC()
	return TrainingProgress{
		Version:            SchemaVersion,
		CycleID:            cycleID,
		CreatedAt:          now,
		LastUpdatedAt:      now,
		SessionHistory:     []evaluation.SessionResult{},
		CurrentSessionID:   1,
		AvailableBaseNotes: voice.BaseNotes(),
		UsedBaseNotes:      []string{},
		VoiceRange:         voice,
	}
}

// Clone returns a deep copy so callers never share slices with cached state.
func (p TrainingProgress) Clone() TrainingProgress {
	out := p
	out.SessionHistory = make([]evaluation.SessionResult, len(p.SessionHistory))
	for i, s := range p.SessionHistory {
		s.NoteResults = append([]evaluation.NoteResult(nil), s.NoteResults...)
		out.SessionHistory[i] = s
	}
	out.AvailableBaseNotes = append([]string{}, p.AvailableBaseNotes...)
	out.UsedBaseNotes = append([]string{}, p.UsedBaseNotes...)
	if p.OverallGrade != nil {
		g := *p.OverallGrade
		out.OverallGrade = &g
	}
	if p.OverallAccuracy != nil {
		a := *p.OverallAccuracy
		out.OverallAccuracy = &a
	}
	return out
}

// Validate checks structure only: field domains and well-formed results.
// Cross-field consistency is left to CheckHealth.
func (p TrainingProgress) Validate() error {
	if p.Version != SchemaVersion {
		return fmt.Errorf("%w: version %d", ErrInvalidProgress, p.Version)
	}
	if !p.VoiceRange.Valid() {
		return fmt.Errorf("%w: voice range %q", ErrInvalidProgress, p.VoiceRange)
	}
	if p.CreatedAt.IsZero() {
		return fmt.Errorf("%w: createdAt is missing", ErrInvalidProgress)
	}
	if p.SessionHistory == nil || p.UsedBaseNotes == nil || p.AvailableBaseNotes == nil {
		return fmt.Errorf("%w: missing collections", ErrInvalidProgress)
	}
	for _, s := range p.SessionHistory {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidProgress, err)
		}
	}
	if p.OverallGrade != nil && !p.OverallGrade.Valid() {
		return fmt.Errorf("%w: overall grade %q", ErrInvalidProgress, *p.OverallGrade)
	}
	return nil
}

// AddSessionResult appends the session for the current slot. The eighth
// session completes the cycle and fixes the overall grade; the session id then
// stays at 8.
func (p *TrainingProgress) AddSessionResult(result evaluation.SessionResult) error {
	if p.IsCompleted || len(p.SessionHistory) >= evaluation.MaxSessionsPerCycle {
		return ErrCycleCompleted
	}
	if result.SessionID != len(p.SessionHistory)+1 {
		return fmt.Errorf("%w: got session %d, expected %d", ErrSessionOutOfOrder, result.SessionID, len(p.SessionHistory)+1)
	}
	if err := result.Validate(); err != nil {
		return err
	}
	p.SessionHistory = append(p.SessionHistory, result)
	if !slices.Contains(p.UsedBaseNotes, result.BaseNote) {
		p.UsedBaseNotes = append(p.UsedBaseNotes, result.BaseNote)
	}
	if len(p.SessionHistory) == evaluation.MaxSessionsPerCycle {
		p.IsCompleted = true
		p.applyOverall()
		return nil
	}
	p.CurrentSessionID++
	return nil
}

func (p *TrainingProgress) applyOverall() {
	grade, stats := evaluation.EvaluateOverall(p.SessionHistory)
	accuracy := stats.Accuracy
	p.OverallGrade = &grade
	p.OverallAccuracy = &accuracy
}

// RemainingBaseNotes is the pool for the voice range minus notes used this cycle.
func (p TrainingProgress) RemainingBaseNotes() []string {
	pool := p.VoiceRange.BaseNotes()
	out := make([]string, 0, len(pool))
	for _, n := range pool {
		if !slices.Contains(p.UsedBaseNotes, n) {
			out = append(out, n)
		}
	}
	return out
}

type Picker interface {
	IntN(n int) int
}

// NextBaseNote draws uniformly from the unused notes, or from the full pool
// once the cycle is complete or every note has been used.
func (p TrainingProgress) NextBaseNote(pick Picker) string {
	candidates := p.RemainingBaseNotes()
	if p.IsCompleted || len(candidates) == 0 {
		candidates = p.VoiceRange.BaseNotes()
	}
	if len(candidates) == 0 {
		return ""
	}
	return candidates[pick.IntN(len(candidates))]
}

// BaseFrequency resolves a base note name such as "A3" to Hz.
func BaseFrequency(note string) (float64, error) {
	hz, err := pitch.NoteFrequency(note)
	if err != nil {
		return 0, fmt.Errorf("base note %q: %w", note, err)
	}
	return hz, nil
}

func (p TrainingProgress) MaxSessionID() int {
	highest := 0
	for _, s := range p.SessionHistory {
		if s.SessionID > highest {
			highest = s.SessionID
		}
	}
	return highest
}
