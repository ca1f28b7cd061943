package dto

import (
	pitchdto "reltone/internal/modules/pitch/dto"
	progressdto "reltone/internal/modules/progress/dto"
)

type Target struct {
	Name        string
	FrequencyHz float64
}

// SessionPlan is announced before listening starts so the caller can play the
// base note and show what to sing.
type SessionPlan struct {
	SessionID       int
	BaseNote        string
	BaseFrequencyHz float64
	Targets         []Target
}

type NoteEvent struct {
	Index             int
	TargetNote        string
	TargetFrequencyHz float64
	SungFrequencyHz   *float64
	Cents             *float64
	Grade             string
	VoicedFrames      int
	Frames            int
}

type RunSessionInput struct {
	Input     string
	OnPlan    func(SessionPlan)
	OnNote    func(NoteEvent)
	OnReading func(pitchdto.Reading)
}

type RunSessionOutput struct {
	Plan       SessionPlan
	Notes      []NoteEvent
	EndOfInput bool
	Record     progressdto.RecordSessionOutput
}
