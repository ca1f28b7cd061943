package domain

import (
	"errors"
	"time"
)

var (
	ErrInvalidFrequency = errors.New("invalid frequency")
	ErrNoCandidates     = errors.New("no correction candidates")
	ErrUnknownNote      = errors.New("unknown note name")
)

// Frame is one block of normalized samples in [-1, 1].
type Frame struct {
	Samples    []float64
	SampleRate int
	Timestamp  time.Time
}

type PitchObservation struct {
	RawFrequencyHz float64
	Clarity        float64
	Timestamp      time.Time
}

type CorrectionType string

const (
	CorrectionNone    CorrectionType = "none"
	CorrectionHalf    CorrectionType = "half"
	CorrectionTriple  CorrectionType = "triple"
	CorrectionQuarter CorrectionType = "quarter"
	CorrectionDouble  CorrectionType = "double"
)

type CorrectedPitch struct {
	FrequencyHz   float64
	HarmonicRatio float64
	Type          CorrectionType
	Confidence    float64
}

type FrameState string

const (
	FrameVoiced   FrameState = "voiced"
	FrameUnvoiced FrameState = "unvoiced"
	FrameRejected FrameState = "rejected"
)

// Reading is what one frame produces for display and note judging.
// FrequencyHz is the stabilized frequency and is zero unless State is FrameVoiced.
type Reading struct {
	Timestamp   time.Time
	State       FrameState
	Loudness    float64
	Observation PitchObservation
	Corrected   CorrectedPitch
	FrequencyHz float64
}

func (r Reading) Voiced() bool {
	return r.State == FrameVoiced
}
