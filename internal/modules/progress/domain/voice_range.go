package domain

import "fmt"

type VoiceRange string

const (
	VoiceLow    VoiceRange = "low"
	VoiceMedium VoiceRange = "medium"
	VoiceHigh   VoiceRange = "high"
)

var baseNotePools = map[VoiceRange][]string{
	VoiceLow:    {"C3", "C#3", "D3", "D#3", "E3", "F3", "F#3", "G3", "G#3", "A3"},
	VoiceMedium: {"A3", "A#3", "B3", "C4", "C#4", "D4", "D#4", "E4", "F4", "F#4"},
	VoiceHigh:   {"D4", "D#4", "E4", "F4", "F#4", "G4", "G#4", "A4", "A#4", "B4"},
}

func ParseVoiceRange(s string) (VoiceRange, error) {
	v := VoiceRange(s)
	if !v.Valid() {
		return "", fmt.Errorf("%w: voice range %q", ErrInvalidProgress, s)
	}
	return v, nil
}

func (v VoiceRange) Valid() bool {
	_, ok := baseNotePools[v]
	return ok
}

// BaseNotes returns a copy of the pool of base notes for the range.
func (v VoiceRange) BaseNotes() []string {
	return append([]string(nil), baseNotePools[v]...)
}
