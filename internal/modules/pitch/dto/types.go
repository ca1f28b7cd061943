package dto

import "time"

type OpenSessionInput struct {
	// Input is handed to the frame-source opener: a file path, a capture device
	// name, or a recording name for in-memory sources.
	Input string
}

type OpenSessionOutput struct {
	SessionID uint32
}

type ListenInput struct {
	SessionID uint32
	// Window bounds the listen by audio time; zero listens until the input ends.
	Window    time.Duration
	OnReading func(Reading)
}

type ListenOutput struct {
	Readings   []Reading
	Frames     int
	Failed     int
	AudioTime  time.Duration
	EndOfInput bool
}

type Reading struct {
	Timestamp      time.Time
	State          string
	Loudness       float64
	RawFrequencyHz float64
	Clarity        float64
	Correction     string
	FrequencyHz    float64
	Note           string
}

func (r Reading) Voiced() bool {
	return r.State == "voiced"
}
