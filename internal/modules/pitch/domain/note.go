package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	ConcertA4Hz   = 440.0
	ReferenceC4Hz = 261.63
	midiA4        = 69
)

var sharpNames = []string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

var pitchClasses = map[string]int{
	"C": 0, "B#": 0,
	"C#": 1, "DB": 1,
	"D":  2,
	"D#": 3, "EB": 3,
	"E": 4, "FB": 4,
	"F": 5, "E#": 5,
	"F#": 6, "GB": 6,
	"G":  7,
	"G#": 8, "AB": 8,
	"A":  9,
	"A#": 10, "BB": 10,
	"B": 11, "CB": 11,
}

// MIDINumber parses names such as "C4", "F#3" or "Bb2".
func MIDINumber(name string) (int, error) {
	s := strings.ToUpper(strings.TrimSpace(name))
	split := strings.IndexAny(s, "-0123456789")
	if split <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrUnknownNote, name)
	}
	class, ok := pitchClasses[s[:split]]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownNote, name)
	}
	octave, err := strconv.Atoi(s[split:])
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrUnknownNote, name)
	}
	return (octave+1)*12 + class, nil
}

func MIDIToFrequency(midi float64) float64 {
	return ConcertA4Hz * math.Pow(2, (midi-midiA4)/12)
}

func FrequencyToMIDI(hz float64) float64 {
	return midiA4 + 12*math.Log2(hz/ConcertA4Hz)
}

func MIDIToName(midi int) string {
	class := ((midi % 12) + 12) % 12
	octave := midi/12 - 1
	if midi < 0 && midi%12 != 0 {
		octave--
	}
	return fmt.Sprintf("%s%d", sharpNames[class], octave)
}

func NoteFrequency(name string) (float64, error) {
	midi, err := MIDINumber(name)
	if err != nil {
		return 0, err
	}
	return MIDIToFrequency(float64(midi)), nil
}

// NearestNote names the equal-tempered note closest to hz.
func NearestNote(hz float64) (string, error) {
	if !validFrequency(hz) {
		return "", ErrInvalidFrequency
	}
	return MIDIToName(int(math.Round(FrequencyToMIDI(hz)))), nil
}

// Cents is the signed distance of actual from target in hundredths of a semitone.
func Cents(actualHz, targetHz float64) (float64, error) {
	if !validFrequency(actualHz) || !validFrequency(targetHz) {
		return 0, ErrInvalidFrequency
	}
	return 1200 * math.Log2(actualHz/targetHz), nil
}

// Transpose shifts hz by a number of semitones.
func Transpose(hz, semitones float64) float64 {
	return hz * math.Pow(2, semitones/12)
}

func validFrequency(hz float64) bool {
	return hz > 0 && !math.IsNaN(hz) && !math.IsInf(hz, 0)
}
