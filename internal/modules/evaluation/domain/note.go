package domain

import (
	"errors"
	"fmt"
	"math"

	pitch "reltone/internal/modules/pitch/domain"
)

var (
	ErrInvalidNoteResult    = errors.New("invalid note result")
	ErrInvalidSessionResult = errors.New("invalid session result")
	ErrWrongNoteCount       = errors.New("session needs exactly 8 notes")
)

// NotesPerSession is the number of scale degrees sung in one session.
const NotesPerSession = 8

type ScaleDegree struct {
	Name      string
	Semitones int
}

// ScaleDegrees is the ascending major scale sung in every session, do to do'.
var ScaleDegrees = [NotesPerSession]ScaleDegree{
	{Name: "Do", Semitones: 0},
	{Name: "Re", Semitones: 2},
	{Name: "Mi", Semitones: 4},
	{Name: "Fa", Semitones: 5},
	{Name: "Sol", Semitones: 7},
	{Name: "La", Semitones: 9},
	{Name: "Ti", Semitones: 11},
	{Name: "Do'", Semitones: 12},
}

func (d ScaleDegree) TargetFrequency(baseHz float64) float64 {
	return pitch.Transpose(baseHz, float64(d.Semitones))
}

// NoteResult is one graded note. Cents is nil exactly when Grade is notMeasured.
type NoteResult struct {
	TargetNote        string    `json:"targetNote"`
	BaseFrequencyHz   float64   `json:"baseFrequencyHz"`
	TargetFrequencyHz float64   `json:"targetFrequencyHz"`
	UserFrequencyHz   *float64  `json:"userFrequencyHz"`
	Cents             *float64  `json:"cents"`
	Grade             NoteGrade `json:"grade"`
}

// NewNoteResult grades a sung frequency against the degree above baseHz. A nil
// or non-positive userHz yields a notMeasured result.
func NewNoteResult(degree ScaleDegree, baseHz float64, userHz *float64) (NoteResult, error) {
	if !(baseHz > 0) || math.IsInf(baseHz, 0) {
		return NoteResult{}, fmt.Errorf("%w: base frequency %v", ErrInvalidNoteResult, baseHz)
	}
	target := degree.TargetFrequency(baseHz)
	result := NoteResult{
		TargetNote:        degree.Name,
		BaseFrequencyHz:   baseHz,
		TargetFrequencyHz: target,
	}
	if userHz != nil && *userHz > 0 {
		cents, err := pitch.Cents(*userHz, target)
		if err != nil {
			return NoteResult{}, fmt.Errorf("%w: %v", ErrInvalidNoteResult, err)
		}
		user := *userHz
		result.UserFrequencyHz = &user
		result.Cents = &cents
	}
	result.Grade = EvaluateNote(result.Cents)
	return result, nil
}

// NewNoteResultFromCents records an already measured deviation.
func NewNoteResultFromCents(degree ScaleDegree, baseHz float64, cents *float64) (NoteResult, error) {
	if !(baseHz > 0) || math.IsInf(baseHz, 0) {
		return NoteResult{}, fmt.Errorf("%w: base frequency %v", ErrInvalidNoteResult, baseHz)
	}
	target := degree.TargetFrequency(baseHz)
	result := NoteResult{TargetNote: degree.Name, BaseFrequencyHz: baseHz, TargetFrequencyHz: target}
	if cents != nil {
		if math.IsNaN(*cents) || math.IsInf(*cents, 0) {
			return NoteResult{}, fmt.Errorf("%w: cents %v", ErrInvalidNoteResult, *cents)
		}
		c := *cents
		user := target * math.Pow(2, c/1200)
		result.Cents = &c
		result.UserFrequencyHz = &user
	}
	result.Grade = EvaluateNote(result.Cents)
	return result, nil
}

// JudgeNote reduces one note window of stabilized frequencies to a result.
// Zero entries are unvoiced frames; the median of the rest is the sung pitch.
func JudgeNote(degree ScaleDegree, baseHz float64, frequencies []float64) (NoteResult, error) {
	voiced := make([]float64, 0, len(frequencies))
	for _, f := range frequencies {
		if f > 0 && !math.IsInf(f, 0) {
			voiced = append(voiced, f)
		}
	}
	if len(voiced) == 0 {
		return NewNoteResult(degree, baseHz, nil)
	}
	sung := pitch.Median(voiced)
	return NewNoteResult(degree, baseHz, &sung)
}

func (n NoteResult) Validate() error {
	if !n.Grade.Valid() {
		return fmt.Errorf("%w: unknown grade %q", ErrInvalidNoteResult, n.Grade)
	}
	if (n.Cents == nil) != (n.Grade == NoteNotMeasured) {
		return fmt.Errorf("%w: cents and grade disagree for %s", ErrInvalidNoteResult, n.TargetNote)
	}
	if n.Cents != nil && EvaluateNote(n.Cents) != n.Grade {
		return fmt.Errorf("%w: grade %s does not match %.2f cents", ErrInvalidNoteResult, n.Grade, *n.Cents)
	}
	return nil
}
