package out_test

import (
	"testing"
	"time"

	evaluation "reltone/internal/modules/evaluation/domain"
	"reltone/internal/modules/progress/domain"
)

func sessionResult(t *testing.T, id int, base string, cents float64) evaluation.SessionResult {
	t.Helper()
	baseHz, err := domain.BaseFrequency(base)
	if err != nil {
		t.Fatalf("base frequency: %v", err)
	}
	notes := make([]evaluation.NoteResult, 0, evaluation.NotesPerSession)
	for _, degree := range evaluation.ScaleDegrees {
		c := cents
		n, err := evaluation.NewNoteResultFromCents(degree, baseHz, &c)
		if err != nil {
			t.Fatalf("note result: %v", err)
		}
		notes = append(notes, n)
	}
	at := time.Date(2026, 3, 1, 9, id, 0, 0, time.UTC)
	result, err := evaluation.NewSessionResult(id, base, baseHz, notes, at)
	if err != nil {
		t.Fatalf("session result: %v", err)
	}
	return result
}

func progressWith(t *testing.T, sessions int) domain.TrainingProgress {
	t.Helper()
	p := domain.New("c0ffee00-1111-2222-3333-444455556666", domain.VoiceMedium, time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC))
	bases := domain.VoiceMedium.BaseNotes()
	for i := 1; i <= sessions; i++ {
		if err := p.AddSessionResult(sessionResult(t, i, bases[i-1], 10)); err != nil {
			t.Fatalf("add session %d: %v", i, err)
		}
	}
	return p
}
