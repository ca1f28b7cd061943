package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	evaluation "reltone/internal/modules/evaluation/domain"
	"reltone/internal/modules/progress/domain"
)

var cycleStart = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func session(t *testing.T, id int, base string, cents float64) evaluation.SessionResult {
	t.Helper()
	baseHz, err := domain.BaseFrequency(base)
	require.NoError(t, err)
	notes := make([]evaluation.NoteResult, 0, evaluation.NotesPerSession)
	for _, degree := range evaluation.ScaleDegrees {
		c := cents
		n, err := evaluation.NewNoteResultFromCents(degree, baseHz, &c)
		require.NoError(t, err)
		notes = append(notes, n)
	}
	result, err := evaluation.NewSessionResult(id, base, baseHz, notes, cycleStart.Add(time.Duration(id)*time.Hour))
	require.NoError(t, err)
	return result
}

func progressWith(t *testing.T, sessions int) domain.TrainingProgress {
	t.Helper()
	p := domain.New("cycle-1", domain.VoiceMedium, cycleStart)
	bases := domain.VoiceMedium.BaseNotes()
	for i := 1; i <= sessions; i++ {
		require.NoError(t, p.AddSessionResult(session(t, i, bases[i-1], 10)))
	}
	return p
}

type fixedPicker int

func (f fixedPicker) IntN(n int) int {
	return int(f) % n
}
