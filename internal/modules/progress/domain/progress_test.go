package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	evaluation "reltone/internal/modules/evaluation/domain"
	"reltone/internal/modules/progress/domain"
)

func TestNewProgressDefaults(t *testing.T) {
	t.Parallel()
	p := domain.New("cycle-1", domain.VoiceRange("baritone"), cycleStart)
	assert.Equal(t, domain.SchemaVersion, p.Version)
	assert.Equal(t, domain.VoiceMedium, p.VoiceRange)
	assert.Equal(t, 1, p.CurrentSessionID)
	assert.False(t, p.IsCompleted)
	assert.Empty(t, p.SessionHistory)
	assert.Equal(t, domain.VoiceMedium.BaseNotes(), p.AvailableBaseNotes)
	require.NoError(t, p.Validate())
}

func TestAddSessionResultAdvancesAndCompletes(t *testing.T) {
	t.Parallel()
	p := progressWith(t, 7)
	assert.Equal(t, 8, p.CurrentSessionID)
	assert.False(t, p.IsCompleted)
	assert.Nil(t, p.OverallGrade)

	require.NoError(t, p.AddSessionResult(session(t, 8, "F4", 10)))
	assert.True(t, p.IsCompleted)
	assert.Equal(t, 8, p.CurrentSessionID)
	require.NotNil(t, p.OverallGrade)
	assert.Equal(t, evaluation.OverallS, *p.OverallGrade)
	require.NotNil(t, p.OverallAccuracy)
	assert.InDelta(t, 100, *p.OverallAccuracy, 1e-9)
	assert.Empty(t, domain.CheckHealth(p).Issues)

	err := p.AddSessionResult(session(t, 8, "F4", 10))
	assert.ErrorIs(t, err, domain.ErrCycleCompleted)
}

func TestAddSessionResultRejectsOutOfOrder(t *testing.T) {
	t.Parallel()
	p := progressWith(t, 2)
	err := p.AddSessionResult(session(t, 4, "C4", 0))
	assert.ErrorIs(t, err, domain.ErrSessionOutOfOrder)
	assert.Len(t, p.SessionHistory, 2)
}

func TestAddSessionResultKeepsUsedNotesUnique(t *testing.T) {
	t.Parallel()
	p := domain.New("cycle-1", domain.VoiceMedium, cycleStart)
	require.NoError(t, p.AddSessionResult(session(t, 1, "C4", 0)))
	require.NoError(t, p.AddSessionResult(session(t, 2, "C4", 0)))
	assert.Equal(t, []string{"C4"}, p.UsedBaseNotes)
	assert.NotContains(t, p.RemainingBaseNotes(), "C4")
	assert.Len(t, p.RemainingBaseNotes(), 9)
}

func TestNextBaseNoteDrawsFromUnusedPool(t *testing.T) {
	t.Parallel()
	p := progressWith(t, 3)
	for pick := 0; pick < 10; pick++ {
		note := p.NextBaseNote(fixedPicker(pick))
		assert.NotContains(t, p.UsedBaseNotes, note)
		assert.Contains(t, domain.VoiceMedium.BaseNotes(), note)
	}

	done := progressWith(t, 8)
	assert.Equal(t, "A3", done.NextBaseNote(fixedPicker(0)), "completed cycles draw from the full pool")
}

func TestCloneDoesNotShareState(t *testing.T) {
	t.Parallel()
	p := progressWith(t, 8)
	c := p.Clone()
	c.UsedBaseNotes[0] = "B9"
	c.SessionHistory[0].NoteResults[0].TargetNote = "x"
	*c.OverallGrade = evaluation.OverallE
	assert.Equal(t, "A3", p.UsedBaseNotes[0])
	assert.Equal(t, "Do", p.SessionHistory[0].NoteResults[0].TargetNote)
	assert.Equal(t, evaluation.OverallS, *p.OverallGrade)
}

func TestValidateRejectsStructuralDamage(t *testing.T) {
	t.Parallel()
	cases := map[string]func(*domain.TrainingProgress){
		"version":     func(p *domain.TrainingProgress) { p.Version = 3 },
		"voice range": func(p *domain.TrainingProgress) { p.VoiceRange = "bass" },
		"created at":  func(p *domain.TrainingProgress) { p.CreatedAt = time.Time{} },
		"history nil": func(p *domain.TrainingProgress) { p.SessionHistory = nil },
		"bad grade":   func(p *domain.TrainingProgress) { g := evaluation.OverallGrade("Z"); p.OverallGrade = &g },
		"bad session": func(p *domain.TrainingProgress) { p.SessionHistory[0].Grade = "great" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			p := progressWith(t, 1)
			mutate(&p)
			assert.ErrorIs(t, p.Validate(), domain.ErrInvalidProgress)
		})
	}
}

func TestVoiceRangePools(t *testing.T) {
	t.Parallel()
	for _, v := range []domain.VoiceRange{domain.VoiceLow, domain.VoiceMedium, domain.VoiceHigh} {
		notes := v.BaseNotes()
		assert.Len(t, notes, 10, string(v))
		for _, n := range notes {
			_, err := domain.BaseFrequency(n)
			assert.NoError(t, err, n)
		}
	}
	_, err := domain.ParseVoiceRange("soprano")
	assert.ErrorIs(t, err, domain.ErrInvalidProgress)
	got, err := domain.ParseVoiceRange("high")
	require.NoError(t, err)
	assert.Equal(t, domain.VoiceHigh, got)
}
