package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"reltone/internal/modules/evaluation/domain"
)

func ptr(v float64) *float64 { return &v }

func TestEvaluateNoteScenarioA(t *testing.T) {
	t.Parallel()
	assert.Equal(t, domain.NoteExcellent, domain.EvaluateNote(ptr(15)))
}

func TestEvaluateNoteBoundaries(t *testing.T) {
	t.Parallel()
	cases := []struct {
		cents *float64
		want  domain.NoteGrade
	}{
		{nil, domain.NoteNotMeasured},
		{ptr(0), domain.NoteExcellent},
		{ptr(30), domain.NoteExcellent},
		{ptr(-30), domain.NoteExcellent},
		{ptr(30.0001), domain.NoteGood},
		{ptr(-60), domain.NoteGood},
		{ptr(60.5), domain.NotePass},
		{ptr(120), domain.NotePass},
		{ptr(-120.01), domain.NoteNeedWork},
		{ptr(900), domain.NoteNeedWork},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, domain.EvaluateNote(tc.cents))
	}
}

func TestEvaluateNoteExcellentAcrossRange(t *testing.T) {
	t.Parallel()
	for c := -30.0; c <= 30.0; c += 0.25 {
		assert.Equal(t, domain.NoteExcellent, domain.EvaluateNote(ptr(c)), "cents %v", c)
	}
}

func TestGradeValidity(t *testing.T) {
	t.Parallel()
	assert.True(t, domain.NoteNotMeasured.Valid())
	assert.False(t, domain.NoteGrade("great").Valid())
	assert.True(t, domain.SessionNeedWork.Valid())
	assert.False(t, domain.SessionGrade("notMeasured").Valid())
	assert.True(t, domain.OverallS.Valid())
	assert.False(t, domain.OverallGrade("F").Valid())
	assert.True(t, domain.NotePass.Passing())
	assert.False(t, domain.NoteNeedWork.Passing())
}
