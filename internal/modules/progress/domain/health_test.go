package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	evaluation "reltone/internal/modules/evaluation/domain"
	"reltone/internal/modules/progress/domain"
)

func TestCheckHealthOnHealthyProgress(t *testing.T) {
	t.Parallel()
	for _, n := range []int{0, 1, 5, 8} {
		report := domain.CheckHealth(progressWith(t, n))
		assert.True(t, report.Healthy(), "sessions=%d issues=%v", n, report.Issues)
	}
}

func TestRepairPrematureCompletion(t *testing.T) {
	t.Parallel()
	p := progressWith(t, 5)
	p.IsCompleted = true
	g := evaluation.OverallA
	p.OverallGrade = &g

	report := domain.CheckHealth(p)
	assert.Equal(t, []domain.Issue{domain.IssueCompletionMismatch}, report.Issues)

	repaired, _, err := domain.Repair(p)
	require.NoError(t, err)
	assert.False(t, repaired.IsCompleted)
	assert.Equal(t, 6, repaired.CurrentSessionID)
	assert.Nil(t, repaired.OverallGrade)
	assert.Nil(t, repaired.OverallAccuracy)
	assert.True(t, domain.CheckHealth(repaired).Healthy())
	assert.True(t, p.IsCompleted, "repair must not touch its input")
}

func TestRepairPrematureCompletionAtLastSessionID(t *testing.T) {
	t.Parallel()
	p := progressWith(t, 5)
	p.IsCompleted = true
	p.CurrentSessionID = evaluation.MaxSessionsPerCycle

	report := domain.CheckHealth(p)
	assert.Equal(t, []domain.Issue{domain.IssueCompletionMismatch}, report.Issues)
	assert.True(t, report.Repairable())

	repaired, _, err := domain.Repair(p)
	require.NoError(t, err)
	assert.False(t, repaired.IsCompleted)
	assert.Equal(t, 6, repaired.CurrentSessionID)
	assert.Len(t, repaired.SessionHistory, 5)
	assert.True(t, domain.CheckHealth(repaired).Healthy())
}

func TestRepairMissedCompletion(t *testing.T) {
	t.Parallel()
	p := progressWith(t, 8)
	p.IsCompleted = false
	p.OverallGrade = nil
	p.OverallAccuracy = nil

	repaired, report, err := domain.Repair(p)
	require.NoError(t, err)
	assert.True(t, report.Has(domain.IssueCompletionMismatch))
	assert.True(t, repaired.IsCompleted)
	assert.Equal(t, 8, repaired.CurrentSessionID)
	require.NotNil(t, repaired.OverallGrade)
	assert.Equal(t, evaluation.OverallS, *repaired.OverallGrade)
}

func TestRepairSessionIDOutOfRange(t *testing.T) {
	t.Parallel()
	for _, id := range []int{0, -4, 9, 42} {
		p := progressWith(t, 2)
		p.CurrentSessionID = id
		repaired, report, err := domain.Repair(p)
		require.NoError(t, err, "id=%d", id)
		assert.Equal(t, []domain.Issue{domain.IssueSessionIDOutOfRange}, report.Issues)
		assert.Equal(t, 3, repaired.CurrentSessionID)
	}
}

func TestRepairUsedBaseNotes(t *testing.T) {
	t.Parallel()
	p := progressWith(t, 2)
	p.UsedBaseNotes = []string{"A3", "G4", "B3"}

	repaired, report, err := domain.Repair(p)
	require.NoError(t, err)
	assert.True(t, report.Has(domain.IssueUsedNotesMismatch))
	assert.Equal(t, []string{"A3", "A#3"}, repaired.UsedBaseNotes)
}

func TestUnrepairableProgress(t *testing.T) {
	t.Parallel()
	cases := map[string]struct {
		mutate func(*domain.TrainingProgress)
		issue  domain.Issue
	}{
		"reload signature": {
			mutate: func(p *domain.TrainingProgress) { p.CurrentSessionID = 6 },
			issue:  domain.IssueReloadSignature,
		},
		"non sequential": {
			mutate: func(p *domain.TrainingProgress) { p.SessionHistory[1].SessionID = 3 },
			issue:  domain.IssueNonSequentialIDs,
		},
		"too many sessions": {
			mutate: func(p *domain.TrainingProgress) {
				for len(p.SessionHistory) < 9 {
					p.SessionHistory = append(p.SessionHistory, p.SessionHistory[0])
				}
				p.CurrentSessionID = 8
			},
			issue: domain.IssueTooManySessions,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			p := progressWith(t, 3)
			tc.mutate(&p)
			report := domain.CheckHealth(p)
			assert.True(t, report.Has(tc.issue), "issues=%v", report.Issues)
			assert.False(t, report.Repairable())
			_, _, err := domain.Repair(p)
			assert.ErrorIs(t, err, domain.ErrUnrepairable)
		})
	}
}
