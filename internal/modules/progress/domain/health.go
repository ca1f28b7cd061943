package domain

import (
	"errors"
	"fmt"
	"slices"

	evaluation "reltone/internal/modules/evaluation/domain"
)

var ErrUnrepairable = errors.New("training progress cannot be repaired")

type Issue string

const (
	IssueSessionIDOutOfRange Issue = "current_session_id_out_of_range"
	IssueTooManySessions     Issue = "too_many_sessions"
	IssueCompletionMismatch  Issue = "completion_mismatch"
	IssueUsedNotesMismatch   Issue = "used_base_notes_mismatch"
	IssueNonSequentialIDs    Issue = "non_sequential_session_ids"
	// IssueReloadSignature marks a cycle whose current session id skipped
	// ahead of its history, left behind by an interrupted session.
	IssueReloadSignature Issue = "reload_signature"
)

// Repairable reports whether Repair can fix the issue without guessing.
func (i Issue) Repairable() bool {
	switch i {
	case IssueSessionIDOutOfRange, IssueCompletionMismatch, IssueUsedNotesMismatch:
		return true
	}
	return false
}

type HealthReport struct {
	Issues []Issue
}

func (r HealthReport) Healthy() bool {
	return len(r.Issues) == 0
}

func (r HealthReport) Repairable() bool {
	for _, issue := range r.Issues {
		if !issue.Repairable() {
			return false
		}
	}
	return true
}

func (r HealthReport) Has(issue Issue) bool {
	return slices.Contains(r.Issues, issue)
}

func CheckHealth(p TrainingProgress) HealthReport {
	var r HealthReport
	n := len(p.SessionHistory)
	idInRange := p.CurrentSessionID >= 1 && p.CurrentSessionID <= evaluation.MaxSessionsPerCycle

	if !idInRange {
		r.Issues = append(r.Issues, IssueSessionIDOutOfRange)
	}
	if n > evaluation.MaxSessionsPerCycle {
		r.Issues = append(r.Issues, IssueTooManySessions)
	}
	if p.IsCompleted != (n == evaluation.MaxSessionsPerCycle) {
		r.Issues = append(r.Issues, IssueCompletionMismatch)
	}
	if !usedNotesConsistent(p) {
		r.Issues = append(r.Issues, IssueUsedNotesMismatch)
	}
	for i, s := range p.SessionHistory {
		if s.SessionID != i+1 {
			r.Issues = append(r.Issues, IssueNonSequentialIDs)
			break
		}
	}
	// A completed flag is fixed from history length, so the session id of a
	// completed record says nothing about an interrupted session.
	if idInRange && !p.IsCompleted && n < evaluation.MaxSessionsPerCycle && p.CurrentSessionID != p.MaxSessionID()+1 {
		r.Issues = append(r.Issues, IssueReloadSignature)
	}
	return r
}

func usedNotesConsistent(p TrainingProgress) bool {
	if len(p.UsedBaseNotes) > len(p.SessionHistory) {
		return false
	}
	for _, note := range p.UsedBaseNotes {
		found := false
		for _, s := range p.SessionHistory {
			if s.BaseNote == note {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Repair fixes every repairable issue in a copy of p. It refuses when any
// issue in the report cannot be fixed unambiguously.
func Repair(p TrainingProgress) (TrainingProgress, HealthReport, error) {
	report := CheckHealth(p)
	if report.Healthy() {
		return p, report, nil
	}
	if !report.Repairable() {
		return p, report, fmt.Errorf("%w: %v", ErrUnrepairable, report.Issues)
	}

	out := p.Clone()
	n := len(out.SessionHistory)
	if report.Has(IssueSessionIDOutOfRange) {
		out.CurrentSessionID = min(n+1, evaluation.MaxSessionsPerCycle)
	}
	if report.Has(IssueCompletionMismatch) {
		out.IsCompleted = n == evaluation.MaxSessionsPerCycle
		if out.IsCompleted {
			out.CurrentSessionID = evaluation.MaxSessionsPerCycle
			out.applyOverall()
		} else {
			out.CurrentSessionID = n + 1
			out.OverallGrade = nil
			out.OverallAccuracy = nil
		}
	}
	if report.Has(IssueUsedNotesMismatch) {
		out.UsedBaseNotes = []string{}
		for _, s := range out.SessionHistory {
			if !slices.Contains(out.UsedBaseNotes, s.BaseNote) {
				out.UsedBaseNotes = append(out.UsedBaseNotes, s.BaseNote)
			}
		}
	}
	return out, report, nil
}
