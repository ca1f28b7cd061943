package out

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	evaluation "reltone/internal/modules/evaluation/domain"
	"reltone/internal/modules/progress/domain"
	progressout "reltone/internal/modules/progress/port/out"
	"reltone/internal/platform/markdown"
	"reltone/internal/platform/slug"
)

const (
	journalSchemaVersion = 1
	sessionsStartMarker  = "<!-- reltone:sessions:start -->"
	sessionsEndMarker    = "<!-- reltone:sessions:end -->"
)

// JournalWriter keeps one markdown note per training cycle. The session table
// lives in a managed block; anything the user writes around it is preserved.
type JournalWriter struct {
	dir string
}

func NewJournalWriter(dir string) progressout.Journal {
	return &JournalWriter{dir: dir}
}

func (w *JournalWriter) RecordSession(_ context.Context, progress domain.TrainingProgress, result evaluation.SessionResult) (string, error) {
	path := w.pathFor(progress)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create journal dir: %w", err)
	}

	note := markdown.Note{Body: fmt.Sprintf("# Training cycle %s\n\n## Notes\n\n", progress.CreatedAt.Format("2006-01-02"))}
	if raw, err := os.ReadFile(path); err == nil {
		if note, err = markdown.Parse(string(raw)); err != nil {
			return "", fmt.Errorf("parse journal note: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("read journal note: %w", err)
	}

	note.Set("schema_version", journalSchemaVersion)
	note.Set("cycle_id", progress.CycleID)
	note.Set("voice_range", string(progress.VoiceRange))
	note.Set("created_at", progress.CreatedAt.Format(time.RFC3339))
	note.Set("sessions_completed", len(progress.SessionHistory))
	note.Set("is_completed", progress.IsCompleted)
	note.Set("last_session_at", result.CompletedAt.Format(time.RFC3339))
	note.Set("used_base_notes", progress.UsedBaseNotes)
	if progress.OverallGrade != nil {
		note.Set("overall_grade", string(*progress.OverallGrade))
	} else {
		note.Delete("overall_grade")
	}
	if progress.OverallAccuracy != nil {
		note.Set("overall_accuracy", *progress.OverallAccuracy)
	} else {
		note.Delete("overall_accuracy")
	}

	note.ReplaceBlock(sessionsStartMarker, sessionsEndMarker, renderSessionTable(progress.SessionHistory))
	rendered, err := note.Render()
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(rendered), 0o644); err != nil {
		return "", fmt.Errorf("write journal note: %w", err)
	}
	return path, nil
}

func (w *JournalWriter) pathFor(p domain.TrainingProgress) string {
	created := p.CreatedAt.UTC()
	cycle := p.CycleID
	if len(cycle) > 8 {
		cycle = cycle[:8]
	}
	name := fmt.Sprintf("%s-%s.md", created.Format("2006-01-02"), slug.Make("cycle "+cycle))
	return filepath.Join(w.dir, created.Format("2006"), name)
}

func renderSessionTable(history []evaluation.SessionResult) string {
	var b strings.Builder
	b.WriteString("| # | Base | Grade | Accuracy | Avg error | Notes |\n")
	b.WriteString("|---|------|-------|----------|-----------|-------|\n")
	for _, s := range history {
		fmt.Fprintf(&b, "| %d | %s | %s | %.0f%% | %.1f¢ | %s |\n",
			s.SessionID, s.BaseNote, s.Grade, s.AccuracyPercent, s.AverageErrorCents, noteSummary(s.NoteResults))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func noteSummary(notes []evaluation.NoteResult) string {
	parts := make([]string, 0, len(notes))
	for _, n := range notes {
		if n.Cents == nil {
			parts = append(parts, n.TargetNote+" –")
			continue
		}
		parts = append(parts, fmt.Sprintf("%s %+.0f", n.TargetNote, *n.Cents))
	}
	return strings.Join(parts, ", ")
}
