package out

import (
	"context"
	"fmt"
	"time"

	evaluation "reltone/internal/modules/evaluation/domain"
	"reltone/internal/modules/progress/domain"
	progressout "reltone/internal/modules/progress/port/out"

	"github.com/jmoiron/sqlx"
)

// completedAtLayout keeps every fraction digit so text order is time order.
const completedAtLayout = "2006-01-02T15:04:05.000000000Z07:00"

type SQLiteSessionIndex struct {
	db *sqlx.DB
}

type sessionRow struct {
	CycleID           string  `db:"cycle_id"`
	SessionID         int     `db:"session_id"`
	BaseNote          string  `db:"base_note"`
	Grade             string  `db:"grade"`
	AccuracyPercent   float64 `db:"accuracy_percent"`
	AverageErrorCents float64 `db:"average_error_cents"`
	CompletedAt       string  `db:"completed_at"`
}

func NewSQLiteSessionIndex(db *sqlx.DB) (progressout.SessionIndex, error) {
	index := &SQLiteSessionIndex{db: db}
	if err := index.ensureSchema(context.Background()); err != nil {
		return nil, err
	}
	return index, nil
}

func (s *SQLiteSessionIndex) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS session_results (
  cycle_id TEXT NOT NULL,
  session_id INTEGER NOT NULL,
  base_note TEXT NOT NULL,
  grade TEXT NOT NULL,
  accuracy_percent REAL NOT NULL,
  average_error_cents REAL NOT NULL,
  completed_at TEXT NOT NULL,
  PRIMARY KEY (cycle_id, session_id)
);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create session_results table: %w", err)
	}
	return nil
}

func (s *SQLiteSessionIndex) UpsertSession(ctx context.Context, record domain.SessionRecord) error {
	const stmt = `
INSERT INTO session_results (cycle_id, session_id, base_note, grade, accuracy_percent, average_error_cents, completed_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(cycle_id, session_id) DO UPDATE SET
  base_note=excluded.base_note,
  grade=excluded.grade,
  accuracy_percent=excluded.accuracy_percent,
  average_error_cents=excluded.average_error_cents,
  completed_at=excluded.completed_at;
`
	_, err := connFor(ctx, s.db).ExecContext(ctx, stmt,
		record.CycleID,
		record.SessionID,
		record.BaseNote,
		string(record.Grade),
		record.AccuracyPercent,
		record.AverageErrorCents,
		record.CompletedAt.UTC().Format(completedAtLayout),
	)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

func (s *SQLiteSessionIndex) ListSessions(ctx context.Context) ([]domain.SessionRecord, error) {
	var rows []sessionRow
	const query = `
SELECT cycle_id, session_id, base_note, grade, accuracy_percent, average_error_cents, completed_at
FROM session_results
ORDER BY completed_at, cycle_id, session_id
`
	if err := connFor(ctx, s.db).SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	out := make([]domain.SessionRecord, 0, len(rows))
	for _, row := range rows {
		completedAt, err := time.Parse(time.RFC3339Nano, row.CompletedAt)
		if err != nil {
			return nil, fmt.Errorf("parse completed_at for %s/%d: %w", row.CycleID, row.SessionID, err)
		}
		out = append(out, domain.SessionRecord{
			CycleID:           row.CycleID,
			SessionID:         row.SessionID,
			BaseNote:          row.BaseNote,
			Grade:             evaluation.SessionGrade(row.Grade),
			AccuracyPercent:   row.AccuracyPercent,
			AverageErrorCents: row.AverageErrorCents,
			CompletedAt:       completedAt,
		})
	}
	return out, nil
}
