package out

import (
	"context"

	evaluation "reltone/internal/modules/evaluation/domain"
	"reltone/internal/modules/progress/domain"
)

// KVStore is the durable key-value backend. Set fails with
// apperrors.ErrQuotaExceeded when the value does not fit.
type KVStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// SessionIndex is a queryable projection of recorded sessions across cycles.
type SessionIndex interface {
	UpsertSession(ctx context.Context, record domain.SessionRecord) error
	ListSessions(ctx context.Context) ([]domain.SessionRecord, error)
}

// Journal writes a human-readable note for each recorded session and returns its path.
type Journal interface {
	RecordSession(ctx context.Context, progress domain.TrainingProgress, result evaluation.SessionResult) (string, error)
}

type Exporter interface {
	Export(ctx context.Context, path string, current domain.TrainingProgress, history []domain.SessionRecord) error
}
