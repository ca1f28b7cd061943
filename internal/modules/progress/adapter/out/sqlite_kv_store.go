package out

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	progressout "reltone/internal/modules/progress/port/out"
	apperrors "reltone/internal/platform/errors"

	"github.com/jmoiron/sqlx"
)

// SQLiteKVStore persists progress keys in a kv table. QuotaBytes bounds the
// total stored value size, mirroring the fixed budget of browser storage.
type SQLiteKVStore struct {
	db         *sqlx.DB
	quotaBytes int64
}

func NewSQLiteKVStore(db *sqlx.DB, quotaBytes int64) (progressout.KVStore, error) {
	store := &SQLiteKVStore{db: db, quotaBytes: quotaBytes}
	if err := store.ensureSchema(context.Background()); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *SQLiteKVStore) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS kv (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updated_at TEXT NOT NULL
);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create kv table: %w", err)
	}
	return nil
}

func (s *SQLiteKVStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := connFor(ctx, s.db).GetContext(ctx, &value, `SELECT value FROM kv WHERE key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

func (s *SQLiteKVStore) Set(ctx context.Context, key, value string) error {
	conn := connFor(ctx, s.db)
	if s.quotaBytes > 0 {
		var used int64
		const usage = `SELECT COALESCE(SUM(LENGTH(CAST(value AS BLOB))), 0) FROM kv WHERE key != ?`
		if err := conn.GetContext(ctx, &used, usage, key); err != nil {
			return fmt.Errorf("measure kv usage: %w", err)
		}
		if used+int64(len(value)) > s.quotaBytes {
			return fmt.Errorf("%w: %s needs %d bytes, %d of %d used", apperrors.ErrQuotaExceeded, key, len(value), used, s.quotaBytes)
		}
	}
	const stmt = `
INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at;
`
	if _, err := conn.ExecContext(ctx, stmt, key, value, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteKVStore) Remove(ctx context.Context, key string) error {
	if _, err := connFor(ctx, s.db).ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteKVStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	const query = `SELECT key FROM kv WHERE substr(key, 1, length(?)) = ? ORDER BY key`
	if err := connFor(ctx, s.db).SelectContext(ctx, &keys, query, prefix, prefix); err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	return keys, nil
}
