package out

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"reltone/internal/platform/tx"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// OpenSQLite opens the single database file shared by the progress adapters.
func OpenSQLite(dbPath string) (*sqlx.DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer; a pending transaction owns the only connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure sqlite: %w", err)
	}
	return db, nil
}

type sqlConn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

func connFor(ctx context.Context, db *sqlx.DB) sqlConn {
	if t, ok := tx.Handle(ctx).(*sqlx.Tx); ok {
		return t
	}
	return db
}

// SQLiteTxManager runs fn inside one SQLite transaction. Adapters sharing the
// database pick the transaction up from the context.
type SQLiteTxManager struct {
	db *sqlx.DB
}

func NewSQLiteTxManager(db *sqlx.DB) tx.Manager {
	return &SQLiteTxManager{db: db}
}

func (m *SQLiteTxManager) Within(ctx context.Context, fn func(context.Context) error) error {
	if _, ok := tx.Handle(ctx).(*sqlx.Tx); ok {
		return fn(ctx)
	}
	t, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx.WithHandle(ctx, t)); err != nil {
		if rbErr := t.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	if err := t.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
