package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"tickrelay/internal/application/port"
)

// Repo 在 SQLite 中保存订阅集合
type Repo struct {
	db *sql.DB
}

func New(path string) (*Repo, error) {
	// ensure directory exists
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	r := &Repo{db: db}
	if err := r.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repo) Close() error { return r.db.Close() }

func (r *Repo) migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS subscriptions (
  symbol TEXT PRIMARY KEY,
  created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_subscriptions_created ON subscriptions(created_at);
`)
	return err
}

func (r *Repo) ListSymbols(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT symbol FROM subscriptions ORDER BY created_at, symbol`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		symbols = append(symbols, s)
	}
	return symbols, rows.Err()
}

func (r *Repo) AddSymbols(ctx context.Context, symbols []string, ts int64) error {
	if len(symbols) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, s := range symbols {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO subscriptions(symbol, created_at) VALUES(?, ?)
			ON CONFLICT(symbol) DO NOTHING
		`, s, ts); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert subscription %s: %w", s, err)
		}
	}
	return tx.Commit()
}

func (r *Repo) RemoveSymbols(ctx context.Context, symbols []string) error {
	if len(symbols) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, s := range symbols {
		if _, err := tx.ExecContext(ctx, `DELETE FROM subscriptions WHERE symbol=?`, s); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("delete subscription %s: %w", s, err)
		}
	}
	return tx.Commit()
}

var _ port.SubscriptionRepository = (*Repo)(nil)
