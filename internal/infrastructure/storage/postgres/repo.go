package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"

	"tickrelay/internal/application/port"
)

type Repo struct {
	db *sql.DB
}

func New(dsn string) (*Repo, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

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
  created_at BIGINT NOT NULL
);
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
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO subscriptions(symbol, created_at)
		SELECT s, $2 FROM unnest($1::text[]) AS s
		ON CONFLICT(symbol) DO NOTHING
	`, symbols, ts)
	if err != nil {
		return fmt.Errorf("insert subscriptions: %w", err)
	}
	return nil
}

func (r *Repo) RemoveSymbols(ctx context.Context, symbols []string) error {
	if len(symbols) == 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE symbol = ANY($1)`, symbols)
	if err != nil {
		return fmt.Errorf("delete subscriptions: %w", err)
	}
	return nil
}

var _ port.SubscriptionRepository = (*Repo)(nil)
