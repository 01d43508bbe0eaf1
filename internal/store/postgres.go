package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"cdfplan/internal/model"
)

const postgresSchema = `CREATE TABLE IF NOT EXISTS selections (
	key TEXT PRIMARY KEY,
	value JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Postgres stores selections in a PostgreSQL table through a pgx pool.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, connStr string) (*Postgres, error) {
	if connStr == "" {
		return nil, errors.New("store: postgres connection string is empty")
	}

	cfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("store: parse config error: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("store: pgx connect error: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: pgx ping error: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: creating schema: %w", err)
	}

	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Load(ctx context.Context, key string) (model.Selection, error) {
	var raw []byte
	err := p.pool.QueryRow(ctx, `SELECT value::text FROM selections WHERE key = $1`, key).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Selection{}, nil
	}
	if err != nil {
		return nil, err
	}
	return decode(key, raw), nil
}

func (p *Postgres) Save(ctx context.Context, key string, sel model.Selection) error {
	raw, err := encode(sel)
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO selections (key, value) VALUES ($1, $2::jsonb)
		ON CONFLICT (key) DO UPDATE
			SET value = EXCLUDED.value, updated_at = now()
	`, key, string(raw))
	return err
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
