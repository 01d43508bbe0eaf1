package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"cdfplan/internal/model"
)

const sqliteDriverName = "sqlite"

var sqliteMigrations = []string{
	`CREATE TABLE IF NOT EXISTS selections (
		key VARCHAR NOT NULL PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at VARCHAR NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
	)`,
}

// SQLite stores selections in a SQLite table through sqlx.
type SQLite struct {
	db *sqlx.DB
}

func NewSQLite(ctx context.Context, path string) (*SQLite, error) {
	if path == "" {
		return nil, errors.New("store: sqlite path is empty")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("store: creating database directory: %w", err)
		}
	}

	db, err := sqlx.ConnectContext(ctx, sqliteDriverName, path)
	if err != nil {
		return nil, fmt.Errorf("store: opening sqlite: %w", err)
	}
	// SQLite doesn't handle multiple writers well.
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db}
	if err := s.runMigrations(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: running migrations: %w", err)
	}
	return s, nil
}

func (s *SQLite) runMigrations(ctx context.Context) error {
	for _, m := range sqliteMigrations {
		if _, err := s.db.ExecContext(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLite) Load(ctx context.Context, key string) (model.Selection, error) {
	var value string
	err := s.db.GetContext(ctx, &value, `SELECT value FROM selections WHERE key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Selection{}, nil
	}
	if err != nil {
		return nil, err
	}
	return decode(key, []byte(value)), nil
}

func (s *SQLite) Save(ctx context.Context, key string, sel model.Selection) error {
	raw, err := encode(sel)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO selections (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE
			SET value = excluded.value,
				updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now');
	`, key, string(raw))
	return err
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
