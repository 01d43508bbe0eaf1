// Package store persists App selections (mission and team sets) under fixed
// keys. Every backend stores the selection as a JSON array and replaces the
// previous value wholesale on Save.
package store

import (
	"context"
	"encoding/json"
	"fmt"

	"cdfplan/internal/config"
	appLog "cdfplan/internal/log"
	"cdfplan/internal/model"
)

// SelectionStore loads and saves selections by key.
//
// Load returns an empty selection, not an error, when the key is absent or
// its stored value is not a JSON array of identifiers. Errors are reserved
// for backend failures.
type SelectionStore interface {
	Load(ctx context.Context, key string) (model.Selection, error)
	Save(ctx context.Context, key string, sel model.Selection) error
	Close() error
}

// Open returns the backend named by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig) (SelectionStore, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemory(), nil
	case "bolt":
		return NewBolt(cfg.DSN)
	case "sqlite":
		return NewSQLite(ctx, cfg.DSN)
	case "postgres":
		return NewPostgres(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("store: unknown driver %q", cfg.Driver)
	}
}

func encode(sel model.Selection) ([]byte, error) {
	return json.Marshal(model.NewSelection(sel...))
}

// decode never fails: malformed data degrades to an empty selection.
func decode(key string, raw []byte) model.Selection {
	if raw == nil {
		return model.Selection{}
	}
	var sel model.Selection
	if err := json.Unmarshal(raw, &sel); err != nil {
		appLog.Debug("stored selection unparsable; using empty", "key", key, "err", err)
		return model.Selection{}
	}
	if sel == nil {
		return model.Selection{}
	}
	return sel
}
