package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"cdfplan/internal/model"
)

const boltBucketSelections = "selections" // key: selection key -> JSON array

// Bolt stores selections in a bbolt file.
type Bolt struct {
	db *bbolt.DB
}

func NewBolt(path string) (*Bolt, error) {
	if path == "" {
		return nil, errors.New("store: bolt path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}

	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(boltBucketSelections))
		return err
	}); err != nil {
		_ = db.Close()

		return nil, err
	}

	return &Bolt{db: db}, nil
}

func (b *Bolt) Load(_ context.Context, key string) (model.Selection, error) {
	var raw []byte

	err := b.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(boltBucketSelections)).Get([]byte(key))
		if v != nil {
			// v is only valid inside the transaction.
			raw = append([]byte(nil), v...)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return decode(key, raw), nil
}

func (b *Bolt) Save(_ context.Context, key string, sel model.Selection) error {
	raw, err := encode(sel)
	if err != nil {
		return err
	}

	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(boltBucketSelections)).Put([]byte(key), raw)
	})
}

func (b *Bolt) Close() error {
	return b.db.Close()
}
