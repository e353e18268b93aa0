package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
)

const pebbleKeyPrefix = "session/"

// PebblePersistence stores session records in an embedded Pebble
// database. It is the default backend for single-node deployments.
type PebblePersistence struct {
	db *pebble.DB
}

// NewPebblePersistence opens (or creates) the session database at path.
func NewPebblePersistence(path string) (*PebblePersistence, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("session: open pebble at %s: %w", path, err)
	}
	return &PebblePersistence{db: db}, nil
}

func (p *PebblePersistence) Load(_ context.Context, tokenHash string) (*Record, error) {
	value, closer, err := p.db.Get(pebbleKey(tokenHash))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("session: pebble get: %w", err)
	}
	defer func() { _ = closer.Close() }()

	var record Record
	if err := json.Unmarshal(value, &record); err != nil {
		return nil, fmt.Errorf("session: decode record: %w", err)
	}
	return &record, nil
}

func (p *PebblePersistence) Save(_ context.Context, record *Record) error {
	value, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("session: encode record: %w", err)
	}
	if err := p.db.Set(pebbleKey(record.TokenHash), value, pebble.Sync); err != nil {
		return fmt.Errorf("session: pebble set: %w", err)
	}
	return nil
}

func (p *PebblePersistence) Clear(_ context.Context, tokenHash string) error {
	if err := p.db.Delete(pebbleKey(tokenHash), pebble.Sync); err != nil {
		return fmt.Errorf("session: pebble delete: %w", err)
	}
	return nil
}

func (p *PebblePersistence) Close() error {
	return p.db.Close()
}

func pebbleKey(tokenHash string) []byte {
	return []byte(pebbleKeyPrefix + tokenHash)
}
