package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/campushq/registra/internal/model"
)

// ErrRecordNotFound means no record exists for the given token hash.
var ErrRecordNotFound = errors.New("session: record not found")

// Record is what the persistence layer stores per session. The raw
// session token never touches persistence; records are keyed by its
// SHA-256 and the upstream credential is sealed before saving.
type Record struct {
	TokenHash        string         `json:"token_hash"`
	SealedCredential []byte         `json:"sealed_credential"`
	Identity         model.Identity `json:"identity"`
	CreatedAt        time.Time      `json:"created_at"`
	ExpiresAt        time.Time      `json:"expires_at"`
}

// Persistence stores session records between requests. Implementations
// must treat an unknown token hash as ErrRecordNotFound, not an error.
type Persistence interface {
	Load(ctx context.Context, tokenHash string) (*Record, error)
	Save(ctx context.Context, record *Record) error
	Clear(ctx context.Context, tokenHash string) error
	Close() error
}

// MemoryPersistence is a mutex-guarded in-process store. It is the
// default for tests and single-process development runs.
type MemoryPersistence struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// NewMemoryPersistence creates an empty in-memory store.
func NewMemoryPersistence() *MemoryPersistence {
	return &MemoryPersistence{records: make(map[string]*Record)}
}

func (m *MemoryPersistence) Load(_ context.Context, tokenHash string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	record, ok := m.records[tokenHash]
	if !ok {
		return nil, ErrRecordNotFound
	}
	clone := *record
	return &clone, nil
}

func (m *MemoryPersistence) Save(_ context.Context, record *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	clone := *record
	m.records[record.TokenHash] = &clone
	return nil
}

func (m *MemoryPersistence) Clear(_ context.Context, tokenHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.records, tokenHash)
	return nil
}

func (m *MemoryPersistence) Close() error { return nil }
