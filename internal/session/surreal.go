package session

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/surrealdb/surrealdb.go"

	"github.com/campushq/registra/internal/model"
)

// SurrealConfig holds SurrealDB connection settings for shared
// multi-node session storage.
type SurrealConfig struct {
	Host      string
	Port      string
	Namespace string
	Database  string
	User      string
	Password  string
}

// SurrealPersistence stores session records in SurrealDB so several
// gateway instances can share one session space.
type SurrealPersistence struct {
	db *surrealdb.DB
}

// surrealRecord mirrors Record with the sealed credential hex-encoded
// for storage.
type surrealRecord struct {
	TokenHash  string         `json:"token_hash"`
	Credential string         `json:"credential"`
	Identity   model.Identity `json:"identity"`
	CreatedAt  time.Time      `json:"created_at"`
	ExpiresAt  time.Time      `json:"expires_at"`
}

// NewSurrealPersistence connects and signs in to SurrealDB.
func NewSurrealPersistence(ctx context.Context, cfg SurrealConfig) (*SurrealPersistence, error) {
	endpoint := fmt.Sprintf("ws://%s:%s", cfg.Host, cfg.Port)

	db, err := surrealdb.FromEndpointURLString(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("session: surreal connect: %w", err)
	}

	if _, err := db.SignIn(ctx, &surrealdb.Auth{
		Username: cfg.User,
		Password: cfg.Password,
	}); err != nil {
		_ = db.Close(ctx)
		return nil, fmt.Errorf("session: surreal signin: %w", err)
	}

	if err := db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		_ = db.Close(ctx)
		return nil, fmt.Errorf("session: surreal use: %w", err)
	}

	return &SurrealPersistence{db: db}, nil
}

func (s *SurrealPersistence) Load(ctx context.Context, tokenHash string) (*Record, error) {
	results, err := surrealdb.Query[[]surrealRecord](ctx, s.db,
		"SELECT * FROM session WHERE token_hash = $token_hash LIMIT 1",
		map[string]interface{}{"token_hash": tokenHash},
	)
	if err != nil {
		return nil, fmt.Errorf("session: surreal query: %w", err)
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, ErrRecordNotFound
	}

	row := (*results)[0].Result[0]
	sealed, err := hex.DecodeString(row.Credential)
	if err != nil {
		return nil, fmt.Errorf("session: decode stored credential: %w", err)
	}

	return &Record{
		TokenHash:        row.TokenHash,
		SealedCredential: sealed,
		Identity:         row.Identity,
		CreatedAt:        row.CreatedAt,
		ExpiresAt:        row.ExpiresAt,
	}, nil
}

func (s *SurrealPersistence) Save(ctx context.Context, record *Record) error {
	vars := map[string]interface{}{
		"token_hash": record.TokenHash,
		"credential": hex.EncodeToString(record.SealedCredential),
		"identity":   record.Identity,
		"created_at": record.CreatedAt,
		"expires_at": record.ExpiresAt,
	}

	// Upsert keyed by token hash so identity refreshes replace in place.
	_, err := surrealdb.Query[interface{}](ctx, s.db, `
		DELETE session WHERE token_hash = $token_hash;
		CREATE session CONTENT {
			token_hash: $token_hash,
			credential: $credential,
			identity: $identity,
			created_at: $created_at,
			expires_at: $expires_at
		};`, vars)
	if err != nil {
		return fmt.Errorf("session: surreal save: %w", err)
	}
	return nil
}

func (s *SurrealPersistence) Clear(ctx context.Context, tokenHash string) error {
	_, err := surrealdb.Query[interface{}](ctx, s.db,
		"DELETE session WHERE token_hash = $token_hash",
		map[string]interface{}{"token_hash": tokenHash},
	)
	if err != nil {
		return fmt.Errorf("session: surreal clear: %w", err)
	}
	return nil
}

func (s *SurrealPersistence) Close() error {
	return s.db.Close(context.Background())
}
