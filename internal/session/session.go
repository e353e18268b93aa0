package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/campushq/registra/internal/metrics"
	"github.com/campushq/registra/internal/model"
	"github.com/campushq/registra/internal/upstream"
)

// ===== Session Errors =====

var (
	// ErrNotAuthenticated means no valid session exists for the token.
	ErrNotAuthenticated = errors.New("session: not authenticated")

	// ErrMissingCredentials means login was attempted with an empty
	// email or password.
	ErrMissingCredentials = errors.New("session: email and password are required")
)

// Session is the explicit in-flight session object: the opaque upstream
// credential plus the identity it authenticates. The raw gateway token
// is only populated on the session returned from Login.
type Session struct {
	Token      string
	Credential string
	Identity   model.Identity
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// StoreConfig holds session store dependencies.
type StoreConfig struct {
	Upstream    upstream.Client
	Persistence Persistence
	Sealer      *Sealer
	TTL         time.Duration
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
}

// Store manages the session lifecycle: two states, authenticated and
// unauthenticated, with Login and Logout/Invalidate as the only
// transitions. Persistence is injected so deployments can choose where
// sessions live between requests.
type Store struct {
	upstream    upstream.Client
	persistence Persistence
	sealer      *Sealer
	ttl         time.Duration
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// NewStore creates a session store.
func NewStore(cfg StoreConfig) *Store {
	if cfg.TTL == 0 {
		cfg.TTL = 12 * time.Hour
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Store{
		upstream:    cfg.Upstream,
		persistence: cfg.Persistence,
		sealer:      cfg.Sealer,
		ttl:         cfg.TTL,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger.With(slog.String("component", "session")),
	}
}

// Login authenticates against the enrollment API and persists a new
// session on success. The returned session carries the raw token the
// browser presents on subsequent requests.
func (s *Store) Login(ctx context.Context, email, password string) (*Session, error) {
	if email == "" || password == "" {
		return nil, ErrMissingCredentials
	}

	result, err := s.upstream.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}

	token, err := generateToken()
	if err != nil {
		return nil, err
	}

	sealed, err := s.sealer.Seal([]byte(result.Credential))
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	record := &Record{
		TokenHash:        hashToken(token),
		SealedCredential: sealed,
		Identity:         result.Identity,
		CreatedAt:        now,
		ExpiresAt:        now.Add(s.ttl),
	}
	if err := s.persistence.Save(ctx, record); err != nil {
		return nil, fmt.Errorf("session: persist: %w", err)
	}

	if s.metrics != nil {
		s.metrics.SessionsActive.Inc()
	}
	s.logger.InfoContext(ctx, "session created",
		slog.String("identity_id", result.Identity.ID),
		slog.Any("roles", result.Identity.Roles),
	)

	return &Session{
		Token:      token,
		Credential: result.Credential,
		Identity:   result.Identity,
		CreatedAt:  record.CreatedAt,
		ExpiresAt:  record.ExpiresAt,
	}, nil
}

// Restore loads the session for a token. Absent, expired, or unreadable
// records all yield ErrNotAuthenticated; restore never invents a session.
func (s *Store) Restore(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, ErrNotAuthenticated
	}

	tokenHash := hashToken(token)
	record, err := s.persistence.Load(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil, ErrNotAuthenticated
		}
		return nil, fmt.Errorf("session: load: %w", err)
	}

	if time.Now().After(record.ExpiresAt) {
		s.clear(ctx, tokenHash)
		return nil, ErrNotAuthenticated
	}

	credential, err := s.sealer.Open(record.SealedCredential)
	if err != nil {
		// Seal key rotated or record corrupt. Treat as absent.
		s.logger.WarnContext(ctx, "discarding unreadable session record")
		s.clear(ctx, tokenHash)
		return nil, ErrNotAuthenticated
	}

	return &Session{
		Credential: string(credential),
		Identity:   record.Identity,
		CreatedAt:  record.CreatedAt,
		ExpiresAt:  record.ExpiresAt,
	}, nil
}

// Logout clears the persisted session. Logging out without a stored
// session is a no-op, and persistence failures still leave the caller
// unauthenticated: Logout never fails.
func (s *Store) Logout(ctx context.Context, token string) {
	if token == "" {
		return
	}
	s.clear(ctx, hashToken(token))
}

// Invalidate removes a session whose upstream credential was rejected.
func (s *Store) Invalidate(ctx context.Context, token string) {
	s.logger.InfoContext(ctx, "session invalidated by upstream credential rejection")
	s.Logout(ctx, token)
}

// RefreshIdentity re-fetches the caller's identity from the enrollment
// API and persists it, keeping the session alive across profile edits.
func (s *Store) RefreshIdentity(ctx context.Context, token string) (*Session, error) {
	sess, err := s.Restore(ctx, token)
	if err != nil {
		return nil, err
	}

	identity, err := s.upstream.LookupIdentity(ctx, sess.Credential, sess.Identity.ID)
	if err != nil {
		return nil, err
	}
	sess.Identity = *identity

	sealed, err := s.sealer.Seal([]byte(sess.Credential))
	if err != nil {
		return nil, err
	}
	record := &Record{
		TokenHash:        hashToken(token),
		SealedCredential: sealed,
		Identity:         *identity,
		CreatedAt:        sess.CreatedAt,
		ExpiresAt:        sess.ExpiresAt,
	}
	if err := s.persistence.Save(ctx, record); err != nil {
		return nil, fmt.Errorf("session: persist: %w", err)
	}
	return sess, nil
}

func (s *Store) clear(ctx context.Context, tokenHash string) {
	if err := s.persistence.Clear(ctx, tokenHash); err != nil {
		s.logger.WarnContext(ctx, "session clear failed", slog.Any("error", err))
		return
	}
	if s.metrics != nil {
		s.metrics.SessionsActive.Dec()
	}
}

// generateToken returns a 256-bit random token in hex form.
func generateToken() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("session: generate token: %w", err)
	}
	return hex.EncodeToString(raw), nil
}

// hashToken creates a SHA-256 hash of a token for storage.
func hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
