package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/campushq/registra/internal/model"
	"github.com/campushq/registra/internal/upstream"
	"github.com/campushq/registra/internal/upstream/upstreamtest"
)

func testSealer(t *testing.T) *Sealer {
	t.Helper()
	key, err := GenerateSealKey()
	if err != nil {
		t.Fatalf("generate seal key: %v", err)
	}
	sealer, err := NewSealer(key)
	if err != nil {
		t.Fatalf("new sealer: %v", err)
	}
	return sealer
}

func testIdentity() model.Identity {
	return model.Identity{
		ID:        "identity:alice",
		Email:     "alice@example.edu",
		FirstName: "Alice",
		LastName:  "Barker",
		Roles:     []model.Role{model.RoleAdmin},
	}
}

func setupStore(t *testing.T, client *upstreamtest.Client, persistence Persistence) *Store {
	t.Helper()
	if persistence == nil {
		persistence = NewMemoryPersistence()
	}
	return NewStore(StoreConfig{
		Upstream:    client,
		Persistence: persistence,
		Sealer:      testSealer(t),
		TTL:         time.Hour,
	})
}

func TestStore_LoginThenRestore_RoundTrip(t *testing.T) {
	client := &upstreamtest.Client{
		AuthenticateFunc: func(_ context.Context, email, password string) (*upstream.AuthResult, error) {
			if email != "alice@example.edu" || password != "hunter22" {
				return nil, upstream.ErrInvalidCredential
			}
			return &upstream.AuthResult{Credential: "cred-abc", Identity: testIdentity()}, nil
		},
	}
	store := setupStore(t, client, nil)
	ctx := context.Background()

	sess, err := store.Login(ctx, "alice@example.edu", "hunter22")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if sess.Token == "" {
		t.Fatal("expected a session token")
	}
	if sess.Credential != "cred-abc" {
		t.Errorf("credential = %q, want cred-abc", sess.Credential)
	}

	restored, err := store.Restore(ctx, sess.Token)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if restored.Credential != sess.Credential {
		t.Errorf("restored credential = %q, want %q", restored.Credential, sess.Credential)
	}
	if restored.Identity.ID != sess.Identity.ID || restored.Identity.Email != sess.Identity.Email {
		t.Errorf("restored identity = %+v, want %+v", restored.Identity, sess.Identity)
	}
	if !restored.Identity.IsAdmin() {
		t.Errorf("restored roles = %v, want admin kept", restored.Identity.Roles)
	}
}

func TestStore_Login_EmptyCredentials(t *testing.T) {
	store := setupStore(t, &upstreamtest.Client{}, nil)

	for _, tc := range []struct{ email, password string }{
		{"", "secret"},
		{"alice@example.edu", ""},
		{"", ""},
	} {
		if _, err := store.Login(context.Background(), tc.email, tc.password); !errors.Is(err, ErrMissingCredentials) {
			t.Errorf("Login(%q, %q) = %v, want ErrMissingCredentials", tc.email, tc.password, err)
		}
	}
}

func TestStore_Login_RejectedPassword(t *testing.T) {
	client := &upstreamtest.Client{
		AuthenticateFunc: func(context.Context, string, string) (*upstream.AuthResult, error) {
			return nil, upstream.ErrInvalidCredential
		},
	}
	store := setupStore(t, client, nil)

	if _, err := store.Login(context.Background(), "alice@example.edu", "wrong"); !errors.Is(err, upstream.ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential, got %v", err)
	}
}

func TestStore_Restore_UnknownToken(t *testing.T) {
	store := setupStore(t, &upstreamtest.Client{}, nil)

	if _, err := store.Restore(context.Background(), "no-such-token"); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
	if _, err := store.Restore(context.Background(), ""); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated for empty token, got %v", err)
	}
}

func TestStore_Restore_ExpiredSession(t *testing.T) {
	client := &upstreamtest.Client{
		AuthenticateFunc: func(context.Context, string, string) (*upstream.AuthResult, error) {
			return &upstream.AuthResult{Credential: "cred", Identity: testIdentity()}, nil
		},
	}
	persistence := NewMemoryPersistence()
	store := NewStore(StoreConfig{
		Upstream:    client,
		Persistence: persistence,
		Sealer:      testSealer(t),
		TTL:         -time.Minute, // already expired at creation
	})

	sess, err := store.Login(context.Background(), "alice@example.edu", "pw")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := store.Restore(context.Background(), sess.Token); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated for expired session, got %v", err)
	}
}

func TestStore_Restore_UnreadableRecordTreatedAsAbsent(t *testing.T) {
	client := &upstreamtest.Client{
		AuthenticateFunc: func(context.Context, string, string) (*upstream.AuthResult, error) {
			return &upstream.AuthResult{Credential: "cred", Identity: testIdentity()}, nil
		},
	}
	persistence := NewMemoryPersistence()
	store := setupStore(t, client, persistence)

	sess, err := store.Login(context.Background(), "alice@example.edu", "pw")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	// Corrupt the sealed credential in place.
	record, err := persistence.Load(context.Background(), hashToken(sess.Token))
	if err != nil {
		t.Fatalf("load record: %v", err)
	}
	record.SealedCredential[len(record.SealedCredential)-1] ^= 0xff
	if err := persistence.Save(context.Background(), record); err != nil {
		t.Fatalf("save record: %v", err)
	}

	if _, err := store.Restore(context.Background(), sess.Token); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated for corrupt record, got %v", err)
	}
}

func TestStore_Logout_ClearsSession(t *testing.T) {
	client := &upstreamtest.Client{
		AuthenticateFunc: func(context.Context, string, string) (*upstream.AuthResult, error) {
			return &upstream.AuthResult{Credential: "cred", Identity: testIdentity()}, nil
		},
	}
	store := setupStore(t, client, nil)
	ctx := context.Background()

	sess, err := store.Login(ctx, "alice@example.edu", "pw")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	store.Logout(ctx, sess.Token)

	if _, err := store.Restore(ctx, sess.Token); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated after logout, got %v", err)
	}

	// Logging out again, or with no stored session at all, is a no-op.
	store.Logout(ctx, sess.Token)
	store.Logout(ctx, "")
}

// failingPersistence wraps the memory store but refuses to clear,
// modeling a persistence layer outage during logout.
type failingPersistence struct {
	*MemoryPersistence
}

func (f *failingPersistence) Clear(context.Context, string) error {
	return errors.New("disk on fire")
}

func TestStore_Logout_SurvivesPersistenceFailure(t *testing.T) {
	client := &upstreamtest.Client{
		AuthenticateFunc: func(context.Context, string, string) (*upstream.AuthResult, error) {
			return &upstream.AuthResult{Credential: "cred", Identity: testIdentity()}, nil
		},
	}
	persistence := &failingPersistence{NewMemoryPersistence()}
	store := setupStore(t, client, persistence)
	ctx := context.Background()

	sess, err := store.Login(ctx, "alice@example.edu", "pw")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	// Must not panic or surface the error; the caller ends up logged out.
	store.Logout(ctx, sess.Token)
}

func TestStore_RefreshIdentity(t *testing.T) {
	updated := testIdentity()
	updated.LastName = "Barker-Chandra"

	client := &upstreamtest.Client{
		AuthenticateFunc: func(context.Context, string, string) (*upstream.AuthResult, error) {
			return &upstream.AuthResult{Credential: "cred", Identity: testIdentity()}, nil
		},
		LookupIdentityFunc: func(_ context.Context, cred, id string) (*model.Identity, error) {
			if cred != "cred" {
				return nil, upstream.ErrInvalidCredential
			}
			return &updated, nil
		},
	}
	store := setupStore(t, client, nil)
	ctx := context.Background()

	sess, err := store.Login(ctx, "alice@example.edu", "pw")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	refreshed, err := store.RefreshIdentity(ctx, sess.Token)
	if err != nil {
		t.Fatalf("refresh identity: %v", err)
	}
	if refreshed.Identity.LastName != "Barker-Chandra" {
		t.Errorf("last name = %q, want updated", refreshed.Identity.LastName)
	}

	// The refreshed identity must survive a fresh restore.
	restored, err := store.Restore(ctx, sess.Token)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if restored.Identity.LastName != "Barker-Chandra" {
		t.Errorf("restored last name = %q, want updated", restored.Identity.LastName)
	}
}
