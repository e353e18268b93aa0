package upstream

import (
	"context"

	"github.com/campushq/registra/internal/model"
)

// AuthResult is the outcome of a successful authentication: the opaque
// bearer credential plus the authenticated identity.
type AuthResult struct {
	Credential string         `json:"credential"`
	Identity   model.Identity `json:"identity"`
}

// RegisterRequest carries the fields of a new account registration.
// Avatar, when present, is a base64-encoded image.
type RegisterRequest struct {
	Email     string  `json:"email"`
	Password  string  `json:"password"`
	FirstName string  `json:"firstname"`
	LastName  string  `json:"lastname"`
	Age       *int    `json:"age,omitempty"`
	Phone     *string `json:"phone,omitempty"`
	Address   *string `json:"address,omitempty"`
	Avatar    *string `json:"avatar,omitempty"`
}

// IdentityUpdate is a partial update of the caller's own identity.
// Nil fields are left unchanged.
type IdentityUpdate struct {
	FirstName *string `json:"firstname,omitempty"`
	LastName  *string `json:"lastname,omitempty"`
	Email     *string `json:"email,omitempty"`
	Password  *string `json:"password,omitempty"`
	Age       *int    `json:"age,omitempty"`
	Phone     *string `json:"phone,omitempty"`
	Address   *string `json:"address,omitempty"`
	Avatar    *string `json:"avatar,omitempty"`
}

// CredentialAffecting reports whether applying the update invalidates the
// current bearer credential, forcing re-authentication.
func (u IdentityUpdate) CredentialAffecting() bool {
	return u.Email != nil || u.Password != nil
}

// SendRequest is a single-recipient message delivery attempt.
type SendRequest struct {
	RecipientID    string `json:"recipient_id"`
	Subject        string `json:"subject"`
	Body           string `json:"body"`
	IdempotencyKey string `json:"-"`
}

// RoleInfo describes one entry of the upstream role catalog.
type RoleInfo struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	MemberCount int    `json:"member_count"`
}

// Client is the boundary to the enrollment API. Every operation except
// Authenticate and Register requires the opaque bearer credential obtained
// at authentication. Implementations must map credential rejection to
// ErrInvalidCredential so callers can invalidate the session.
type Client interface {
	Authenticate(ctx context.Context, email, password string) (*AuthResult, error)
	Register(ctx context.Context, req RegisterRequest) (*model.Identity, error)
	UpdateIdentity(ctx context.Context, cred string, update IdentityUpdate) (*model.Identity, error)

	FetchInbox(ctx context.Context, cred string, pageIndex, pageSize int) (*model.InboxPage, error)
	FetchUnreadCount(ctx context.Context, cred string) (int, error)
	MarkMessageRead(ctx context.Context, cred, messageID string) error
	SendMessage(ctx context.Context, cred string, req SendRequest) error

	LookupIdentity(ctx context.Context, cred, identityID string) (*model.Identity, error)
	ListIdentities(ctx context.Context, cred, searchTerm string) ([]model.Identity, error)
	ListRoles(ctx context.Context, cred string) ([]RoleInfo, error)
}
