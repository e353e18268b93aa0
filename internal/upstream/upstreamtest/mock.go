// Package upstreamtest provides a configurable in-memory upstream.Client
// for unit tests. Each method delegates to an optional function field
// and counts its calls; unset methods fail the calling test path by
// returning upstream.ErrServer.
package upstreamtest

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/campushq/registra/internal/model"
	"github.com/campushq/registra/internal/upstream"
)

// Client is a mock upstream.Client.
type Client struct {
	AuthenticateFunc     func(ctx context.Context, email, password string) (*upstream.AuthResult, error)
	RegisterFunc         func(ctx context.Context, req upstream.RegisterRequest) (*model.Identity, error)
	UpdateIdentityFunc   func(ctx context.Context, cred string, update upstream.IdentityUpdate) (*model.Identity, error)
	FetchInboxFunc       func(ctx context.Context, cred string, pageIndex, pageSize int) (*model.InboxPage, error)
	FetchUnreadCountFunc func(ctx context.Context, cred string) (int, error)
	MarkMessageReadFunc  func(ctx context.Context, cred, messageID string) error
	SendMessageFunc      func(ctx context.Context, cred string, req upstream.SendRequest) error
	LookupIdentityFunc   func(ctx context.Context, cred, identityID string) (*model.Identity, error)
	ListIdentitiesFunc   func(ctx context.Context, cred, searchTerm string) ([]model.Identity, error)
	ListRolesFunc        func(ctx context.Context, cred string) ([]upstream.RoleInfo, error)

	calls sync.Map // method name -> *int64
}

var _ upstream.Client = (*Client)(nil)

// Calls returns how many times the named method was invoked.
func (c *Client) Calls(method string) int {
	if v, ok := c.calls.Load(method); ok {
		return int(atomic.LoadInt64(v.(*int64)))
	}
	return 0
}

func (c *Client) record(method string) {
	v, _ := c.calls.LoadOrStore(method, new(int64))
	atomic.AddInt64(v.(*int64), 1)
}

func (c *Client) Authenticate(ctx context.Context, email, password string) (*upstream.AuthResult, error) {
	c.record("Authenticate")
	if c.AuthenticateFunc == nil {
		return nil, upstream.ErrServer
	}
	return c.AuthenticateFunc(ctx, email, password)
}

func (c *Client) Register(ctx context.Context, req upstream.RegisterRequest) (*model.Identity, error) {
	c.record("Register")
	if c.RegisterFunc == nil {
		return nil, upstream.ErrServer
	}
	return c.RegisterFunc(ctx, req)
}

func (c *Client) UpdateIdentity(ctx context.Context, cred string, update upstream.IdentityUpdate) (*model.Identity, error) {
	c.record("UpdateIdentity")
	if c.UpdateIdentityFunc == nil {
		return nil, upstream.ErrServer
	}
	return c.UpdateIdentityFunc(ctx, cred, update)
}

func (c *Client) FetchInbox(ctx context.Context, cred string, pageIndex, pageSize int) (*model.InboxPage, error) {
	c.record("FetchInbox")
	if c.FetchInboxFunc == nil {
		return nil, upstream.ErrServer
	}
	return c.FetchInboxFunc(ctx, cred, pageIndex, pageSize)
}

func (c *Client) FetchUnreadCount(ctx context.Context, cred string) (int, error) {
	c.record("FetchUnreadCount")
	if c.FetchUnreadCountFunc == nil {
		return 0, upstream.ErrServer
	}
	return c.FetchUnreadCountFunc(ctx, cred)
}

func (c *Client) MarkMessageRead(ctx context.Context, cred, messageID string) error {
	c.record("MarkMessageRead")
	if c.MarkMessageReadFunc == nil {
		return upstream.ErrServer
	}
	return c.MarkMessageReadFunc(ctx, cred, messageID)
}

func (c *Client) SendMessage(ctx context.Context, cred string, req upstream.SendRequest) error {
	c.record("SendMessage")
	if c.SendMessageFunc == nil {
		return upstream.ErrServer
	}
	return c.SendMessageFunc(ctx, cred, req)
}

func (c *Client) LookupIdentity(ctx context.Context, cred, identityID string) (*model.Identity, error) {
	c.record("LookupIdentity")
	if c.LookupIdentityFunc == nil {
		return nil, upstream.ErrServer
	}
	return c.LookupIdentityFunc(ctx, cred, identityID)
}

func (c *Client) ListIdentities(ctx context.Context, cred, searchTerm string) ([]model.Identity, error) {
	c.record("ListIdentities")
	if c.ListIdentitiesFunc == nil {
		return nil, upstream.ErrServer
	}
	return c.ListIdentitiesFunc(ctx, cred, searchTerm)
}

func (c *Client) ListRoles(ctx context.Context, cred string) ([]upstream.RoleInfo, error) {
	c.record("ListRoles")
	if c.ListRolesFunc == nil {
		return nil, upstream.ErrServer
	}
	return c.ListRolesFunc(ctx, cred)
}
