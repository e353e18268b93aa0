// Package inbox provides paged access to an identity's message inbox.
package inbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/campushq/registra/internal/model"
	"github.com/campushq/registra/internal/upstream"
)

// ErrMessageNotFound means the addressed message does not exist.
var ErrMessageNotFound = errors.New("inbox: message not found")

// Pagination bounds. Page indexes are zero-based.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// ServiceConfig holds inbox service dependencies.
type ServiceConfig struct {
	Upstream upstream.Client
	Logger   *slog.Logger
}

// Service fetches inbox pages and mutates read state. The server owns
// the message list and the unread count; this service never counts or
// caches locally.
type Service struct {
	upstream upstream.Client
	logger   *slog.Logger
}

// NewService creates an inbox service.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{
		upstream: cfg.Upstream,
		logger:   cfg.Logger.With(slog.String("component", "inbox")),
	}
}

// FetchPage returns one page of the inbox plus the total message count.
// A page past the end of the inbox is an empty page with the true total,
// not an error. Out-of-range sizes are clamped to the allowed bounds.
func (s *Service) FetchPage(ctx context.Context, cred string, pageIndex, pageSize int) (*model.InboxPage, error) {
	if pageIndex < 0 {
		pageIndex = 0
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	page, err := s.upstream.FetchInbox(ctx, cred, pageIndex, pageSize)
	if err != nil {
		return nil, fmt.Errorf("inbox: fetch page %d: %w", pageIndex, err)
	}
	return page, nil
}

// MarkRead marks a message as read. Marking an already-read message is
// a no-op that still succeeds; the operation is idempotent end to end.
func (s *Service) MarkRead(ctx context.Context, cred, messageID string) error {
	if messageID == "" {
		return ErrMessageNotFound
	}

	err := s.upstream.MarkMessageRead(ctx, cred, messageID)
	if err != nil {
		if errors.Is(err, upstream.ErrNotFound) {
			return ErrMessageNotFound
		}
		return fmt.Errorf("inbox: mark read: %w", err)
	}
	return nil
}

// UnreadCount returns the server-derived unread total for the badge.
func (s *Service) UnreadCount(ctx context.Context, cred string) (int, error) {
	count, err := s.upstream.FetchUnreadCount(ctx, cred)
	if err != nil {
		return 0, fmt.Errorf("inbox: unread count: %w", err)
	}
	return count, nil
}
