package inbox

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/campushq/registra/internal/model"
	"github.com/campushq/registra/internal/upstream"
	"github.com/campushq/registra/internal/upstream/upstreamtest"
)

// fixtureClient serves pages out of a fixed message list the way the
// enrollment API would, slicing by page index and size.
func fixtureClient(messages []model.Message) *upstreamtest.Client {
	read := make(map[string]bool)
	return &upstreamtest.Client{
		FetchInboxFunc: func(_ context.Context, _ string, pageIndex, pageSize int) (*model.InboxPage, error) {
			start := pageIndex * pageSize
			end := start + pageSize
			if start > len(messages) {
				start = len(messages)
			}
			if end > len(messages) {
				end = len(messages)
			}
			return &model.InboxPage{
				Messages:   append([]model.Message{}, messages[start:end]...),
				TotalCount: len(messages),
			}, nil
		},
		MarkMessageReadFunc: func(_ context.Context, _ string, messageID string) error {
			for _, m := range messages {
				if m.ID == messageID {
					read[messageID] = true
					return nil
				}
			}
			return upstream.ErrNotFound
		},
		FetchUnreadCountFunc: func(context.Context, string) (int, error) {
			unread := len(messages)
			for _, m := range messages {
				if read[m.ID] {
					unread--
				}
			}
			return unread, nil
		},
	}
}

func fixtureMessages(n int) []model.Message {
	sent := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)
	messages := make([]model.Message, 0, n)
	for i := 0; i < n; i++ {
		messages = append(messages, model.Message{
			ID:       fmt.Sprintf("msg:%03d", i),
			SenderID: "identity:registrar",
			Subject:  fmt.Sprintf("Notice %d", i),
			Body:     "See the portal for details.",
			SentAt:   sent.Add(time.Duration(i) * time.Minute),
		})
	}
	return messages
}

func TestFetchPage_ReturnsPageAndTotal(t *testing.T) {
	svc := NewService(ServiceConfig{Upstream: fixtureClient(fixtureMessages(35))})

	page, err := svc.FetchPage(context.Background(), "cred", 0, 20)
	if err != nil {
		t.Fatalf("fetch page: %v", err)
	}
	if len(page.Messages) != 20 {
		t.Errorf("page 0 size = %d, want 20", len(page.Messages))
	}
	if page.TotalCount != 35 {
		t.Errorf("total = %d, want 35", page.TotalCount)
	}
}

func TestFetchPage_ConsecutivePagesAreDisjoint(t *testing.T) {
	svc := NewService(ServiceConfig{Upstream: fixtureClient(fixtureMessages(35))})
	ctx := context.Background()

	first, err := svc.FetchPage(ctx, "cred", 0, 20)
	if err != nil {
		t.Fatalf("fetch page 0: %v", err)
	}
	second, err := svc.FetchPage(ctx, "cred", 1, 20)
	if err != nil {
		t.Fatalf("fetch page 1: %v", err)
	}

	seen := make(map[string]bool)
	for _, m := range first.Messages {
		seen[m.ID] = true
	}
	for _, m := range second.Messages {
		if seen[m.ID] {
			t.Errorf("message %s appears on both pages", m.ID)
		}
		seen[m.ID] = true
	}

	if want := 35; len(seen) != want {
		t.Errorf("union of pages = %d messages, want %d", len(seen), want)
	}
	if len(second.Messages) != 15 {
		t.Errorf("page 1 size = %d, want the 15 remaining", len(second.Messages))
	}
}

func TestFetchPage_PastEndIsEmptyWithTrueTotal(t *testing.T) {
	svc := NewService(ServiceConfig{Upstream: fixtureClient(fixtureMessages(5))})

	page, err := svc.FetchPage(context.Background(), "cred", 7, 20)
	if err != nil {
		t.Fatalf("fetch page: %v", err)
	}
	if len(page.Messages) != 0 {
		t.Errorf("past-end page has %d messages, want 0", len(page.Messages))
	}
	if page.TotalCount != 5 {
		t.Errorf("total = %d, want 5", page.TotalCount)
	}
}

func TestFetchPage_ClampsBounds(t *testing.T) {
	var gotIndex, gotSize int
	client := &upstreamtest.Client{
		FetchInboxFunc: func(_ context.Context, _ string, pageIndex, pageSize int) (*model.InboxPage, error) {
			gotIndex, gotSize = pageIndex, pageSize
			return &model.InboxPage{Messages: []model.Message{}}, nil
		},
	}
	svc := NewService(ServiceConfig{Upstream: client})
	ctx := context.Background()

	tests := []struct {
		name                string
		index, size         int
		wantIndex, wantSize int
	}{
		{"negative index", -3, 20, 0, 20},
		{"zero size defaults", 0, 0, 0, DefaultPageSize},
		{"negative size defaults", 0, -1, 0, DefaultPageSize},
		{"oversized capped", 0, 500, 0, MaxPageSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.FetchPage(ctx, "cred", tt.index, tt.size); err != nil {
				t.Fatalf("fetch page: %v", err)
			}
			if gotIndex != tt.wantIndex || gotSize != tt.wantSize {
				t.Errorf("upstream saw (%d, %d), want (%d, %d)", gotIndex, gotSize, tt.wantIndex, tt.wantSize)
			}
		})
	}
}

func TestMarkRead_IsIdempotent(t *testing.T) {
	client := fixtureClient(fixtureMessages(3))
	svc := NewService(ServiceConfig{Upstream: client})
	ctx := context.Background()

	if err := svc.MarkRead(ctx, "cred", "msg:001"); err != nil {
		t.Fatalf("first mark read: %v", err)
	}
	count, err := svc.UnreadCount(ctx, "cred")
	if err != nil {
		t.Fatalf("unread count: %v", err)
	}
	if count != 2 {
		t.Errorf("unread = %d after first mark, want 2", count)
	}

	// Marking the same message again succeeds and changes nothing.
	if err := svc.MarkRead(ctx, "cred", "msg:001"); err != nil {
		t.Fatalf("second mark read: %v", err)
	}
	count, err = svc.UnreadCount(ctx, "cred")
	if err != nil {
		t.Fatalf("unread count: %v", err)
	}
	if count != 2 {
		t.Errorf("unread = %d after repeat mark, want 2", count)
	}
}

func TestMarkRead_UnknownMessage(t *testing.T) {
	svc := NewService(ServiceConfig{Upstream: fixtureClient(fixtureMessages(2))})

	if err := svc.MarkRead(context.Background(), "cred", "msg:999"); !errors.Is(err, ErrMessageNotFound) {
		t.Fatalf("expected ErrMessageNotFound, got %v", err)
	}
	if err := svc.MarkRead(context.Background(), "cred", ""); !errors.Is(err, ErrMessageNotFound) {
		t.Fatalf("expected ErrMessageNotFound for empty id, got %v", err)
	}
}

func TestMarkRead_PreservesCredentialRejection(t *testing.T) {
	client := &upstreamtest.Client{
		MarkMessageReadFunc: func(context.Context, string, string) error {
			return upstream.ErrInvalidCredential
		},
	}
	svc := NewService(ServiceConfig{Upstream: client})

	err := svc.MarkRead(context.Background(), "cred", "msg:001")
	if !errors.Is(err, upstream.ErrInvalidCredential) {
		t.Fatalf("expected wrapped ErrInvalidCredential, got %v", err)
	}
}

func TestUnreadCount_PropagatesFailure(t *testing.T) {
	client := &upstreamtest.Client{
		FetchUnreadCountFunc: func(context.Context, string) (int, error) {
			return 0, &upstream.TransportError{Op: "unread_count", Err: errors.New("timeout")}
		},
	}
	svc := NewService(ServiceConfig{Upstream: client})

	if _, err := svc.UnreadCount(context.Background(), "cred"); err == nil {
		t.Fatal("expected error")
	}
}
