package model

import "time"

// Message size limits enforced before any upstream call.
const (
	MaxSubjectLength = 45
	MaxBodyLength    = 2000
)

// Message represents a message in an identity's inbox.
type Message struct {
	ID       string    `json:"id"`
	SenderID string    `json:"sender_id"`
	Subject  string    `json:"subject"`
	Body     string    `json:"body"`
	SentAt   time.Time `json:"sent_at"`
	Read     bool      `json:"read"`
}

// InboxPage is one page of an inbox plus the total message count,
// which the server reports independently of the page contents.
type InboxPage struct {
	Messages   []Message `json:"messages"`
	TotalCount int       `json:"total_count"`
}
