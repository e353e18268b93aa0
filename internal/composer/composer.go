// Package composer sends messages to a single recipient or to every
// member of a role. Input limits are enforced before any network call;
// role broadcasts fan out as independent per-member sends whose partial
// failures are reported, never rolled back.
package composer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/campushq/registra/internal/metrics"
	"github.com/campushq/registra/internal/model"
	"github.com/campushq/registra/internal/upstream"
)

// ===== Composer Errors =====

var (
	// ErrInvalidTarget means the send target is the zero value or names
	// an empty recipient or role.
	ErrInvalidTarget = errors.New("composer: invalid send target")

	// ErrRecipientNotFound means the single recipient does not exist.
	ErrRecipientNotFound = errors.New("composer: recipient not found")

	// ErrRoleNotFound means the broadcast role is not in the catalog.
	ErrRoleNotFound = errors.New("composer: role not found")
)

// ValidationError reports an input limit violation, raised before any
// upstream call is made.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("composer: %s %s", e.Field, e.Message)
}

// Failure is one recipient a broadcast could not deliver to.
type Failure struct {
	RecipientID string `json:"recipient_id"`
	Reason      string `json:"reason"`
}

// Report is the per-recipient outcome of a send. For a single-recipient
// send it contains exactly one entry; for a broadcast, one entry per
// member of the role at send time.
type Report struct {
	Attempted int       `json:"attempted"`
	Delivered []string  `json:"delivered"`
	Failed    []Failure `json:"failed"`
}

// ServiceConfig holds composer dependencies.
type ServiceConfig struct {
	Upstream    upstream.Client
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
	Concurrency int // max in-flight sends per broadcast, default 8
}

// Service validates and dispatches message sends.
type Service struct {
	upstream    upstream.Client
	metrics     *metrics.Metrics
	logger      *slog.Logger
	concurrency int
}

// NewService creates a composer service.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	return &Service{
		upstream:    cfg.Upstream,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger.With(slog.String("component", "composer")),
		concurrency: cfg.Concurrency,
	}
}

// Send validates the message and dispatches it to the target. Subject
// and body limits are checked first; a message that fails validation
// never reaches the network. Each delivery attempt carries its own
// idempotency key so a retried broadcast does not double-deliver.
func (s *Service) Send(ctx context.Context, cred string, target SendTarget, subject, body string) (*Report, error) {
	if err := validateMessage(subject, body); err != nil {
		return nil, err
	}

	switch target.kind {
	case targetSingle:
		if target.recipientID == "" {
			return nil, ErrInvalidTarget
		}
		return s.sendSingle(ctx, cred, target.recipientID, subject, body)
	case targetRole:
		if target.roleName == "" {
			return nil, ErrInvalidTarget
		}
		return s.sendBroadcast(ctx, cred, target.roleName, subject, body)
	default:
		return nil, ErrInvalidTarget
	}
}

func (s *Service) sendSingle(ctx context.Context, cred, recipientID, subject, body string) (*Report, error) {
	// Resolve the recipient before sending so an unknown id surfaces as
	// a validation-style failure, not a delivery failure.
	if _, err := s.upstream.LookupIdentity(ctx, cred, recipientID); err != nil {
		if errors.Is(err, upstream.ErrNotFound) {
			return nil, ErrRecipientNotFound
		}
		return nil, err
	}

	err := s.upstream.SendMessage(ctx, cred, upstream.SendRequest{
		RecipientID:    recipientID,
		Subject:        subject,
		Body:           body,
		IdempotencyKey: uuid.New().String(),
	})
	if err != nil {
		return nil, err
	}

	return &Report{
		Attempted: 1,
		Delivered: []string{recipientID},
		Failed:    []Failure{},
	}, nil
}

// sendBroadcast resolves the role membership once, then issues one
// independent send per member. A failed member does not stop the rest
// and nothing is retried or rolled back.
func (s *Service) sendBroadcast(ctx context.Context, cred, roleName, subject, body string) (*Report, error) {
	members, err := s.roleMembers(ctx, cred, roleName)
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.BroadcastFanout.Observe(float64(len(members)))
	}

	report := &Report{
		Attempted: len(members),
		Delivered: []string{},
		Failed:    []Failure{},
	}
	if len(members) == 0 {
		return report, nil
	}

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		sem = make(chan struct{}, s.concurrency)
	)
	for _, member := range members {
		wg.Add(1)
		go func(recipientID string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			err := s.upstream.SendMessage(ctx, cred, upstream.SendRequest{
				RecipientID:    recipientID,
				Subject:        subject,
				Body:           body,
				IdempotencyKey: uuid.New().String(),
			})

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed = append(report.Failed, Failure{
					RecipientID: recipientID,
					Reason:      err.Error(),
				})
				return
			}
			report.Delivered = append(report.Delivered, recipientID)
		}(member)
	}
	wg.Wait()

	s.logger.InfoContext(ctx, "broadcast completed",
		slog.String("role", roleName),
		slog.Int("attempted", report.Attempted),
		slog.Int("delivered", len(report.Delivered)),
		slog.Int("failed", len(report.Failed)),
	)
	return report, nil
}

// roleMembers snapshots the current membership of a role. The sender is
// not excluded: a broadcaster who holds the role receives their own copy.
func (s *Service) roleMembers(ctx context.Context, cred, roleName string) ([]string, error) {
	roles, err := s.upstream.ListRoles(ctx, cred)
	if err != nil {
		return nil, err
	}
	known := false
	for _, role := range roles {
		if role.Name == roleName {
			known = true
			break
		}
	}
	if !known {
		return nil, ErrRoleNotFound
	}

	identities, err := s.upstream.ListIdentities(ctx, cred, "")
	if err != nil {
		return nil, err
	}

	var members []string
	for _, identity := range identities {
		if identity.HasRole(model.Role(roleName)) {
			members = append(members, identity.ID)
		}
	}
	return members, nil
}

func validateMessage(subject, body string) error {
	if strings.TrimSpace(subject) == "" {
		return &ValidationError{Field: "subject", Message: "is required"}
	}
	if utf8.RuneCountInString(subject) > model.MaxSubjectLength {
		return &ValidationError{
			Field:   "subject",
			Message: fmt.Sprintf("must be at most %d characters", model.MaxSubjectLength),
		}
	}
	if strings.TrimSpace(body) == "" {
		return &ValidationError{Field: "body", Message: "is required"}
	}
	if utf8.RuneCountInString(body) > model.MaxBodyLength {
		return &ValidationError{
			Field:   "body",
			Message: fmt.Sprintf("must be at most %d characters", model.MaxBodyLength),
		}
	}
	return nil
}
