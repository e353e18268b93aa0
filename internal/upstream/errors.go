package upstream

import (
	"errors"
	"fmt"

	"github.com/campushq/registra/internal/model"
)

// ===== Upstream Errors =====

var (
	// ErrInvalidCredential means the bearer credential was rejected.
	// Callers must treat this as session-fatal and clear local state.
	ErrInvalidCredential = errors.New("upstream: invalid credential")

	// ErrNotFound means the addressed resource does not exist.
	ErrNotFound = errors.New("upstream: not found")

	// ErrConflict means the request collided with existing state,
	// e.g. registering a username that is already taken.
	ErrConflict = errors.New("upstream: conflict")

	// ErrServer means the enrollment API failed on its side (5xx).
	ErrServer = errors.New("upstream: server error")
)

// TransportError wraps a network-level failure: connection refused,
// timeout, cancelled context. The request may or may not have reached
// the server; the gateway never retries automatically.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("upstream: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RejectedError is a 4xx response outside the mapped sentinels, carrying
// the upstream problem detail and any field errors.
type RejectedError struct {
	Op     string
	Status int
	Detail string
	Fields []model.FieldError
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("upstream: %s rejected (status %d): %s", e.Op, e.Status, e.Detail)
}
