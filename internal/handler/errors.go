package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/campushq/registra/internal/composer"
	"github.com/campushq/registra/internal/inbox"
	"github.com/campushq/registra/internal/middleware"
	"github.com/campushq/registra/internal/model"
	"github.com/campushq/registra/internal/session"
	"github.com/campushq/registra/internal/upstream"
)

// SessionInvalidator clears a session whose credential was rejected.
type SessionInvalidator interface {
	Invalidate(ctx context.Context, token string)
}

// writeTaxonomyError maps a domain error onto the response taxonomy.
// Credential rejection is session-fatal: the stored session is cleared
// before the 401 goes out, so the next restore finds nothing.
func writeTaxonomyError(w http.ResponseWriter, r *http.Request, sessions SessionInvalidator, err error) {
	var (
		validationErr *composer.ValidationError
		rejectedErr   *upstream.RejectedError
		transportErr  *upstream.TransportError
	)

	switch {
	case errors.Is(err, upstream.ErrInvalidCredential):
		if token := middleware.GetSessionToken(r.Context()); token != "" && sessions != nil {
			sessions.Invalidate(r.Context(), token)
		}
		WriteError(w, model.NewUnauthorizedError("credential rejected, please sign in again"))

	case errors.Is(err, session.ErrNotAuthenticated):
		WriteError(w, model.NewUnauthorizedError("not authenticated"))

	case errors.Is(err, session.ErrMissingCredentials):
		WriteError(w, model.NewValidationError([]model.FieldError{
			{Field: "email", Message: "email and password are required"},
		}))

	case errors.As(err, &validationErr):
		WriteError(w, model.NewValidationError([]model.FieldError{
			{Field: validationErr.Field, Message: validationErr.Message},
		}))

	case errors.Is(err, composer.ErrInvalidTarget):
		WriteError(w, model.NewBadRequestError("send target must name a recipient or a role"))

	case errors.Is(err, composer.ErrRecipientNotFound):
		WriteError(w, model.NewNotFoundError("Recipient"))

	case errors.Is(err, composer.ErrRoleNotFound):
		WriteError(w, model.NewNotFoundError("Role"))

	case errors.Is(err, inbox.ErrMessageNotFound):
		WriteError(w, model.NewNotFoundError("Message"))

	case errors.Is(err, upstream.ErrNotFound):
		WriteError(w, model.NewNotFoundError("Resource"))

	case errors.Is(err, upstream.ErrConflict):
		WriteError(w, model.NewConflictError(err.Error()))

	case errors.As(err, &rejectedErr):
		if len(rejectedErr.Fields) > 0 {
			WriteError(w, model.NewValidationError(rejectedErr.Fields))
			return
		}
		WriteError(w, model.NewBadRequestError(rejectedErr.Detail))

	case errors.As(err, &transportErr):
		WriteError(w, model.NewUpstreamError("could not reach the enrollment service"))

	case errors.Is(err, upstream.ErrServer):
		WriteError(w, model.NewUpstreamError("the enrollment service reported an error"))

	default:
		WriteError(w, model.NewInternalError(""))
	}
}
