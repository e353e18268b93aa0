package handler

import (
	"net/http"
	"unicode/utf8"

	"github.com/campushq/registra/internal/directory"
	"github.com/campushq/registra/internal/middleware"
	"github.com/campushq/registra/internal/model"
	"github.com/campushq/registra/internal/session"
	"github.com/campushq/registra/internal/upstream"
)

// ProfileHandler handles the caller's own identity updates.
type ProfileHandler struct {
	sessions  *session.Store
	upstream  upstream.Client
	directory *directory.Resolver
}

// ProfileHandlerConfig holds profile handler dependencies
type ProfileHandlerConfig struct {
	Sessions  *session.Store
	Upstream  upstream.Client
	Directory *directory.Resolver
}

// NewProfileHandler creates a new profile handler
func NewProfileHandler(cfg ProfileHandlerConfig) *ProfileHandler {
	return &ProfileHandler{
		sessions:  cfg.Sessions,
		upstream:  cfg.Upstream,
		directory: cfg.Directory,
	}
}

type updateProfileRequest struct {
	FirstName *string `json:"firstname,omitempty"`
	LastName  *string `json:"lastname,omitempty"`
	Email     *string `json:"email,omitempty"`
	Password  *string `json:"password,omitempty"`
	Age       *int    `json:"age,omitempty"`
	Phone     *string `json:"phone,omitempty"`
	Address   *string `json:"address,omitempty"`
	Avatar    *string `json:"avatar,omitempty"`
}

func (req *updateProfileRequest) validate() []model.FieldError {
	var fields []model.FieldError
	if req.FirstName != nil && *req.FirstName == "" {
		fields = append(fields, model.FieldError{Field: "firstname", Message: "cannot be empty"})
	}
	if req.LastName != nil && *req.LastName == "" {
		fields = append(fields, model.FieldError{Field: "lastname", Message: "cannot be empty"})
	}
	if req.Email != nil && !emailPattern.MatchString(*req.Email) {
		fields = append(fields, model.FieldError{Field: "email", Message: "must be a valid email address"})
	}
	if req.Password != nil && utf8.RuneCountInString(*req.Password) < 8 {
		fields = append(fields, model.FieldError{Field: "password", Message: "must be at least 8 characters"})
	}
	if req.Age != nil && (*req.Age < 16 || *req.Age > 120) {
		fields = append(fields, model.FieldError{Field: "age", Message: "must be between 16 and 120"})
	}
	if req.Avatar != nil {
		if fieldErr := validateAvatar(*req.Avatar); fieldErr != nil {
			fields = append(fields, *fieldErr)
		}
	}
	return fields
}

type updateProfileResponse struct {
	Identity     model.Identity `json:"identity"`
	ReauthNeeded bool           `json:"reauth_required"`
}

// Update handles PATCH /v1/profile. Non-credential edits refresh the
// stored identity in place and the session survives. Changing email or
// password invalidates the upstream credential, so the session is
// cleared and the caller must sign in again.
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSession(r.Context())
	token := middleware.GetSessionToken(r.Context())
	if sess == nil {
		WriteError(w, model.NewUnauthorizedError("not authenticated"))
		return
	}

	var req updateProfileRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, model.NewBadRequestError("Invalid request body: "+err.Error()))
		return
	}
	if fields := req.validate(); len(fields) > 0 {
		WriteError(w, model.NewValidationError(fields))
		return
	}

	update := upstream.IdentityUpdate{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
		Age:       req.Age,
		Phone:     req.Phone,
		Address:   req.Address,
		Avatar:    req.Avatar,
	}

	identity, err := h.upstream.UpdateIdentity(r.Context(), sess.Credential, update)
	if err != nil {
		writeTaxonomyError(w, r, h.sessions, err)
		return
	}

	// Display data may be cached from earlier inbox renders.
	h.directory.Invalidate(identity.ID)

	if update.CredentialAffecting() {
		h.sessions.Logout(r.Context(), token)
		WriteData(w, http.StatusOK, updateProfileResponse{Identity: *identity, ReauthNeeded: true})
		return
	}

	refreshed, err := h.sessions.RefreshIdentity(r.Context(), token)
	if err != nil {
		writeTaxonomyError(w, r, h.sessions, err)
		return
	}

	WriteData(w, http.StatusOK, updateProfileResponse{Identity: refreshed.Identity, ReauthNeeded: false})
}
