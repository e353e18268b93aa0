package handler

import (
	"encoding/base64"
	"net/http"
	"regexp"
	"time"

	"github.com/campushq/registra/internal/middleware"
	"github.com/campushq/registra/internal/model"
	"github.com/campushq/registra/internal/session"
	"github.com/campushq/registra/internal/upstream"
	"github.com/campushq/registra/internal/view"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// maxAvatarBytes caps the decoded size of an uploaded avatar image.
const maxAvatarBytes = 1 << 20

// validateAvatar checks that an avatar payload is well-formed base64 and
// within the size cap. An empty string clears the avatar and is allowed.
func validateAvatar(avatar string) *model.FieldError {
	if avatar == "" {
		return nil
	}
	decoded, err := base64.StdEncoding.DecodeString(avatar)
	if err != nil {
		return &model.FieldError{Field: "avatar", Message: "must be base64-encoded image data"}
	}
	if len(decoded) > maxAvatarBytes {
		return &model.FieldError{Field: "avatar", Message: "must be at most 1 MiB decoded"}
	}
	return nil
}

// AuthHandler handles login, registration, and session endpoints.
type AuthHandler struct {
	sessions *session.Store
	upstream upstream.Client
	policy   *view.Policy
}

// AuthHandlerConfig holds auth handler dependencies
type AuthHandlerConfig struct {
	Sessions *session.Store
	Upstream upstream.Client
	Policy   *view.Policy
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(cfg AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		sessions: cfg.Sessions,
		upstream: cfg.Upstream,
		policy:   cfg.Policy,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token       string         `json:"token,omitempty"`
	Identity    model.Identity `json:"identity"`
	ExpiresAt   time.Time      `json:"expires_at"`
	Affordances []string       `json:"affordances"`
}

func (h *AuthHandler) toSessionResponse(sess *session.Session) sessionResponse {
	return sessionResponse{
		Token:       sess.Token,
		Identity:    sess.Identity,
		ExpiresAt:   sess.ExpiresAt,
		Affordances: h.policy.Affordances(&sess.Identity),
	}
}

// Login handles POST /v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, model.NewBadRequestError("Invalid request body: "+err.Error()))
		return
	}

	sess, err := h.sessions.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		// A rejected login is not a session to invalidate; answer 401
		// without touching stored state.
		writeTaxonomyError(w, r, nil, err)
		return
	}

	WriteData(w, http.StatusOK, h.toSessionResponse(sess))
}

type registerRequest struct {
	Email     string  `json:"email"`
	Password  string  `json:"password"`
	FirstName string  `json:"firstname"`
	LastName  string  `json:"lastname"`
	Age       *int    `json:"age,omitempty"`
	Phone     *string `json:"phone,omitempty"`
	Address   *string `json:"address,omitempty"`
	Avatar    *string `json:"avatar,omitempty"`
}

func (req *registerRequest) validate() []model.FieldError {
	var fields []model.FieldError
	if !emailPattern.MatchString(req.Email) {
		fields = append(fields, model.FieldError{Field: "email", Message: "must be a valid email address"})
	}
	if len(req.Password) < 8 {
		fields = append(fields, model.FieldError{Field: "password", Message: "must be at least 8 characters"})
	}
	if len(req.Password) > 128 {
		fields = append(fields, model.FieldError{Field: "password", Message: "must be at most 128 characters"})
	}
	if req.FirstName == "" {
		fields = append(fields, model.FieldError{Field: "firstname", Message: "is required"})
	}
	if req.LastName == "" {
		fields = append(fields, model.FieldError{Field: "lastname", Message: "is required"})
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

// Register handles POST /v1/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, model.NewBadRequestError("Invalid request body: "+err.Error()))
		return
	}

	if fields := req.validate(); len(fields) > 0 {
		WriteError(w, model.NewValidationError(fields))
		return
	}

	identity, err := h.upstream.Register(r.Context(), upstream.RegisterRequest{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Age:       req.Age,
		Phone:     req.Phone,
		Address:   req.Address,
		Avatar:    req.Avatar,
	})
	if err != nil {
		writeTaxonomyError(w, r, nil, err)
		return
	}

	WriteData(w, http.StatusCreated, identity)
}

// Logout handles POST /v1/auth/logout. Logout always succeeds: even if
// clearing persisted state fails, the caller ends up unauthenticated.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Logout(r.Context(), middleware.GetSessionToken(r.Context()))
	WriteNoContent(w)
}

// Session handles GET /v1/auth/session, restoring the current session.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSession(r.Context())
	if sess == nil {
		WriteError(w, model.NewUnauthorizedError("not authenticated"))
		return
	}

	resp := h.toSessionResponse(sess)
	resp.Token = "" // the browser already holds it
	WriteData(w, http.StatusOK, resp)
}

// Affordances handles GET /v1/affordances
func (h *AuthHandler) Affordances(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSession(r.Context())
	if sess == nil {
		WriteError(w, model.NewUnauthorizedError("not authenticated"))
		return
	}
	WriteData(w, http.StatusOK, h.policy.Affordances(&sess.Identity))
}
