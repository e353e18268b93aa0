package handler

import (
	"net/http"

	"github.com/campushq/registra/internal/directory"
	"github.com/campushq/registra/internal/middleware"
	"github.com/campushq/registra/internal/model"
	"github.com/campushq/registra/internal/session"
	"github.com/campushq/registra/internal/upstream"
)

// DirectoryHandler handles identity search and the role catalog.
type DirectoryHandler struct {
	upstream  upstream.Client
	directory *directory.Resolver
	sessions  *session.Store
}

// DirectoryHandlerConfig holds directory handler dependencies
type DirectoryHandlerConfig struct {
	Upstream  upstream.Client
	Directory *directory.Resolver
	Sessions  *session.Store
}

// NewDirectoryHandler creates a new directory handler
func NewDirectoryHandler(cfg DirectoryHandlerConfig) *DirectoryHandler {
	return &DirectoryHandler{
		upstream:  cfg.Upstream,
		directory: cfg.Directory,
		sessions:  cfg.Sessions,
	}
}

// List handles GET /v1/directory/identities. The search term is passed
// through to the enrollment API; an empty term lists everyone.
func (h *DirectoryHandler) List(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSession(r.Context())

	identities, err := h.upstream.ListIdentities(r.Context(), sess.Credential, r.URL.Query().Get("search"))
	if err != nil {
		writeTaxonomyError(w, r, h.sessions, err)
		return
	}
	if identities == nil {
		identities = []model.Identity{}
	}

	WriteData(w, http.StatusOK, identities)
}

// Get handles GET /v1/directory/identities/{identityId}
func (h *DirectoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSession(r.Context())

	identityID := r.PathValue("identityId")
	if identityID == "" {
		WriteError(w, model.NewBadRequestError("identityId is required"))
		return
	}

	// A direct lookup is a foreground operation: unlike the resolver's
	// background batches, failures here surface to the caller.
	identity, err := h.upstream.LookupIdentity(r.Context(), sess.Credential, identityID)
	if err != nil {
		writeTaxonomyError(w, r, h.sessions, err)
		return
	}

	WriteData(w, http.StatusOK, identity)
}

// Roles handles GET /v1/directory/roles
func (h *DirectoryHandler) Roles(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSession(r.Context())

	roles, err := h.upstream.ListRoles(r.Context(), sess.Credential)
	if err != nil {
		writeTaxonomyError(w, r, h.sessions, err)
		return
	}
	if roles == nil {
		roles = []upstream.RoleInfo{}
	}

	WriteData(w, http.StatusOK, roles)
}
