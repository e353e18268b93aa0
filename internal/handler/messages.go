package handler

import (
	"net/http"
	"strconv"

	"github.com/campushq/registra/internal/composer"
	"github.com/campushq/registra/internal/directory"
	"github.com/campushq/registra/internal/inbox"
	"github.com/campushq/registra/internal/middleware"
	"github.com/campushq/registra/internal/model"
	"github.com/campushq/registra/internal/session"
)

// MessagesHandler handles inbox and send endpoints.
type MessagesHandler struct {
	inbox     *inbox.Service
	composer  *composer.Service
	directory *directory.Resolver
	sessions  *session.Store
}

// MessagesHandlerConfig holds messages handler dependencies
type MessagesHandlerConfig struct {
	Inbox     *inbox.Service
	Composer  *composer.Service
	Directory *directory.Resolver
	Sessions  *session.Store
}

// NewMessagesHandler creates a new messages handler
func NewMessagesHandler(cfg MessagesHandlerConfig) *MessagesHandler {
	return &MessagesHandler{
		inbox:     cfg.Inbox,
		composer:  cfg.Composer,
		directory: cfg.Directory,
		sessions:  cfg.Sessions,
	}
}

type inboxResponse struct {
	Messages []model.Message           `json:"messages"`
	Senders  map[string]senderResponse `json:"senders"`
}

type senderResponse struct {
	ID     string       `json:"id"`
	Name   string       `json:"name"`
	Email  string       `json:"email"`
	Roles  []model.Role `json:"roles"`
	Avatar *string      `json:"avatar,omitempty"`
}

// List handles GET /v1/messages. The browser's page parameter is
// 1-based; the inbox service and the upstream API count pages from 0.
// Sender identities for the page resolve in one parallel batch; ids
// that fail to resolve are absent from the senders map and the console
// falls back to showing the raw id.
func (h *MessagesHandler) List(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSession(r.Context())

	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("page_size"))
	if page < 1 {
		page = 1
	}

	result, err := h.inbox.FetchPage(r.Context(), sess.Credential, page-1, pageSize)
	if err != nil {
		writeTaxonomyError(w, r, h.sessions, err)
		return
	}

	senderIDs := make([]string, 0, len(result.Messages))
	for _, message := range result.Messages {
		senderIDs = append(senderIDs, message.SenderID)
	}
	resolved := h.directory.Resolve(r.Context(), sess.Credential, senderIDs)

	senders := make(map[string]senderResponse, len(resolved))
	for id, identity := range resolved {
		senders[id] = senderResponse{
			ID:     identity.ID,
			Name:   identity.FullName(),
			Email:  identity.Email,
			Roles:  identity.Roles,
			Avatar: identity.Avatar,
		}
	}

	if pageSize <= 0 {
		pageSize = inbox.DefaultPageSize
	}
	WriteCollection(w, http.StatusOK, inboxResponse{
		Messages: result.Messages,
		Senders:  senders,
	}, &PaginationInfo{
		Page:       page,
		PageSize:   pageSize,
		TotalCount: result.TotalCount,
	})
}

type markReadResponse struct {
	UnreadCount int `json:"unread_count"`
}

// MarkRead handles POST /v1/messages/{messageId}/read. The operation is
// idempotent; the response carries a fresh server-side unread count so
// the badge reconciles without a second round trip.
func (h *MessagesHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSession(r.Context())

	messageID := r.PathValue("messageId")
	if messageID == "" {
		WriteError(w, model.NewBadRequestError("messageId is required"))
		return
	}

	if err := h.inbox.MarkRead(r.Context(), sess.Credential, messageID); err != nil {
		writeTaxonomyError(w, r, h.sessions, err)
		return
	}

	count, err := h.inbox.UnreadCount(r.Context(), sess.Credential)
	if err != nil {
		writeTaxonomyError(w, r, h.sessions, err)
		return
	}

	WriteData(w, http.StatusOK, markReadResponse{UnreadCount: count})
}

// UnreadCount handles GET /v1/messages/unread-count
func (h *MessagesHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSession(r.Context())

	count, err := h.inbox.UnreadCount(r.Context(), sess.Credential)
	if err != nil {
		writeTaxonomyError(w, r, h.sessions, err)
		return
	}

	WriteData(w, http.StatusOK, markReadResponse{UnreadCount: count})
}

type sendTargetRequest struct {
	Type        string `json:"type"`
	RecipientID string `json:"recipient_id,omitempty"`
	Role        string `json:"role,omitempty"`
}

type sendRequest struct {
	Target  sendTargetRequest `json:"target"`
	Subject string            `json:"subject"`
	Body    string            `json:"body"`
}

// Send handles POST /v1/messages
func (h *MessagesHandler) Send(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSession(r.Context())

	var req sendRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, model.NewBadRequestError("Invalid request body: "+err.Error()))
		return
	}

	var target composer.SendTarget
	switch req.Target.Type {
	case "recipient":
		target = composer.SingleRecipient(req.Target.RecipientID)
	case "role":
		target = composer.RoleBroadcast(req.Target.Role)
	default:
		WriteError(w, model.NewBadRequestError("target.type must be 'recipient' or 'role'"))
		return
	}

	report, err := h.composer.Send(r.Context(), sess.Credential, target, req.Subject, req.Body)
	if err != nil {
		writeTaxonomyError(w, r, h.sessions, err)
		return
	}

	// Partial broadcast failure is still a completed request: the report
	// says who got the message and who did not.
	status := http.StatusOK
	if len(report.Failed) > 0 {
		status = http.StatusMultiStatus
	}
	WriteData(w, status, report)
}
