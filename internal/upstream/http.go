package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/campushq/registra/internal/metrics"
	"github.com/campushq/registra/internal/model"
)

// HTTPClientConfig holds the settings for the enrollment API client.
type HTTPClientConfig struct {
	BaseURL string
	Timeout time.Duration // per-call deadline, applied on top of caller contexts
	Rate    int           // outbound calls per second, 0 disables throttling
	Burst   int
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// HTTPClient talks to the enrollment API over HTTP with bearer credentials.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	limiter *rate.Limiter
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewHTTPClient creates a client for the enrollment API.
func NewHTTPClient(cfg HTTPClientConfig) *HTTPClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	var limiter *rate.Limiter
	if cfg.Rate > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = cfg.Rate
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.Rate), burst)
	}

	return &HTTPClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
		timeout: cfg.Timeout,
		limiter: limiter,
		metrics: cfg.Metrics,
		logger:  cfg.Logger.With(slog.String("component", "upstream")),
	}
}

func (c *HTTPClient) Authenticate(ctx context.Context, email, password string) (*AuthResult, error) {
	body := map[string]string{"email": email, "password": password}
	var result AuthResult
	if err := c.do(ctx, call{op: "authenticate", method: http.MethodPost, path: "/v1/auth/token", body: body}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *HTTPClient) Register(ctx context.Context, req RegisterRequest) (*model.Identity, error) {
	var identity model.Identity
	if err := c.do(ctx, call{op: "register", method: http.MethodPost, path: "/v1/identities", body: req}, &identity); err != nil {
		return nil, err
	}
	return &identity, nil
}

func (c *HTTPClient) UpdateIdentity(ctx context.Context, cred string, update IdentityUpdate) (*model.Identity, error) {
	var identity model.Identity
	if err := c.do(ctx, call{op: "update_identity", method: http.MethodPatch, path: "/v1/identities/me", cred: cred, body: update}, &identity); err != nil {
		return nil, err
	}
	return &identity, nil
}

func (c *HTTPClient) FetchInbox(ctx context.Context, cred string, pageIndex, pageSize int) (*model.InboxPage, error) {
	q := url.Values{}
	q.Set("page_index", strconv.Itoa(pageIndex))
	q.Set("page_size", strconv.Itoa(pageSize))

	var page model.InboxPage
	if err := c.do(ctx, call{op: "fetch_inbox", method: http.MethodGet, path: "/v1/inbox?" + q.Encode(), cred: cred}, &page); err != nil {
		return nil, err
	}
	if page.Messages == nil {
		page.Messages = []model.Message{}
	}
	return &page, nil
}

func (c *HTTPClient) FetchUnreadCount(ctx context.Context, cred string) (int, error) {
	var result struct {
		UnreadCount int `json:"unread_count"`
	}
	if err := c.do(ctx, call{op: "fetch_unread_count", method: http.MethodGet, path: "/v1/inbox/unread-count", cred: cred}, &result); err != nil {
		return 0, err
	}
	return result.UnreadCount, nil
}

func (c *HTTPClient) MarkMessageRead(ctx context.Context, cred, messageID string) error {
	path := "/v1/inbox/" + url.PathEscape(messageID) + "/read"
	return c.do(ctx, call{op: "mark_read", method: http.MethodPost, path: path, cred: cred}, nil)
}

func (c *HTTPClient) SendMessage(ctx context.Context, cred string, req SendRequest) error {
	return c.do(ctx, call{
		op:             "send_message",
		method:         http.MethodPost,
		path:           "/v1/messages",
		cred:           cred,
		body:           req,
		idempotencyKey: req.IdempotencyKey,
	}, nil)
}

func (c *HTTPClient) LookupIdentity(ctx context.Context, cred, identityID string) (*model.Identity, error) {
	var identity model.Identity
	path := "/v1/identities/" + url.PathEscape(identityID)
	if err := c.do(ctx, call{op: "lookup_identity", method: http.MethodGet, path: path, cred: cred}, &identity); err != nil {
		return nil, err
	}
	return &identity, nil
}

func (c *HTTPClient) ListIdentities(ctx context.Context, cred, searchTerm string) ([]model.Identity, error) {
	path := "/v1/identities"
	if searchTerm != "" {
		path += "?search=" + url.QueryEscape(searchTerm)
	}
	var result struct {
		Identities []model.Identity `json:"identities"`
	}
	if err := c.do(ctx, call{op: "list_identities", method: http.MethodGet, path: path, cred: cred}, &result); err != nil {
		return nil, err
	}
	return result.Identities, nil
}

func (c *HTTPClient) ListRoles(ctx context.Context, cred string) ([]RoleInfo, error) {
	var result struct {
		Roles []RoleInfo `json:"roles"`
	}
	if err := c.do(ctx, call{op: "list_roles", method: http.MethodGet, path: "/v1/roles", cred: cred}, &result); err != nil {
		return nil, err
	}
	return result.Roles, nil
}

type call struct {
	op             string
	method         string
	path           string
	cred           string
	body           interface{}
	idempotencyKey string
}

// do executes one upstream call: throttle, deadline, encode, classify.
// out may be nil for calls whose response body is discarded.
func (c *HTTPClient) do(ctx context.Context, cl call, out interface{}) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return &TransportError{Op: cl.op, Err: err}
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reqBody io.Reader
	if cl.body != nil {
		buf, err := json.Marshal(cl.body)
		if err != nil {
			return fmt.Errorf("upstream: %s: encode request: %w", cl.op, err)
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, c.baseURL+cl.path, reqBody)
	if err != nil {
		return fmt.Errorf("upstream: %s: build request: %w", cl.op, err)
	}
	if cl.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cl.cred != "" {
		req.Header.Set("Authorization", "Bearer "+cl.cred)
	}
	if cl.idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", cl.idempotencyKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	duration := time.Since(start)
	if c.metrics != nil {
		c.metrics.UpstreamDuration.WithLabelValues(cl.op).Observe(duration.Seconds())
	}
	if err != nil {
		c.observe(cl.op, "network_error")
		return &TransportError{Op: cl.op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		err := c.classify(cl.op, resp)
		c.logger.DebugContext(ctx, "upstream call failed",
			slog.String("op", cl.op),
			slog.Int("status", resp.StatusCode),
			slog.Duration("duration", duration),
		)
		return err
	}

	c.observe(cl.op, "ok")
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: %s: decode response: %v", ErrServer, cl.op, err)
		}
	}
	return nil
}

func (c *HTTPClient) observe(op, outcome string) {
	if c.metrics != nil {
		c.metrics.UpstreamRequests.WithLabelValues(op, outcome).Inc()
	}
}

// classify maps an error response onto the upstream error taxonomy.
// Problem bodies follow RFC 9457; a missing or malformed body still maps
// by status code alone.
func (c *HTTPClient) classify(op string, resp *http.Response) error {
	var problem model.ProblemDetails
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&problem)

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		c.observe(op, "invalid_credential")
		return ErrInvalidCredential
	case resp.StatusCode == http.StatusNotFound:
		c.observe(op, "not_found")
		return ErrNotFound
	case resp.StatusCode == http.StatusConflict:
		c.observe(op, "conflict")
		if problem.Detail != "" {
			return fmt.Errorf("%w: %s", ErrConflict, problem.Detail)
		}
		return ErrConflict
	case resp.StatusCode >= 500:
		c.observe(op, "server_error")
		if problem.Detail != "" {
			return fmt.Errorf("%w: %s (status %d)", ErrServer, problem.Detail, resp.StatusCode)
		}
		return fmt.Errorf("%w: status %d", ErrServer, resp.StatusCode)
	default:
		c.observe(op, "rejected")
		detail := problem.Detail
		if detail == "" {
			detail = http.StatusText(resp.StatusCode)
		}
		return &RejectedError{Op: op, Status: resp.StatusCode, Detail: detail, Fields: problem.Errors}
	}
}
