package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/campushq/registra/internal/model"
	"github.com/campushq/registra/internal/session"
	"github.com/campushq/registra/internal/view"
)

// SessionStore is the session lookup surface the middleware needs.
type SessionStore interface {
	Restore(ctx context.Context, token string) (*session.Session, error)
}

// SessionKey is the context key for the restored session
const SessionKey contextKey = "session"

// SessionTokenKey is the context key for the raw gateway session token
const SessionTokenKey contextKey = "sessionToken"

// Auth returns a middleware that restores the session for the bearer
// token. Requests without a restorable session get a 401; there is no
// partially authenticated state.
func Auth(store SessionStore) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				model.NewUnauthorizedError("missing or malformed authorization header").WriteJSON(w)
				return
			}

			sess, err := store.Restore(r.Context(), token)
			if err != nil {
				model.NewUnauthorizedError("session expired or invalid").WriteJSON(w)
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, sess.Identity.ID)
			ctx = context.WithValue(ctx, SessionKey, sess)
			ctx = context.WithValue(ctx, SessionTokenKey, token)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireVisible gates a route on the affordance policy. It must run
// after Auth. Hidden affordances return 403; the upstream API still
// enforces authorization on its side.
func RequireVisible(policy *view.Policy, affordance string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := GetSession(r.Context())
			if sess == nil {
				model.NewUnauthorizedError("authentication required").WriteJSON(w)
				return
			}
			if !policy.IsVisible(affordance, &sess.Identity) {
				model.NewForbiddenError("this action is not available to your role").WriteJSON(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetSession extracts the restored session from context.
func GetSession(ctx context.Context) *session.Session {
	if sess, ok := ctx.Value(SessionKey).(*session.Session); ok {
		return sess
	}
	return nil
}

// GetSessionToken extracts the raw gateway session token from context.
func GetSessionToken(ctx context.Context) string {
	if token, ok := ctx.Value(SessionTokenKey).(string); ok {
		return token
	}
	return ""
}

// GetUserID extracts the authenticated identity id from context.
func GetUserID(ctx context.Context) string {
	if id, ok := ctx.Value(UserIDKey).(string); ok {
		return id
	}
	return ""
}

// bearerToken extracts the token from an Authorization: Bearer header.
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
