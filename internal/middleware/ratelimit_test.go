package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestRateLimiter_AllowUntilExhausted(t *testing.T) {
	limiter := NewRateLimiter(RateLimitConfig{Rate: 3, Burst: 1, Window: time.Hour})
	defer limiter.Stop()

	// rate + burst tokens are available up front.
	for i := 0; i < 4; i++ {
		allowed, _, _ := limiter.Allow("caller")
		if !allowed {
			t.Fatalf("request %d denied before bucket exhausted", i+1)
		}
	}

	allowed, remaining, _ := limiter.Allow("caller")
	if allowed {
		t.Error("request allowed after bucket exhausted")
	}
	if remaining != 0 {
		t.Errorf("remaining = %d, want 0", remaining)
	}

	// A different caller has their own bucket.
	if allowed, _, _ := limiter.Allow("other"); !allowed {
		t.Error("separate caller denied")
	}
}

func TestRateLimit_Returns429WithHeaders(t *testing.T) {
	limiter := NewRateLimiter(RateLimitConfig{Rate: 1, Burst: 1, Window: time.Hour})
	defer limiter.Stop()

	handler := RateLimit(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/messages", nil)
	req.RemoteAddr = "10.0.0.1:1234"

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i+1, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}
	if rec.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Errorf("remaining header = %q", rec.Header().Get("X-RateLimit-Remaining"))
	}
}

func loginAttempt(email, addr string) *http.Request {
	body := `{"email":"` + email + `","password":"guess"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", strings.NewReader(body))
	req.RemoteAddr = addr
	return req
}

func TestRateLimitKeyed_LoginSharesBucketAcrossAddresses(t *testing.T) {
	limiter := NewRateLimiter(RateLimitConfig{Rate: 1, Burst: 1, Window: time.Hour})
	defer limiter.Stop()

	handler := RateLimitKeyed(limiter, LoginEmailKey)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The handler still sees the full body after the key peek.
		body, err := io.ReadAll(r.Body)
		if err != nil || !strings.Contains(string(body), "password") {
			t.Errorf("body not re-buffered for the handler: %q (%v)", body, err)
		}
		w.WriteHeader(http.StatusOK)
	}))

	// Same account hammered from different addresses exhausts one bucket.
	addrs := []string{"10.0.0.1:1111", "10.0.0.2:2222", "10.0.0.3:3333"}
	for i, addr := range addrs {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, loginAttempt("Target@Example.edu", addr))
		if i < 2 && rec.Code != http.StatusOK {
			t.Fatalf("attempt %d status = %d, want 200", i+1, rec.Code)
		}
		if i == 2 && rec.Code != http.StatusTooManyRequests {
			t.Fatalf("attempt %d status = %d, want 429", i+1, rec.Code)
		}
	}

	// A different account is unaffected.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, loginAttempt("other@example.edu", "10.0.0.1:1111"))
	if rec.Code != http.StatusOK {
		t.Errorf("other account status = %d, want 200", rec.Code)
	}
}

func TestLoginEmailKey_FallsBackToAddress(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", strings.NewReader(`{not json`))
	req.RemoteAddr = "10.9.9.9:4242"
	if key := LoginEmailKey(req); key != "10.9.9.9:4242" {
		t.Errorf("key = %q, want the client address", key)
	}

	empty := httptest.NewRequest(http.MethodPost, "/v1/auth/login", strings.NewReader(`{"password":"x"}`))
	empty.RemoteAddr = "10.9.9.9:4242"
	if key := LoginEmailKey(empty); key != "10.9.9.9:4242" {
		t.Errorf("key = %q, want the client address for missing email", key)
	}
}
