package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/campushq/registra/internal/model"
)

// RateLimiter is a token bucket limiter keyed by an arbitrary string.
// Each key gets rate tokens per window plus a burst allowance; idle
// buckets are swept periodically so the map does not grow without bound.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket

	rate   int
	window time.Duration
	burst  int

	sweepEvery time.Duration
	done       chan struct{}
}

type bucket struct {
	tokens   int
	refilled time.Time
}

// RateLimitConfig holds rate limiter settings. Zero values fall back to
// 100 requests per minute with a burst of 20, swept every 5 minutes.
type RateLimitConfig struct {
	Rate    int
	Window  time.Duration
	Burst   int
	Cleanup time.Duration
}

// NewRateLimiter creates a rate limiter and starts its sweep goroutine.
// Call Stop when the limiter is no longer needed.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.Rate == 0 {
		cfg.Rate = 100
	}
	if cfg.Window == 0 {
		cfg.Window = time.Minute
	}
	if cfg.Burst == 0 {
		cfg.Burst = 20
	}
	if cfg.Cleanup == 0 {
		cfg.Cleanup = 5 * time.Minute
	}

	rl := &RateLimiter{
		buckets:    make(map[string]*bucket),
		rate:       cfg.Rate,
		window:     cfg.Window,
		burst:      cfg.Burst,
		sweepEvery: cfg.Cleanup,
		done:       make(chan struct{}),
	}
	go rl.sweep()
	return rl
}

// Stop terminates the sweep goroutine.
func (rl *RateLimiter) Stop() {
	close(rl.done)
}

func (rl *RateLimiter) sweep() {
	ticker := time.NewTicker(rl.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cutoff := time.Now().Add(-2 * rl.window)
			rl.mu.Lock()
			for key, b := range rl.buckets {
				if b.refilled.Before(cutoff) {
					delete(rl.buckets, key)
				}
			}
			rl.mu.Unlock()
		case <-rl.done:
			return
		}
	}
}

// Allow consumes one token for the key. It reports whether the request
// may proceed, how many tokens remain, and when the bucket next refills.
func (rl *RateLimiter) Allow(key string) (allowed bool, remaining int, reset time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	capacity := rl.rate + rl.burst

	b, ok := rl.buckets[key]
	if !ok {
		// First sighting: full capacity minus the token this request spends.
		b = &bucket{tokens: capacity - 1, refilled: now}
		rl.buckets[key] = b
		return true, b.tokens, now.Add(rl.window)
	}

	elapsed := now.Sub(b.refilled)
	if elapsed >= rl.window {
		b.tokens = capacity
		b.refilled = now
	} else if earned := int(float64(rl.rate) * (float64(elapsed) / float64(rl.window))); earned > 0 {
		b.tokens = min(b.tokens+earned, capacity)
		b.refilled = now
	}

	reset = b.refilled.Add(rl.window)
	if b.tokens == 0 {
		return false, 0, reset
	}
	b.tokens--
	return true, b.tokens, reset
}

// KeyFunc derives the rate limit key for a request.
type KeyFunc func(*http.Request) string

// CallerKey keys by the authenticated caller, falling back to the
// client address before authentication.
func CallerKey(r *http.Request) string {
	if id := GetUserID(r.Context()); id != "" {
		return id
	}
	return r.RemoteAddr
}

// loginKeyBodyLimit caps how much of a login body is read for keying.
const loginKeyBodyLimit = 4 << 10

// LoginEmailKey keys login attempts by the submitted email, so guessing
// one account's password from many addresses burns a single bucket. The
// body is re-buffered for the handler. Requests without a readable email
// fall back to the client address.
func LoginEmailKey(r *http.Request) string {
	if r.Body == nil {
		return r.RemoteAddr
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, loginKeyBodyLimit))
	if err != nil {
		return r.RemoteAddr
	}
	r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(body), r.Body))

	var creds struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(body, &creds); err != nil || creds.Email == "" {
		return r.RemoteAddr
	}
	return "login:" + strings.ToLower(creds.Email)
}

// RateLimit applies the limiter keyed by caller identity or client address.
func RateLimit(limiter *RateLimiter) Middleware {
	return RateLimitKeyed(limiter, CallerKey)
}

// RateLimitKeyed applies the limiter with a caller-supplied key function.
func RateLimitKeyed(limiter *RateLimiter, key KeyFunc) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, remaining, reset := limiter.Allow(key(r))

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limiter.rate))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

			if !allowed {
				retryAfter := int(time.Until(reset).Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				model.NewRateLimitError(retryAfter).WriteJSON(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
