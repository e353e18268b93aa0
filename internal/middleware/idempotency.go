package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"sync"
	"time"
)

// ReplayCache remembers responses to mutating requests keyed by the
// client-supplied Idempotency-Key, so a console retrying a send (most
// importantly a role broadcast) gets the original report back instead
// of fanning out a second time.
type ReplayCache struct {
	mu       sync.Mutex
	entries  map[string]*replayEntry
	ttl      time.Duration
	stopChan chan struct{}
}

type replayEntry struct {
	status    int
	headers   http.Header
	body      []byte
	expiresAt time.Time
	inFlight  bool
	done      chan struct{}
}

// ReplayCacheConfig holds replay cache settings
type ReplayCacheConfig struct {
	TTL     time.Duration // how long completed responses are replayable (default 1h)
	Cleanup time.Duration // sweep interval (default 10m)
}

// NewReplayCache creates a replay cache and starts its sweeper.
func NewReplayCache(cfg ReplayCacheConfig) *ReplayCache {
	if cfg.TTL == 0 {
		cfg.TTL = time.Hour
	}
	if cfg.Cleanup == 0 {
		cfg.Cleanup = 10 * time.Minute
	}

	c := &ReplayCache{
		entries:  make(map[string]*replayEntry),
		ttl:      cfg.TTL,
		stopChan: make(chan struct{}),
	}
	go c.sweep(cfg.Cleanup)
	return c
}

// Stop stops the sweeper goroutine.
func (c *ReplayCache) Stop() {
	close(c.stopChan)
}

func (c *ReplayCache) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			c.mu.Lock()
			for key, entry := range c.entries {
				if !entry.inFlight && entry.expiresAt.Before(now) {
					delete(c.entries, key)
				}
			}
			c.mu.Unlock()
		case <-c.stopChan:
			return
		}
	}
}

// replayKey fingerprints a request: caller, idempotency key, and the
// exact request being made. The same key with a different body is a
// different request and gets processed, not replayed.
func replayKey(callerID, idempotencyKey, method, path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(callerID))
	h.Write([]byte{0})
	h.Write([]byte(idempotencyKey))
	h.Write([]byte{0})
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

type replayRecorder struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (w *replayRecorder) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *replayRecorder) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// Idempotency returns middleware that replays cached responses for
// repeated Idempotency-Key requests. Requests without the header pass
// through untouched. Must run after Auth so the cache key is scoped to
// the caller.
func Idempotency(cache *ReplayCache) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost && r.Method != http.MethodPatch {
				next.ServeHTTP(w, r)
				return
			}

			idempotencyKey := r.Header.Get("Idempotency-Key")
			if idempotencyKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			callerID := GetUserID(r.Context())
			if callerID == "" {
				callerID = r.RemoteAddr
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			key := replayKey(callerID, idempotencyKey, r.Method, r.URL.Path, body)

			cache.mu.Lock()
			entry, exists := cache.entries[key]
			if exists && entry.inFlight {
				// A concurrent duplicate: wait for the original to finish.
				cache.mu.Unlock()
				<-entry.done
				cache.mu.Lock()
			}
			if entry, exists = cache.entries[key]; exists && !entry.inFlight && entry.expiresAt.After(time.Now()) {
				cache.mu.Unlock()
				writeReplay(w, entry)
				return
			}

			entry = &replayEntry{inFlight: true, done: make(chan struct{})}
			cache.entries[key] = entry
			cache.mu.Unlock()

			recorder := &replayRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(recorder, r)

			cache.mu.Lock()
			entry.status = recorder.status
			entry.headers = recorder.Header().Clone()
			entry.body = recorder.body.Bytes()
			entry.expiresAt = time.Now().Add(cache.ttl)
			entry.inFlight = false
			close(entry.done)
			cache.mu.Unlock()
		})
	}
}

func writeReplay(w http.ResponseWriter, entry *replayEntry) {
	for name, values := range entry.headers {
		for _, value := range values {
			w.Header().Add(name, value)
		}
	}
	w.Header().Set("X-Idempotency-Replayed", "true")
	w.WriteHeader(entry.status)
	_, _ = w.Write(entry.body)
}
