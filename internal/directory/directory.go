// Package directory resolves identity references to display data.
// Lookups run in the background of inbox rendering: failures are logged
// and swallowed, leaving the reference unresolved rather than breaking
// the page.
package directory

import (
	"context"
	"log/slog"
	"sync"

	"github.com/campushq/registra/internal/model"
	"github.com/campushq/registra/internal/upstream"
)

// ResolverConfig holds directory resolver dependencies.
type ResolverConfig struct {
	Upstream upstream.Client
	Logger   *slog.Logger
}

// Resolver batches identity lookups against the enrollment API and
// caches results. The cache has no expiry; entries resolved twice keep
// whichever lookup finished last.
type Resolver struct {
	upstream upstream.Client
	logger   *slog.Logger

	mu    sync.RWMutex
	cache map[string]model.Identity
}

// NewResolver creates a resolver with an empty cache.
func NewResolver(cfg ResolverConfig) *Resolver {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Resolver{
		upstream: cfg.Upstream,
		logger:   cfg.Logger.With(slog.String("component", "directory")),
		cache:    make(map[string]model.Identity),
	}
}

// Resolve looks up the given identity ids in parallel and returns a map
// of the ones that resolved. Duplicate ids collapse to a single lookup,
// cached ids are served without a network call, and failed lookups are
// simply absent from the result.
func (r *Resolver) Resolve(ctx context.Context, cred string, ids []string) map[string]model.Identity {
	resolved := make(map[string]model.Identity)
	var pending []string

	r.mu.RLock()
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		if identity, ok := r.cache[id]; ok {
			resolved[id] = identity
		} else {
			pending = append(pending, id)
		}
	}
	r.mu.RUnlock()

	if len(pending) == 0 {
		return resolved
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, id := range pending {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()

			identity, err := r.upstream.LookupIdentity(ctx, cred, id)
			if err != nil {
				r.logger.DebugContext(ctx, "identity lookup failed",
					slog.String("identity_id", id),
					slog.Any("error", err),
				)
				return
			}

			mu.Lock()
			resolved[id] = *identity
			mu.Unlock()

			r.mu.Lock()
			r.cache[id] = *identity
			r.mu.Unlock()
		}(id)
	}
	wg.Wait()

	return resolved
}

// Lookup resolves a single id, preferring the cache.
func (r *Resolver) Lookup(ctx context.Context, cred, id string) (model.Identity, bool) {
	result := r.Resolve(ctx, cred, []string{id})
	identity, ok := result[id]
	return identity, ok
}

// Invalidate drops a cached entry, forcing the next resolve to re-fetch.
// Used after profile updates so stale display names do not linger.
func (r *Resolver) Invalidate(id string) {
	r.mu.Lock()
	delete(r.cache, id)
	r.mu.Unlock()
}
