package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Router tries embedding providers in registration order until one succeeds.
type Router struct {
	providers map[string]Embedder
	fallback  []string // ordered fallback chain
	mu        sync.RWMutex
}

// NewRouter creates a new embedding router.
func NewRouter() *Router {
	return &Router{
		providers: make(map[string]Embedder),
	}
}

// Register adds a provider to the router.
func (r *Router) Register(name string, provider Embedder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = provider
	r.fallback = append(r.fallback, name)
}

// Embed routes a request to the first available provider.
func (r *Router) Embed(ctx context.Context, req Request) ([]float32, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, name := range r.fallback {
		provider := r.providers[name]

		vec, err := provider.Embed(ctx, req)
		if err != nil {
			slog.Warn("embedding provider failed, trying next",
				"provider", name,
				"error", err,
			)
			continue
		}

		slog.Debug("embedding generated",
			"provider", name,
			"task", req.Task.String(),
			"dims", len(vec),
		)
		return vec, nil
	}

	return nil, fmt.Errorf("all embedding providers failed")
}

// HealthCheck succeeds if any registered provider is healthy.
func (r *Router) HealthCheck(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var lastErr error
	for _, name := range r.fallback {
		if err := r.providers[name].HealthCheck(ctx); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}
	if lastErr != nil {
		return fmt.Errorf("no healthy embedding provider: %w", lastErr)
	}
	return fmt.Errorf("no embedding providers registered")
}

// HasProvider returns true if at least one provider is registered.
func (r *Router) HasProvider() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers) > 0
}
