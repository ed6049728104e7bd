// Package resolver turns free-text topic labels into canonical taxonomy
// matches via embedding nearest-neighbor search.
package resolver

import (
	"context"
	"encoding/hex"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/prepnexus/qbank/internal/embedding"
	"github.com/prepnexus/qbank/internal/taxonomy"
)

// embedPrefix frames the label the same way topic vectors were generated, so
// query and document embeddings live in the same neighborhood.
const embedPrefix = "Topic: "

const defaultVectorTTL = 24 * time.Hour

// VectorCache caches embedding vectors per label across bulk previews.
// *cache.Cache satisfies it.
type VectorCache interface {
	GetVector(ctx context.Context, key string) ([]float32, bool, error)
	SetVector(ctx context.Context, key string, vec []float32, ttl time.Duration) error
}

// Config holds dependencies for the resolver.
type Config struct {
	Embedder  embedding.Embedder
	Store     taxonomy.Store
	Cache     VectorCache   // optional; nil disables caching
	VectorTTL time.Duration // default 24h
}

// Resolver finds the nearest canonical topic for an AI-produced label.
type Resolver struct {
	embedder  embedding.Embedder
	store     taxonomy.Store
	cache     VectorCache
	vectorTTL time.Duration
}

// New creates a resolver.
func New(cfg Config) *Resolver {
	ttl := cfg.VectorTTL
	if ttl == 0 {
		ttl = defaultVectorTTL
	}
	return &Resolver{
		embedder:  cfg.Embedder,
		store:     cfg.Store,
		cache:     cfg.Cache,
		vectorTTL: ttl,
	}
}

// ResolveTopic returns the single nearest canonical topic for the label, with
// a cosine-derived similarity in [-1, 1], or nil when no match is available.
// No similarity threshold is applied here: deciding whether the match is good
// enough to auto-accept, or whether to fall back to a provisional topic, is
// the caller's job. Embedding-service failures are logged and collapsed to
// nil so callers cannot distinguish "service down" from "no canonical topic".
func (r *Resolver) ResolveTopic(ctx context.Context, label string) *taxonomy.Match {
	label = strings.TrimSpace(label)
	if label == "" {
		return nil
	}

	vec := r.cachedVector(ctx, label)
	if vec == nil {
		var err error
		vec, err = r.embedder.Embed(ctx, embedding.Request{
			Text: embedPrefix + label,
			Task: embedding.TaskRetrievalDocument,
		})
		if err != nil {
			slog.Warn("embedding failed, treating label as unmatched",
				"label", label,
				"error", err,
			)
			return nil
		}
		r.storeVector(ctx, label, vec)
	}

	match, err := r.store.FindNearest(ctx, vec)
	if err != nil {
		slog.Warn("nearest-neighbor lookup failed, treating label as unmatched",
			"label", label,
			"error", err,
		)
		return nil
	}
	if match == nil {
		slog.Debug("no canonical topic available for label", "label", label)
		return nil
	}

	slog.Debug("label resolved",
		"label", label,
		"topic_id", match.ID,
		"similarity", match.Similarity,
	)
	return match
}

func (r *Resolver) cachedVector(ctx context.Context, label string) []float32 {
	if r.cache == nil {
		return nil
	}
	vec, ok, err := r.cache.GetVector(ctx, labelKey(label))
	if err != nil {
		slog.Warn("vector cache read failed", "error", err)
		return nil
	}
	if !ok {
		return nil
	}
	return vec
}

func (r *Resolver) storeVector(ctx context.Context, label string, vec []float32) {
	if r.cache == nil {
		return
	}
	if err := r.cache.SetVector(ctx, labelKey(label), vec, r.vectorTTL); err != nil {
		slog.Warn("vector cache write failed", "error", err)
	}
}

// labelKey hashes the framed label so arbitrary text maps to a fixed-size
// cache key.
func labelKey(label string) string {
	sum := blake2b.Sum256([]byte(embedPrefix + label))
	return hex.EncodeToString(sum[:])
}
