package taxonomy

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"
)

// DefaultSearchLimit caps search results when the caller does not set one.
const DefaultSearchLimit = 20

// SearchQuery scopes a name lookup to a subject and an optional anchor
// subtree. AnchorID restricts results to the anchor itself or its direct
// children, keeping manual attachment inside a small neighborhood.
type SearchQuery struct {
	Query     string
	SubjectID string
	AnchorID  string
	Limit     int
}

// Store persists the topic hierarchy.
type Store interface {
	CreateTopic(ctx context.Context, t Topic) error
	GetTopic(ctx context.Context, id string) (*Topic, error)
	ListChildren(ctx context.Context, parentID string) ([]Topic, error)

	// Search returns canonical topics matching the query, scoped to the
	// subject boundary. A trimmed query shorter than two characters yields
	// an empty result, never an error.
	Search(ctx context.Context, q SearchQuery) ([]Topic, error)

	// UpsertEmbedding assigns the vector used for nearest-neighbor matching.
	UpsertEmbedding(ctx context.Context, id string, vec []float32) error

	// FindNearest ranks canonical topic vectors by distance to the query
	// vector and returns the top match, or nil when no canonical topic has
	// an embedding.
	FindNearest(ctx context.Context, vec []float32) (*Match, error)

	CountCanonical(ctx context.Context) (int, error)

	// ListUnembedded returns canonical topics without an embedding vector,
	// for the seed backfill.
	ListUnembedded(ctx context.Context) ([]Topic, error)
}

// MemoryStore is an in-memory Store implementation mirroring the Postgres
// semantics, used in tests and local development.
type MemoryStore struct {
	topics map[string]Topic
	mu     sync.RWMutex
}

// NewMemoryStore creates a new in-memory topic store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{topics: make(map[string]Topic)}
}

func (s *MemoryStore) CreateTopic(_ context.Context, t Topic) error {
	if t.ID == "" {
		return fmt.Errorf("topic id is required")
	}
	if t.Level < LevelExamination || t.Level > LevelSubTopic {
		return fmt.Errorf("topic level out of range: %d", t.Level)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.topics[t.ID]; exists {
		return fmt.Errorf("topic already exists: %s", t.ID)
	}
	s.topics[t.ID] = t
	return nil
}

func (s *MemoryStore) GetTopic(_ context.Context, id string) (*Topic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.topics[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return &t, nil
}

func (s *MemoryStore) ListChildren(_ context.Context, parentID string) ([]Topic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Topic
	for _, t := range s.topics {
		if t.PrimaryParentID == parentID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryStore) Search(_ context.Context, q SearchQuery) ([]Topic, error) {
	needle := strings.ToLower(strings.TrimSpace(q.Query))
	if utf8.RuneCountInString(needle) < 2 {
		return []Topic{}, nil
	}
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Topic
	for _, t := range s.topics {
		if t.TopicType != TypeCanonical {
			continue
		}
		if !strings.Contains(strings.ToLower(t.Name), needle) {
			continue
		}
		if !PathContains(t.AncestryPath, q.SubjectID) {
			continue
		}
		if q.AnchorID != "" && t.ID != q.AnchorID && t.PrimaryParentID != q.AnchorID {
			continue
		}
		out = append(out, t)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Level != out[j].Level {
			return out[i].Level < out[j].Level
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > limit {
		out = out[:limit]
	}
	if out == nil {
		out = []Topic{}
	}
	return out, nil
}

func (s *MemoryStore) UpsertEmbedding(_ context.Context, id string, vec []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.topics[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	t.Embedding = vec
	s.topics[id] = t
	return nil
}

func (s *MemoryStore) FindNearest(_ context.Context, vec []float32) (*Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *Match
	for _, t := range s.topics {
		if t.TopicType != TypeCanonical || len(t.Embedding) == 0 {
			continue
		}
		dist := cosineDistance(vec, t.Embedding)
		if best == nil || 1-dist > best.Similarity {
			best = &Match{
				ID:           t.ID,
				Name:         t.Name,
				Slug:         t.Slug,
				Level:        t.Level,
				AncestryPath: t.AncestryPath,
				Similarity:   1 - dist,
			}
		}
	}
	return best, nil
}

func (s *MemoryStore) CountCanonical(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, t := range s.topics {
		if t.TopicType == TypeCanonical {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) ListUnembedded(_ context.Context) ([]Topic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Topic
	for _, t := range s.topics {
		if t.TopicType == TypeCanonical && len(t.Embedding) == 0 {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// cosineDistance returns 1 - cos(a, b), matching pgvector's <=> operator.
// Mismatched or zero-norm vectors rank last.
func cosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 2
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 2
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
