// Package embedding provides a provider-agnostic gateway to dense text
// embedding services with ordered fallback.
package embedding

import "context"

// TaskType hints the embedding service at the downstream use of the vector.
// Providers without task-type support ignore it.
type TaskType int

const (
	TaskRetrievalDocument TaskType = iota
	TaskRetrievalQuery
	TaskSemanticSimilarity
)

func (t TaskType) String() string {
	switch t {
	case TaskRetrievalDocument:
		return "retrieval_document"
	case TaskRetrievalQuery:
		return "retrieval_query"
	case TaskSemanticSimilarity:
		return "semantic_similarity"
	default:
		return "unknown"
	}
}

// Request is the input to an embedding call.
type Request struct {
	Text string   `json:"text"`
	Task TaskType `json:"task,omitempty"`
}

// Embedder is the interface all embedding providers must implement.
// Embed returns the dense vector for the request text; failures are plain
// errors for the caller to collapse or propagate.
type Embedder interface {
	Embed(ctx context.Context, req Request) ([]float32, error)
	HealthCheck(ctx context.Context) error
}
