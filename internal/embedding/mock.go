package embedding

import "context"

// MockEmbedder is a test double for embedding providers.
type MockEmbedder struct {
	Vector      []float32
	Err         error
	LastRequest *Request // captures the last request for inspection
	Calls       int
}

// NewMockEmbedder creates a MockEmbedder that returns the given vector.
func NewMockEmbedder(vec []float32) *MockEmbedder {
	return &MockEmbedder{Vector: vec}
}

func (m *MockEmbedder) Embed(_ context.Context, req Request) ([]float32, error) {
	m.LastRequest = &req
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Vector, nil
}

func (m *MockEmbedder) HealthCheck(_ context.Context) error {
	return m.Err
}
