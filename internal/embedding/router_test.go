package embedding

import (
	"context"
	"errors"
	"testing"
)

func TestRouter_FallbackOrder(t *testing.T) {
	broken := &MockEmbedder{Err: errors.New("service down")}
	working := NewMockEmbedder([]float32{1, 2, 3})

	router := NewRouter()
	router.Register("primary", broken)
	router.Register("secondary", working)

	vec, err := router.Embed(context.Background(), Request{Text: "hello"})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(vec) != 3 {
		t.Errorf("vector dims = %d, want 3", len(vec))
	}
	if broken.Calls != 1 {
		t.Errorf("primary calls = %d, want 1", broken.Calls)
	}
	if working.Calls != 1 {
		t.Errorf("secondary calls = %d, want 1", working.Calls)
	}
}

func TestRouter_AllFail(t *testing.T) {
	router := NewRouter()
	router.Register("only", &MockEmbedder{Err: errors.New("down")})

	if _, err := router.Embed(context.Background(), Request{Text: "hello"}); err == nil {
		t.Fatal("Embed() should fail when every provider fails")
	}
}

func TestRouter_NoProviders(t *testing.T) {
	router := NewRouter()

	if router.HasProvider() {
		t.Error("HasProvider() = true, want false")
	}
	if _, err := router.Embed(context.Background(), Request{Text: "hello"}); err == nil {
		t.Fatal("Embed() should fail with no providers")
	}
}

func TestRouter_PassesTaskThrough(t *testing.T) {
	mock := NewMockEmbedder([]float32{1})
	router := NewRouter()
	router.Register("mock", mock)

	_, err := router.Embed(context.Background(), Request{Text: "x", Task: TaskRetrievalDocument})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if mock.LastRequest == nil || mock.LastRequest.Task != TaskRetrievalDocument {
		t.Error("router should pass the task type through unchanged")
	}
}
