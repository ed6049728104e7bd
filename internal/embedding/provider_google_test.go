package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGoogleProvider_Embed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Verify Gemini-specific URL pattern.
		if !strings.Contains(r.URL.Path, "/models/text-embedding-004:embedContent") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "test-key" {
			t.Errorf("missing or wrong API key in query")
		}

		var req geminiEmbedRequest
		json.NewDecoder(r.Body).Decode(&req)

		if req.TaskType != "RETRIEVAL_DOCUMENT" {
			t.Errorf("taskType = %q, want RETRIEVAL_DOCUMENT", req.TaskType)
		}
		if len(req.Content.Parts) == 0 || req.Content.Parts[0].Text != "Topic: Judiciary" {
			t.Errorf("unexpected request content: %+v", req.Content)
		}

		resp := geminiEmbedResponse{}
		resp.Embedding.Values = []float32{0.1, 0.2, 0.3}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	provider := NewGoogleProvider("test-key", WithGoogleBaseURL(server.URL))

	vec, err := provider.Embed(context.Background(), Request{
		Text: "Topic: Judiciary",
		Task: TaskRetrievalDocument,
	})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(vec) != 3 {
		t.Errorf("vector dims = %d, want 3", len(vec))
	}
}

func TestGoogleProvider_Embed_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"quota exceeded"}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	provider := NewGoogleProvider("test-key", WithGoogleBaseURL(server.URL))

	if _, err := provider.Embed(context.Background(), Request{Text: "x"}); err == nil {
		t.Fatal("Embed() should surface API errors")
	}
}

func TestGoogleProvider_Embed_EmptyVector(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(geminiEmbedResponse{})
	}))
	defer server.Close()

	provider := NewGoogleProvider("test-key", WithGoogleBaseURL(server.URL))

	if _, err := provider.Embed(context.Background(), Request{Text: "x"}); err == nil {
		t.Fatal("Embed() should reject an empty embedding")
	}
}

func TestGeminiTaskType(t *testing.T) {
	tests := []struct {
		task TaskType
		want string
	}{
		{TaskRetrievalDocument, "RETRIEVAL_DOCUMENT"},
		{TaskRetrievalQuery, "RETRIEVAL_QUERY"},
		{TaskSemanticSimilarity, "SEMANTIC_SIMILARITY"},
	}
	for _, tt := range tests {
		if got := geminiTaskType(tt.task); got != tt.want {
			t.Errorf("geminiTaskType(%v) = %q, want %q", tt.task, got, tt.want)
		}
	}
}
