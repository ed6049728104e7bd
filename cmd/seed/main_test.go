package main

import (
	"context"
	"errors"
	"testing"

	"github.com/prepnexus/qbank/internal/embedding"
	"github.com/prepnexus/qbank/internal/taxonomy"
)

func seedStore(t *testing.T) *taxonomy.MemoryStore {
	t.Helper()
	store := taxonomy.NewMemoryStore()
	topics := []taxonomy.Topic{
		{ID: "exam-gs", Name: "General Studies", Slug: "general-studies", Level: 1,
			AncestryPath: "exam-gs", TopicType: taxonomy.TypeCanonical},
		{ID: "subj-polity", Name: "Polity", Slug: "polity", Level: 2, PrimaryParentID: "exam-gs",
			AncestryPath: "exam-gs>subj-polity", TopicType: taxonomy.TypeCanonical},
		{ID: "prov-x", Name: "X", Slug: "x", Level: 3, PrimaryParentID: "subj-polity",
			AncestryPath: "exam-gs>subj-polity>prov-x", TopicType: taxonomy.TypeProvisional},
	}
	for _, tp := range topics {
		if err := store.CreateTopic(context.Background(), tp); err != nil {
			t.Fatalf("CreateTopic(%s) error = %v", tp.ID, err)
		}
	}
	return store
}

func TestBackfillEmbeddings(t *testing.T) {
	store := seedStore(t)
	mock := embedding.NewMockEmbedder([]float32{0.1, 0.2, 0.3})

	n, err := backfillEmbeddings(context.Background(), store, mock)
	if err != nil {
		t.Fatalf("backfillEmbeddings() error = %v", err)
	}
	// Canonical topics only; the provisional one is never embedded.
	if n != 2 {
		t.Errorf("backfilled = %d, want 2", n)
	}
	if mock.Calls != 2 {
		t.Errorf("embedder calls = %d, want 2", mock.Calls)
	}

	left, err := store.ListUnembedded(context.Background())
	if err != nil {
		t.Fatalf("ListUnembedded() error = %v", err)
	}
	if len(left) != 0 {
		t.Errorf("unembedded topics left = %d, want 0", len(left))
	}
}

func TestBackfillEmbeddings_SkipsFailures(t *testing.T) {
	store := seedStore(t)
	mock := embedding.NewMockEmbedder(nil)
	mock.Err = errors.New("quota exceeded")

	n, err := backfillEmbeddings(context.Background(), store, mock)
	if err != nil {
		t.Fatalf("backfillEmbeddings() error = %v", err)
	}
	if n != 0 {
		t.Errorf("backfilled = %d, want 0 when every embed call fails", n)
	}
}

func TestBackfillEmbeddings_Idempotent(t *testing.T) {
	store := seedStore(t)
	mock := embedding.NewMockEmbedder([]float32{0.1, 0.2, 0.3})

	if _, err := backfillEmbeddings(context.Background(), store, mock); err != nil {
		t.Fatal(err)
	}
	n, err := backfillEmbeddings(context.Background(), store, mock)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("second run backfilled = %d, want 0", n)
	}
}
