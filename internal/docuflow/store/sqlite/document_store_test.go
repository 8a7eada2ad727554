package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/docuflow/server/internal/docuflow/store"
	"github.com/docuflow/server/internal/docuflow/store/sqlite"
)

func newTestDocumentStore(t *testing.T) *sqlite.DocumentStore {
	t.Helper()
	conn := openTestDB(t, "documents")
	return sqlite.NewDocumentStore(conn, newTestWriter(t, conn))
}

// ── Put / Get round trip ─────────────────────────────────────────────────────

func TestPut_NewDocument_ReturnsNilPrior(t *testing.T) {
	s := newTestDocumentStore(t)
	ctx := context.Background()

	prev, err := s.Put(ctx, store.Document{
		ID:        "doc-1",
		Content:   "quarterly invoice",
		Labels:    []string{"general", "internal"},
		Metadata:  map[string]string{"source": "inbox/invoice.txt"},
		Embedding: []float32{0.1, 0.2, 0.3},
	})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if prev != nil {
		t.Errorf("expected nil prior version for a fresh id, got %+v", prev)
	}

	got, err := s.Get(ctx, "doc-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Content != "quarterly invoice" {
		t.Errorf("unexpected content %q", got.Content)
	}
	if len(got.Labels) != 2 || got.Labels[0] != "general" || got.Labels[1] != "internal" {
		t.Errorf("unexpected labels %v", got.Labels)
	}
	if got.Metadata["source"] != "inbox/invoice.txt" {
		t.Errorf("unexpected metadata %v", got.Metadata)
	}
	if len(got.Embedding) != 3 || got.Embedding[1] != 0.2 {
		t.Errorf("unexpected embedding %v", got.Embedding)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("expected timestamps to be set")
	}
}

func TestPut_ExistingID_ReturnsPriorAndKeepsCreatedAt(t *testing.T) {
	s := newTestDocumentStore(t)
	ctx := context.Background()

	created := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	if _, err := s.Put(ctx, store.Document{
		ID: "doc-1", Content: "v1", Labels: []string{"general"},
		CreatedAt: created, UpdatedAt: created,
	}); err != nil {
		t.Fatalf("Put v1: %v", err)
	}

	prev, err := s.Put(ctx, store.Document{
		ID: "doc-1", Content: "v2", Labels: []string{"internal"},
	})
	if err != nil {
		t.Fatalf("Put v2: %v", err)
	}
	if prev == nil {
		t.Fatal("expected prior version for re-ingest")
	}
	if prev.Content != "v1" {
		t.Errorf("expected prior content v1, got %q", prev.Content)
	}

	got, err := s.Get(ctx, "doc-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Content != "v2" {
		t.Errorf("expected replaced content v2, got %q", got.Content)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("expected created_at preserved (%v), got %v", created, got.CreatedAt)
	}
}

func TestPut_MissingID_Rejected(t *testing.T) {
	s := newTestDocumentStore(t)

	if _, err := s.Put(context.Background(), store.Document{Content: "x"}); err == nil {
		t.Fatal("expected error for missing id")
	}
}

// ── Get / Delete edge cases ──────────────────────────────────────────────────

func TestGet_UnknownID_ReturnsNotFound(t *testing.T) {
	s := newTestDocumentStore(t)

	_, err := s.Get(context.Background(), "ghost")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDelete_ReportsWhetherRowExisted(t *testing.T) {
	s := newTestDocumentStore(t)
	ctx := context.Background()

	if _, err := s.Put(ctx, store.Document{ID: "doc-1", Content: "x", Labels: []string{"general"}}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	removed, err := s.Delete(ctx, "doc-1")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !removed {
		t.Error("expected removed=true for existing document")
	}

	removed, err = s.Delete(ctx, "doc-1")
	if err != nil {
		t.Fatalf("Delete again: %v", err)
	}
	if removed {
		t.Error("expected removed=false for already-deleted document")
	}

	if _, err := s.Get(ctx, "doc-1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestPut_EmptyEmbeddingAndMetadataSurvive(t *testing.T) {
	s := newTestDocumentStore(t)
	ctx := context.Background()

	if _, err := s.Put(ctx, store.Document{ID: "bare", Content: "x", Labels: []string{"general"}}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := s.Get(ctx, "bare")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.Embedding) != 0 {
		t.Errorf("expected empty embedding, got %v", got.Embedding)
	}
	if len(got.Metadata) != 0 {
		t.Errorf("expected empty metadata, got %v", got.Metadata)
	}
}
