package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/docuflow/server/internal/docuflow/index"
	"github.com/docuflow/server/internal/docuflow/security"
	"github.com/docuflow/server/internal/docuflow/service"
	"github.com/docuflow/server/internal/docuflow/store"
	"github.com/docuflow/server/internal/docuflow/store/memory"
	"github.com/docuflow/server/internal/docuflow/types"
	"github.com/docuflow/server/internal/embedding"
)

const testDim = 64

type retrievalFixture struct {
	svc   *service.RetrievalService
	docs  *memory.DocumentStore
	idx   *index.MemoryIndex
	audit *memory.AuditStore
}

// newRetrievalFixture builds a RetrievalService on in-memory backends with
// the deterministic local embedder and the default role policy.
func newRetrievalFixture(t *testing.T) retrievalFixture {
	t.Helper()

	docs := memory.NewDocumentStore()
	idx := index.NewMemoryIndex(testDim)
	audit := memory.NewAuditStore()
	eval := security.NewEvaluator(security.DefaultPolicy())
	embedder := embedding.NewLocalProvider(testDim)

	svc := service.NewRetrievalService(docs, idx, audit, eval, embedder,
		service.RetrievalConfig{DefaultK: 5}, nil)
	return retrievalFixture{svc: svc, docs: docs, idx: idx, audit: audit}
}

func mustIngest(t *testing.T, f retrievalFixture, role, id, content string, labels ...string) {
	t.Helper()
	_, err := f.svc.Ingest(context.Background(), role, types.IngestRequest{
		ID: id, Content: content, Labels: labels,
	})
	if err != nil {
		t.Fatalf("ingest %s: %v", id, err)
	}
}

// ── Ingest ───────────────────────────────────────────────────────────────────

func TestIngest_StoresDocumentAndIndexEntry(t *testing.T) {
	f := newRetrievalFixture(t)

	resp, err := f.svc.Ingest(context.Background(), "admin", types.IngestRequest{
		Content: "quarterly invoice for review",
		Labels:  []string{"general"},
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if !resp.OK || resp.ID == "" {
		t.Fatalf("expected ok response with assigned id, got %+v", resp)
	}
	if resp.Updated {
		t.Error("expected updated=false for a fresh document")
	}

	if f.docs.Len() != 1 || f.idx.Count() != 1 {
		t.Errorf("expected 1 document and 1 index entry, got %d/%d", f.docs.Len(), f.idx.Count())
	}

	recs := f.audit.Records()
	if len(recs) != 1 {
		t.Fatalf("expected exactly 1 audit record, got %d", len(recs))
	}
	r := recs[0]
	if r.Operation != "ingest" || r.Decision != store.DecisionAllowed || r.Outcome != store.OutcomeCompleted {
		t.Errorf("unexpected audit record %+v", r)
	}
	if r.DocumentID != resp.ID {
		t.Errorf("expected audit document id %q, got %q", resp.ID, r.DocumentID)
	}
	if r.Seq != 1 {
		t.Errorf("expected seq 1, got %d", r.Seq)
	}
}

func TestIngest_ReingestReportsUpdated(t *testing.T) {
	f := newRetrievalFixture(t)
	mustIngest(t, f, "admin", "doc-1", "first version", "general")

	resp, err := f.svc.Ingest(context.Background(), "admin", types.IngestRequest{
		ID: "doc-1", Content: "second version", Labels: []string{"general"},
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if !resp.Updated {
		t.Error("expected updated=true for re-ingest")
	}
	if f.docs.Len() != 1 || f.idx.Count() != 1 {
		t.Errorf("expected single entry after re-ingest, got %d/%d", f.docs.Len(), f.idx.Count())
	}
}

func TestIngest_UnlabeledDocumentGetsDefaultLabel(t *testing.T) {
	f := newRetrievalFixture(t)

	resp, err := f.svc.Ingest(context.Background(), "operator", types.IngestRequest{
		Content: "plain note",
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	doc, err := f.docs.Get(context.Background(), resp.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(doc.Labels) != 1 || doc.Labels[0] != "general" {
		t.Errorf("expected default label general, got %v", doc.Labels)
	}
}

func TestIngest_Denied_NoMutationOneDeniedRecord(t *testing.T) {
	f := newRetrievalFixture(t)

	// operator may only ingest general.
	_, err := f.svc.Ingest(context.Background(), "operator", types.IngestRequest{
		ID: "doc-1", Content: "secret", Labels: []string{"restricted"},
	})
	if !errors.Is(err, service.ErrAccessDenied) {
		t.Fatalf("expected access denied, got %v", err)
	}

	if f.docs.Len() != 0 || f.idx.Count() != 0 {
		t.Errorf("denied ingest must not mutate anything, got %d/%d", f.docs.Len(), f.idx.Count())
	}

	recs := f.audit.Records()
	if len(recs) != 1 {
		t.Fatalf("expected exactly 1 audit record, got %d", len(recs))
	}
	if recs[0].Decision != store.DecisionDenied || recs[0].Outcome != store.OutcomeSkipped {
		t.Errorf("expected denied/skipped, got %+v", recs[0])
	}
}

func TestIngest_EmptyContent_ValidationErrorNotAudited(t *testing.T) {
	f := newRetrievalFixture(t)

	_, err := f.svc.Ingest(context.Background(), "admin", types.IngestRequest{Content: "  "})
	var vErr *service.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected validation error, got %v", err)
	}

	if len(f.audit.Records()) != 0 {
		t.Error("validation failures happen before any access decision and must not be audited")
	}
}

// ── Get ──────────────────────────────────────────────────────────────────────

func TestGet_AllowedReturnsDocumentAndAudits(t *testing.T) {
	f := newRetrievalFixture(t)
	mustIngest(t, f, "admin", "doc-1", "hello world", "general")

	resp, err := f.svc.Get(context.Background(), "viewer", "doc-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if resp.Content != "hello world" {
		t.Errorf("unexpected content %q", resp.Content)
	}

	recs := f.audit.Records()
	last := recs[len(recs)-1]
	if last.Operation != "read" || last.Decision != store.DecisionAllowed {
		t.Errorf("unexpected audit record %+v", last)
	}
}

func TestGet_DeniedByLabel(t *testing.T) {
	f := newRetrievalFixture(t)
	mustIngest(t, f, "admin", "doc-1", "internal memo", "internal")

	_, err := f.svc.Get(context.Background(), "viewer", "doc-1")
	if !errors.Is(err, service.ErrAccessDenied) {
		t.Fatalf("expected access denied, got %v", err)
	}

	recs := f.audit.Records()
	last := recs[len(recs)-1]
	if last.Decision != store.DecisionDenied || last.Outcome != store.OutcomeSkipped {
		t.Errorf("expected denied/skipped, got %+v", last)
	}
}

func TestGet_UnknownID_NotFoundNotAudited(t *testing.T) {
	f := newRetrievalFixture(t)

	_, err := f.svc.Get(context.Background(), "admin", "ghost")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	// No document means no labels to evaluate: no decision, no record.
	if len(f.audit.Records()) != 0 {
		t.Error("expected no audit record for absent target")
	}
}

// ── Delete ───────────────────────────────────────────────────────────────────

func TestDelete_RemovesBothSides(t *testing.T) {
	f := newRetrievalFixture(t)
	mustIngest(t, f, "admin", "doc-1", "to be removed", "general")

	resp, err := f.svc.Delete(context.Background(), "operator", "doc-1")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !resp.Removed {
		t.Error("expected removed=true")
	}
	if f.docs.Len() != 0 || f.idx.Count() != 0 {
		t.Errorf("expected both sides empty, got %d/%d", f.docs.Len(), f.idx.Count())
	}
}

func TestDelete_OperatorCannotDeleteInternal(t *testing.T) {
	f := newRetrievalFixture(t)
	mustIngest(t, f, "admin", "doc-1", "internal memo", "internal")

	_, err := f.svc.Delete(context.Background(), "operator", "doc-1")
	if !errors.Is(err, service.ErrAccessDenied) {
		t.Fatalf("expected access denied, got %v", err)
	}

	// Document must survive on both sides.
	if f.docs.Len() != 1 || f.idx.Count() != 1 {
		t.Errorf("denied delete must not mutate, got %d/%d", f.docs.Len(), f.idx.Count())
	}
}

func TestDelete_UnknownID_NotFound(t *testing.T) {
	f := newRetrievalFixture(t)

	_, err := f.svc.Delete(context.Background(), "admin", "ghost")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// ── Search ───────────────────────────────────────────────────────────────────

func TestSearch_RoundTripFindsIngestedDocument(t *testing.T) {
	f := newRetrievalFixture(t)
	mustIngest(t, f, "admin", "invoices", "quarterly invoice payment overdue", "general")
	mustIngest(t, f, "admin", "k8s", "kubernetes cluster autoscaling guide", "general")

	resp, err := f.svc.Search(context.Background(), "viewer", types.SearchRequest{
		Query: "overdue invoice payment", K: 1,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(resp.Results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(resp.Results))
	}
	if resp.Results[0].ID != "invoices" {
		t.Errorf("expected invoices first, got %q", resp.Results[0].ID)
	}
}

func TestSearch_KLargerThanCorpusReturnsEverythingReadable(t *testing.T) {
	f := newRetrievalFixture(t)
	mustIngest(t, f, "admin", "a", "alpha document", "general")
	mustIngest(t, f, "admin", "b", "beta document", "general")
	mustIngest(t, f, "admin", "c", "gamma document", "general")

	resp, err := f.svc.Search(context.Background(), "viewer", types.SearchRequest{
		Query: "document", K: 5, MinScore: -1,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(resp.Results) != 3 {
		t.Errorf("expected all 3 documents, got %d", len(resp.Results))
	}
}

func TestSearch_BackfillsPastUnreadableCandidates(t *testing.T) {
	f := newRetrievalFixture(t)

	// Same content so every candidate scores identically; ids order the
	// ranking.  The viewer can only read the general ones.
	mustIngest(t, f, "admin", "a-restricted", "shared search text", "restricted")
	mustIngest(t, f, "admin", "b-restricted", "shared search text", "restricted")
	mustIngest(t, f, "admin", "c-restricted", "shared search text", "restricted")
	mustIngest(t, f, "admin", "d-general", "shared search text", "general")
	mustIngest(t, f, "admin", "e-general", "shared search text", "general")

	resp, err := f.svc.Search(context.Background(), "viewer", types.SearchRequest{
		Query: "shared search text", K: 2, MinScore: -1,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("expected backfill to reach k=2, got %d results", len(resp.Results))
	}
	if resp.Results[0].ID != "d-general" || resp.Results[1].ID != "e-general" {
		t.Errorf("expected readable candidates in rank order, got %q,%q",
			resp.Results[0].ID, resp.Results[1].ID)
	}
}

func TestSearch_FewerReadableThanK(t *testing.T) {
	f := newRetrievalFixture(t)
	mustIngest(t, f, "admin", "open", "shared text", "general")
	mustIngest(t, f, "admin", "sealed", "shared text", "restricted")

	resp, err := f.svc.Search(context.Background(), "viewer", types.SearchRequest{
		Query: "shared text", K: 5, MinScore: -1,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].ID != "open" {
		t.Errorf("expected only the readable document, got %+v", resp.Results)
	}
}

func TestSearch_OneAuditRecordPerQuery(t *testing.T) {
	f := newRetrievalFixture(t)
	mustIngest(t, f, "admin", "a", "text one", "general")
	mustIngest(t, f, "admin", "b", "text two", "general")
	mustIngest(t, f, "admin", "c", "text three", "restricted")
	before := len(f.audit.Records())

	_, err := f.svc.Search(context.Background(), "viewer", types.SearchRequest{
		Query: "text", K: 10, MinScore: -1,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	recs := f.audit.Records()
	if len(recs) != before+1 {
		t.Fatalf("expected exactly 1 new audit record per query, got %d", len(recs)-before)
	}
	last := recs[len(recs)-1]
	if last.Operation != "read" || last.DocumentID != "" {
		t.Errorf("query record should be a read with no document id, got %+v", last)
	}
}

func TestSearch_EmptyQueryRejected(t *testing.T) {
	f := newRetrievalFixture(t)

	_, err := f.svc.Search(context.Background(), "viewer", types.SearchRequest{Query: " "})
	var vErr *service.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSearch_HybridReordersByCombinedScore(t *testing.T) {
	f := newRetrievalFixture(t)
	mustIngest(t, f, "admin", "semantic", "billing statement for account services rendered", "general")
	mustIngest(t, f, "admin", "keyword", "invoice invoice invoice", "general")

	resp, err := f.svc.Search(context.Background(), "viewer", types.SearchRequest{
		Query: "invoice", K: 2, MinScore: -1, Hybrid: true,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(resp.Results) == 0 {
		t.Fatal("expected results")
	}
	for _, r := range resp.Results {
		if r.ID == "keyword" && r.KeywordScore != 1.0 {
			t.Errorf("expected exact keyword overlap 1.0, got %v", r.KeywordScore)
		}
	}
	if resp.Results[0].ID != "keyword" {
		t.Errorf("expected keyword-heavy document first under hybrid ranking, got %q", resp.Results[0].ID)
	}
}

// ── Audit failure handling ───────────────────────────────────────────────────

// failingAuditStore starts failing after a configurable number of appends.
type failingAuditStore struct {
	*memory.AuditStore
	failAfter int
	appended  int
}

func (s *failingAuditStore) Append(ctx context.Context, rec store.AuditRecord) (int64, error) {
	if s.appended >= s.failAfter {
		return 0, fmt.Errorf("audit backend down")
	}
	s.appended++
	return s.AuditStore.Append(ctx, rec)
}

func TestIngest_AuditFailureRollsBackMutation(t *testing.T) {
	docs := memory.NewDocumentStore()
	idx := index.NewMemoryIndex(testDim)
	audit := &failingAuditStore{AuditStore: memory.NewAuditStore(), failAfter: 0}
	eval := security.NewEvaluator(security.DefaultPolicy())

	svc := service.NewRetrievalService(docs, idx, audit, eval,
		embedding.NewLocalProvider(testDim), service.RetrievalConfig{}, nil)

	_, err := svc.Ingest(context.Background(), "admin", types.IngestRequest{
		ID: "doc-1", Content: "must not survive", Labels: []string{"general"},
	})
	if err == nil {
		t.Fatal("expected ingest to fail when the audit append fails")
	}

	if docs.Len() != 0 || idx.Count() != 0 {
		t.Errorf("unaudited mutation must be rolled back, got %d/%d", docs.Len(), idx.Count())
	}
}

func TestSearch_AuditFailureFailsRequest(t *testing.T) {
	docs := memory.NewDocumentStore()
	idx := index.NewMemoryIndex(testDim)
	inner := memory.NewAuditStore()
	eval := security.NewEvaluator(security.DefaultPolicy())
	embedder := embedding.NewLocalProvider(testDim)

	// Seed through a working service first.
	seeded := service.NewRetrievalService(docs, idx, inner, eval, embedder, service.RetrievalConfig{}, nil)
	if _, err := seeded.Ingest(context.Background(), "admin", types.IngestRequest{
		ID: "doc-1", Content: "searchable text", Labels: []string{"general"},
	}); err != nil {
		t.Fatalf("seed ingest: %v", err)
	}

	failing := &failingAuditStore{AuditStore: inner, failAfter: 0}
	svc := service.NewRetrievalService(docs, idx, failing, eval, embedder, service.RetrievalConfig{}, nil)

	_, err := svc.Search(context.Background(), "viewer", types.SearchRequest{
		Query: "searchable", K: 1, MinScore: -1,
	})
	if err == nil {
		t.Fatal("expected search to fail closed when the audit append fails")
	}
}

// ── Embedder failure ─────────────────────────────────────────────────────────

type downProvider struct{}

func (downProvider) Embed(context.Context, string) ([]float32, error) {
	return nil, fmt.Errorf("connect: %w", embedding.ErrProviderUnavailable)
}
func (downProvider) Dimension() int { return testDim }

func TestIngest_EmbedderDownIsAuditedAsAllowedFailed(t *testing.T) {
	docs := memory.NewDocumentStore()
	idx := index.NewMemoryIndex(testDim)
	audit := memory.NewAuditStore()
	eval := security.NewEvaluator(security.DefaultPolicy())

	svc := service.NewRetrievalService(docs, idx, audit, eval, downProvider{}, service.RetrievalConfig{}, nil)

	_, err := svc.Ingest(context.Background(), "admin", types.IngestRequest{
		ID: "doc-1", Content: "text", Labels: []string{"general"},
	})
	if !errors.Is(err, embedding.ErrProviderUnavailable) {
		t.Fatalf("expected provider unavailable, got %v", err)
	}

	if docs.Len() != 0 || idx.Count() != 0 {
		t.Errorf("failed embed must not mutate, got %d/%d", docs.Len(), idx.Count())
	}

	recs := audit.Records()
	if len(recs) != 1 {
		t.Fatalf("expected 1 audit record, got %d", len(recs))
	}
	if recs[0].Decision != store.DecisionAllowed || recs[0].Outcome != store.OutcomeFailed {
		t.Errorf("authorization and outcome are orthogonal: expected allowed/failed, got %+v", recs[0])
	}
}
