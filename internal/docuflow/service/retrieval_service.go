package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/docuflow/server/internal/docuflow/index"
	"github.com/docuflow/server/internal/docuflow/security"
	"github.com/docuflow/server/internal/docuflow/store"
	"github.com/docuflow/server/internal/docuflow/types"
	"github.com/docuflow/server/internal/embedding"
	"github.com/docuflow/server/internal/nlp"
)

// Audit operation names.
const (
	opIngest        = "ingest"
	opRead          = "read"
	opDelete        = "delete"
	opWorkflow      = "execute_workflow"
	opManageRules   = "manage_rules"
	opViewAuditLogs = "view_audit_logs"
)

// Failure reason codes recorded when an authorized operation fails.
const (
	reasonProviderUnavailable = "provider_unavailable"
	reasonDimensionMismatch   = "dimension_mismatch"
	reasonStorageFailure      = "storage_failure"
	reasonIndexFailure        = "index_failure"
	reasonQueryPostFiltered   = "query_post_filtered"
)

// defaultLabel is applied to documents ingested without labels so every
// document has an access label to evaluate against.
const defaultLabel = "general"

const retryBackoff = 50 * time.Millisecond

// Hybrid search weights, keyword vs semantic.
const (
	hybridKeywordWeight  = 0.3
	hybridSemanticWeight = 0.7
)

type RetrievalConfig struct {
	// DefaultK is the result count used when a search request omits k.
	DefaultK int

	// MinScore is the similarity floor applied when a request omits one.
	MinScore float32
}

func (c *RetrievalConfig) applyDefaults() {
	if c.DefaultK == 0 {
		c.DefaultK = 5
	}
}

// RetrievalService is the orchestrator: it composes the evaluator, the
// document store, the vector index, the embedder and the audit trail so
// that the two storage sides never diverge and every access decision is
// audited exactly once.
type RetrievalService struct {
	docs     store.DocumentStore
	idx      index.Index
	audit    store.AuditStore
	eval     *security.Evaluator
	embedder embedding.Provider
	cfg      RetrievalConfig
	logger   *zap.Logger
}

func NewRetrievalService(
	docs store.DocumentStore,
	idx index.Index,
	audit store.AuditStore,
	eval *security.Evaluator,
	embedder embedding.Provider,
	cfg RetrievalConfig,
	logger *zap.Logger,
) *RetrievalService {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.applyDefaults()
	return &RetrievalService{
		docs:     docs,
		idx:      idx,
		audit:    audit,
		eval:     eval,
		embedder: embedder,
		cfg:      cfg,
		logger:   logger,
	}
}

// Ingest creates or replaces a document: authorize, embed, then apply the
// store and index mutations as a pair (one failing rolls the other back).
func (s *RetrievalService) Ingest(ctx context.Context, role string, req types.IngestRequest) (types.IngestResponse, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return types.IngestResponse{}, invalidf("content", "content is required")
	}

	id := strings.TrimSpace(req.ID)
	if id == "" {
		id = uuid.NewString()
	}
	labels := req.Labels
	if len(labels) == 0 {
		labels = []string{defaultLabel}
	}

	decision := s.eval.DecideDocument(role, security.OpIngest, labels)
	if !decision.Allowed {
		if err := s.auditDenied(ctx, role, opIngest, id, decision.Reason); err != nil {
			return types.IngestResponse{}, err
		}
		return types.IngestResponse{}, &AccessDeniedError{Reason: decision.Reason}
	}

	vec, err := s.embed(ctx, content)
	if err != nil {
		return types.IngestResponse{}, s.failAuthorized(ctx, role, opIngest, id, err)
	}
	if len(vec) != s.idx.Dimension() {
		err := fmt.Errorf("%w: provider returned %d, index dimension is %d",
			index.ErrDimensionMismatch, len(vec), s.idx.Dimension())
		return types.IngestResponse{}, s.failAuthorized(ctx, role, opIngest, id, err)
	}

	doc := store.Document{
		ID:        id,
		Content:   req.Content,
		Labels:    labels,
		Metadata:  req.Metadata,
		Embedding: vec,
	}

	var prev *store.Document
	err = retryOnce(ctx, func() error {
		var putErr error
		prev, putErr = s.docs.Put(ctx, doc)
		return putErr
	})
	if err != nil {
		return types.IngestResponse{}, s.failAuthorized(ctx, role, opIngest, id, err)
	}

	if err := retryOnce(ctx, func() error { return s.idx.Insert(ctx, id, vec) }); err != nil {
		s.rollbackPut(ctx, id, prev)
		return types.IngestResponse{}, s.failAuthorized(ctx, role, opIngest, id, err)
	}

	if err := s.auditCompleted(ctx, role, opIngest, id, decision.Reason); err != nil {
		// An unaudited permitted mutation must not survive: undo both
		// sides before failing the request.
		s.rollbackPut(ctx, id, prev)
		s.rollbackIndex(ctx, id, prev)
		return types.IngestResponse{}, err
	}

	return types.IngestResponse{
		OK:         true,
		ID:         id,
		Updated:    prev != nil,
		ServerTime: time.Now().UTC().Format(time.RFC3339Nano),
	}, nil
}

// Get returns a single document after an audited read decision.
func (s *RetrievalService) Get(ctx context.Context, role, id string) (types.DocumentResponse, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return types.DocumentResponse{}, invalidf("id", "document id is required")
	}

	doc, err := s.docs.Get(ctx, id)
	if err != nil {
		// Absent target: there is no label to evaluate, so no access
		// decision is made and nothing is audited.
		return types.DocumentResponse{}, err
	}

	decision := s.eval.DecideDocument(role, security.OpRead, doc.Labels)
	if !decision.Allowed {
		if err := s.auditDenied(ctx, role, opRead, id, decision.Reason); err != nil {
			return types.DocumentResponse{}, err
		}
		return types.DocumentResponse{}, &AccessDeniedError{Reason: decision.Reason}
	}

	if err := s.auditCompleted(ctx, role, opRead, id, decision.Reason); err != nil {
		return types.DocumentResponse{}, err
	}

	return types.DocumentResponse{
		OK:        true,
		ID:        doc.ID,
		Content:   doc.Content,
		Labels:    doc.Labels,
		Metadata:  doc.Metadata,
		CreatedAt: doc.CreatedAt.Format(time.RFC3339Nano),
		UpdatedAt: doc.UpdatedAt.Format(time.RFC3339Nano),
	}, nil
}

// Delete removes a document from the index and the store as a pair.
func (s *RetrievalService) Delete(ctx context.Context, role, id string) (types.DeleteResponse, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return types.DeleteResponse{}, invalidf("id", "document id is required")
	}

	doc, err := s.docs.Get(ctx, id)
	if err != nil {
		return types.DeleteResponse{}, err
	}

	decision := s.eval.DecideDocument(role, security.OpDelete, doc.Labels)
	if !decision.Allowed {
		if err := s.auditDenied(ctx, role, opDelete, id, decision.Reason); err != nil {
			return types.DeleteResponse{}, err
		}
		return types.DeleteResponse{}, &AccessDeniedError{Reason: decision.Reason}
	}

	// Index first: a query racing the deletion may briefly miss a live
	// document, but must never surface an id the store no longer has.
	if err := retryOnce(ctx, func() error { return s.idx.Remove(ctx, id) }); err != nil {
		return types.DeleteResponse{}, s.failAuthorized(ctx, role, opDelete, id, err)
	}

	var removed bool
	err = retryOnce(ctx, func() error {
		var delErr error
		removed, delErr = s.docs.Delete(ctx, id)
		return delErr
	})
	if err != nil {
		s.restoreIndexEntry(ctx, id, doc.Embedding)
		return types.DeleteResponse{}, s.failAuthorized(ctx, role, opDelete, id, err)
	}

	if err := s.auditCompleted(ctx, role, opDelete, id, decision.Reason); err != nil {
		// Undo the deletion rather than leave it unaudited.
		if _, putErr := s.docs.Put(ctx, doc); putErr != nil {
			s.logger.Error("rollback after audit failure: restore document",
				zap.String("id", id), zap.Error(putErr))
		}
		s.restoreIndexEntry(ctx, id, doc.Embedding)
		return types.DeleteResponse{}, err
	}

	return types.DeleteResponse{OK: true, ID: id, Removed: removed}, nil
}

// Search ranks the whole candidate list, then filters it down to the top k
// results the caller may read, backfilling from lower-ranked candidates.
// The similarity floor is never relaxed to reach k.
func (s *RetrievalService) Search(ctx context.Context, role string, req types.SearchRequest) (types.SearchResponse, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return types.SearchResponse{}, invalidf("query", "query is required")
	}
	k := req.K
	if k <= 0 {
		k = s.cfg.DefaultK
	}
	minScore := req.MinScore
	if minScore == 0 {
		minScore = s.cfg.MinScore
	}

	vec, err := s.embed(ctx, query)
	if err != nil {
		return types.SearchResponse{}, s.failAuthorized(ctx, role, opRead, "", err)
	}

	// k=0: every candidate above the floor, so permission filtering can
	// backfill until the index is exhausted.
	matches, err := s.idx.Search(ctx, vec, 0, minScore)
	if err != nil {
		return types.SearchResponse{}, s.failAuthorized(ctx, role, opRead, "", err)
	}

	results := s.filterReadable(ctx, role, query, matches, k, req.Hybrid)

	if err := s.auditCompleted(ctx, role, opRead, "", reasonQueryPostFiltered); err != nil {
		return types.SearchResponse{}, err
	}

	return types.SearchResponse{
		OK:         true,
		Results:    results,
		ServerTime: time.Now().UTC().Format(time.RFC3339Nano),
	}, nil
}

// filterReadable walks the ranked candidates, keeping those the role may
// read.  Plain search stops at k; hybrid search collects every readable
// candidate, re-scores with the keyword overlap, and takes the top k of
// the combined ranking.
func (s *RetrievalService) filterReadable(ctx context.Context, role, query string, matches []index.Match, k int, hybrid bool) []types.SearchResult {
	results := make([]types.SearchResult, 0, k)

	for _, m := range matches {
		doc, err := s.docs.Get(ctx, m.ID)
		if errors.Is(err, store.ErrNotFound) {
			// Should be unreachable while the store/index invariant
			// holds; log it rather than surface a phantom id.
			s.logger.Warn("index entry without document", zap.String("id", m.ID))
			continue
		}
		if err != nil {
			s.logger.Error("candidate lookup failed", zap.String("id", m.ID), zap.Error(err))
			continue
		}

		if !s.eval.CanRead(role, doc.Labels) {
			continue
		}

		res := types.SearchResult{
			ID:      doc.ID,
			Content: doc.Content,
			Labels:  doc.Labels,
			Score:   m.Score,
		}
		if hybrid {
			res.KeywordScore = nlp.KeywordScore(query, doc.Content)
			res.CombinedScore = hybridKeywordWeight*res.KeywordScore + hybridSemanticWeight*res.Score
		}
		results = append(results, res)

		if !hybrid && len(results) == k {
			break
		}
	}

	if hybrid {
		sortByCombined(results)
		if len(results) > k {
			results = results[:k]
		}
	}
	return results
}

func sortByCombined(results []types.SearchResult) {
	// Insertion sort: candidate sets are small after permission filtering
	// and the ranking must stay deterministic (combined desc, id asc).
	for i := 1; i < len(results); i++ {
		for j := i; j > 0; j-- {
			a, b := results[j-1], results[j]
			if b.CombinedScore > a.CombinedScore ||
				(b.CombinedScore == a.CombinedScore && b.ID < a.ID) {
				results[j-1], results[j] = b, a
				continue
			}
			break
		}
	}
}

// embed runs the provider on preprocessed text.  The provider bounds the
// call with its own timeout; this is the request's only suspension point.
func (s *RetrievalService) embed(ctx context.Context, text string) ([]float32, error) {
	cleaned := nlp.CleanText(text)
	if cleaned == "" {
		cleaned = text
	}
	return s.embedder.Embed(ctx, cleaned)
}

// ── Audit helpers ────────────────────────────────────────────────────────────

// appendAudit durably records one decision.  The write is detached from the
// caller's cancellation: once an operation has been authorized, its audit
// record must land even if the client goes away.  A failed append fails the
// request (fail-closed).
func (s *RetrievalService) appendAudit(ctx context.Context, rec store.AuditRecord) error {
	rec.Timestamp = time.Now().UTC()
	if _, err := s.audit.Append(context.WithoutCancel(ctx), rec); err != nil {
		s.logger.Error("audit append failed",
			zap.String("operation", rec.Operation),
			zap.String("decision", rec.Decision),
			zap.Error(err))
		return fmt.Errorf("audit append: %w", err)
	}
	return nil
}

func (s *RetrievalService) auditDenied(ctx context.Context, role, op, docID, reason string) error {
	return s.appendAudit(ctx, store.AuditRecord{
		Role:       role,
		Operation:  op,
		DocumentID: docID,
		Decision:   store.DecisionDenied,
		Outcome:    store.OutcomeSkipped,
		Reason:     reason,
	})
}

func (s *RetrievalService) auditCompleted(ctx context.Context, role, op, docID, reason string) error {
	return s.appendAudit(ctx, store.AuditRecord{
		Role:       role,
		Operation:  op,
		DocumentID: docID,
		Decision:   store.DecisionAllowed,
		Outcome:    store.OutcomeCompleted,
		Reason:     reason,
	})
}

// failAuthorized records an operational failure that happened after
// authorization: decision stays "allowed", outcome becomes "failed".  It
// returns the original error (or the audit error, which takes precedence).
func (s *RetrievalService) failAuthorized(ctx context.Context, role, op, docID string, opErr error) error {
	rec := store.AuditRecord{
		Role:       role,
		Operation:  op,
		DocumentID: docID,
		Decision:   store.DecisionAllowed,
		Outcome:    store.OutcomeFailed,
		Reason:     failureReason(opErr),
	}
	if err := s.appendAudit(ctx, rec); err != nil {
		return err
	}
	return opErr
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, embedding.ErrProviderUnavailable):
		return reasonProviderUnavailable
	case errors.Is(err, index.ErrDimensionMismatch):
		return reasonDimensionMismatch
	default:
		return reasonStorageFailure
	}
}

// ── Rollback helpers ─────────────────────────────────────────────────────────

// rollbackPut undoes a document upsert: restore the prior version, or
// delete the fresh insert.
func (s *RetrievalService) rollbackPut(ctx context.Context, id string, prev *store.Document) {
	var err error
	if prev != nil {
		_, err = s.docs.Put(ctx, *prev)
	} else {
		_, err = s.docs.Delete(ctx, id)
	}
	if err != nil {
		s.logger.Error("store rollback failed", zap.String("id", id), zap.Error(err))
	}
}

// rollbackIndex undoes an index insert the same way.
func (s *RetrievalService) rollbackIndex(ctx context.Context, id string, prev *store.Document) {
	var err error
	if prev != nil {
		err = s.idx.Insert(ctx, id, prev.Embedding)
	} else {
		err = s.idx.Remove(ctx, id)
	}
	if err != nil {
		s.logger.Error("index rollback failed", zap.String("id", id), zap.Error(err))
	}
}

func (s *RetrievalService) restoreIndexEntry(ctx context.Context, id string, vec []float32) {
	if len(vec) == 0 {
		return
	}
	if err := s.idx.Insert(ctx, id, vec); err != nil {
		s.logger.Error("index restore failed", zap.String("id", id), zap.Error(err))
	}
}

// retryOnce re-runs fn after a short backoff; storage and index operations
// get exactly one retry for transient conditions.
func retryOnce(ctx context.Context, fn func() error) error {
	err := fn()
	if err == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return err
	case <-time.After(retryBackoff):
	}
	return fn()
}
