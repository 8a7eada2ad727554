package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/docuflow/server/internal/docuflow/security"
	"github.com/docuflow/server/internal/docuflow/store"
	"github.com/docuflow/server/internal/docuflow/types"
)

// AuditService is the read surface over the audit trail.  Reading the
// trail is itself an audited, capability-gated operation; the record for
// the read lands after the listing so callers do not see their own entry.
type AuditService struct {
	audit  store.AuditStore
	eval   *security.Evaluator
	logger *zap.Logger
}

func NewAuditService(audit store.AuditStore, eval *security.Evaluator, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{audit: audit, eval: eval, logger: logger}
}

func (s *AuditService) List(ctx context.Context, role string, afterSeq int64, limit int) (types.AuditListResponse, error) {
	decision := s.eval.DecideCapability(role, security.CapViewAuditLogs)
	if !decision.Allowed {
		if err := s.append(ctx, role, store.DecisionDenied, store.OutcomeSkipped, decision.Reason); err != nil {
			return types.AuditListResponse{}, err
		}
		return types.AuditListResponse{}, &AccessDeniedError{Reason: decision.Reason}
	}

	records, err := s.audit.List(ctx, afterSeq, limit)
	if err != nil {
		if auditErr := s.append(ctx, role, store.DecisionAllowed, store.OutcomeFailed, reasonStorageFailure); auditErr != nil {
			return types.AuditListResponse{}, auditErr
		}
		return types.AuditListResponse{}, err
	}

	if err := s.append(ctx, role, store.DecisionAllowed, store.OutcomeCompleted, decision.Reason); err != nil {
		return types.AuditListResponse{}, err
	}

	entries := make([]types.AuditEntry, 0, len(records))
	for _, r := range records {
		entries = append(entries, types.AuditEntry{
			Seq:        r.Seq,
			Timestamp:  r.Timestamp.Format(time.RFC3339Nano),
			Role:       r.Role,
			Operation:  r.Operation,
			DocumentID: r.DocumentID,
			Decision:   r.Decision,
			Outcome:    r.Outcome,
			Reason:     r.Reason,
		})
	}
	return types.AuditListResponse{OK: true, Entries: entries}, nil
}

func (s *AuditService) append(ctx context.Context, role, decision, outcome, reason string) error {
	rec := store.AuditRecord{
		Timestamp: time.Now().UTC(),
		Role:      role,
		Operation: opViewAuditLogs,
		Decision:  decision,
		Outcome:   outcome,
		Reason:    reason,
	}
	if _, err := s.audit.Append(context.WithoutCancel(ctx), rec); err != nil {
		s.logger.Error("audit append failed", zap.String("operation", opViewAuditLogs), zap.Error(err))
		return err
	}
	return nil
}
