package store

import (
	"context"
	"time"
)

// Audit decisions and outcomes.  Decision captures what the evaluator said;
// Outcome captures what happened afterwards.  The two are deliberately
// separate fields so an operational failure after authorization is never
// recorded as an authorization failure.
const (
	DecisionAllowed = "allowed"
	DecisionDenied  = "denied"

	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped" // denied requests never execute
)

// AuditRecord is one entry in the append-only audit trail.  Seq is assigned
// by the store and is the single source of truth for ordering; Timestamp is
// informational and may skew.
type AuditRecord struct {
	Seq        int64
	Timestamp  time.Time
	Role       string
	Operation  string
	DocumentID string // empty for operations without a document target
	Decision   string
	Outcome    string
	Reason     string
}

// AuditStore persists audit records.
//
// Append must assign sequence numbers from a single serialization point:
// strictly increasing, no duplicates, and no gap once assignment has
// started.  A failed append assigns nothing, so a retry reuses the number.
// Append must not return success before the record is durable.
type AuditStore interface {
	Append(ctx context.Context, rec AuditRecord) (seq int64, err error)

	// List returns up to limit records with Seq > afterSeq, in sequence
	// order.  limit <= 0 applies a server-side default.
	List(ctx context.Context, afterSeq int64, limit int) ([]AuditRecord, error)
}
