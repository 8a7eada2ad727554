package memory

import (
	"context"
	"sync"
	"time"

	"github.com/docuflow/server/internal/docuflow/store"
)

// AuditStore is an in-memory append-only audit log for tests and dev
// environments.  The mutex is the serialization point for sequence
// assignment, mirroring the sqlite store's write worker.
type AuditStore struct {
	mu   sync.Mutex
	recs []store.AuditRecord
}

func NewAuditStore() *AuditStore {
	return &AuditStore{}
}

func (s *AuditStore) Append(_ context.Context, rec store.AuditRecord) (int64, error) {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec.Seq = int64(len(s.recs)) + 1
	s.recs = append(s.recs, rec)
	return rec.Seq, nil
}

func (s *AuditStore) List(_ context.Context, afterSeq int64, limit int) ([]store.AuditRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []store.AuditRecord
	for _, rec := range s.recs {
		if rec.Seq <= afterSeq {
			continue
		}
		out = append(out, rec)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// Records returns a copy of all appended records.  Test-only helper.
func (s *AuditStore) Records() []store.AuditRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.AuditRecord, len(s.recs))
	copy(out, s.recs)
	return out
}
