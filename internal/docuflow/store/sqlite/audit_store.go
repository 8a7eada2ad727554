package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	dbpkg "github.com/docuflow/server/internal/db"
	"github.com/docuflow/server/internal/docuflow/store"
)

const defaultListLimit = 100

type AuditStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewAuditStore(db *sql.DB, writer *dbpkg.Worker) *AuditStore {
	return &AuditStore{db: db, writer: writer}
}

// Append assigns the next sequence number and durably persists the record
// in one transaction.  The write worker serializes every append, so
// MAX(seq)+1 cannot race; a failed transaction assigns nothing, which keeps
// the visible sequence gap-free.
func (s *AuditStore) Append(ctx context.Context, rec store.AuditRecord) (int64, error) {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	var seq int64
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(seq), 0) + 1 FROM audit_log;`,
		).Scan(&seq); err != nil {
			return fmt.Errorf("Append next seq: %w", err)
		}

		var docID any
		if rec.DocumentID != "" {
			docID = rec.DocumentID
		}

		if _, err := tx.ExecContext(ctx, `
INSERT INTO audit_log(seq, ts_ms, role, operation, document_id, decision, outcome, reason)
VALUES (?, ?, ?, ?, ?, ?, ?, ?);
`,
			seq, rec.Timestamp.UTC().UnixMilli(), rec.Role, rec.Operation,
			docID, rec.Decision, rec.Outcome, rec.Reason,
		); err != nil {
			return fmt.Errorf("Append insert: %w", err)
		}

		return nil
	})
	if err != nil {
		return 0, err
	}
	return seq, nil
}

func (s *AuditStore) List(ctx context.Context, afterSeq int64, limit int) ([]store.AuditRecord, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT seq, ts_ms, role, operation, document_id, decision, outcome, reason
FROM audit_log
WHERE seq > ?
ORDER BY seq
LIMIT ?;
`, afterSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	defer rows.Close()

	var recs []store.AuditRecord
	for rows.Next() {
		var (
			rec    store.AuditRecord
			tsMs   int64
			docID  sql.NullString
			reason sql.NullString
		)
		if err := rows.Scan(&rec.Seq, &tsMs, &rec.Role, &rec.Operation, &docID, &rec.Decision, &rec.Outcome, &reason); err != nil {
			return nil, fmt.Errorf("List scan: %w", err)
		}
		rec.Timestamp = time.UnixMilli(tsMs).UTC()
		rec.DocumentID = docID.String
		rec.Reason = reason.String
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
