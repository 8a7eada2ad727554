package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	dbpkg "github.com/docuflow/server/internal/db"
	"github.com/docuflow/server/internal/docuflow/store"
)

type DocumentStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewDocumentStore(db *sql.DB, writer *dbpkg.Worker) *DocumentStore {
	return &DocumentStore{db: db, writer: writer}
}

func (s *DocumentStore) Put(ctx context.Context, doc store.Document) (*store.Document, error) {
	doc.ID = strings.TrimSpace(doc.ID)
	if doc.ID == "" {
		return nil, fmt.Errorf("Put: document id is required")
	}

	now := time.Now().UTC()
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = now
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}

	labels, err := json.Marshal(doc.Labels)
	if err != nil {
		return nil, fmt.Errorf("Put marshal labels: %w", err)
	}
	metadata, err := json.Marshal(doc.Metadata)
	if err != nil {
		return nil, fmt.Errorf("Put marshal metadata: %w", err)
	}
	embedding := encodeVector(doc.Embedding)

	var prev *store.Document
	err = s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		// Capture the prior version before the upsert so callers can audit
		// or roll back a re-ingest.
		row := tx.QueryRowContext(ctx, `
SELECT id, content, labels, metadata, embedding, created_at_ms, updated_at_ms
FROM documents WHERE id = ?;
`, doc.ID)
		p, err := scanDocument(row)
		switch {
		case err == sql.ErrNoRows:
			prev = nil
		case err != nil:
			return fmt.Errorf("Put read prior version: %w", err)
		default:
			prev = &p
			// Re-ingest keeps the original creation time.
			doc.CreatedAt = p.CreatedAt
		}

		if _, err := tx.ExecContext(ctx, `
INSERT INTO documents(id, content, labels, metadata, embedding, created_at_ms, updated_at_ms)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  content       = excluded.content,
  labels        = excluded.labels,
  metadata      = excluded.metadata,
  embedding     = excluded.embedding,
  updated_at_ms = excluded.updated_at_ms;
`,
			doc.ID, doc.Content, string(labels), string(metadata), embedding,
			doc.CreatedAt.UnixMilli(), doc.UpdatedAt.UnixMilli(),
		); err != nil {
			return fmt.Errorf("Put upsert: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}
	return prev, nil
}

func (s *DocumentStore) Get(ctx context.Context, id string) (store.Document, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, content, labels, metadata, embedding, created_at_ms, updated_at_ms
FROM documents WHERE id = ?;
`, id)

	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return store.Document{}, store.ErrNotFound
	}
	if err != nil {
		return store.Document{}, fmt.Errorf("Get %s: %w", id, err)
	}
	return doc, nil
}

func (s *DocumentStore) Delete(ctx context.Context, id string) (bool, error) {
	var removed bool
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?;`, id)
		if err != nil {
			return fmt.Errorf("Delete %s: %w", id, err)
		}
		n, _ := res.RowsAffected()
		removed = n > 0
		return nil
	})
	return removed, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (store.Document, error) {
	var (
		doc       store.Document
		labels    string
		metadata  string
		embedding []byte
		createdMs int64
		updatedMs int64
	)

	err := row.Scan(&doc.ID, &doc.Content, &labels, &metadata, &embedding, &createdMs, &updatedMs)
	if err != nil {
		return store.Document{}, err
	}

	if err := json.Unmarshal([]byte(labels), &doc.Labels); err != nil {
		return store.Document{}, fmt.Errorf("decode labels for %s: %w", doc.ID, err)
	}
	if err := json.Unmarshal([]byte(metadata), &doc.Metadata); err != nil {
		return store.Document{}, fmt.Errorf("decode metadata for %s: %w", doc.ID, err)
	}
	doc.Embedding = decodeVector(embedding)
	doc.CreatedAt = time.UnixMilli(createdMs).UTC()
	doc.UpdatedAt = time.UnixMilli(updatedMs).UTC()
	return doc, nil
}
