package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when no document exists under the id.
var ErrNotFound = errors.New("document not found")

// Document is the canonical stored form of an ingested document.  The
// vector index holds only the id; the store owns everything else.
type Document struct {
	ID       string
	Content  string
	Labels   []string
	Metadata map[string]string

	// Embedding is the cached vector derived from Content at ingest time.
	Embedding []float32

	CreatedAt time.Time
	UpdatedAt time.Time
}

// DocumentStore persists documents by id.  Mutations must be visible to any
// Get issued after the mutation returns.
type DocumentStore interface {
	// Put upserts by id and returns the prior version, if one existed.
	Put(ctx context.Context, doc Document) (prev *Document, err error)

	// Get returns the document or ErrNotFound.
	Get(ctx context.Context, id string) (Document, error)

	// Delete removes the document, reporting whether anything was removed.
	Delete(ctx context.Context, id string) (removed bool, err error)
}
