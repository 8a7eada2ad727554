package memory

import (
	"context"
	"sync"
	"time"

	"github.com/docuflow/server/internal/docuflow/store"
)

// DocumentStore is an in-memory document store for tests and dev
// environments.  All documents are deep-copied on the way in and out so
// callers never alias internal state.
type DocumentStore struct {
	mu   sync.RWMutex
	docs map[string]store.Document
}

func NewDocumentStore() *DocumentStore {
	return &DocumentStore{docs: make(map[string]store.Document)}
}

func (s *DocumentStore) Put(_ context.Context, doc store.Document) (*store.Document, error) {
	now := time.Now().UTC()
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = now
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var prev *store.Document
	if old, ok := s.docs[doc.ID]; ok {
		c := copyDocument(old)
		prev = &c
		doc.CreatedAt = old.CreatedAt
	} else if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}

	s.docs[doc.ID] = copyDocument(doc)
	return prev, nil
}

func (s *DocumentStore) Get(_ context.Context, id string) (store.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[id]
	if !ok {
		return store.Document{}, store.ErrNotFound
	}
	return copyDocument(doc), nil
}

func (s *DocumentStore) Delete(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.docs[id]
	delete(s.docs, id)
	return ok, nil
}

// Len returns the number of stored documents.  Test helper.
func (s *DocumentStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

func copyDocument(doc store.Document) store.Document {
	out := doc
	if doc.Labels != nil {
		out.Labels = append([]string(nil), doc.Labels...)
	}
	if doc.Metadata != nil {
		out.Metadata = make(map[string]string, len(doc.Metadata))
		for k, v := range doc.Metadata {
			out.Metadata[k] = v
		}
	}
	if doc.Embedding != nil {
		out.Embedding = append([]float32(nil), doc.Embedding...)
	}
	return out
}
