package index

import (
	"context"
	"fmt"
	"sync"
)

// MemoryIndex is a brute-force in-memory index.  It is the backend for
// tests and dev environments, and the reference for the ranking semantics
// the persistent backend must match.
type MemoryIndex struct {
	dim  int
	mu   sync.RWMutex
	vecs map[string][]float32
}

func NewMemoryIndex(dim int) *MemoryIndex {
	return &MemoryIndex{
		dim:  dim,
		vecs: make(map[string][]float32),
	}
}

func (m *MemoryIndex) Insert(_ context.Context, id string, vec []float32) error {
	if len(vec) != m.dim {
		return fmt.Errorf("%w: got %d, index dimension is %d", ErrDimensionMismatch, len(vec), m.dim)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.vecs[id] = Normalize(vec)
	return nil
}

func (m *MemoryIndex) Remove(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.vecs, id)
	return nil
}

func (m *MemoryIndex) Search(_ context.Context, query []float32, k int, minScore float32) ([]Match, error) {
	if len(query) != m.dim {
		return nil, fmt.Errorf("%w: got %d, index dimension is %d", ErrDimensionMismatch, len(query), m.dim)
	}
	q := Normalize(query)

	m.mu.RLock()
	matches := make([]Match, 0, len(m.vecs))
	for id, vec := range m.vecs {
		matches = append(matches, Match{ID: id, Score: dot(q, vec)})
	}
	m.mu.RUnlock()

	return rank(matches, k, minScore), nil
}

func (m *MemoryIndex) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.vecs)
}

func (m *MemoryIndex) Dimension() int { return m.dim }
