// Package index provides nearest-neighbour search over document embeddings.
//
// An index holds (document id, embedding) pairs only; document content and
// labels live in the document store.  The invariant the orchestrator
// maintains is that an entry exists here if and only if the document exists
// in the store.
package index

import (
	"context"
	"errors"
	"math"
	"sort"
)

// ErrDimensionMismatch is returned when a vector does not match the index's
// configured dimension.  The index is left untouched.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Match is one ranked search candidate.
type Match struct {
	ID    string
	Score float32
}

// Index is the vector index contract.  Similarity is cosine (vectors are
// normalized on insert, so inner product).
type Index interface {
	// Insert adds or replaces the entry for id.  Idempotent for the same
	// (id, vector) pair.
	Insert(ctx context.Context, id string, vec []float32) error

	// Remove deletes the entry; removing an absent id is a no-op.
	Remove(ctx context.Context, id string) error

	// Search returns candidates ranked by score descending, ties broken by
	// ascending id, excluding scores below minScore.  k <= 0 returns every
	// candidate that clears minScore.  An empty index yields an empty
	// result, not an error.
	Search(ctx context.Context, query []float32, k int, minScore float32) ([]Match, error)

	Count() int
	Dimension() int
}

// Normalize returns a unit-length copy of vec.  Embedding magnitude carries
// no meaning for the providers we use, so all vectors are normalized before
// they enter an index.  A zero vector is returned unchanged (as a copy).
func Normalize(vec []float32) []float32 {
	out := make([]float32, len(vec))
	copy(out, vec)

	var sum float64
	for _, v := range out {
		sum += float64(v) * float64(v)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return out
	}
	for i := range out {
		out[i] = float32(float64(out[i]) / norm)
	}
	return out
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// rank sorts matches by score descending with ascending-id tie-break,
// drops entries below minScore, and truncates to k when k > 0.
func rank(matches []Match, k int, minScore float32) []Match {
	kept := matches[:0]
	for _, m := range matches {
		if m.Score >= minScore {
			kept = append(kept, m)
		}
	}
	sort.Slice(kept, func(i, j int) bool {
		if kept[i].Score != kept[j].Score {
			return kept[i].Score > kept[j].Score
		}
		return kept[i].ID < kept[j].ID
	})
	if k > 0 && len(kept) > k {
		kept = kept[:k]
	}
	return kept
}
