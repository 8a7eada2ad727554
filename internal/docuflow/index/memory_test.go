package index_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuflow/server/internal/docuflow/index"
)

func TestSearch_RanksByCosineDescending(t *testing.T) {
	ctx := context.Background()
	idx := index.NewMemoryIndex(3)

	require.NoError(t, idx.Insert(ctx, "far", []float32{0, 0, 1}))
	require.NoError(t, idx.Insert(ctx, "near", []float32{1, 0.1, 0}))
	require.NoError(t, idx.Insert(ctx, "exact", []float32{2, 0, 0}))

	matches, err := idx.Search(ctx, []float32{1, 0, 0}, 3, -1)
	require.NoError(t, err)
	require.Len(t, matches, 3)

	assert.Equal(t, "exact", matches[0].ID)
	assert.Equal(t, "near", matches[1].ID)
	assert.Equal(t, "far", matches[2].ID)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-5, "identical direction scores 1 after normalization")
}

func TestSearch_EqualScoresBreakTiesByAscendingID(t *testing.T) {
	ctx := context.Background()
	idx := index.NewMemoryIndex(2)

	// Same direction, different magnitudes: identical cosine after
	// normalization on insert.
	require.NoError(t, idx.Insert(ctx, "bbb", []float32{2, 2}))
	require.NoError(t, idx.Insert(ctx, "aaa", []float32{1, 1}))
	require.NoError(t, idx.Insert(ctx, "ccc", []float32{5, 5}))

	matches, err := idx.Search(ctx, []float32{1, 1}, 3, -1)
	require.NoError(t, err)
	require.Len(t, matches, 3)

	assert.Equal(t, []string{"aaa", "bbb", "ccc"},
		[]string{matches[0].ID, matches[1].ID, matches[2].ID})
}

func TestSearch_MinScoreFiltersBeforeTruncation(t *testing.T) {
	ctx := context.Background()
	idx := index.NewMemoryIndex(2)

	require.NoError(t, idx.Insert(ctx, "aligned", []float32{1, 0}))
	require.NoError(t, idx.Insert(ctx, "orthogonal", []float32{0, 1}))
	require.NoError(t, idx.Insert(ctx, "opposed", []float32{-1, 0}))

	matches, err := idx.Search(ctx, []float32{1, 0}, 10, 0.5)
	require.NoError(t, err)

	require.Len(t, matches, 1, "only the aligned vector clears the floor")
	assert.Equal(t, "aligned", matches[0].ID)
}

func TestSearch_KTruncatesAndZeroMeansAll(t *testing.T) {
	ctx := context.Background()
	idx := index.NewMemoryIndex(2)

	require.NoError(t, idx.Insert(ctx, "a", []float32{1, 0}))
	require.NoError(t, idx.Insert(ctx, "b", []float32{1, 0.1}))
	require.NoError(t, idx.Insert(ctx, "c", []float32{1, 0.2}))

	top1, err := idx.Search(ctx, []float32{1, 0}, 1, -1)
	require.NoError(t, err)
	require.Len(t, top1, 1)
	assert.Equal(t, "a", top1[0].ID)

	all, err := idx.Search(ctx, []float32{1, 0}, 0, -1)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	over, err := idx.Search(ctx, []float32{1, 0}, 50, -1)
	require.NoError(t, err)
	assert.Len(t, over, 3, "k larger than the index returns what exists")
}

func TestSearch_EmptyIndexReturnsEmpty(t *testing.T) {
	idx := index.NewMemoryIndex(2)

	matches, err := idx.Search(context.Background(), []float32{1, 0}, 5, -1)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestInsert_DimensionMismatchRejectedWithoutCorruption(t *testing.T) {
	ctx := context.Background()
	idx := index.NewMemoryIndex(3)

	require.NoError(t, idx.Insert(ctx, "ok", []float32{1, 0, 0}))

	err := idx.Insert(ctx, "bad", []float32{1, 0})
	require.ErrorIs(t, err, index.ErrDimensionMismatch)

	assert.Equal(t, 1, idx.Count(), "failed insert must not change the index")

	matches, err := idx.Search(ctx, []float32{1, 0, 0}, 5, -1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "ok", matches[0].ID)
}

func TestSearch_DimensionMismatchRejected(t *testing.T) {
	idx := index.NewMemoryIndex(3)

	_, err := idx.Search(context.Background(), []float32{1, 0}, 5, -1)
	require.ErrorIs(t, err, index.ErrDimensionMismatch)
}

func TestInsert_SameIDReplacesVector(t *testing.T) {
	ctx := context.Background()
	idx := index.NewMemoryIndex(2)

	require.NoError(t, idx.Insert(ctx, "doc", []float32{0, 1}))
	require.NoError(t, idx.Insert(ctx, "doc", []float32{1, 0}))

	assert.Equal(t, 1, idx.Count())

	matches, err := idx.Search(ctx, []float32{1, 0}, 1, -1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-5)
}

func TestRemove_AbsentIDIsNoOp(t *testing.T) {
	ctx := context.Background()
	idx := index.NewMemoryIndex(2)

	require.NoError(t, idx.Insert(ctx, "doc", []float32{1, 0}))
	require.NoError(t, idx.Remove(ctx, "ghost"))
	assert.Equal(t, 1, idx.Count())

	require.NoError(t, idx.Remove(ctx, "doc"))
	assert.Equal(t, 0, idx.Count())
}

func TestNormalize_ZeroVectorUnchanged(t *testing.T) {
	got := index.Normalize([]float32{0, 0, 0})
	assert.Equal(t, []float32{0, 0, 0}, got)
}
