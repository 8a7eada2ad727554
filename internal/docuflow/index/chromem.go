package index

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"
)

// ChromemConfig configures the persistent index backend.
type ChromemConfig struct {
	// Path is the directory the index snapshot lives in.
	Path string

	// Collection is the chromem collection name.
	// Default: "docuflow_documents".
	Collection string

	// Dimension is the embedding width the index accepts.
	Dimension int

	// Compress enables gzip compression of the persisted entries.
	Compress bool
}

func (c *ChromemConfig) applyDefaults() {
	if c.Collection == "" {
		c.Collection = "docuflow_documents"
	}
}

// ChromemIndex is the durable index backend, built on chromem-go: an
// embeddable pure-Go vector database that persists every entry to the
// configured directory.  Entries always carry precomputed embeddings, so
// the collection's embedding function is never invoked.
//
// chromem ranks by similarity but leaves equal-score ordering unspecified,
// so Search always pulls the full candidate set and re-ranks through the
// same rank helper the memory backend uses.
type ChromemIndex struct {
	col    *chromem.Collection
	dim    int
	logger *zap.Logger

	// mu serializes mutations so a replace (Insert over an existing id)
	// is never interleaved with another writer.  Searches go through
	// chromem's own read path.
	mu sync.Mutex
}

func NewChromemIndex(cfg ChromemConfig, logger *zap.Logger) (*ChromemIndex, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.applyDefaults()
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("index dimension must be positive, got %d", cfg.Dimension)
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("index path is required")
	}

	if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}

	db, err := chromem.NewPersistentDB(cfg.Path, cfg.Compress)
	if err != nil {
		return nil, fmt.Errorf("open chromem db: %w", err)
	}

	col, err := db.GetOrCreateCollection(cfg.Collection, nil, rejectTextEmbedding)
	if err != nil {
		return nil, fmt.Errorf("open collection %q: %w", cfg.Collection, err)
	}

	logger.Info("vector index opened",
		zap.String("path", cfg.Path),
		zap.String("collection", cfg.Collection),
		zap.Int("dimension", cfg.Dimension),
		zap.Int("entries", col.Count()),
	)

	return &ChromemIndex{col: col, dim: cfg.Dimension, logger: logger}, nil
}

// rejectTextEmbedding is the collection's embedding function.  Every entry
// arrives with its embedding precomputed, so any invocation is a bug.
func rejectTextEmbedding(context.Context, string) ([]float32, error) {
	return nil, errors.New("index stores precomputed embeddings only")
}

func (c *ChromemIndex) Insert(ctx context.Context, id string, vec []float32) error {
	if len(vec) != c.dim {
		return fmt.Errorf("%w: got %d, index dimension is %d", ErrDimensionMismatch, len(vec), c.dim)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Content mirrors the id so the entry is valid standalone; the
	// document store owns the real content.
	doc := chromem.Document{
		ID:        id,
		Content:   id,
		Embedding: Normalize(vec),
	}
	if err := c.col.AddDocuments(ctx, []chromem.Document{doc}, 1); err != nil {
		return fmt.Errorf("index insert %s: %w", id, err)
	}

	c.logger.Debug("index entry upserted", zap.String("id", id))
	return nil
}

func (c *ChromemIndex) Remove(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.col.Count() == 0 {
		return nil
	}
	if err := c.col.Delete(ctx, nil, nil, id); err != nil {
		return fmt.Errorf("index remove %s: %w", id, err)
	}

	c.logger.Debug("index entry removed", zap.String("id", id))
	return nil
}

func (c *ChromemIndex) Search(ctx context.Context, query []float32, k int, minScore float32) ([]Match, error) {
	if len(query) != c.dim {
		return nil, fmt.Errorf("%w: got %d, index dimension is %d", ErrDimensionMismatch, len(query), c.dim)
	}

	n := c.col.Count()
	if n == 0 {
		return nil, nil
	}

	results, err := c.col.QueryEmbedding(ctx, Normalize(query), n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("index search: %w", err)
	}

	matches := make([]Match, 0, len(results))
	for _, r := range results {
		matches = append(matches, Match{ID: r.ID, Score: r.Similarity})
	}
	return rank(matches, k, minScore), nil
}

func (c *ChromemIndex) Count() int { return c.col.Count() }

func (c *ChromemIndex) Dimension() int { return c.dim }
