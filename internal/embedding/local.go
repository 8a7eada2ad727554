package embedding

import (
	"context"
	"hash/fnv"

	"github.com/docuflow/server/internal/nlp"
)

// LocalProvider is a deterministic offline embedder: each token is hashed
// into one of Dimension buckets and the bucket counts form the vector.
// Identical text always embeds identically and shared vocabulary raises
// cosine similarity, which is what the retrieval tests and dev deployments
// without an Ollama server need.  It is not a semantic model.
type LocalProvider struct {
	dim int
}

func NewLocalProvider(dim int) *LocalProvider {
	if dim <= 0 {
		dim = 384
	}
	return &LocalProvider{dim: dim}
}

func (p *LocalProvider) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, p.dim)
	for _, tok := range nlp.Tokenize(text) {
		h := fnv.New32a()
		h.Write([]byte(tok))
		vec[int(h.Sum32())%p.dim]++
	}
	return vec, nil
}

func (p *LocalProvider) Dimension() int { return p.dim }
