package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms/ollama"
	"golang.org/x/time/rate"
)

type OllamaConfig struct {
	// BaseURL is the Ollama server URL.  Default: "http://localhost:11434".
	BaseURL string

	// Model is the embedding model name.  Default: "nomic-embed-text".
	Model string

	// Dimension is the expected vector width of the model's output.
	// Default: 768 (nomic-embed-text).
	Dimension int

	// Timeout bounds a single embedding call.  Default: 10s.
	Timeout time.Duration

	// RequestsPerSecond rate-limits provider calls; 0 disables limiting.
	RequestsPerSecond float64
}

func (c *OllamaConfig) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:11434"
	}
	if c.Model == "" {
		c.Model = "nomic-embed-text"
	}
	if c.Dimension == 0 {
		c.Dimension = 768
	}
	if c.Timeout == 0 {
		c.Timeout = 10 * time.Second
	}
}

// OllamaProvider obtains embeddings from a local or remote Ollama server.
type OllamaProvider struct {
	llm     *ollama.LLM
	cfg     OllamaConfig
	limiter *rate.Limiter
}

func NewOllamaProvider(cfg OllamaConfig) (*OllamaProvider, error) {
	cfg.applyDefaults()

	llm, err := ollama.New(
		ollama.WithModel(cfg.Model),
		ollama.WithServerURL(cfg.BaseURL),
	)
	if err != nil {
		return nil, fmt.Errorf("init ollama client: %w", err)
	}

	p := &OllamaProvider{llm: llm, cfg: cfg}
	if cfg.RequestsPerSecond > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return p, nil
}

func (p *OllamaProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	vecs, err := p.llm.CreateEmbedding(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("%w: expected 1 embedding, got %d", ErrProviderUnavailable, len(vecs))
	}

	vec := vecs[0]
	if len(vec) != p.cfg.Dimension {
		return nil, fmt.Errorf("model %s returned dimension %d, configured %d",
			p.cfg.Model, len(vec), p.cfg.Dimension)
	}
	return vec, nil
}

func (p *OllamaProvider) Dimension() int { return p.cfg.Dimension }
