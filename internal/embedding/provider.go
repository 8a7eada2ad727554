// Package embedding maps text to fixed-dimension vectors via an injectable
// provider.  The provider call is the retrieval path's only network-bound
// suspension point, so implementations are expected to bound it with a
// timeout and surface failures as ErrProviderUnavailable.
package embedding

import (
	"context"
	"errors"
)

// ErrProviderUnavailable wraps any failure to obtain an embedding from the
// provider, including timeouts.
var ErrProviderUnavailable = errors.New("embedding provider unavailable")

type Provider interface {
	// Embed returns the vector for text.  The returned slice has
	// Dimension() elements on success.
	Embed(ctx context.Context, text string) ([]float32, error)

	Dimension() int
}
