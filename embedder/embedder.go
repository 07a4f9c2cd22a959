// Package embedder provides clients for external embedding providers.
// The subsystem never generates embeddings itself; it delegates to a
// provider behind this interface.
package embedder

import (
	"context"
	"fmt"
	"os"
)

// Embedder converts text to a fixed-dimension vector.
type Embedder interface {
	// Embed converts a single text to an embedding vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int
}

// Options selects and configures a provider.
type Options struct {
	// Provider is "openai" for any OpenAI-compatible API, or "mock"
	// for the deterministic offline embedder.
	Provider string

	BaseURL    string
	Model      string
	Dimensions int

	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv string
}

// New builds an Embedder from options. An empty provider selects the
// mock so local wiring works without network access.
func New(opts Options) (Embedder, error) {
	switch opts.Provider {
	case "", "mock":
		return NewMock(opts.Dimensions), nil
	case "openai":
		key := ""
		if opts.APIKeyEnv != "" {
			key = os.Getenv(opts.APIKeyEnv)
		}
		return NewOpenAI(opts.BaseURL, key, opts.Model, opts.Dimensions), nil
	default:
		return nil, fmt.Errorf("embedder: unknown provider %q", opts.Provider)
	}
}
