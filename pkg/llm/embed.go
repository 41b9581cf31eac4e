package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
)

// Embedder turns query text into a vector through a langchaingo embedder.
type Embedder struct {
	impl embeddings.Embedder
}

// NewEmbedder wraps any langchaingo embedding client.
func NewEmbedder(client embeddings.EmbedderClient) (*Embedder, error) {
	impl, err := embeddings.NewEmbedder(client)
	if err != nil {
		return nil, fmt.Errorf("llm: embedder: %w", err)
	}
	return &Embedder{impl: impl}, nil
}

// Embed returns the query embedding for text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.impl.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("llm: embed: %w", classify(err))
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("llm: embed: empty vector")
	}
	return vec, nil
}
