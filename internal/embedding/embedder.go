// Package embedding provides text embedding providers and an embedding cache.
package embedding

import "context"

// Embedder produces fixed-dimension vector embeddings for text. Both calls honor ctx cancellation.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}
