// Package embedding provides CLIP embeddings for text queries and frame
// images, via ONNX Runtime when built with CGO, plus caching and a
// deterministic mock for tests.
package embedding

import "context"

// Embedder projects text and images into the shared CLIP similarity space.
// Returned vectors are unit-normalized.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
	EmbedImage(ctx context.Context, imagePath string) ([]float32, error)
	Dimensions() int
	Close() error
}
