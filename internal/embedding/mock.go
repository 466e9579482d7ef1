package embedding

import (
	"context"
	"math"

	"github.com/scenedex/scenedex/pkg/utils"
)

// MockEmbedder is a deterministic embedder for tests. The same text or image
// path always gets the same unit-normalized embedding.
type MockEmbedder struct {
	dimensions int
}

// NewMockEmbedder returns an embedder producing deterministic embeddings of
// the given dimensions.
func NewMockEmbedder(dimensions int) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = 512
	}
	return &MockEmbedder{dimensions: dimensions}
}

// EmbedText returns a deterministic embedding based on the text hash.
func (e *MockEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return e.fromSeed(HashString(text)), nil
}

// EmbedImage returns a deterministic embedding based on the path hash.
func (e *MockEmbedder) EmbedImage(ctx context.Context, imagePath string) ([]float32, error) {
	return e.fromSeed(HashString(imagePath)), nil
}

func (e *MockEmbedder) fromSeed(seed int) []float32 {
	emb := make([]float32, e.dimensions)
	for i := 0; i < e.dimensions; i++ {
		emb[i] = float32(math.Sin(float64(seed*(i+1)))*0.1 + 0.01)
	}
	utils.NormalizeL2(emb)
	return emb
}

// Dimensions returns the embedding dimension.
func (e *MockEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for MockEmbedder.
func (e *MockEmbedder) Close() error {
	return nil
}
