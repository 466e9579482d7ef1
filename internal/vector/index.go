package vector

import "context"

// FrameIndex defines vector storage and k-NN search over frame embeddings.
// Entries are keyed by frame path, the record's natural identifier.
type FrameIndex interface {
	Add(ctx context.Context, paths []string, vectors [][]float32) error
	// Search returns the k nearest entries by cosine distance, ascending
	// (0 = identical direction). Vectors are assumed unit-normalized.
	Search(ctx context.Context, query []float32, k int) ([]*Result, error)
	Remove(ctx context.Context, paths []string) error
	// Vector returns the stored embedding for a path, for similar-to-frame
	// queries where the query vector is the frame's own embedding.
	Vector(path string) ([]float32, bool)
	Save(path string) error
	Load(path string) error
	Size() int
	Close() error
}

// Result is a single k-NN hit.
type Result struct {
	Path     string
	Distance float64 // cosine distance; 0 = identical, larger = more dissimilar
}
