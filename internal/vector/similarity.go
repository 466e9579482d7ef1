// Package vector provides the frame vector index and similarity helpers.
package vector

import "math"

// CosineSimilarity returns the cosine similarity of a and b in [-1, 1].
// Vectors are normalized here, so callers may pass non-unit vectors. A
// zero-norm vector makes the similarity undefined; 0 is returned so that
// callers treat it as "not similar" rather than failing.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// CosineDistance returns 1 - CosineSimilarity(a, b); 0 means identical direction.
func CosineDistance(a, b []float32) float64 {
	return 1 - CosineSimilarity(a, b)
}

// InnerProduct returns the inner product of two vectors (for normalized
// vectors this equals cosine similarity).
func InnerProduct(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i] * b[i])
	}
	return dot
}

// L2Norm returns the L2 norm of a vector.
func L2Norm(x []float32) float64 {
	var sum float64
	for _, v := range x {
		sum += float64(v * v)
	}
	return math.Sqrt(sum)
}
