package vector

import (
	"math"
	"testing"
)

func TestCosineSimilarity_SelfAndSymmetry(t *testing.T) {
	a := []float32{0.3, -0.5, 0.8, 0.1}
	b := []float32{-0.2, 0.9, 0.4, 0.7}
	if got := CosineSimilarity(a, a); math.Abs(got-1) > 1e-6 {
		t.Errorf("cos(a,a) = %f, want 1", got)
	}
	ab := CosineSimilarity(a, b)
	ba := CosineSimilarity(b, a)
	if math.Abs(ab-ba) > 1e-12 {
		t.Errorf("cosine not symmetric: %f vs %f", ab, ba)
	}
}

func TestCosineSimilarity_ZeroNorm(t *testing.T) {
	zero := []float32{0, 0, 0}
	a := []float32{1, 0, 0}
	if got := CosineSimilarity(zero, a); got != 0 {
		t.Errorf("zero-norm similarity = %f, want 0", got)
	}
}

func TestCosineSimilarity_NonUnitVectors(t *testing.T) {
	a := []float32{2, 0}
	b := []float32{5, 0}
	if got := CosineSimilarity(a, b); math.Abs(got-1) > 1e-6 {
		t.Errorf("parallel non-unit vectors = %f, want 1", got)
	}
	c := []float32{0, 3}
	if got := CosineSimilarity(a, c); math.Abs(got) > 1e-6 {
		t.Errorf("orthogonal vectors = %f, want 0", got)
	}
}

func TestCosineDistance(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{-1, 0}
	if got := CosineDistance(a, a); math.Abs(got) > 1e-6 {
		t.Errorf("distance to self = %f, want 0", got)
	}
	if got := CosineDistance(a, b); math.Abs(got-2) > 1e-6 {
		t.Errorf("distance to opposite = %f, want 2", got)
	}
}
