package embedding

import (
	"context"
	"math"
	"testing"
)

func TestSimpleTokenizer_Shape(t *testing.T) {
	tok := &SimpleTokenizer{}
	ids := tok.Tokenize("homer eating donuts")
	if len(ids) != clipContextLength {
		t.Fatalf("token length = %d, want %d", len(ids), clipContextLength)
	}
	if ids[0] != clipStartToken {
		t.Errorf("first token = %d, want start token", ids[0])
	}
	if ids[4] != clipEndToken {
		t.Errorf("token after 3 words = %d, want end token", ids[4])
	}
	for _, id := range ids {
		if id < 0 || id >= clipVocabSize {
			t.Errorf("token id %d out of vocab range", id)
		}
	}
}

func TestSimpleTokenizer_Deterministic(t *testing.T) {
	tok := &SimpleTokenizer{}
	a := tok.Tokenize("marge angry")
	b := tok.Tokenize("marge angry")
	for i := range a {
		if a[i] != b[i] {
			t.Fatal("tokenization not deterministic")
		}
	}
}

func TestMockEmbedder_DeterministicAndNormalized(t *testing.T) {
	e := NewMockEmbedder(64)
	ctx := context.Background()
	a, err := e.EmbedText(ctx, "homer")
	if err != nil {
		t.Fatal(err)
	}
	b, _ := e.EmbedText(ctx, "homer")
	other, _ := e.EmbedText(ctx, "marge")
	var norm, dot float64
	same := true
	for i := range a {
		norm += float64(a[i] * a[i])
		dot += float64(a[i] * b[i])
		if a[i] != other[i] {
			same = false
		}
	}
	if math.Abs(norm-1) > 1e-5 {
		t.Errorf("norm = %f, want 1", norm)
	}
	if math.Abs(dot-1) > 1e-5 {
		t.Error("same text should give identical embedding")
	}
	if same {
		t.Error("different texts should give different embeddings")
	}
	img, err := e.EmbedImage(ctx, "frames/ep1/frame_00001.jpg")
	if err != nil || len(img) != 64 {
		t.Errorf("EmbedImage: len=%d err=%v", len(img), err)
	}
}
