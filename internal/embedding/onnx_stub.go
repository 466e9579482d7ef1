//go:build !cgo
// +build !cgo

package embedding

import (
	"context"
	"errors"
)

// ONNXEmbedder stub type when built without CGO (see onnx.go for the real
// implementation).
type ONNXEmbedder struct{}

// NewONNXEmbedder returns an error when built without CGO (ONNX not available).
func NewONNXEmbedder(_, _ string, _, _ int) (*ONNXEmbedder, error) {
	return nil, errors.New("ONNX embedder requires CGO; build with CGO_ENABLED=1 and onnxruntime")
}

// EmbedText is unavailable without CGO.
func (e *ONNXEmbedder) EmbedText(context.Context, string) ([]float32, error) {
	return nil, errors.New("ONNX embedder not available")
}

// EmbedImage is unavailable without CGO.
func (e *ONNXEmbedder) EmbedImage(context.Context, string) ([]float32, error) {
	return nil, errors.New("ONNX embedder not available")
}

// Dimensions returns 0 for the stub.
func (e *ONNXEmbedder) Dimensions() int { return 0 }

// Close is a no-op for the stub.
func (e *ONNXEmbedder) Close() error { return nil }
