//go:build cgo
// +build cgo

// ONNX-based CLIP embedder (requires CGO and the onnxruntime shared library).
package embedding

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/scenedex/scenedex/pkg/utils"
)

const clipImageSize = 224

// CLIP image normalization constants (OpenAI CLIP preprocessing).
var (
	clipMean = [3]float32{0.48145466, 0.4578275, 0.40821073}
	clipStd  = [3]float32{0.26862954, 0.26130258, 0.27577711}
)

// ONNXEmbedder runs the exported CLIP text encoder, and optionally the image
// encoder, via ONNX Runtime. Sessions pre-allocate their tensors; Run() calls
// are serialized by a mutex.
type ONNXEmbedder struct {
	textSession  *ort.AdvancedSession
	imageSession *ort.AdvancedSession
	dimensions   int
	cache        *QueryCache
	tokenizer    Tokenizer

	inputIDsTensor   *ort.Tensor[int64]
	textOutputTensor *ort.Tensor[float32]

	pixelTensor       *ort.Tensor[float32]
	imageOutputTensor *ort.Tensor[float32]

	mu sync.Mutex
}

// NewONNXEmbedder creates a CLIP embedder from the exported text encoder at
// textModelPath. imageModelPath may be empty; EmbedImage then returns an
// error. InitializeEnvironment is called if not already done.
func NewONNXEmbedder(textModelPath, imageModelPath string, dimensions, cacheSize int) (*ONNXEmbedder, error) {
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", err)
	}

	e := &ONNXEmbedder{
		dimensions: dimensions,
		cache:      NewQueryCache(cacheSize),
		tokenizer:  &SimpleTokenizer{},
	}

	inputIDs := make([]int64, clipContextLength)
	inputIDsTensor, err := ort.NewTensor(ort.NewShape(1, clipContextLength), inputIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to create input_ids tensor: %w", err)
	}
	textOutput, err := ort.NewTensor(ort.NewShape(1, int64(dimensions)), make([]float32, dimensions))
	if err != nil {
		inputIDsTensor.Destroy()
		return nil, fmt.Errorf("failed to create text output tensor: %w", err)
	}
	textSession, err := ort.NewAdvancedSession(
		textModelPath,
		[]string{"input_ids"},
		[]string{"embedding"},
		[]ort.ArbitraryTensor{inputIDsTensor},
		[]ort.ArbitraryTensor{textOutput},
		nil,
	)
	if err != nil {
		inputIDsTensor.Destroy()
		textOutput.Destroy()
		return nil, fmt.Errorf("failed to create text encoder session: %w", err)
	}
	e.textSession = textSession
	e.inputIDsTensor = inputIDsTensor
	e.textOutputTensor = textOutput

	if imageModelPath != "" {
		if err := e.initImageSession(imageModelPath); err != nil {
			_ = e.Close()
			return nil, err
		}
	}
	return e, nil
}

func (e *ONNXEmbedder) initImageSession(modelPath string) error {
	pixels := make([]float32, 3*clipImageSize*clipImageSize)
	pixelTensor, err := ort.NewTensor(ort.NewShape(1, 3, clipImageSize, clipImageSize), pixels)
	if err != nil {
		return fmt.Errorf("failed to create pixel tensor: %w", err)
	}
	imageOutput, err := ort.NewTensor(ort.NewShape(1, int64(e.dimensions)), make([]float32, e.dimensions))
	if err != nil {
		pixelTensor.Destroy()
		return fmt.Errorf("failed to create image output tensor: %w", err)
	}
	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{"pixel_values"},
		[]string{"embedding"},
		[]ort.ArbitraryTensor{pixelTensor},
		[]ort.ArbitraryTensor{imageOutput},
		nil,
	)
	if err != nil {
		pixelTensor.Destroy()
		imageOutput.Destroy()
		return fmt.Errorf("failed to create image encoder session: %w", err)
	}
	e.imageSession = session
	e.pixelTensor = pixelTensor
	e.imageOutputTensor = imageOutput
	return nil
}

// EmbedText returns the unit-normalized embedding for text, using the query
// cache when available.
func (e *ONNXEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if cached, ok := e.cache.Get(text); ok {
		return cached, nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	copy(e.inputIDsTensor.GetData(), e.tokenizer.Tokenize(text))
	if err := e.textSession.Run(); err != nil {
		return nil, fmt.Errorf("text inference failed: %w", err)
	}
	embedding := make([]float32, e.dimensions)
	copy(embedding, e.textOutputTensor.GetData()[:e.dimensions])
	utils.NormalizeL2(embedding)
	e.cache.Set(text, embedding)
	return embedding, nil
}

// EmbedImage decodes, resizes, and normalizes the image at imagePath and runs
// the image encoder.
func (e *ONNXEmbedder) EmbedImage(ctx context.Context, imagePath string) ([]float32, error) {
	if e.imageSession == nil {
		return nil, fmt.Errorf("no image encoder model configured")
	}
	f, err := os.Open(imagePath)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	img, _, err := image.Decode(f)
	_ = f.Close()
	if err != nil {
		return nil, fmt.Errorf("decode image %s: %w", imagePath, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	writePixels(e.pixelTensor.GetData(), img)
	if err := e.imageSession.Run(); err != nil {
		return nil, fmt.Errorf("image inference failed: %w", err)
	}
	embedding := make([]float32, e.dimensions)
	copy(embedding, e.imageOutputTensor.GetData()[:e.dimensions])
	utils.NormalizeL2(embedding)
	return embedding, nil
}

// writePixels fills dst (CHW, 3x224x224) with the nearest-neighbor resized,
// CLIP-normalized image.
func writePixels(dst []float32, img image.Image) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	plane := clipImageSize * clipImageSize
	for y := 0; y < clipImageSize; y++ {
		srcY := bounds.Min.Y + y*h/clipImageSize
		for x := 0; x < clipImageSize; x++ {
			srcX := bounds.Min.X + x*w/clipImageSize
			r, g, b, _ := img.At(srcX, srcY).RGBA()
			i := y*clipImageSize + x
			dst[i] = (float32(r)/65535 - clipMean[0]) / clipStd[0]
			dst[plane+i] = (float32(g)/65535 - clipMean[1]) / clipStd[1]
			dst[2*plane+i] = (float32(b)/65535 - clipMean[2]) / clipStd[2]
		}
	}
}

// Dimensions returns the embedding dimension.
func (e *ONNXEmbedder) Dimensions() int {
	return e.dimensions
}

// Close destroys the sessions and tensors.
func (e *ONNXEmbedder) Close() error {
	var err error
	if e.textSession != nil {
		err = e.textSession.Destroy()
		e.textSession = nil
	}
	if e.imageSession != nil {
		_ = e.imageSession.Destroy()
		e.imageSession = nil
	}
	if e.inputIDsTensor != nil {
		_ = e.inputIDsTensor.Destroy()
		e.inputIDsTensor = nil
	}
	if e.textOutputTensor != nil {
		_ = e.textOutputTensor.Destroy()
		e.textOutputTensor = nil
	}
	if e.pixelTensor != nil {
		_ = e.pixelTensor.Destroy()
		e.pixelTensor = nil
	}
	if e.imageOutputTensor != nil {
		_ = e.imageOutputTensor.Destroy()
		e.imageOutputTensor = nil
	}
	return err
}
