package e2e

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"

	"github.com/scenedex/scenedex/internal/model"
	"github.com/scenedex/scenedex/internal/models"
)

// contentPNG renders a small high-contrast image that the blank-frame
// classifier always admits. Frame files carry a .jpg name; the decoder sniffs
// the real format.
func contentPNG() ([]byte, error) {
	img := image.NewGray(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			if x < 4 {
				img.SetGray(x, y, color.Gray{Y: 60})
			} else {
				img.SetGray(x, y, color.Gray{Y: 190})
			}
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteCorpusFrames lays the corpus out on disk under root, one directory per
// episode.
func WriteCorpusFrames(root string, c *Corpus) error {
	data, err := contentPNG()
	if err != nil {
		return err
	}
	for _, f := range c.Frames {
		dir := filepath.Join(root, f.Episode)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dir, f.Name), data, 0o644); err != nil {
			return err
		}
	}
	return nil
}

// Annotator returns a static annotator serving the corpus captions and
// character labels, keyed the way the ingestion coordinator resolves image
// paths (framesDir + "/" + record path).
func (c *Corpus) Annotator(framesDir string) *model.StaticAnnotator {
	captions := make(map[string]string, len(c.Frames))
	tags := make(map[string][]string, len(c.Frames))
	for _, f := range c.Frames {
		abs := framesDir + "/" + f.Path()
		captions[abs] = f.Caption
		tags[abs] = f.Characters
	}
	return &model.StaticAnnotator{Captions: captions, Tags: tags}
}

// corpusEmbedder embeds frames and queries onto the corpus concept axes.
type corpusEmbedder struct {
	corpus *Corpus
	byPath map[string]SceneFrame
}

// Embedder returns an embedder over the corpus concept space.
func (c *Corpus) Embedder() *corpusEmbedder {
	byPath := make(map[string]SceneFrame, len(c.Frames))
	for _, f := range c.Frames {
		byPath[f.Path()] = f
	}
	return &corpusEmbedder{corpus: c, byPath: byPath}
}

func (e *corpusEmbedder) EmbedText(_ context.Context, text string) ([]float32, error) {
	return e.corpus.QueryVector(text)
}

func (e *corpusEmbedder) EmbedImage(_ context.Context, imagePath string) ([]float32, error) {
	// The coordinator passes absolute paths; the corpus keys frames by the
	// trailing "<episode>/<file>" pair.
	rel := filepath.Base(filepath.Dir(imagePath)) + "/" + filepath.Base(imagePath)
	f, ok := e.byPath[rel]
	if !ok {
		return nil, fmt.Errorf("frame %q is not in the corpus", rel)
	}
	return e.corpus.FrameVector(f), nil
}

func (e *corpusEmbedder) Dimensions() int { return models.EmbeddingDimensions }

func (e *corpusEmbedder) Close() error { return nil }
