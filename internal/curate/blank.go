package curate

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"
)

// Classification is the blank-frame verdict for one frame.
type Classification string

const (
	// ClassOK means the frame has content and is admitted.
	ClassOK Classification = "ok"
	// ClassBlack means the frame is mostly black (fades, credits background).
	ClassBlack Classification = "black"
	// ClassWhite means the frame is mostly white (fades to white).
	ClassWhite Classification = "white"
	// ClassLowContrastDark means near-uniform dark pixels.
	ClassLowContrastDark Classification = "low_contrast_dark"
	// ClassLowContrastBright means near-uniform bright pixels.
	ClassLowContrastBright Classification = "low_contrast_bright"
)

// Blank reports whether the classification marks the frame for exclusion.
func (c Classification) Blank() bool {
	return c != ClassOK
}

// BlankClassifier rejects black, white, and low-contrast frames based on the
// grayscale pixel intensity distribution.
type BlankClassifier struct {
	BlackThreshold uint8   // pixels below this are "black" (0-255)
	WhiteThreshold uint8   // pixels above this are "white" (0-255)
	Percentage     float64 // fraction of pixels for black/white detection
	MinStd         float64 // below this standard deviation the frame is uniform
}

// NewBlankClassifier returns a classifier with the default thresholds.
func NewBlankClassifier() *BlankClassifier {
	return &BlankClassifier{
		BlackThreshold: 30,
		WhiteThreshold: 225,
		Percentage:     0.95,
		MinStd:         10.0,
	}
}

// ClassifyFile decodes the image at path and classifies it. A decode failure
// is returned as an error, never silently counted as blank.
func (c *BlankClassifier) ClassifyFile(path string) (Classification, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open frame: %w", err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return "", fmt.Errorf("decode frame %s: %w", path, err)
	}
	return c.Classify(img), nil
}

// Classify classifies a decoded image. Rules are checked in order; the first
// match wins:
//
//  1. fraction of pixels below BlackThreshold >= Percentage -> black
//  2. fraction of pixels above WhiteThreshold >= Percentage -> white
//  3. std < MinStd and mean < 50  -> low_contrast_dark
//  4. std < MinStd and mean > 200 -> low_contrast_bright
//  5. otherwise ok
func (c *BlankClassifier) Classify(img image.Image) Classification {
	bounds := img.Bounds()
	total := bounds.Dx() * bounds.Dy()
	if total == 0 {
		return ClassBlack
	}
	var sum, sumSq float64
	var blackCount, whiteCount int
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			g := grayValue(img.At(x, y).RGBA())
			if g < float64(c.BlackThreshold) {
				blackCount++
			}
			if g > float64(c.WhiteThreshold) {
				whiteCount++
			}
			sum += g
			sumSq += g * g
		}
	}
	n := float64(total)
	mean := sum / n
	std := math.Sqrt(sumSq/n - mean*mean)

	if float64(blackCount)/n >= c.Percentage {
		return ClassBlack
	}
	if float64(whiteCount)/n >= c.Percentage {
		return ClassWhite
	}
	if std < c.MinStd && mean < 50 {
		return ClassLowContrastDark
	}
	if std < c.MinStd && mean > 200 {
		return ClassLowContrastBright
	}
	return ClassOK
}

// grayValue converts premultiplied 16-bit RGBA to 8-bit luma (ITU-R BT.601).
func grayValue(r, g, b, _ uint32) float64 {
	return (0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)) / 257.0
}
