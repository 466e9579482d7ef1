// Package curate decides which extracted frames are admitted to the index:
// near-duplicate runs, blank frames, and intro/credits windows are dropped.
package curate

import (
	"github.com/scenedex/scenedex/internal/models"
	"github.com/scenedex/scenedex/internal/vector"
)

const (
	// DefaultSimilarityThreshold marks consecutive frames at or above this
	// cosine similarity as duplicates.
	DefaultSimilarityThreshold = 0.98
	// DefaultMaxGapSeconds bounds how far apart two frames may be and still
	// be compared; a larger gap starts a new run.
	DefaultMaxGapSeconds = 6.0
)

// Deduper collapses runs of consecutive near-duplicate frames within one
// episode to a single representative (the anchor).
type Deduper struct {
	SimilarityThreshold float64
	MaxGapSeconds       float64
}

// NewDeduper returns a Deduper with the default threshold and gap.
func NewDeduper() *Deduper {
	return &Deduper{
		SimilarityThreshold: DefaultSimilarityThreshold,
		MaxGapSeconds:       DefaultMaxGapSeconds,
	}
}

// Duplicate describes one dropped frame and the anchor it duplicated.
type Duplicate struct {
	Frame      *models.FrameRecord
	Anchor     *models.FrameRecord
	Similarity float64
}

// Dedupe takes one episode's frames sorted by timestamp and returns the
// frames to keep plus the duplicates dropped. The anchor advances only when a
// frame is kept: a run of frames similar to the anchor collapses to the anchor
// alone, regardless of run length. A gap above MaxGapSeconds starts a new run.
// A later frame is always compared to the current anchor, not a sliding
// window; this is a deliberately cheap heuristic, not exhaustive clustering.
func (d *Deduper) Dedupe(frames []*models.FrameRecord) (keep []*models.FrameRecord, dropped []Duplicate) {
	if len(frames) == 0 {
		return nil, nil
	}
	anchor := frames[0]
	keep = append(keep, anchor)
	for _, f := range frames[1:] {
		if f.Timestamp-anchor.Timestamp > d.MaxGapSeconds {
			anchor = f
			keep = append(keep, f)
			continue
		}
		// Zero-norm embeddings make the similarity undefined; CosineSimilarity
		// returns 0 for them, so such frames are never treated as duplicates.
		sim := vector.CosineSimilarity(anchor.Embedding, f.Embedding)
		if sim >= d.SimilarityThreshold {
			dropped = append(dropped, Duplicate{Frame: f, Anchor: anchor, Similarity: sim})
			continue
		}
		anchor = f
		keep = append(keep, f)
	}
	return keep, dropped
}
