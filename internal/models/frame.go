// Package models defines core data structures for frames, queries, and search results.
package models

import (
	"fmt"
	"strings"
	"time"
)

// EmbeddingDimensions is the fixed length of frame and query embeddings
// (CLIP ViT-B-32). Mixing dimensionalities corrupts k-NN queries, so the
// dimension is fixed for the life of an index.
const EmbeddingDimensions = 512

// FrameRecord is one admitted still frame. Path is the record's natural key,
// unique across the whole index.
type FrameRecord struct {
	EpisodeID  string    `json:"episode" db:"episode_id"`
	FrameID    string    `json:"frame" db:"frame_id"`
	Path       string    `json:"path" db:"path"`
	Timestamp  float64   `json:"timestamp" db:"timestamp_seconds"`
	Caption    string    `json:"caption" db:"caption"`
	Characters []string  `json:"characters" db:"characters"`
	Embedding  []float32 `json:"-" db:"-"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// CharactersJoined returns the character labels joined for display and lexical
// matching. Labels are joined in stored order with ", ".
func (f *FrameRecord) CharactersJoined() string {
	return strings.Join(f.Characters, ", ")
}

// Validate checks the required fields of a record at the ingestion boundary.
// Malformed records are rejected here rather than propagated.
func (f *FrameRecord) Validate() error {
	if f.EpisodeID == "" {
		return fmt.Errorf("%w: episode id is required", ErrValidation)
	}
	if f.FrameID == "" {
		return fmt.Errorf("%w: frame id is required", ErrValidation)
	}
	if f.Path == "" {
		return fmt.Errorf("%w: path is required", ErrValidation)
	}
	if f.Timestamp < 0 {
		return fmt.Errorf("%w: timestamp must be non-negative", ErrValidation)
	}
	if len(f.Embedding) != EmbeddingDimensions {
		return fmt.Errorf("%w: embedding has %d dimensions, want %d", ErrValidation, len(f.Embedding), EmbeddingDimensions)
	}
	return nil
}

// StatsSnapshot is the cached aggregate computed by a full scan.
type StatsSnapshot struct {
	TotalFrames          int64     `json:"total_frames"`
	EpisodeCount         int64     `json:"episode_count"`
	AvgFramesPerEpisode  float64   `json:"avg_frames_per_episode"`
	Seasons              []string  `json:"seasons"`
	ComputedAt           time.Time `json:"computed_at"`
}
