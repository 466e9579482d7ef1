// Package storage defines the persistence interface for frame records.
package storage

import (
	"context"

	"github.com/scenedex/scenedex/internal/models"
)

// FrameStore defines frame record persistence. Records are append-only except
// for per-path delete and the full-table character rewrite.
type FrameStore interface {
	// CreateFrames appends a batch of records in one transaction.
	CreateFrames(ctx context.Context, frames []*models.FrameRecord) error
	GetFrameByPath(ctx context.Context, path string) (*models.FrameRecord, error)
	// DeleteFrameByPath deletes one record by exact path. Deleting a missing
	// path is not an error; the bool reports whether a row was removed.
	DeleteFrameByPath(ctx context.Context, path string) (bool, error)

	ListFrames(ctx context.Context, offset, limit int) ([]*models.FrameRecord, error)
	// FramesByEpisode returns an episode's frames ordered by timestamp.
	FramesByEpisode(ctx context.Context, episodeID string) ([]*models.FrameRecord, error)
	// FrameAt returns the record at a row offset, for uniform random sampling.
	FrameAt(ctx context.Context, offset int64) (*models.FrameRecord, error)

	CountFrames(ctx context.Context) (int64, error)
	Episodes(ctx context.Context) ([]string, error)
	// IndexedPaths returns the set of all indexed paths, for the ingestion
	// coordinator's new-frame diff.
	IndexedPaths(ctx context.Context) (map[string]bool, error)

	CharacterCounts(ctx context.Context) ([]models.CharacterCount, error)
	// ReplaceAllCharacters rewrites the characters column for every listed
	// path in one transaction (character re-tagging pass).
	ReplaceAllCharacters(ctx context.Context, byPath map[string][]string) error

	// AllEmbeddings streams every (path, episode, timestamp, embedding) row,
	// for maintenance sweeps over the whole index.
	AllEmbeddings(ctx context.Context) ([]*models.FrameRecord, error)

	Close() error
}
