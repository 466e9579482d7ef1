// Package search runs vector retrieval and hybrid ranking over the frame
// index.
package search

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/scenedex/scenedex/internal/embedding"
	"github.com/scenedex/scenedex/internal/models"
	"github.com/scenedex/scenedex/internal/storage"
	"github.com/scenedex/scenedex/internal/vector"
	"github.com/scenedex/scenedex/pkg/utils"
)

const (
	// OverFetchMultiplier widens the k-NN fetch so post-retrieval filtering
	// and re-ranking still have enough candidates to fill the page.
	OverFetchMultiplier = 3
	// SeasonOverFetchMultiplier is used when a season filter may discard most
	// candidates.
	SeasonOverFetchMultiplier = 10
)

// Engine retrieves candidate frames by embedding similarity and ranks them.
type Engine struct {
	store    storage.FrameStore
	embedder embedding.Embedder
	index    vector.FrameIndex
	logger   *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets a logger for candidate-level debug output.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates a search engine over the given store, embedder, and index.
func NewEngine(store storage.FrameStore, embedder embedding.Embedder, index vector.FrameIndex, opts ...Option) *Engine {
	e := &Engine{store: store, embedder: embedder, index: index}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Search embeds the query text, retrieves an over-fetched candidate set,
// filters by season, ranks per the query's mode, and returns the top results.
func (e *Engine) Search(ctx context.Context, query *models.SearchQuery) (*models.SearchResponse, error) {
	startTime := time.Now()
	if err := query.Validate(); err != nil {
		return nil, err
	}

	queryEmbedding, err := e.embedder.EmbedText(ctx, query.Query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	k := query.Limit * OverFetchMultiplier
	if len(query.Seasons) > 0 {
		k = query.Limit * SeasonOverFetchMultiplier
	}
	hits, err := e.index.Search(ctx, queryEmbedding, k)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	ranker := NewRanker(query.Query, query.Mode)
	results := make([]*models.SearchResult, 0, len(hits))
	for _, hit := range hits {
		rec, err := e.store.GetFrameByPath(ctx, hit.Path)
		if err != nil {
			// The index can briefly lead the store after a delete; skip.
			if !errors.Is(err, models.ErrNotFound) && e.logger != nil {
				e.logger.Warn("candidate lookup failed", zap.String("path", hit.Path), zap.Error(err))
			}
			continue
		}
		if !query.MatchesSeason(rec.EpisodeID) {
			continue
		}
		results = append(results, resultFromRecord(rec, ranker.Score(hit.Distance, rec)))
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })

	total := len(results)
	if len(results) > query.Limit {
		results = results[:query.Limit]
	}
	return &models.SearchResponse{
		Results:   results,
		Total:     total,
		QueryTime: time.Since(startTime).Milliseconds(),
		Query:     query.Query,
		Mode:      query.Mode,
	}, nil
}

// Similar returns frames nearest to an already-indexed frame, excluding the
// frame itself. Returns ErrNotFound if path is not in the index.
func (e *Engine) Similar(ctx context.Context, path string, limit int) (*models.SearchResponse, error) {
	startTime := time.Now()
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	queryEmbedding, ok := e.index.Vector(path)
	if !ok {
		return nil, fmt.Errorf("%w: frame %q is not indexed", models.ErrNotFound, path)
	}
	hits, err := e.index.Search(ctx, queryEmbedding, limit+1)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	results := make([]*models.SearchResult, 0, limit)
	for _, hit := range hits {
		if hit.Path == path {
			continue
		}
		rec, err := e.store.GetFrameByPath(ctx, hit.Path)
		if err != nil {
			continue
		}
		results = append(results, resultFromRecord(rec, utils.Clamp01(1-hit.Distance/2)))
		if len(results) == limit {
			break
		}
	}
	return &models.SearchResponse{
		Results:   results,
		Total:     len(results),
		QueryTime: time.Since(startTime).Milliseconds(),
		Query:     path,
	}, nil
}

// Random returns a uniformly random indexed frame. Returns ErrNotFound on an
// empty index.
func (e *Engine) Random(ctx context.Context) (*models.SearchResult, error) {
	n, err := e.store.CountFrames(ctx)
	if err != nil {
		return nil, fmt.Errorf("count frames: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: index is empty", models.ErrNotFound)
	}
	rec, err := e.store.FrameAt(ctx, rand.Int63n(n))
	if err != nil {
		return nil, err
	}
	return resultFromRecord(rec, 0), nil
}

// Characters returns the character frequency table.
func (e *Engine) Characters(ctx context.Context) ([]models.CharacterCount, error) {
	return e.store.CharacterCounts(ctx)
}

func resultFromRecord(rec *models.FrameRecord, score float64) *models.SearchResult {
	return &models.SearchResult{
		Episode:    rec.EpisodeID,
		Frame:      rec.FrameID,
		Path:       rec.Path,
		Timestamp:  rec.Timestamp,
		Score:      score,
		Caption:    rec.Caption,
		Characters: rec.CharactersJoined(),
		ImageURL:   "/frames/" + rec.EpisodeID + "/" + rec.FrameID,
		ThumbURL:   "/thumbs/" + rec.EpisodeID + "/" + rec.FrameID,
	}
}
