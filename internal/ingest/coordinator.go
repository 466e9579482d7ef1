// Package ingest coordinates incremental frame ingestion: discovering new
// frames on disk, running them through curation, and appending survivors to
// the record store and vector index.
package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/scenedex/scenedex/internal/curate"
	"github.com/scenedex/scenedex/internal/embedding"
	"github.com/scenedex/scenedex/internal/model"
	"github.com/scenedex/scenedex/internal/models"
	"github.com/scenedex/scenedex/internal/storage"
	"github.com/scenedex/scenedex/internal/vector"
)

// DefaultFrameInterval is the sampling interval the extractor uses, in
// seconds. Frame number x interval = timestamp.
const DefaultFrameInterval = 3.0

// FrameFailure records one frame that could not be processed. Failures never
// abort a batch; they are collected and reported.
type FrameFailure struct {
	Path string `json:"path"`
	Err  string `json:"error"`
}

// Report summarizes one ingestion run.
type Report struct {
	RunID            string         `json:"run_id"`
	StartedAt        time.Time      `json:"started_at"`
	Duration         time.Duration  `json:"duration"`
	EpisodesScanned  int            `json:"episodes_scanned"`
	FramesDiscovered int            `json:"frames_discovered"`
	NewFrames        int            `json:"new_frames"`
	Indexed          int            `json:"indexed"`
	SkippedBoundary  int            `json:"skipped_boundary"`
	SkippedBlank     int            `json:"skipped_blank"`
	SkippedDuplicate int            `json:"skipped_duplicate"`
	Failures         []FrameFailure `json:"failures,omitempty"`
}

// Coordinator runs incremental ingestion over a frames directory. Safe for a
// single caller at a time per concern: the append lock serializes batch
// appends against concurrent syncs triggered by the watcher.
type Coordinator struct {
	store      storage.FrameStore
	index      vector.FrameIndex
	embedder   embedding.Embedder
	annotator  model.Annotator
	blanks     *curate.BlankClassifier
	deduper    *curate.Deduper
	boundaries *curate.BoundaryCache

	framesDir string
	interval  float64
	logger    *zap.Logger

	appendMu sync.Mutex
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets a logger for progress and skip events.
func WithLogger(l *zap.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// WithFrameInterval overrides the frame sampling interval in seconds.
func WithFrameInterval(seconds float64) Option {
	return func(c *Coordinator) { c.interval = seconds }
}

// WithDedupe overrides the duplicate-run similarity threshold and gap.
func WithDedupe(similarityThreshold, maxGapSeconds float64) Option {
	return func(c *Coordinator) {
		c.deduper.SimilarityThreshold = similarityThreshold
		c.deduper.MaxGapSeconds = maxGapSeconds
	}
}

// NewCoordinator creates an ingestion coordinator. annotator may be
// model.NoopAnnotator{} when no annotation sidecar is configured; boundaries
// may be an empty cache, in which case every episode gets default trim bounds.
func NewCoordinator(
	store storage.FrameStore,
	index vector.FrameIndex,
	embedder embedding.Embedder,
	annotator model.Annotator,
	boundaries *curate.BoundaryCache,
	framesDir string,
	opts ...Option,
) *Coordinator {
	c := &Coordinator{
		store:      store,
		index:      index,
		embedder:   embedder,
		annotator:  annotator,
		blanks:     curate.NewBlankClassifier(),
		deduper:    curate.NewDeduper(),
		boundaries: boundaries,
		framesDir:  framesDir,
		interval:   DefaultFrameInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Sync discovers frames under the frames directory, diffs against the store,
// and ingests everything new. Re-running after a completed sync is a no-op.
// Per-frame failures are collected into the report; only discovery and store
// errors abort the run.
func (c *Coordinator) Sync(ctx context.Context) (*Report, error) {
	report := &Report{
		RunID:     uuid.New().String(),
		StartedAt: time.Now(),
	}
	episodes, err := discoverEpisodes(c.framesDir, c.interval)
	if err != nil {
		return nil, err
	}
	indexed, err := c.store.IndexedPaths(ctx)
	if err != nil {
		return nil, fmt.Errorf("load indexed paths: %w", err)
	}
	report.EpisodesScanned = len(episodes)

	for _, ep := range episodes {
		report.FramesDiscovered += len(ep.Frames)
		if err := c.syncEpisode(ctx, ep, indexed, report); err != nil {
			return nil, err
		}
	}
	report.Duration = time.Since(report.StartedAt)
	if c.logger != nil {
		c.logger.Info("ingestion sync complete",
			zap.String("run_id", report.RunID),
			zap.Int("episodes", report.EpisodesScanned),
			zap.Int("new_frames", report.NewFrames),
			zap.Int("indexed", report.Indexed),
			zap.Int("skipped_boundary", report.SkippedBoundary),
			zap.Int("skipped_blank", report.SkippedBlank),
			zap.Int("skipped_duplicate", report.SkippedDuplicate),
			zap.Int("failures", len(report.Failures)),
			zap.Duration("duration", report.Duration))
	}
	return report, nil
}

// syncEpisode curates and appends one episode's new frames:
// trim -> blank-classify -> embed -> dedupe -> annotate survivors -> append.
// Annotation runs only on frames that survived deduplication, so the
// expensive caption and label models never see dropped frames.
func (c *Coordinator) syncEpisode(ctx context.Context, ep episodeDir, indexed map[string]bool, report *Report) error {
	boundary := c.boundaries.Lookup(ep.ID)

	var candidates []*models.FrameRecord
	for _, f := range ep.Frames {
		if indexed[f.RelPath] {
			continue
		}
		report.NewFrames++
		ts := float64(f.Number) * c.interval
		if !boundary.Admit(ts, ep.Length) {
			report.SkippedBoundary++
			continue
		}
		class, err := c.blanks.ClassifyFile(f.AbsPath)
		if err != nil {
			report.Failures = append(report.Failures, FrameFailure{Path: f.RelPath, Err: err.Error()})
			continue
		}
		if class.Blank() {
			report.SkippedBlank++
			if c.logger != nil {
				c.logger.Debug("skipping blank frame",
					zap.String("path", f.RelPath), zap.String("class", string(class)))
			}
			continue
		}
		emb, err := c.embedder.EmbedImage(ctx, f.AbsPath)
		if err != nil {
			report.Failures = append(report.Failures, FrameFailure{Path: f.RelPath, Err: err.Error()})
			continue
		}
		candidates = append(candidates, &models.FrameRecord{
			EpisodeID: ep.ID,
			FrameID:   f.FileName,
			Path:      f.RelPath,
			Timestamp: ts,
			Embedding: emb,
			CreatedAt: time.Now().UTC(),
		})
	}
	if len(candidates) == 0 {
		return nil
	}

	keep, dropped := c.deduper.Dedupe(candidates)
	report.SkippedDuplicate += len(dropped)

	batch := make([]*models.FrameRecord, 0, len(keep))
	for _, rec := range keep {
		c.annotate(ctx, rec, report)
		if err := rec.Validate(); err != nil {
			report.Failures = append(report.Failures, FrameFailure{Path: rec.Path, Err: err.Error()})
			continue
		}
		batch = append(batch, rec)
	}
	if len(batch) == 0 {
		return nil
	}

	c.appendMu.Lock()
	defer c.appendMu.Unlock()
	if err := c.store.CreateFrames(ctx, batch); err != nil {
		return fmt.Errorf("append episode %s: %w", ep.ID, err)
	}
	paths := make([]string, len(batch))
	vectors := make([][]float32, len(batch))
	for i, rec := range batch {
		paths[i] = rec.Path
		vectors[i] = rec.Embedding
	}
	if err := c.index.Add(ctx, paths, vectors); err != nil {
		return fmt.Errorf("index episode %s: %w", ep.ID, err)
	}
	report.Indexed += len(batch)
	return nil
}

// annotate fills caption and character labels. Annotation failures are
// reported but never block indexing; the frame is kept with empty annotations.
func (c *Coordinator) annotate(ctx context.Context, rec *models.FrameRecord, report *Report) {
	caption, err := c.annotator.Caption(ctx, c.absPath(rec.Path))
	if err != nil {
		report.Failures = append(report.Failures, FrameFailure{Path: rec.Path, Err: "caption: " + err.Error()})
	} else {
		rec.Caption = caption
	}
	chars, err := c.annotator.Characters(ctx, c.absPath(rec.Path))
	if err != nil {
		report.Failures = append(report.Failures, FrameFailure{Path: rec.Path, Err: "characters: " + err.Error()})
		chars = []string{}
	}
	rec.Characters = chars
}

func (c *Coordinator) absPath(relPath string) string {
	return c.framesDir + "/" + relPath
}

// Delete removes one frame from both the store and the vector index. Deleting
// an unknown path is a no-op; the bool reports whether a record was removed.
func (c *Coordinator) Delete(ctx context.Context, path string) (bool, error) {
	c.appendMu.Lock()
	defer c.appendMu.Unlock()
	removed, err := c.store.DeleteFrameByPath(ctx, path)
	if err != nil {
		return false, err
	}
	if err := c.index.Remove(ctx, []string{path}); err != nil {
		return removed, fmt.Errorf("remove from vector index: %w", err)
	}
	return removed, nil
}
