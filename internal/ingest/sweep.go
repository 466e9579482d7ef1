package ingest

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/scenedex/scenedex/internal/models"
)

// SweepReport summarizes a maintenance sweep over the existing index.
type SweepReport struct {
	Examined int            `json:"examined"`
	Flagged  int            `json:"flagged"`
	Removed  int            `json:"removed"`
	DryRun   bool           `json:"dry_run"`
	Paths    []string       `json:"paths,omitempty"`
	Failures []FrameFailure `json:"failures,omitempty"`
}

// SweepDuplicates re-runs deduplication over every indexed episode and removes
// frames that duplicate their run's anchor. With dryRun the flagged paths are
// reported but nothing is deleted.
func (c *Coordinator) SweepDuplicates(ctx context.Context, dryRun bool) (*SweepReport, error) {
	frames, err := c.store.AllEmbeddings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load embeddings: %w", err)
	}
	report := &SweepReport{Examined: len(frames), DryRun: dryRun}

	byEpisode := make(map[string][]*models.FrameRecord)
	for _, f := range frames {
		byEpisode[f.EpisodeID] = append(byEpisode[f.EpisodeID], f)
	}
	episodes := make([]string, 0, len(byEpisode))
	for ep := range byEpisode {
		episodes = append(episodes, ep)
	}
	sort.Strings(episodes)

	for _, ep := range episodes {
		eps := byEpisode[ep]
		sort.Slice(eps, func(i, j int) bool { return eps[i].Timestamp < eps[j].Timestamp })
		_, dropped := c.deduper.Dedupe(eps)
		for _, d := range dropped {
			report.Flagged++
			report.Paths = append(report.Paths, d.Frame.Path)
			if c.logger != nil {
				c.logger.Debug("duplicate frame flagged",
					zap.String("path", d.Frame.Path),
					zap.String("anchor", d.Anchor.Path),
					zap.Float64("similarity", d.Similarity))
			}
		}
	}
	if dryRun {
		return report, nil
	}
	for _, path := range report.Paths {
		if _, err := c.Delete(ctx, path); err != nil {
			report.Failures = append(report.Failures, FrameFailure{Path: path, Err: err.Error()})
			continue
		}
		report.Removed++
	}
	return report, nil
}

// SweepBlanks re-classifies every indexed frame's image file and removes the
// blank ones. Frames whose file is missing or undecodable are reported as
// failures and left in place.
func (c *Coordinator) SweepBlanks(ctx context.Context, dryRun bool) (*SweepReport, error) {
	frames, err := c.store.AllEmbeddings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load frames: %w", err)
	}
	report := &SweepReport{Examined: len(frames), DryRun: dryRun}
	for _, f := range frames {
		class, err := c.blanks.ClassifyFile(c.absPath(f.Path))
		if err != nil {
			report.Failures = append(report.Failures, FrameFailure{Path: f.Path, Err: err.Error()})
			continue
		}
		if !class.Blank() {
			continue
		}
		report.Flagged++
		report.Paths = append(report.Paths, f.Path)
	}
	if dryRun {
		return report, nil
	}
	for _, path := range report.Paths {
		if _, err := c.Delete(ctx, path); err != nil {
			report.Failures = append(report.Failures, FrameFailure{Path: path, Err: err.Error()})
			continue
		}
		report.Removed++
	}
	return report, nil
}

// Retag re-runs character labeling over every indexed frame and rewrites the
// characters column in one transaction. Frames whose labeling fails keep
// their previous labels.
func (c *Coordinator) Retag(ctx context.Context) (*SweepReport, error) {
	frames, err := c.store.AllEmbeddings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load frames: %w", err)
	}
	report := &SweepReport{Examined: len(frames)}
	byPath := make(map[string][]string, len(frames))
	for _, f := range frames {
		chars, err := c.annotator.Characters(ctx, c.absPath(f.Path))
		if err != nil {
			report.Failures = append(report.Failures, FrameFailure{Path: f.Path, Err: err.Error()})
			continue
		}
		byPath[f.Path] = chars
		report.Flagged++
	}
	if len(byPath) == 0 {
		return report, nil
	}
	if err := c.store.ReplaceAllCharacters(ctx, byPath); err != nil {
		return nil, fmt.Errorf("rewrite characters: %w", err)
	}
	if c.logger != nil {
		c.logger.Info("character re-tagging complete",
			zap.Int("frames", len(byPath)), zap.Int("failures", len(report.Failures)))
	}
	return report, nil
}
