// Package stats serves cached aggregate statistics over the frame index.
package stats

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/scenedex/scenedex/internal/models"
	"github.com/scenedex/scenedex/internal/storage"
)

// DefaultTTL bounds how stale a served snapshot may be.
const DefaultTTL = 600 * time.Second

var seasonPattern = regexp.MustCompile(`(?i)^(s\d+)`)

// Cache serves a stats snapshot computed by a full scan, refreshed when older
// than the TTL or on request. Readers never block on a refresh in progress;
// they get the previous snapshot until the new one replaces it.
type Cache struct {
	store  storage.FrameStore
	ttl    time.Duration
	logger *zap.Logger

	mu         sync.RWMutex
	snapshot   *models.StatsSnapshot
	refreshing bool
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL overrides the snapshot lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) { c.ttl = ttl }
}

// WithLogger sets a logger for refresh events.
func WithLogger(l *zap.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// NewCache creates a stats cache over the store.
func NewCache(store storage.FrameStore, opts ...Option) *Cache {
	c := &Cache{store: store, ttl: DefaultTTL}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Prime computes the initial snapshot so the first request never pays for a
// full scan.
func (c *Cache) Prime(ctx context.Context) error {
	snap, err := c.compute(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.snapshot = snap
	c.mu.Unlock()
	return nil
}

// Get returns the current snapshot, refreshing it first if it is older than
// the TTL or forceRefresh is set. When a refresh is already in flight the
// previous snapshot is returned as is.
func (c *Cache) Get(ctx context.Context, forceRefresh bool) (*models.StatsSnapshot, error) {
	c.mu.Lock()
	snap := c.snapshot
	fresh := snap != nil && time.Since(snap.ComputedAt) < c.ttl && !forceRefresh
	if fresh || c.refreshing {
		c.mu.Unlock()
		if snap == nil {
			// Refresh in flight with nothing to serve yet; compute our own.
			return c.compute(ctx)
		}
		return snap, nil
	}
	c.refreshing = true
	c.mu.Unlock()

	next, err := c.compute(ctx)
	c.mu.Lock()
	c.refreshing = false
	if err != nil {
		c.mu.Unlock()
		if snap != nil {
			// Serve stale rather than fail the read.
			if c.logger != nil {
				c.logger.Warn("stats refresh failed, serving stale snapshot", zap.Error(err))
			}
			return snap, nil
		}
		return nil, err
	}
	c.snapshot = next
	c.mu.Unlock()
	return next, nil
}

// compute runs the full scan.
func (c *Cache) compute(ctx context.Context) (*models.StatsSnapshot, error) {
	total, err := c.store.CountFrames(ctx)
	if err != nil {
		return nil, fmt.Errorf("count frames: %w", err)
	}
	episodes, err := c.store.Episodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list episodes: %w", err)
	}
	snap := &models.StatsSnapshot{
		TotalFrames:  total,
		EpisodeCount: int64(len(episodes)),
		Seasons:      seasonsOf(episodes),
		ComputedAt:   time.Now(),
	}
	if len(episodes) > 0 {
		snap.AvgFramesPerEpisode = float64(total) / float64(len(episodes))
	}
	return snap, nil
}

// seasonsOf extracts the distinct season prefixes (e.g. "S04" from "S04E12")
// from the episode IDs, sorted. IDs without a season prefix are ignored.
func seasonsOf(episodes []string) []string {
	seen := make(map[string]bool)
	var seasons []string
	for _, ep := range episodes {
		m := seasonPattern.FindStringSubmatch(ep)
		if m == nil {
			continue
		}
		s := strings.ToUpper(m[1])
		if !seen[s] {
			seen[s] = true
			seasons = append(seasons, s)
		}
	}
	sort.Strings(seasons)
	return seasons
}
