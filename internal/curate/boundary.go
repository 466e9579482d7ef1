package curate

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/scenedex/scenedex/pkg/utils"
)

const (
	// DefaultIntroEndSeconds is assumed when no boundary data exists for an episode.
	DefaultIntroEndSeconds = 90.0
	// DefaultCreditsSeconds is the assumed credits length, measured from the
	// episode end, when no boundary data exists.
	DefaultCreditsSeconds = 40.0
)

// CreditsMark is the credits start position. The boundary cache historically
// encoded "from end" as a negative absolute value; the tagged form keeps the
// dual interpretation unambiguous (including for a zero value).
type CreditsMark struct {
	Seconds float64
	FromEnd bool
}

// CreditsFromEnd marks the credits as starting the given number of seconds
// before the episode end.
func CreditsFromEnd(seconds float64) CreditsMark {
	return CreditsMark{Seconds: seconds, FromEnd: true}
}

// CreditsAbsolute marks the credits as starting at an absolute timestamp.
func CreditsAbsolute(seconds float64) CreditsMark {
	return CreditsMark{Seconds: seconds}
}

// Resolve returns the absolute credits start for an episode of the given length.
func (c CreditsMark) Resolve(episodeLength float64) float64 {
	if c.FromEnd {
		return episodeLength - c.Seconds
	}
	return c.Seconds
}

// Boundary is the intro/credits window for one episode.
type Boundary struct {
	IntroEnd     float64
	CreditsStart CreditsMark
}

// DefaultBoundary is used when neither an exact nor a fuzzy cache match exists.
func DefaultBoundary() Boundary {
	return Boundary{
		IntroEnd:     DefaultIntroEndSeconds,
		CreditsStart: CreditsFromEnd(DefaultCreditsSeconds),
	}
}

// Admit reports whether a frame at timestamp ts falls strictly between the
// intro end and the resolved credits start.
func (b Boundary) Admit(ts, episodeLength float64) bool {
	return ts > b.IntroEnd && ts < b.CreditsStart.Resolve(episodeLength)
}

// boundaryEntry is the persisted cache value, seconds with one decimal place.
// A negative credits_start means "offset from episode end".
type boundaryEntry struct {
	IntroEnd     float64 `json:"intro_end"`
	CreditsStart float64 `json:"credits_start"`
	Duration     float64 `json:"duration"`
}

// BoundaryCache resolves per-episode boundaries from a JSON cache keyed by
// video filename, with fuzzy filename matching and fallback defaults.
type BoundaryCache struct {
	entries map[string]boundaryEntry
}

// NewBoundaryCache returns an empty cache; every lookup yields the defaults.
func NewBoundaryCache() *BoundaryCache {
	return &BoundaryCache{entries: make(map[string]boundaryEntry)}
}

// LoadBoundaryCache reads the JSON cache at path. A missing path returns an
// empty cache; a malformed file is an error.
func LoadBoundaryCache(path string) (*BoundaryCache, error) {
	if path == "" {
		return NewBoundaryCache(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewBoundaryCache(), nil
		}
		return nil, fmt.Errorf("read boundary cache: %w", err)
	}
	var entries map[string]boundaryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse boundary cache %s: %w", path, err)
	}
	return &BoundaryCache{entries: entries}, nil
}

// Len returns the number of cached episodes.
func (c *BoundaryCache) Len() int {
	return len(c.entries)
}

// Lookup resolves the boundary for an episode filename. Resolution order:
// exact key match, then fuzzy match (extension-stripped stems overlap), then
// defaults.
func (c *BoundaryCache) Lookup(filename string) Boundary {
	if e, ok := c.entries[filename]; ok {
		return e.boundary()
	}
	for cached, e := range c.entries {
		if utils.StemOverlap(filename, cached) {
			return e.boundary()
		}
	}
	return DefaultBoundary()
}

func (e boundaryEntry) boundary() Boundary {
	b := Boundary{IntroEnd: e.IntroEnd}
	if e.CreditsStart < 0 {
		b.CreditsStart = CreditsFromEnd(-e.CreditsStart)
	} else {
		b.CreditsStart = CreditsAbsolute(e.CreditsStart)
	}
	return b
}
