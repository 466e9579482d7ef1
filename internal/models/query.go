package models

import (
	"fmt"
	"strings"
)

// SearchMode selects the ranking strategy.
type SearchMode string

const (
	// ModeVisual ranks by vector distance with lexical discounts (default).
	ModeVisual SearchMode = "visual"
	// ModeQuote ranks by lexical overlap with the caption, for finding lines of dialogue.
	ModeQuote SearchMode = "quote"
)

// SearchQuery represents a search request with optional season filter.
type SearchQuery struct {
	Query   string     `json:"query"`
	Limit   int        `json:"limit,omitempty"`
	Mode    SearchMode `json:"mode,omitempty"`
	Seasons []string   `json:"seasons,omitempty"`
}

// Validate ensures the search query has valid fields and sets defaults.
// Returns an error for an empty or whitespace-only query; normalizes limit
// to [1, 100] and defaults the mode to visual.
func (q *SearchQuery) Validate() error {
	if strings.TrimSpace(q.Query) == "" {
		return fmt.Errorf("%w: query cannot be empty", ErrValidation)
	}
	if q.Limit <= 0 {
		q.Limit = 20
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	switch q.Mode {
	case ModeVisual, ModeQuote:
	case "":
		q.Mode = ModeVisual
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrValidation, q.Mode)
	}
	return nil
}

// MatchesSeason reports whether episodeID matches the query's season filter.
// Seasons are case-insensitive substrings of the episode ID (e.g. "s04");
// an empty filter matches everything.
func (q *SearchQuery) MatchesSeason(episodeID string) bool {
	if len(q.Seasons) == 0 {
		return true
	}
	ep := strings.ToLower(episodeID)
	for _, s := range q.Seasons {
		s = strings.TrimSpace(strings.ToLower(s))
		if s != "" && strings.Contains(ep, s) {
			return true
		}
	}
	return false
}
