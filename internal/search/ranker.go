package search

import (
	"strings"

	"github.com/scenedex/scenedex/internal/models"
	"github.com/scenedex/scenedex/pkg/utils"
)

const (
	// Visual mode: each lexical match multiplies the distance down, floored so
	// a caption stuffed with query words cannot zero the distance outright.
	captionDiscountStep   = 0.15
	characterDiscountStep = 0.30
	minDiscountFactor     = 0.1

	// Quote mode score bands.
	exactQuoteScore  = 0.95
	quoteWordBonus   = 0.2
	quoteScoreCap    = 0.9
	quoteMissPenalty = 0.3
)

// Ranker turns raw cosine distances into final scores using the query's
// lexical overlap with captions and character labels.
type Ranker struct {
	mode  models.SearchMode
	query string
	words []string
}

// NewRanker builds a ranker for one query. The query's words are extracted
// once and reused across candidates.
func NewRanker(query string, mode models.SearchMode) *Ranker {
	return &Ranker{
		mode:  mode,
		query: strings.ToLower(strings.TrimSpace(query)),
		words: utils.QueryWords(query),
	}
}

// Score computes the final [0,1] score for one candidate at the given cosine
// distance.
func (r *Ranker) Score(distance float64, rec *models.FrameRecord) float64 {
	if r.mode == models.ModeQuote {
		return r.scoreQuote(distance, rec)
	}
	return r.scoreVisual(distance, rec)
}

// scoreVisual discounts the vector distance for every query word found in the
// caption and, more strongly, in the character labels, then maps distance to
// a score. Cosine distance lives in [0,2], so score = 1 - d/2.
func (r *Ranker) scoreVisual(distance float64, rec *models.FrameRecord) float64 {
	captionMatches := countWordMatches(r.words, rec.Caption)
	characterMatches := countWordMatches(r.words, rec.CharactersJoined())

	distance *= max(minDiscountFactor, 1-captionDiscountStep*float64(captionMatches))
	distance *= max(minDiscountFactor, 1-characterDiscountStep*float64(characterMatches))
	return utils.Clamp01(1 - distance/2)
}

// scoreQuote ranks by caption text overlap: an exact substring match wins
// outright, partial word overlap boosts the distance-derived base score up to
// a cap, and zero overlap collapses the base score.
func (r *Ranker) scoreQuote(distance float64, rec *models.FrameRecord) float64 {
	caption := strings.ToLower(rec.Caption)
	if r.query != "" && strings.Contains(caption, r.query) {
		return exactQuoteScore
	}
	base := max(0, 1-distance/2)
	wordMatches := countWordMatches(r.words, rec.Caption)
	if wordMatches > 0 {
		return min(quoteScoreCap, base+quoteWordBonus*float64(wordMatches))
	}
	return base * quoteMissPenalty
}

// countWordMatches counts how many of the query words occur in text
// (case-insensitive substring containment).
func countWordMatches(words []string, text string) int {
	if text == "" || len(words) == 0 {
		return 0
	}
	text = strings.ToLower(text)
	n := 0
	for _, w := range words {
		if strings.Contains(text, w) {
			n++
		}
	}
	return n
}
