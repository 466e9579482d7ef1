// Package e2e provides end-to-end tests that drive the full stack: frames on
// disk through ingestion, the vector index, and the HTTP API.
package e2e

import (
	"fmt"

	"github.com/scenedex/scenedex/internal/models"
)

// SceneFrame is one frame in the E2E corpus. Concept picks the frame's
// embedding direction; Blend, when set, mixes in a second direction so the
// frame sits near — but not on — the concept axis.
type SceneFrame struct {
	Episode    string
	Name       string
	Number     int
	Caption    string
	Characters []string
	Concept    string
	Blend      string
}

// Path returns the frame's record key, "<episode>/<file>".
func (f SceneFrame) Path() string {
	return f.Episode + "/" + f.Name
}

// QueryCase defines one search request and the frame(s) it must surface.
// ExpectedTop, when set, must be the first result; ExpectedPaths must all
// appear somewhere in the result list.
type QueryCase struct {
	Query         string
	Mode          string
	Seasons       string
	ExpectedTop   string
	ExpectedPaths []string
	Description   string
}

// Corpus holds frames and query test cases for E2E tests. Queries embed onto
// the same concept axes as the frames, so retrieval is deterministic.
type Corpus struct {
	Frames       []SceneFrame
	TestCases    []QueryCase
	queryConcept map[string]string
}

// BuildCorpus returns a corpus of three episodes across two seasons. Frames
// within an episode are spaced nine seconds apart so the duplicate-run
// detector never chains them.
func BuildCorpus() *Corpus {
	frames := []SceneFrame{
		{
			Episode: "S01E01", Name: "frame_00010.jpg", Number: 10,
			Caption:    "homer eating donuts at the kwik-e-mart",
			Characters: []string{"Homer Simpson", "Apu Nahasapeemapetilon"},
			Concept:    "donut",
		},
		{
			Episode: "S01E01", Name: "frame_00013.jpg", Number: 13,
			Caption:    "a pile of pink donut boxes on the counter",
			Characters: []string{},
			Concept:    "donut", Blend: "boxes",
		},
		{
			Episode: "S01E01", Name: "frame_00016.jpg", Number: 16,
			Caption:    "homer asleep at the nuclear plant control panel",
			Characters: []string{"Homer Simpson"},
			Concept:    "plant",
		},
		{
			Episode: "S01E01", Name: "frame_00019.jpg", Number: 19,
			Caption:    "the family gathers on the living room couch",
			Characters: []string{"Homer Simpson", "Marge Simpson", "Bart Simpson", "Lisa Simpson"},
			Concept:    "couch",
		},
		{
			Episode: "S01E02", Name: "frame_00010.jpg", Number: 10,
			Caption:    "bart writes lines on the chalkboard",
			Characters: []string{"Bart Simpson"},
			Concept:    "school",
		},
		{
			Episode: "S01E02", Name: "frame_00013.jpg", Number: 13,
			Caption:    "moe pours a duff at the tavern",
			Characters: []string{"Moe Szyslak", "Homer Simpson"},
			Concept:    "tavern",
		},
		{
			Episode: "S01E02", Name: "frame_00016.jpg", Number: 16,
			Caption:    "lisa plays saxophone in the classroom",
			Characters: []string{"Lisa Simpson"},
			Concept:    "school", Blend: "saxophone",
		},
		{
			Episode: "S02E01", Name: "frame_00010.jpg", Number: 10,
			Caption:    "bart and milhouse in the treehouse at night",
			Characters: []string{"Bart Simpson", "Milhouse Van Houten"},
			Concept:    "treehouse",
		},
		{
			Episode: "S02E01", Name: "frame_00013.jpg", Number: 13,
			Caption:    "skinner serves steamed hams for lunch",
			Characters: []string{"Seymour Skinner", "Gary Chalmers"},
			Concept:    "skinner",
		},
	}

	queryConcept := map[string]string{
		"homer donuts":      "donut",
		"nuclear plant":     "plant",
		"moe tavern duff":   "tavern",
		"steamed hams":      "skinner",
		"treehouse at dusk": "treehouse",
		"bart chalkboard":   "school",
	}

	cases := []QueryCase{
		{
			Query:       "homer donuts",
			ExpectedTop: "S01E01/frame_00010.jpg",
			ExpectedPaths: []string{
				"S01E01/frame_00010.jpg",
				"S01E01/frame_00013.jpg",
			},
			Description: "on-axis frame outranks the blended frame of the same concept",
		},
		{
			Query:       "nuclear plant",
			ExpectedTop: "S01E01/frame_00016.jpg",
			Description: "single-concept visual query",
		},
		{
			Query:       "moe tavern duff",
			ExpectedTop: "S01E02/frame_00013.jpg",
			Description: "visual query with caption and character overlap",
		},
		{
			Query:       "steamed hams",
			Mode:        "quote",
			ExpectedTop: "S02E01/frame_00013.jpg",
			Description: "quote mode surfaces the exact caption substring",
		},
		{
			Query:       "treehouse at dusk",
			Seasons:     "S02",
			ExpectedTop: "S02E01/frame_00010.jpg",
			Description: "season filter keeps only S02 frames",
		},
		{
			Query:       "bart chalkboard",
			ExpectedTop: "S01E02/frame_00010.jpg",
			Description: "shared-concept episodes rank by distance",
		},
	}

	return &Corpus{
		Frames:       frames,
		TestCases:    cases,
		queryConcept: queryConcept,
	}
}

// conceptDims assigns each distinct concept (and blend) a vector dimension,
// in corpus order.
func (c *Corpus) conceptDims() map[string]int {
	dims := make(map[string]int)
	next := 0
	assign := func(concept string) {
		if concept == "" {
			return
		}
		if _, ok := dims[concept]; !ok {
			dims[concept] = next
			next++
		}
	}
	for _, f := range c.Frames {
		assign(f.Concept)
		assign(f.Blend)
	}
	return dims
}

// FrameVector returns the embedding the corpus embedder produces for a frame.
func (c *Corpus) FrameVector(f SceneFrame) []float32 {
	dims := c.conceptDims()
	v := make([]float32, models.EmbeddingDimensions)
	if f.Blend == "" {
		v[dims[f.Concept]] = 1
		return v
	}
	v[dims[f.Concept]] = 0.8
	v[dims[f.Blend]] = 0.6
	return v
}

// QueryVector returns the embedding for a corpus query, or an error for a
// query the corpus does not know.
func (c *Corpus) QueryVector(query string) ([]float32, error) {
	concept, ok := c.queryConcept[query]
	if !ok {
		return nil, fmt.Errorf("query %q is not in the corpus", query)
	}
	dims := c.conceptDims()
	v := make([]float32, models.EmbeddingDimensions)
	v[dims[concept]] = 1
	return v, nil
}

// BoundaryCacheJSON renders a boundary cache that admits every corpus frame:
// the intro ends at one second and the credits never start.
func (c *Corpus) BoundaryCacheJSON() string {
	out := "{"
	seen := make(map[string]bool)
	first := true
	for _, f := range c.Frames {
		if seen[f.Episode] {
			continue
		}
		seen[f.Episode] = true
		if !first {
			out += ", "
		}
		first = false
		out += fmt.Sprintf("%q: {\"intro_end\": 1.0, \"credits_start\": 100000.0}", f.Episode)
	}
	return out + "}"
}
