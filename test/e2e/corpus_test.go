package e2e

import (
	"encoding/json"
	"testing"
)

func TestBuildCorpus_FramesAndQueries(t *testing.T) {
	c := BuildCorpus()
	if len(c.Frames) == 0 {
		t.Fatal("corpus has no frames")
	}
	if len(c.TestCases) == 0 {
		t.Fatal("corpus has no query test cases")
	}
	seen := make(map[string]bool)
	for _, f := range c.Frames {
		if seen[f.Path()] {
			t.Errorf("duplicate frame path %s", f.Path())
		}
		seen[f.Path()] = true
	}
	for _, tc := range c.TestCases {
		if tc.ExpectedTop != "" && !seen[tc.ExpectedTop] {
			t.Errorf("query %q expects unknown frame %s", tc.Query, tc.ExpectedTop)
		}
		for _, p := range tc.ExpectedPaths {
			if !seen[p] {
				t.Errorf("query %q expects unknown frame %s", tc.Query, p)
			}
		}
	}
}

func TestCorpus_VectorsAreUnitLength(t *testing.T) {
	c := BuildCorpus()
	for _, f := range c.Frames {
		v := c.FrameVector(f)
		var norm float64
		for _, x := range v {
			norm += float64(x) * float64(x)
		}
		if norm < 0.999 || norm > 1.001 {
			t.Errorf("frame %s: squared norm = %f, want 1", f.Path(), norm)
		}
	}
}

func TestCorpus_QueryVectorsResolve(t *testing.T) {
	c := BuildCorpus()
	for _, tc := range c.TestCases {
		v, err := c.QueryVector(tc.Query)
		if err != nil {
			t.Errorf("query %q: %v", tc.Query, err)
			continue
		}
		nonZero := false
		for _, x := range v {
			if x != 0 {
				nonZero = true
				break
			}
		}
		if !nonZero {
			t.Errorf("query %q: zero vector", tc.Query)
		}
	}
	if _, err := c.QueryVector("no such query"); err == nil {
		t.Error("unknown query should error")
	}
}

func TestCorpus_BoundaryCacheJSONIsValid(t *testing.T) {
	c := BuildCorpus()
	var entries map[string]map[string]float64
	if err := json.Unmarshal([]byte(c.BoundaryCacheJSON()), &entries); err != nil {
		t.Fatalf("boundary cache JSON: %v", err)
	}
	if len(entries) != 3 {
		t.Errorf("boundary entries = %d, want 3", len(entries))
	}
	for ep, e := range entries {
		if e["intro_end"] >= e["credits_start"] {
			t.Errorf("episode %s: intro_end %f >= credits_start %f", ep, e["intro_end"], e["credits_start"])
		}
	}
}
