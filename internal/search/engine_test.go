package search

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/scenedex/scenedex/internal/models"
	"github.com/scenedex/scenedex/internal/storage"
	"github.com/scenedex/scenedex/internal/vector"
)

// textEmbedder maps query strings to fixed unit vectors.
type textEmbedder struct {
	byText map[string]int // query -> hot dimension
}

func (e *textEmbedder) EmbedText(_ context.Context, text string) ([]float32, error) {
	v := make([]float32, models.EmbeddingDimensions)
	v[e.byText[text]] = 1
	return v, nil
}

func (e *textEmbedder) EmbedImage(_ context.Context, _ string) ([]float32, error) {
	return nil, errors.New("not used")
}

func (e *textEmbedder) Dimensions() int { return models.EmbeddingDimensions }
func (e *textEmbedder) Close() error    { return nil }

func unitVec(dim int) []float32 {
	v := make([]float32, models.EmbeddingDimensions)
	v[dim] = 1
	return v
}

// blendVec returns a normalized mix of two axes; closer to a than b.
func blendVec(a, b int) []float32 {
	v := make([]float32, models.EmbeddingDimensions)
	v[a] = 0.8
	v[b] = 0.6
	return v
}

func newTestEngine(t *testing.T, emb *textEmbedder, frames []*models.FrameRecord) (*Engine, storage.FrameStore) {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "frames.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	idx, err := vector.NewMemoryIndex(models.EmbeddingDimensions)
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range frames {
		f.CreatedAt = time.Now().UTC()
	}
	if len(frames) > 0 {
		if err := store.CreateFrames(context.Background(), frames); err != nil {
			t.Fatal(err)
		}
		paths := make([]string, len(frames))
		vecs := make([][]float32, len(frames))
		for i, f := range frames {
			paths[i] = f.Path
			vecs[i] = f.Embedding
		}
		if err := idx.Add(context.Background(), paths, vecs); err != nil {
			t.Fatal(err)
		}
	}
	return NewEngine(store, emb, idx), store
}

func testFrames() []*models.FrameRecord {
	return []*models.FrameRecord{
		{EpisodeID: "S01E01", FrameID: "frame_00010.jpg", Path: "S01E01/frame_00010.jpg",
			Timestamp: 30, Caption: "homer at the plant", Embedding: unitVec(0)},
		{EpisodeID: "S01E02", FrameID: "frame_00020.jpg", Path: "S01E02/frame_00020.jpg",
			Timestamp: 60, Caption: "marge in the kitchen", Embedding: blendVec(0, 1)},
		{EpisodeID: "S02E01", FrameID: "frame_00030.jpg", Path: "S02E01/frame_00030.jpg",
			Timestamp: 90, Caption: "bart on a skateboard", Embedding: unitVec(2)},
	}
}

func TestEngine_Search_RanksByDistance(t *testing.T) {
	emb := &textEmbedder{byText: map[string]int{"nuclear plant": 0}}
	engine, _ := newTestEngine(t, emb, testFrames())

	resp, err := engine.Search(context.Background(), &models.SearchQuery{Query: "nuclear plant"})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) != 3 {
		t.Fatalf("results = %d, want 3", len(resp.Results))
	}
	if resp.Results[0].Path != "S01E01/frame_00010.jpg" {
		t.Errorf("top result = %s, want the exact-direction frame", resp.Results[0].Path)
	}
	if resp.Results[0].Score <= resp.Results[1].Score {
		t.Error("scores should be strictly decreasing here")
	}
	if resp.Mode != models.ModeVisual {
		t.Errorf("mode = %s, want visual default", resp.Mode)
	}
	if resp.Results[0].ImageURL != "/frames/S01E01/frame_00010.jpg" {
		t.Errorf("image url = %s", resp.Results[0].ImageURL)
	}
	if resp.Results[0].ThumbURL != "/thumbs/S01E01/frame_00010.jpg" {
		t.Errorf("thumb url = %s", resp.Results[0].ThumbURL)
	}
}

func TestEngine_Search_CaptionLiftsDistantFrame(t *testing.T) {
	// Both frames sit at the same distance from the query; the one whose
	// caption contains the query words must rank first.
	frames := []*models.FrameRecord{
		{EpisodeID: "E1", FrameID: "a.jpg", Path: "E1/a.jpg", Timestamp: 10,
			Caption: "nothing relevant", Embedding: unitVec(1)},
		{EpisodeID: "E1", FrameID: "b.jpg", Path: "E1/b.jpg", Timestamp: 20,
			Caption: "homer eating a donut", Embedding: unitVec(2)},
	}
	emb := &textEmbedder{byText: map[string]int{"homer donut": 0}}
	engine, _ := newTestEngine(t, emb, frames)

	resp, err := engine.Search(context.Background(), &models.SearchQuery{Query: "homer donut"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Results[0].Path != "E1/b.jpg" {
		t.Errorf("top result = %s, want the caption match", resp.Results[0].Path)
	}
}

func TestEngine_Search_SeasonFilter(t *testing.T) {
	emb := &textEmbedder{byText: map[string]int{"anything": 0}}
	engine, _ := newTestEngine(t, emb, testFrames())

	resp, err := engine.Search(context.Background(), &models.SearchQuery{
		Query:   "anything",
		Seasons: []string{"s02"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) != 1 {
		t.Fatalf("results = %d, want 1", len(resp.Results))
	}
	if resp.Results[0].Episode != "S02E01" {
		t.Errorf("episode = %s, want S02E01", resp.Results[0].Episode)
	}
}

func TestEngine_Search_LimitTruncates(t *testing.T) {
	emb := &textEmbedder{byText: map[string]int{"anything": 0}}
	engine, _ := newTestEngine(t, emb, testFrames())

	resp, err := engine.Search(context.Background(), &models.SearchQuery{Query: "anything", Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) != 2 {
		t.Errorf("results = %d, want 2", len(resp.Results))
	}
	if resp.Total != 3 {
		t.Errorf("total = %d, want 3", resp.Total)
	}
}

func TestEngine_Search_EmptyQuery(t *testing.T) {
	emb := &textEmbedder{byText: map[string]int{}}
	engine, _ := newTestEngine(t, emb, nil)

	_, err := engine.Search(context.Background(), &models.SearchQuery{Query: "   "})
	if !errors.Is(err, models.ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
}

func TestEngine_Similar(t *testing.T) {
	emb := &textEmbedder{}
	engine, _ := newTestEngine(t, emb, testFrames())

	resp, err := engine.Similar(context.Background(), "S01E01/frame_00010.jpg", 10)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range resp.Results {
		if r.Path == "S01E01/frame_00010.jpg" {
			t.Error("similar results must exclude the source frame")
		}
	}
	if len(resp.Results) != 2 {
		t.Errorf("results = %d, want 2", len(resp.Results))
	}
	if resp.Results[0].Path != "S01E02/frame_00020.jpg" {
		t.Errorf("nearest = %s, want the blended frame", resp.Results[0].Path)
	}
}

func TestEngine_Similar_UnknownPath(t *testing.T) {
	emb := &textEmbedder{}
	engine, _ := newTestEngine(t, emb, testFrames())

	_, err := engine.Similar(context.Background(), "S09E09/frame_99999.jpg", 10)
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestEngine_Random(t *testing.T) {
	emb := &textEmbedder{}
	engine, _ := newTestEngine(t, emb, testFrames())

	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		res, err := engine.Random(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		seen[res.Path] = true
	}
	if len(seen) < 2 {
		t.Errorf("20 draws over 3 frames hit %d distinct frames", len(seen))
	}
}

func TestEngine_Random_EmptyIndex(t *testing.T) {
	emb := &textEmbedder{}
	engine, _ := newTestEngine(t, emb, nil)

	_, err := engine.Random(context.Background())
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
