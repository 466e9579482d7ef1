package ingest

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/scenedex/scenedex/internal/curate"
	"github.com/scenedex/scenedex/internal/model"
	"github.com/scenedex/scenedex/internal/models"
	"github.com/scenedex/scenedex/internal/storage"
	"github.com/scenedex/scenedex/internal/vector"
)

// stubEmbedder returns a fixed unit vector per frame file name so tests can
// control which frames deduplicate.
type stubEmbedder struct {
	byName map[string]int // file name -> hot dimension
}

func (s *stubEmbedder) embed(name string) []float32 {
	v := make([]float32, models.EmbeddingDimensions)
	dim := 0
	if s.byName != nil {
		dim = s.byName[name]
	}
	v[dim] = 1
	return v
}

func (s *stubEmbedder) EmbedText(_ context.Context, text string) ([]float32, error) {
	return s.embed(text), nil
}

func (s *stubEmbedder) EmbedImage(_ context.Context, imagePath string) ([]float32, error) {
	return s.embed(filepath.Base(imagePath)), nil
}

func (s *stubEmbedder) Dimensions() int { return models.EmbeddingDimensions }
func (s *stubEmbedder) Close() error    { return nil }

func writeFrame(t *testing.T, framesDir, episode, name string, gray uint8) {
	t.Helper()
	dir := filepath.Join(framesDir, episode)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	img := image.NewGray(image.Rect(0, 0, 8, 8))
	for i := range img.Pix {
		img.Pix[i] = gray
	}
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

// writeContentFrame writes a frame with enough variance to never classify as
// blank.
func writeContentFrame(t *testing.T, framesDir, episode, name string) {
	t.Helper()
	dir := filepath.Join(framesDir, episode)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	img := image.NewGray(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			if x < 4 {
				img.SetGray(x, y, color.Gray{Y: 60})
			} else {
				img.SetGray(x, y, color.Gray{Y: 190})
			}
		}
	}
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func writeBoundaryCache(t *testing.T, path string, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func newTestCoordinator(t *testing.T, framesDir string, emb *stubEmbedder, ann model.Annotator, boundaries *curate.BoundaryCache) (*Coordinator, storage.FrameStore, vector.FrameIndex) {
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
	if ann == nil {
		ann = model.NoopAnnotator{}
	}
	if boundaries == nil {
		boundaries = curate.NewBoundaryCache()
	}
	coord := NewCoordinator(store, idx, emb, ann, boundaries, framesDir)
	return coord, store, idx
}

func TestSync_CurationPipeline(t *testing.T) {
	framesDir := t.TempDir()
	const ep = "S01E01"
	// interval 3s: ts = number * 3, episode length = 10 * 3 = 30s.
	writeContentFrame(t, framesDir, ep, "frame_00001.jpg") // ts=3, inside intro
	writeContentFrame(t, framesDir, ep, "frame_00002.jpg") // ts=6, kept
	writeContentFrame(t, framesDir, ep, "frame_00003.jpg") // ts=9, duplicate of 00002
	writeFrame(t, framesDir, ep, "frame_00004.jpg", 0)     // ts=12, black
	writeContentFrame(t, framesDir, ep, "frame_00005.jpg") // ts=15, kept (distinct vector)
	writeContentFrame(t, framesDir, ep, "frame_00010.jpg") // ts=30, inside credits
	cachePath := filepath.Join(t.TempDir(), "bounds.json")
	writeBoundaryCache(t, cachePath, `{"S01E01": {"intro_end": 5.0, "credits_start": -5.0}}`)
	boundaries, err := curate.LoadBoundaryCache(cachePath)
	if err != nil {
		t.Fatal(err)
	}

	emb := &stubEmbedder{byName: map[string]int{
		"frame_00002.jpg": 0,
		"frame_00003.jpg": 0, // same direction as 00002 -> duplicate
		"frame_00005.jpg": 1,
	}}
	ann := &model.StaticAnnotator{
		Captions: map[string]string{
			framesDir + "/" + ep + "/frame_00002.jpg": "homer at the plant",
		},
		Tags: map[string][]string{
			framesDir + "/" + ep + "/frame_00002.jpg": {"Homer Simpson"},
		},
	}
	coord, store, idx := newTestCoordinator(t, framesDir, emb, ann, boundaries)

	report, err := coord.Sync(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.RunID == "" {
		t.Error("report should carry a run id")
	}
	if report.EpisodesScanned != 1 || report.FramesDiscovered != 6 || report.NewFrames != 6 {
		t.Errorf("discovery counts = %d/%d/%d", report.EpisodesScanned, report.FramesDiscovered, report.NewFrames)
	}
	if report.SkippedBoundary != 2 {
		t.Errorf("skipped boundary = %d, want 2", report.SkippedBoundary)
	}
	if report.SkippedBlank != 1 {
		t.Errorf("skipped blank = %d, want 1", report.SkippedBlank)
	}
	if report.SkippedDuplicate != 1 {
		t.Errorf("skipped duplicate = %d, want 1", report.SkippedDuplicate)
	}
	if report.Indexed != 2 {
		t.Errorf("indexed = %d, want 2", report.Indexed)
	}
	if len(report.Failures) != 0 {
		t.Errorf("failures = %v", report.Failures)
	}
	if idx.Size() != 2 {
		t.Errorf("index size = %d, want 2", idx.Size())
	}

	rec, err := store.GetFrameByPath(context.Background(), ep+"/frame_00002.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Caption != "homer at the plant" {
		t.Errorf("caption = %q", rec.Caption)
	}
	if rec.CharactersJoined() != "Homer Simpson" {
		t.Errorf("characters = %q", rec.CharactersJoined())
	}
	if rec.Timestamp != 6 {
		t.Errorf("timestamp = %f, want 6", rec.Timestamp)
	}
}

func TestSync_Idempotent(t *testing.T) {
	framesDir := t.TempDir()
	writeContentFrame(t, framesDir, "S01E01", "frame_00040.jpg") // ts=120, admitted by defaults
	writeContentFrame(t, framesDir, "S01E01", "frame_00100.jpg") // length=300, ts=300 in credits
	emb := &stubEmbedder{byName: map[string]int{"frame_00040.jpg": 0, "frame_00100.jpg": 1}}
	coord, _, _ := newTestCoordinator(t, framesDir, emb, nil, nil)

	first, err := coord.Sync(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if first.Indexed != 1 {
		t.Fatalf("first sync indexed = %d, want 1", first.Indexed)
	}
	second, err := coord.Sync(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if second.NewFrames != 1 || second.Indexed != 0 {
		// frame_00100 is rediscovered as new every run but re-skipped at the
		// boundary; nothing is re-indexed.
		t.Errorf("second sync new=%d indexed=%d, want 1/0", second.NewFrames, second.Indexed)
	}
}

func TestSync_UndecodableFrameIsReportedNotFatal(t *testing.T) {
	framesDir := t.TempDir()
	dir := filepath.Join(framesDir, "S01E01")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	// ts=105, admitted by the default bounds (episode length 300s below).
	if err := os.WriteFile(filepath.Join(dir, "frame_00035.jpg"), []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}
	writeContentFrame(t, framesDir, "S01E01", "frame_00040.jpg") // ts=120, admitted
	writeContentFrame(t, framesDir, "S01E01", "frame_00100.jpg") // ts=300, credits

	emb := &stubEmbedder{}
	coord, _, _ := newTestCoordinator(t, framesDir, emb, nil, nil)
	report, err := coord.Sync(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Failures) != 1 {
		t.Fatalf("failures = %v, want 1 entry", report.Failures)
	}
	if report.Failures[0].Path != "S01E01/frame_00035.jpg" {
		t.Errorf("failure path = %q", report.Failures[0].Path)
	}
	if report.Indexed != 1 {
		t.Errorf("indexed = %d, want 1 (failure must not abort the batch)", report.Indexed)
	}
}

func TestDelete_Idempotent(t *testing.T) {
	framesDir := t.TempDir()
	writeContentFrame(t, framesDir, "S01E01", "frame_00040.jpg") // ts=120, admitted
	writeContentFrame(t, framesDir, "S01E01", "frame_00100.jpg") // ts=300, credits
	emb := &stubEmbedder{}
	coord, _, idx := newTestCoordinator(t, framesDir, emb, nil, nil)
	if _, err := coord.Sync(context.Background()); err != nil {
		t.Fatal(err)
	}

	removed, err := coord.Delete(context.Background(), "S01E01/frame_00040.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if !removed {
		t.Error("first delete should remove the record")
	}
	if idx.Size() != 0 {
		t.Errorf("index size after delete = %d", idx.Size())
	}
	removed, err = coord.Delete(context.Background(), "S01E01/frame_00040.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if removed {
		t.Error("second delete should be a no-op")
	}
}

func seedFrames(t *testing.T, store storage.FrameStore, idx vector.FrameIndex, frames []*models.FrameRecord) {
	t.Helper()
	for _, f := range frames {
		if f.CreatedAt.IsZero() {
			f.CreatedAt = time.Now().UTC()
		}
	}
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

func unitVec(dim int) []float32 {
	v := make([]float32, models.EmbeddingDimensions)
	v[dim] = 1
	return v
}

func TestSweepDuplicates(t *testing.T) {
	emb := &stubEmbedder{}
	coord, store, idx := newTestCoordinator(t, t.TempDir(), emb, nil, nil)
	seedFrames(t, store, idx, []*models.FrameRecord{
		{EpisodeID: "E1", FrameID: "frame_00001.jpg", Path: "E1/frame_00001.jpg", Timestamp: 3, Embedding: unitVec(0)},
		{EpisodeID: "E1", FrameID: "frame_00002.jpg", Path: "E1/frame_00002.jpg", Timestamp: 6, Embedding: unitVec(0)},
		{EpisodeID: "E1", FrameID: "frame_00003.jpg", Path: "E1/frame_00003.jpg", Timestamp: 9, Embedding: unitVec(1)},
	})

	dry, err := coord.SweepDuplicates(context.Background(), true)
	if err != nil {
		t.Fatal(err)
	}
	if dry.Flagged != 1 || dry.Removed != 0 {
		t.Errorf("dry run flagged=%d removed=%d, want 1/0", dry.Flagged, dry.Removed)
	}
	if n, _ := store.CountFrames(context.Background()); n != 3 {
		t.Errorf("dry run must not delete; count = %d", n)
	}

	report, err := coord.SweepDuplicates(context.Background(), false)
	if err != nil {
		t.Fatal(err)
	}
	if report.Removed != 1 {
		t.Errorf("removed = %d, want 1", report.Removed)
	}
	if _, err := store.GetFrameByPath(context.Background(), "E1/frame_00002.jpg"); err == nil {
		t.Error("duplicate frame should be deleted")
	}
	if idx.Size() != 2 {
		t.Errorf("index size = %d, want 2", idx.Size())
	}
}

func TestSweepBlanks(t *testing.T) {
	framesDir := t.TempDir()
	writeContentFrame(t, framesDir, "E1", "frame_00001.jpg")
	writeFrame(t, framesDir, "E1", "frame_00002.jpg", 255) // white
	emb := &stubEmbedder{}
	coord, store, idx := newTestCoordinator(t, framesDir, emb, nil, nil)
	seedFrames(t, store, idx, []*models.FrameRecord{
		{EpisodeID: "E1", FrameID: "frame_00001.jpg", Path: "E1/frame_00001.jpg", Timestamp: 3, Embedding: unitVec(0)},
		{EpisodeID: "E1", FrameID: "frame_00002.jpg", Path: "E1/frame_00002.jpg", Timestamp: 30, Embedding: unitVec(1)},
	})

	report, err := coord.SweepBlanks(context.Background(), false)
	if err != nil {
		t.Fatal(err)
	}
	if report.Removed != 1 || len(report.Paths) != 1 || report.Paths[0] != "E1/frame_00002.jpg" {
		t.Errorf("report = %+v", report)
	}
	if _, err := store.GetFrameByPath(context.Background(), "E1/frame_00001.jpg"); err != nil {
		t.Error("content frame should survive the sweep")
	}
}

func TestRetag(t *testing.T) {
	framesDir := t.TempDir()
	emb := &stubEmbedder{}
	ann := &model.StaticAnnotator{Tags: map[string][]string{
		framesDir + "/E1/frame_00001.jpg": {"Bart Simpson", "Lisa Simpson"},
	}}
	coord, store, idx := newTestCoordinator(t, framesDir, emb, ann, nil)
	seedFrames(t, store, idx, []*models.FrameRecord{
		{EpisodeID: "E1", FrameID: "frame_00001.jpg", Path: "E1/frame_00001.jpg", Timestamp: 3,
			Characters: []string{"Homer Simpson"}, Embedding: unitVec(0)},
	})

	report, err := coord.Retag(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.Flagged != 1 {
		t.Errorf("retagged = %d, want 1", report.Flagged)
	}
	rec, err := store.GetFrameByPath(context.Background(), "E1/frame_00001.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if rec.CharactersJoined() != "Bart Simpson, Lisa Simpson" {
		t.Errorf("characters = %q", rec.CharactersJoined())
	}
}

func TestDiscoverEpisodes(t *testing.T) {
	framesDir := t.TempDir()
	writeContentFrame(t, framesDir, "S02E05", "frame_00003.jpg")
	writeContentFrame(t, framesDir, "S02E05", "frame_00001.jpg")
	writeContentFrame(t, framesDir, "S01E01", "frame_00002.jpg")
	// Ignored: wrong naming, stray file at the root.
	writeContentFrame(t, framesDir, "S02E05", "cover.jpg")
	if err := os.WriteFile(filepath.Join(framesDir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	episodes, err := discoverEpisodes(framesDir, 3.0)
	if err != nil {
		t.Fatal(err)
	}
	if len(episodes) != 2 {
		t.Fatalf("episodes = %d, want 2", len(episodes))
	}
	if episodes[0].ID != "S01E01" || episodes[1].ID != "S02E05" {
		t.Errorf("episode order = %s, %s", episodes[0].ID, episodes[1].ID)
	}
	ep := episodes[1]
	if len(ep.Frames) != 2 {
		t.Fatalf("frames = %d, want 2 (cover.jpg ignored)", len(ep.Frames))
	}
	if ep.Frames[0].Number != 1 || ep.Frames[1].Number != 3 {
		t.Errorf("frames not sorted by number: %d, %d", ep.Frames[0].Number, ep.Frames[1].Number)
	}
	if ep.Length != 9 {
		t.Errorf("episode length = %f, want 9", ep.Length)
	}
}
