package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func TestWatcher_NewEpisodeDirectoryTriggersSync(t *testing.T) {
	root := t.TempDir()
	var syncs atomic.Int64
	w := NewWatcher(root, func() { syncs.Add(1) }, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	dir := filepath.Join(root, "S01E01")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if !waitFor(t, 2*time.Second, func() bool { return syncs.Load() >= 1 }) {
		t.Fatal("sync was not triggered by a new episode directory")
	}
}

func TestWatcher_BurstCollapsesToOneSync(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "S01E01")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	var syncs atomic.Int64
	w := NewWatcher(root, func() { syncs.Add(1) }, WithDebounce(200*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	for i := 0; i < 10; i++ {
		name := filepath.Join(dir, "frame_"+string(rune('a'+i))+".jpg")
		if err := os.WriteFile(name, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !waitFor(t, 2*time.Second, func() bool { return syncs.Load() >= 1 }) {
		t.Fatal("sync was not triggered")
	}
	// The quiet period has passed; the burst must have collapsed.
	time.Sleep(300 * time.Millisecond)
	if n := syncs.Load(); n != 1 {
		t.Errorf("syncs = %d, want 1 for a single burst", n)
	}
}

func TestWatcher_StopCancelsPendingSync(t *testing.T) {
	root := t.TempDir()
	var syncs atomic.Int64
	w := NewWatcher(root, func() { syncs.Add(1) }, WithDebounce(100*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(root, "S01E01"), 0o755); err != nil {
		t.Fatal(err)
	}
	time.Sleep(20 * time.Millisecond) // let the event arrive, then stop before the debounce fires
	w.Stop()
	time.Sleep(200 * time.Millisecond)
	if syncs.Load() != 0 {
		t.Error("sync should not fire after Stop")
	}
}
