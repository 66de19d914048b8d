package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherReportsTrackedFileOnly(t *testing.T) {
	dir := t.TempDir()
	tracked := filepath.Join(dir, "openclaw.json")
	other := filepath.Join(dir, "notes.txt")

	w := New([]string{tracked, filepath.Join(t.TempDir(), "missing", "openclaw.json")}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("start watcher: %v", err)
	}

	if err := os.WriteFile(other, []byte("x"), 0o644); err != nil {
		t.Fatalf("write other: %v", err)
	}
	if err := os.WriteFile(tracked, []byte(`{}`), 0o644); err != nil {
		t.Fatalf("write tracked: %v", err)
	}

	deadline := time.After(3 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case ev := <-w.Events():
			if ev.Path != tracked {
				t.Fatalf("expected event for %s, got %s", tracked, ev.Path)
			}
			return
		case <-tick.C:
			_ = os.WriteFile(tracked, []byte(`{"gateway":{}}`), 0o644)
		case <-deadline:
			t.Fatalf("timed out waiting for drift event")
		}
	}
}

func TestWatcherClosesOnCancel(t *testing.T) {
	w := New([]string{filepath.Join(t.TempDir(), "openclaw.json")}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	if err := w.Start(ctx); err != nil {
		t.Fatalf("start watcher: %v", err)
	}
	cancel()
	select {
	case _, ok := <-w.Events():
		if ok {
			t.Fatalf("expected closed channel")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("events channel not closed")
	}
}
