package tracker

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dovakin0007/screen-time-tracking-app/internal/config"
	"github.com/dovakin0007/screen-time-tracking-app/internal/model"
	"github.com/dovakin0007/screen-time-tracking-app/internal/platform"
)

type fakeSource struct {
	mu    sync.Mutex
	snap  platform.Snapshot
	idle  time.Duration
	snaps int
}

func (f *fakeSource) Snapshot() (platform.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snaps++
	return f.snap, nil
}

func (f *fakeSource) snapshotCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snaps
}

func (f *fakeSource) IdleDuration() (time.Duration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.idle, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoopFlushesOnChangeAndShutdown(t *testing.T) {
	source := &fakeSource{snap: editorSnapshot()}
	out := make(chan model.Batch, 16)
	loop := NewLoop(source, New("s", 30*time.Second), config.NewManager(config.Default()), out, discardLogger())
	loop.interval = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		loop.Run(ctx)
		close(done)
	}()

	// First tick sees a changed window set and flushes.
	select {
	case batch := <-out:
		if _, ok := batch.AppUsages["editor.exe"]; !ok {
			t.Errorf("expected editor.exe in first batch")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no batch produced")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop")
	}

	// Channel is closed after the shutdown flush, so the writer can
	// drain and exit.
	for range out {
	}
}

func TestShutdownFlushSurvivesFullChannel(t *testing.T) {
	source := &fakeSource{snap: editorSnapshot()}

	// A single-slot channel pre-filled with a stale batch: every tick
	// flush is forced to drop.
	out := make(chan model.Batch, 1)
	out <- model.Batch{Apps: map[string]model.App{"stale.exe": {Name: "stale.exe"}}}

	loop := NewLoop(source, New("s", 30*time.Second), config.NewManager(config.Default()), out, discardLogger())
	loop.interval = 2 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		loop.Run(ctx)
		close(done)
	}()

	// Wait until the loop has tracked at least one snapshot.
	deadline := time.Now().Add(2 * time.Second)
	for source.snapshotCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if source.snapshotCount() == 0 {
		t.Fatal("loop never ticked")
	}
	cancel()

	// Drain: the stale batch first, then the shutdown flush must
	// arrive despite the buffer having been full at cancel time.
	var sawFinal bool
	for batch := range out {
		if _, ok := batch.AppUsages["editor.exe"]; ok {
			sawFinal = true
		}
	}
	if !sawFinal {
		t.Fatal("final tracker state never reached the writer channel")
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop")
	}
}

func TestLoopSkipsUnchangedState(t *testing.T) {
	source := &fakeSource{snap: editorSnapshot()}
	out := make(chan model.Batch, 64)

	cfg := config.Default()
	cfg.DBUpdateSecs = 900 // forced flush far away
	loop := NewLoop(source, New("s", 30*time.Second), config.NewManager(cfg), out, discardLogger())
	loop.interval = 2 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	loop.Run(ctx)

	var batches int
	for range out {
		batches++
	}
	// One flush for the initial change, one for shutdown.
	if batches > 2 {
		t.Errorf("expected unchanged snapshots to be skipped, got %d batches", batches)
	}
	if batches == 0 {
		t.Error("expected at least the initial flush")
	}
}
