// Package daemon wires the tracking loop, persistence writer,
// classification pipeline, admission sampler, and limit enforcer into
// one process and manages their shutdown order.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/dovakin0007/screen-time-tracking-app/internal/classify"
	"github.com/dovakin0007/screen-time-tracking-app/internal/config"
	"github.com/dovakin0007/screen-time-tracking-app/internal/limits"
	"github.com/dovakin0007/screen-time-tracking-app/internal/model"
	"github.com/dovakin0007/screen-time-tracking-app/internal/platform"
	"github.com/dovakin0007/screen-time-tracking-app/internal/store"
	"github.com/dovakin0007/screen-time-tracking-app/internal/sysmon"
	"github.com/dovakin0007/screen-time-tracking-app/internal/tracker"
)

const (
	// batchBuffer absorbs writer stalls without blocking the 1 Hz
	// tracking tick; the loop drops batches beyond this.
	batchBuffer = 256
	// gateBuffer holds up to 30 admission samples (30 seconds' worth).
	gateBuffer = 30

	pipelineRestartDelay = 5 * time.Second
)

// Options configures a daemon run. Empty endpoint fields use the
// classify package defaults; a nil Source uses the host backend.
type Options struct {
	DBPath       string
	ConfigPath   string
	DispatchAddr string
	ResultAddr   string
	Source       platform.Source
}

// Run starts every component and blocks until SIGINT/SIGTERM or an
// unrecoverable startup error. On shutdown the tracker flushes its
// final state and the writer drains the batch channel before exit.
func Run(parent context.Context, opts Options, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	source := opts.Source
	if source == nil {
		var err error
		source, err = platform.NewSource()
		if err != nil {
			return fmt.Errorf("window source: %w", err)
		}
	}

	cfg, err := config.LoadOrCreate(opts.ConfigPath)
	if err != nil {
		logger.Warn("config load failed, using defaults", "path", opts.ConfigPath, "error", err)
	}
	mgr := config.NewManager(cfg)

	st, err := store.Open(opts.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	now := time.Now()
	session := model.Session{
		ID:   ulid.MustNew(ulid.Timestamp(now), rand.New(rand.NewSource(now.UnixNano()))).String(),
		Date: now,
	}
	if err := st.InsertSession(ctx, session); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	logger.Info("session started", "session_id", session.ID)

	batches := make(chan model.Batch, batchBuffer)
	gate := make(chan bool, gateBuffer)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := config.Watch(ctx, mgr, opts.ConfigPath, logger); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("config watcher stopped", "error", err)
		}
	}()

	// Writer first: it exits when the tracker loop closes the batch
	// channel, never on ctx, so buffered batches always land.
	wg.Add(1)
	go func() {
		defer wg.Done()
		st.RunWriter(batches, logger)
	}()

	tr := tracker.New(session.ID, mgr.Snapshot().IdleThreshold())
	loop := tracker.NewLoop(source, tr, mgr, batches, logger)
	wg.Add(1)
	go func() {
		defer wg.Done()
		loop.Run(ctx)
	}()

	reader := sysmon.NewReader(logger)
	defer reader.Close()
	sampler := sysmon.NewSampler(reader, source, mgr, logger)
	wg.Add(1)
	go func() {
		defer wg.Done()
		sampler.Run(ctx, gate)
	}()

	enforcer := limits.New(st, logger, nil)
	wg.Add(1)
	go func() {
		defer wg.Done()
		enforcer.Run(ctx)
	}()

	pipeline := classify.New(st, mgr, logger).WithEndpoints(opts.DispatchAddr, opts.ResultAddr)
	wg.Add(1)
	go func() {
		defer wg.Done()
		runPipeline(ctx, pipeline, gate, logger)
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	wg.Wait()
	return nil
}

// runPipeline restarts the bounded classification session until the
// daemon stops. A session that errors out is retried after a short
// delay rather than taking the process down.
func runPipeline(ctx context.Context, p *classify.Pipeline, gate <-chan bool, logger *slog.Logger) {
	for {
		err := p.Run(ctx, gate)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			logger.Error("classification session failed", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(pipelineRestartDelay):
			}
		}
	}
}
