package tracker

import (
	"context"
	"log/slog"
	"maps"
	"time"

	"github.com/dovakin0007/screen-time-tracking-app/internal/config"
	"github.com/dovakin0007/screen-time-tracking-app/internal/model"
	"github.com/dovakin0007/screen-time-tracking-app/internal/platform"
)

// TickInterval is the tracking cadence.
const TickInterval = time.Second

// Loop drives the tracker once per second and ships batched state to
// the persistence writer. It owns the tracker exclusively.
type Loop struct {
	source  platform.Source
	tracker *Tracker
	cfg     *config.Manager
	out     chan<- model.Batch
	logger  *slog.Logger

	interval    time.Duration
	prevWindows map[string]platform.WindowDetails
	lastFlush   time.Time
}

// NewLoop wires a tracking loop. out is closed when Run returns so the
// writer can drain and exit.
func NewLoop(source platform.Source, tr *Tracker, cfg *config.Manager, out chan<- model.Batch, logger *slog.Logger) *Loop {
	return &Loop{
		source:   source,
		tracker:  tr,
		cfg:      cfg,
		out:      out,
		logger:   logger,
		interval: TickInterval,
	}
}

// Run ticks until ctx is cancelled, then flushes the tracker's final
// state and closes the outbound channel.
func (l *Loop) Run(ctx context.Context) {
	defer close(l.out)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.lastFlush = time.Now()
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("shutdown signal received, flushing tracker state")
			// Blocking send, unlike tick flushes: the writer drains the
			// channel until it closes, so the final state must reach it
			// even when the buffer is full.
			if batch := l.tracker.State(); !batch.Empty() {
				l.out <- batch
			}
			return
		case <-ticker.C:
			l.tick()
		}
	}
}

func (l *Loop) tick() {
	cfg := l.cfg.Snapshot()
	l.tracker.SetIdleThreshold(cfg.IdleThreshold())

	snap, err := l.source.Snapshot()
	if err != nil {
		l.logger.Warn("window snapshot failed", slog.Any("error", err))
		return
	}
	idleFor, err := l.source.IdleDuration()
	if err != nil {
		l.logger.Warn("idle measurement failed", slog.Any("error", err))
		idleFor = 0
	}

	changed := !maps.Equal(l.prevWindows, snap.Windows)
	intervalDue := time.Since(l.lastFlush) >= cfg.DBUpdateInterval()
	userIdle := idleFor > cfg.IdleThreshold()
	if !changed && !intervalDue && !userIdle {
		return
	}

	l.prevWindows = snap.Windows
	l.lastFlush = time.Now()
	l.tracker.Update(snap, idleFor)
	l.send(l.tracker.State())
	l.tracker.ResetIdle(idleFor)
}

// send never blocks the tick: when the writer has fallen this far
// behind, dropping a batch beats stalling the clock (the next flush
// carries the same open intervals forward).
func (l *Loop) send(batch model.Batch) {
	if batch.Empty() {
		return
	}
	select {
	case l.out <- batch:
	default:
		l.logger.Warn("persistence channel full, dropping batch",
			slog.Int("apps", len(batch.Apps)),
			slog.Int("windows", len(batch.WindowUsages)))
	}
}
