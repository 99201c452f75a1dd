// Package classify dispatches unclassified applications to an external
// agent over localhost pub/sub and records the verdicts it sends back.
package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-zeromq/zmq4"

	"github.com/dovakin0007/screen-time-tracking-app/internal/config"
	"github.com/dovakin0007/screen-time-tracking-app/internal/model"
)

// Socket addresses shared with the external agent. The daemon binds the
// dispatch side and connects to the result side.
const (
	DispatchAddr = "tcp://127.0.0.1:30002"
	ResultAddr   = "tcp://127.0.0.1:30003"
)

const fetchLimit = 50

// Store is the slice of the persistence layer the pipeline needs.
type Store interface {
	FetchUnclassified(ctx context.Context, limit int) ([]model.Classification, error)
	UpdateClassification(ctx context.Context, name, classification string) error
}

// Pipeline runs one bounded classification session: drain pending apps
// to the agent while the system is quiet, apply verdicts as they come
// back, and return when the session deadline passes so the caller can
// start a fresh one.
type Pipeline struct {
	store  Store
	cfg    *config.Manager
	logger *slog.Logger

	dispatchAddr string
	resultAddr   string

	queue []model.Classification
}

func New(store Store, cfg *config.Manager, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		store:        store,
		cfg:          cfg,
		logger:       logger,
		dispatchAddr: DispatchAddr,
		resultAddr:   ResultAddr,
	}
}

// WithEndpoints overrides the default socket addresses. Empty strings
// keep the defaults.
func (p *Pipeline) WithEndpoints(dispatch, result string) *Pipeline {
	if dispatch != "" {
		p.dispatchAddr = dispatch
	}
	if result != "" {
		p.resultAddr = result
	}
	return p
}

// Run executes one session. Each value received on gate is an admission
// sample; a dispatch happens only on a true sample, so a loaded system
// pauses the queue without dropping it. Run returns nil when the
// session deadline expires or gate closes, and ctx.Err() when the
// parent context is cancelled.
func (p *Pipeline) Run(ctx context.Context, gate <-chan bool) error {
	timeout := p.cfg.Snapshot().Timeout()
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	pub := zmq4.NewPub(runCtx)
	defer pub.Close()
	if err := pub.Listen(p.dispatchAddr); err != nil {
		return fmt.Errorf("bind dispatch socket %s: %w", p.dispatchAddr, err)
	}

	sub := zmq4.NewSub(runCtx)
	defer sub.Close()
	if err := sub.Dial(p.resultAddr); err != nil {
		return fmt.Errorf("connect result socket %s: %w", p.resultAddr, err)
	}
	if err := sub.SetOption(zmq4.OptionSubscribe, ""); err != nil {
		return fmt.Errorf("subscribe results: %w", err)
	}

	go p.receiveResults(runCtx, sub)

	for {
		select {
		case <-runCtx.Done():
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return nil
		case quiet, ok := <-gate:
			if !ok {
				return nil
			}
			if !quiet {
				continue
			}
		}

		rec, ok := p.next(runCtx)
		if !ok {
			continue
		}
		body, err := json.Marshal(rec)
		if err != nil {
			p.logger.Error("encode dispatch record", "app", rec.Name, "error", err)
			continue
		}
		if err := pub.Send(zmq4.NewMsg(body)); err != nil {
			if runCtx.Err() != nil {
				continue
			}
			p.logger.Warn("dispatch send failed", "app", rec.Name, "error", err)
		}
	}
}

// next pops the head of the pending queue, refilling it from the store
// when empty. Returns false when nothing is pending.
func (p *Pipeline) next(ctx context.Context) (model.Classification, bool) {
	if len(p.queue) == 0 {
		pending, err := p.store.FetchUnclassified(ctx, fetchLimit)
		if err != nil {
			p.logger.Error("fetch unclassified apps", "error", err)
			return model.Classification{}, false
		}
		p.queue = pending
	}
	if len(p.queue) == 0 {
		return model.Classification{}, false
	}
	rec := p.queue[0]
	p.queue = p.queue[1:]
	return rec, true
}

func (p *Pipeline) receiveResults(ctx context.Context, sub zmq4.Socket) {
	for {
		msg, err := sub.Recv()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			p.logger.Warn("receive classification result", "error", err)
			continue
		}
		rec, err := decodeResult(msg.Bytes())
		if err != nil {
			p.logger.Warn("drop malformed result", "error", err)
			continue
		}
		if err := p.store.UpdateClassification(ctx, rec.Name, *rec.Classification); err != nil {
			p.logger.Error("store classification", "app", rec.Name, "error", err)
			continue
		}
		p.logger.Debug("classified", "app", rec.Name, "classification", *rec.Classification)
	}
}

// decodeResult parses an agent reply. Replies without a name or a
// verdict are rejected rather than written back as empty rows.
func decodeResult(body []byte) (model.Classification, error) {
	var rec model.Classification
	if err := json.Unmarshal(body, &rec); err != nil {
		return model.Classification{}, fmt.Errorf("decode result: %w", err)
	}
	if rec.Name == "" {
		return model.Classification{}, errors.New("result missing app name")
	}
	if rec.Classification == nil || *rec.Classification == "" {
		return model.Classification{}, errors.New("result missing classification")
	}
	return rec, nil
}
