// Package limits enforces per-app daily usage limits: alerting when an
// app runs past its configured budget, or closing it outright.
package limits

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/process"

	"github.com/dovakin0007/screen-time-tracking-app/internal/model"
)

// CheckInterval is how often the enforcer re-reads today's totals.
const CheckInterval = time.Minute

// Store is the slice of the persistence layer the enforcer consumes.
type Store interface {
	DailyLimitStatus(ctx context.Context) ([]model.LimitStatus, error)
}

// NotifyFunc delivers an over-limit alert to the user.
type NotifyFunc func(appName string, spent, limit int64)

// Enforcer polls daily limit status and acts on apps over budget.
type Enforcer struct {
	store  Store
	logger *slog.Logger
	notify NotifyFunc
	kill   func(appName string) error

	interval  time.Duration
	lastAlert map[string]time.Time
	now       func() time.Time
}

func New(store Store, logger *slog.Logger, notify NotifyFunc) *Enforcer {
	e := &Enforcer{
		store:     store,
		logger:    logger,
		notify:    notify,
		kill:      killProcesses,
		interval:  CheckInterval,
		lastAlert: make(map[string]time.Time),
		now:       time.Now,
	}
	if e.notify == nil {
		e.notify = func(appName string, spent, limit int64) {
			logger.Warn("daily limit exceeded", "app", appName, "spent_minutes", spent, "limit_minutes", limit)
		}
	}
	return e
}

// Run polls until ctx is cancelled.
func (e *Enforcer) Run(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.check(ctx)
		}
	}
}

func (e *Enforcer) check(ctx context.Context) {
	statuses, err := e.store.DailyLimitStatus(ctx)
	if err != nil {
		e.logger.Error("read daily limit status", "error", err)
		return
	}
	for _, st := range statuses {
		if int64(st.SpentMinutes) < st.TimeLimitMinutes {
			continue
		}
		e.enforce(st)
	}
}

func (e *Enforcer) enforce(st model.LimitStatus) {
	if st.ShouldClose {
		if st.AlertBeforeClose {
			e.alert(st)
		}
		if err := e.kill(st.AppName); err != nil {
			e.logger.Error("close app over limit", "app", st.AppName, "error", err)
			return
		}
		e.logger.Info("closed app over daily limit", "app", st.AppName, "spent_minutes", int64(st.SpentMinutes))
		return
	}
	if st.ShouldAlert {
		e.alert(st)
	}
}

// alert rate-limits notifications to one per alert_duration per app.
func (e *Enforcer) alert(st model.LimitStatus) {
	gap := time.Duration(st.AlertDuration) * time.Second
	if gap <= 0 {
		gap = 5 * time.Minute
	}
	if last, ok := e.lastAlert[st.AppName]; ok && e.now().Sub(last) < gap {
		return
	}
	e.lastAlert[st.AppName] = e.now()
	e.notify(st.AppName, int64(st.SpentMinutes), st.TimeLimitMinutes)
}

// killProcesses terminates every process whose executable name matches
// appName (case-insensitive, as process names come back from the OS).
func killProcesses(appName string) error {
	procs, err := process.Processes()
	if err != nil {
		return fmt.Errorf("list processes: %w", err)
	}
	var firstErr error
	for _, p := range procs {
		name, err := p.Name()
		if err != nil || !strings.EqualFold(name, appName) {
			continue
		}
		if err := p.Kill(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("kill %s (pid %d): %w", appName, p.Pid, err)
		}
	}
	return firstErr
}
