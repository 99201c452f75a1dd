// Package tracker diffs window snapshots into usage intervals, idle
// periods, and pending-classification marks.
package tracker

import (
	"math/rand"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/dovakin0007/screen-time-tracking-app/internal/model"
	"github.com/dovakin0007/screen-time-tracking-app/internal/platform"
)

// Sentinel values used when a window's owning process is unresolved.
const (
	UnknownApp  = "Unknown App"
	UnknownPath = "Unknown Path"
)

// Tracker converts successive snapshots into the five collections the
// persistence writer consumes. It is owned by a single goroutine; no
// method is safe for concurrent use.
type Tracker struct {
	sessionID     string
	idleThreshold time.Duration

	apps            map[string]model.App
	appUsages       map[string]model.AppUsage
	windowUsages    map[string]model.WindowUsage
	classifications map[string]struct{}
	idlePeriods     map[string]model.IdlePeriod

	entropy *rand.Rand
	now     func() time.Time
}

// New returns a tracker for one session. idleThreshold is the idle
// duration past which the current excursion is recorded.
func New(sessionID string, idleThreshold time.Duration) *Tracker {
	return &Tracker{
		sessionID:       sessionID,
		idleThreshold:   idleThreshold,
		apps:            make(map[string]model.App),
		appUsages:       make(map[string]model.AppUsage),
		windowUsages:    make(map[string]model.WindowUsage),
		classifications: make(map[string]struct{}),
		idlePeriods:     make(map[string]model.IdlePeriod),
		entropy:         rand.New(rand.NewSource(time.Now().UnixNano())),
		now:             time.Now,
	}
}

// SetIdleThreshold updates the idle cutoff (config hot reload).
func (t *Tracker) SetIdleThreshold(d time.Duration) {
	t.idleThreshold = d
}

func (t *Tracker) newID() string {
	return ulid.MustNew(ulid.Timestamp(t.now()), t.entropy).String()
}

// Update folds one snapshot into the tracked state. idleFor is the
// user idle duration measured alongside the snapshot.
func (t *Tracker) Update(snap platform.Snapshot, idleFor time.Duration) {
	now := t.now().Truncate(time.Second)

	for title, details := range snap.Windows {
		appName := details.AppName
		if appName == "" {
			appName = UnknownApp
		}
		appPath := details.AppPath
		if appPath == "" {
			appPath = UnknownPath
		}

		t.apps[appName] = model.App{Name: appName, Path: appPath}
		appTimeID := t.touchAppUsage(appName, now)
		windowID := t.touchWindowUsage(title, appName, appTimeID, now)
		t.classifications[appName] = struct{}{}

		if idleFor > t.idleThreshold {
			t.touchIdle(title, appName, appTimeID, windowID, now)
		}
	}

	t.cleanup(snap)
}

// touchAppUsage extends the open interval for appName or opens a new
// one, and returns its id.
func (t *Tracker) touchAppUsage(appName string, now time.Time) string {
	if usage, ok := t.appUsages[appName]; ok {
		usage.EndTime = now
		t.appUsages[appName] = usage
		return usage.ID
	}
	usage := model.AppUsage{
		ID:        t.newID(),
		AppName:   appName,
		StartTime: now,
		EndTime:   now,
	}
	t.appUsages[appName] = usage
	return usage.ID
}

// touchWindowUsage advances the interval keyed by window title or
// opens a new one linked to appTimeID, and returns its id.
func (t *Tracker) touchWindowUsage(title, appName, appTimeID string, now time.Time) string {
	if usage, ok := t.windowUsages[title]; ok {
		usage.LastUpdated = now
		t.windowUsages[title] = usage
		return usage.ID
	}
	usage := model.WindowUsage{
		ID:          t.newID(),
		SessionID:   t.sessionID,
		AppTimeID:   appTimeID,
		AppName:     appName,
		WindowTitle: title,
		StartTime:   now,
		LastUpdated: now,
	}
	t.windowUsages[title] = usage
	return usage.ID
}

func (t *Tracker) touchIdle(title, appName, appTimeID, windowID string, now time.Time) {
	if period, ok := t.idlePeriods[title]; ok {
		period.EndTime = now
		t.idlePeriods[title] = period
		return
	}
	t.idlePeriods[title] = model.IdlePeriod{
		ID:        t.newID(),
		AppTimeID: appTimeID,
		WindowID:  windowID,
		SessionID: t.sessionID,
		AppName:   appName,
		StartTime: now,
		EndTime:   now,
	}
}

// cleanup stops extending intervals whose key left the snapshot. The
// rows already buffered stay destined for persistence; only the live
// tracking ends.
func (t *Tracker) cleanup(snap platform.Snapshot) {
	for name := range t.appUsages {
		if _, ok := snap.Apps[name]; !ok {
			delete(t.appUsages, name)
		}
	}
	for title := range t.windowUsages {
		if _, ok := snap.Windows[title]; !ok {
			delete(t.windowUsages, title)
		}
	}
	for title := range t.idlePeriods {
		if _, ok := snap.Windows[title]; !ok {
			delete(t.idlePeriods, title)
		}
	}
}

// State returns a deep copy of the five collections for hand-off to
// the persistence writer. The tracker's own state is untouched.
func (t *Tracker) State() model.Batch {
	batch := model.Batch{
		Apps:            make(map[string]model.App, len(t.apps)),
		AppUsages:       make(map[string]model.AppUsage, len(t.appUsages)),
		WindowUsages:    make(map[string]model.WindowUsage, len(t.windowUsages)),
		Classifications: make(map[string]struct{}, len(t.classifications)),
		IdlePeriods:     make(map[string]model.IdlePeriod, len(t.idlePeriods)),
	}
	for k, v := range t.apps {
		batch.Apps[k] = v
	}
	for k, v := range t.appUsages {
		batch.AppUsages[k] = v
	}
	for k, v := range t.windowUsages {
		batch.WindowUsages[k] = v
	}
	for k := range t.classifications {
		batch.Classifications[k] = struct{}{}
	}
	for k, v := range t.idlePeriods {
		batch.IdlePeriods[k] = v
	}
	return batch
}

// ResetIdle ends the current idle excursion: once idleFor has dropped
// back under the threshold the idle map is cleared, so the next
// excursion opens fresh periods instead of extending stale ones.
func (t *Tracker) ResetIdle(idleFor time.Duration) {
	if idleFor < t.idleThreshold && len(t.idlePeriods) > 0 {
		t.idlePeriods = make(map[string]model.IdlePeriod)
	}
}
