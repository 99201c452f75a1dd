// Package platform defines the window-snapshot capability the tracker
// consumes and provides the per-OS enumeration backends. Hosts without
// one get ErrUnsupported.
package platform

import (
	"errors"
	"time"
)

// ErrUnsupported is returned when no snapshot backend exists for the
// current host.
var ErrUnsupported = errors.New("window snapshot source unsupported on this platform")

// WindowDetails describes one visible window at snapshot time. AppName
// and AppPath are empty when the owning process could not be resolved.
type WindowDetails struct {
	WindowTitle string
	AppName     string
	AppPath     string
	IsActive    bool
}

// Snapshot is a point-in-time view of visible windows: one map keyed
// by window title and a parallel one keyed by owning-app name. Windows
// with empty titles are filtered out by the source.
type Snapshot struct {
	Windows map[string]WindowDetails
	Apps    map[string]WindowDetails
}

// Source produces window snapshots and the user idle duration.
type Source interface {
	Snapshot() (Snapshot, error)
	IdleDuration() (time.Duration, error)
}
