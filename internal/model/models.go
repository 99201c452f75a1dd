// Package model defines the tracked usage data types.
package model

import "time"

// App is an observed application, keyed by executable name.
type App struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// AppUsage is one continuous interval of an app being visible.
// Exactly one open interval exists per app name at any instant; the
// tracker extends EndTime every tick the app stays in the snapshot.
type AppUsage struct {
	ID        string    `json:"id"`
	AppName   string    `json:"app_name"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// WindowUsage is one continuous interval of a window being visible,
// keyed by window title. AppTimeID is a back-reference to the open
// AppUsage interval the window belonged to when first seen.
type WindowUsage struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	AppTimeID   string    `json:"app_time_id"`
	AppName     string    `json:"application_name"`
	WindowTitle string    `json:"current_screen_title"`
	StartTime   time.Time `json:"start_time"`
	LastUpdated time.Time `json:"last_updated_time"`
}

// IdlePeriod is one idle excursion observed while a window was
// visible. AppTimeID and WindowID are back-references to the app-usage
// and window-usage intervals that were open when the excursion began.
type IdlePeriod struct {
	ID        string    `json:"id"`
	AppTimeID string    `json:"app_id"`
	WindowID  string    `json:"window_id"`
	SessionID string    `json:"session_id"`
	AppName   string    `json:"app_name"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// Session identifies one process run. Written once at startup.
type Session struct {
	ID   string    `json:"id"`
	Date time.Time `json:"date"`
}

// Classification is the wire and storage shape of one classification
// record. Classification is nil while the app is still pending.
type Classification struct {
	Name           string  `json:"name"`
	Path           string  `json:"path"`
	Classification *string `json:"classification"`
}

// UnclassifiedSentinel marks rows the external agent should revisit,
// in addition to rows whose classification is still NULL.
const UnclassifiedSentinel = "Unclassified"

// DailyLimit is the per-app usage limit configuration. ShouldAlert and
// ShouldClose are mutually exclusive.
type DailyLimit struct {
	AppName          string `json:"app_name"`
	TimeLimitMinutes int64  `json:"time_limit"`
	ShouldAlert      bool   `json:"should_alert"`
	ShouldClose      bool   `json:"should_close"`
	AlertBeforeClose bool   `json:"alert_before_close"`
	AlertDuration    int64  `json:"alert_duration"`
}

// UsageRow is one row of the usage aggregation query. ActivePercentage
// is nil when the app has zero tracked seconds in the range.
type UsageRow struct {
	AppName          string   `json:"app_name"`
	TotalSeconds     int64    `json:"total_seconds"`
	IdleSeconds      int64    `json:"idle_seconds"`
	ActivePercentage *float64 `json:"active_percentage"`
	TimeLimitMinutes *int64   `json:"time_limit,omitempty"`
	ShouldAlert      *bool    `json:"should_alert,omitempty"`
	ShouldClose      *bool    `json:"should_close,omitempty"`
	AlertBeforeClose *bool    `json:"alert_before_close,omitempty"`
	AlertDuration    *int64   `json:"alert_duration,omitempty"`
}

// LimitStatus is today's spent time for an app that has a configured
// limit, consumed by the enforcement loop.
type LimitStatus struct {
	AppName          string
	SpentMinutes     float64
	TimeLimitMinutes int64
	ShouldAlert      bool
	ShouldClose      bool
	AlertBeforeClose bool
	AlertDuration    int64
}

// Batch is the tracker's buffered state handed to the persistence
// writer: the five collections produced by one or more ticks. Maps are
// deep copies; the writer never shares memory with the tracker.
type Batch struct {
	Apps            map[string]App
	AppUsages       map[string]AppUsage
	WindowUsages    map[string]WindowUsage
	Classifications map[string]struct{}
	IdlePeriods     map[string]IdlePeriod
}

// Empty reports whether the batch carries nothing to persist.
func (b Batch) Empty() bool {
	return len(b.Apps) == 0 && len(b.AppUsages) == 0 && len(b.WindowUsages) == 0 &&
		len(b.Classifications) == 0 && len(b.IdlePeriods) == 0
}
