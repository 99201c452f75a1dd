package store

import (
	"context"
	"fmt"

	"github.com/dovakin0007/screen-time-tracking-app/internal/model"
)

const (
	appUpsert = `
	INSERT INTO apps (name, path) VALUES (?, ?)
	ON CONFLICT(name) DO UPDATE SET path = excluded.path`

	appUsageUpsert = `
	INSERT INTO app_usage_time_period (id, app_name, start_time, end_time)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET end_time = excluded.end_time`

	windowUsageUpsert = `
	INSERT INTO window_activity_usage (
		id, session_id, app_time_id, application_name,
		current_screen_title, start_time, last_updated_time
	) VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET last_updated_time = excluded.last_updated_time`

	classificationPlaceholder = `
	INSERT INTO app_classifications (application_name, classification)
	VALUES (?, NULL)
	ON CONFLICT(application_name) DO NOTHING`

	defaultLimitInsert = `
	INSERT INTO daily_limits (app_name) VALUES (?)
	ON CONFLICT(app_name) DO NOTHING`

	idlePeriodUpsert = `
	INSERT INTO app_idle_time_period (id, app_id, window_id, session_id, app_name, start_time, end_time)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET end_time = excluded.end_time`
)

// ApplyBatch writes the five collections in one transaction, in
// referential dependency order. Every statement is an upsert, so
// replaying the same batch leaves identical rows. Any failure rolls
// the whole batch back; nothing partial becomes visible.
func (s *Store) ApplyBatch(ctx context.Context, batch model.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch tx: %w", err)
	}
	defer tx.Rollback()

	for _, app := range batch.Apps {
		if _, err := tx.ExecContext(ctx, appUpsert, app.Name, app.Path); err != nil {
			return fmt.Errorf("upsert app %q: %w", app.Name, err)
		}
	}

	for _, usage := range batch.AppUsages {
		if _, err := tx.ExecContext(ctx, appUsageUpsert,
			usage.ID, usage.AppName, formatTime(usage.StartTime), formatTime(usage.EndTime)); err != nil {
			return fmt.Errorf("upsert app usage %q: %w", usage.AppName, err)
		}
	}

	for _, usage := range batch.WindowUsages {
		if _, err := tx.ExecContext(ctx, windowUsageUpsert,
			usage.ID, usage.SessionID, usage.AppTimeID, usage.AppName,
			usage.WindowTitle, formatTime(usage.StartTime), formatTime(usage.LastUpdated)); err != nil {
			return fmt.Errorf("upsert window usage %q: %w", usage.WindowTitle, err)
		}
	}

	for name := range batch.Classifications {
		if _, err := tx.ExecContext(ctx, classificationPlaceholder, name); err != nil {
			return fmt.Errorf("insert classification placeholder %q: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, defaultLimitInsert, name); err != nil {
			return fmt.Errorf("insert default limit %q: %w", name, err)
		}
	}

	for _, period := range batch.IdlePeriods {
		if _, err := tx.ExecContext(ctx, idlePeriodUpsert,
			period.ID, period.AppTimeID, period.WindowID, period.SessionID,
			period.AppName, formatTime(period.StartTime), formatTime(period.EndTime)); err != nil {
			return fmt.Errorf("upsert idle period %q: %w", period.AppName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}
