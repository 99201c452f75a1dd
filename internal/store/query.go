package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dovakin0007/screen-time-tracking-app/internal/model"
)

// ErrConflictingLimit rejects a daily limit that both alerts and
// force-closes the app.
var ErrConflictingLimit = errors.New("daily limit cannot both alert and close the app")

const maxUpdateRetries = 5

// UpdateClassification writes the agent's verdict for one app. SQLite
// contention is retried with a growing delay; after maxUpdateRetries
// the error surfaces.
func (s *Store) UpdateClassification(ctx context.Context, name string, classification string) error {
	err := s.execRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`UPDATE app_classifications SET classification = ? WHERE application_name = ?`,
			classification, name)
		return err
	})
	if err != nil {
		return fmt.Errorf("update classification %q: %w", name, err)
	}
	return nil
}

// execRetry runs op under the connection guard, retrying contention
// (per s.retryable) up to maxUpdateRetries with a delay that grows by
// attempt. The sleep happens outside the guard; other errors surface
// immediately.
func (s *Store) execRetry(ctx context.Context, op func() error) error {
	for attempt := 1; ; attempt++ {
		s.mu.Lock()
		err := op()
		s.mu.Unlock()

		if err == nil {
			return nil
		}
		if !s.retryable(err) || attempt >= maxUpdateRetries {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.retryDelay * time.Duration(attempt)):
		}
	}
}

// FetchUnclassified returns up to limit apps still awaiting a verdict
// (classification NULL or the sentinel), joined with the stored path.
func (s *Store) FetchUnclassified(ctx context.Context, limit int) ([]model.Classification, error) {
	if limit <= 0 {
		limit = 50
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.QueryContext(ctx, `
		SELECT ac.application_name, COALESCE(ap.path, ''), ac.classification
		FROM app_classifications ac
		LEFT JOIN apps ap ON ac.application_name = ap.name
		WHERE ac.classification IS NULL OR ac.classification = ?
		LIMIT ?`, model.UnclassifiedSentinel, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch unclassified: %w", err)
	}
	defer rows.Close()

	var records []model.Classification
	for rows.Next() {
		var rec model.Classification
		var class sql.NullString
		if err := rows.Scan(&rec.Name, &rec.Path, &class); err != nil {
			return nil, err
		}
		if class.Valid {
			rec.Classification = &class.String
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// UsageBetween aggregates per-app usage for the date range: total
// seconds (open intervals count up to now), idle seconds, and the
// derived active percentage (NULL when nothing was tracked), joined
// with the app's daily limit. Ordered by total time descending.
func (s *Store) UsageBetween(ctx context.Context, start, end time.Time, appName string) ([]model.UsageRow, error) {
	query := `
	WITH app_total AS (
		SELECT app_name,
		       SUM(CASE
		               WHEN end_time IS NULL THEN strftime('%s', 'now', 'localtime') - strftime('%s', start_time)
		               ELSE strftime('%s', end_time) - strftime('%s', start_time)
		           END) AS total_seconds
		FROM app_usage_time_period
		WHERE DATE(start_time) BETWEEN ? AND ?
		GROUP BY app_name
	),
	app_idle AS (
		SELECT app_name,
		       SUM(strftime('%s', end_time) - strftime('%s', start_time)) AS idle_seconds
		FROM app_idle_time_period
		WHERE DATE(start_time) BETWEEN ? AND ?
		GROUP BY app_name
	)
	SELECT t.app_name,
	       t.total_seconds,
	       COALESCE(i.idle_seconds, 0) AS idle_seconds,
	       CASE
	           WHEN t.total_seconds = 0 THEN NULL
	           ELSE ROUND((t.total_seconds - COALESCE(i.idle_seconds, 0)) * 100.0 / t.total_seconds, 2)
	       END AS active_percentage,
	       d.time_limit, d.should_alert, d.should_close, d.alert_before_close, d.alert_duration
	FROM app_total t
	LEFT JOIN app_idle i ON i.app_name = t.app_name
	LEFT JOIN daily_limits d ON d.app_name = t.app_name`

	args := []any{formatDate(start), formatDate(end), formatDate(start), formatDate(end)}
	if appName != "" {
		query += `
	WHERE t.app_name = ?`
		args = append(args, appName)
	}
	query += `
	ORDER BY t.total_seconds DESC`

	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("usage query: %w", err)
	}
	defer rows.Close()

	var result []model.UsageRow
	for rows.Next() {
		var row model.UsageRow
		var active sql.NullFloat64
		var limit, alertDur sql.NullInt64
		var alert, closeApp, beforeClose sql.NullBool
		if err := rows.Scan(&row.AppName, &row.TotalSeconds, &row.IdleSeconds, &active,
			&limit, &alert, &closeApp, &beforeClose, &alertDur); err != nil {
			return nil, err
		}
		if active.Valid {
			row.ActivePercentage = &active.Float64
		}
		if limit.Valid {
			row.TimeLimitMinutes = &limit.Int64
		}
		if alert.Valid {
			row.ShouldAlert = &alert.Bool
		}
		if closeApp.Valid {
			row.ShouldClose = &closeApp.Bool
		}
		if beforeClose.Valid {
			row.AlertBeforeClose = &beforeClose.Bool
		}
		if alertDur.Valid {
			row.AlertDuration = &alertDur.Int64
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// SetDailyLimit upserts the per-app limit. Alert and close are
// mutually exclusive; asking for both is rejected before any write.
func (s *Store) SetDailyLimit(ctx context.Context, limit model.DailyLimit) error {
	if limit.ShouldAlert && limit.ShouldClose {
		return fmt.Errorf("limit for %q: %w", limit.AppName, ErrConflictingLimit)
	}
	if strings.TrimSpace(limit.AppName) == "" {
		return errors.New("daily limit requires an app name")
	}
	if limit.AlertDuration <= 0 {
		limit.AlertDuration = 300
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO daily_limits (app_name, time_limit, should_alert, should_close, alert_before_close, alert_duration)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(app_name) DO UPDATE SET
			time_limit = excluded.time_limit,
			should_alert = excluded.should_alert,
			should_close = excluded.should_close,
			alert_before_close = excluded.alert_before_close,
			alert_duration = excluded.alert_duration`,
		limit.AppName, limit.TimeLimitMinutes, limit.ShouldAlert, limit.ShouldClose,
		limit.AlertBeforeClose, limit.AlertDuration)
	if err != nil {
		return fmt.Errorf("set daily limit %q: %w", limit.AppName, err)
	}
	return nil
}

// ClearDailyLimit resets an app's limit to the defaults (no limit).
func (s *Store) ClearDailyLimit(ctx context.Context, appName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		UPDATE daily_limits
		SET time_limit = 0, should_alert = 0, should_close = 0, alert_before_close = 0, alert_duration = 300
		WHERE app_name = ?`, appName)
	if err != nil {
		return fmt.Errorf("clear daily limit %q: %w", appName, err)
	}
	return nil
}

// DailyLimitStatus returns today's spent minutes for every app with a
// configured limit, for the enforcement loop.
func (s *Store) DailyLimitStatus(ctx context.Context) ([]model.LimitStatus, error) {
	today := formatDate(time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.QueryContext(ctx, `
		WITH app_total AS (
			SELECT app_name,
			       SUM(CASE
			               WHEN end_time IS NULL THEN strftime('%s', 'now', 'localtime') - strftime('%s', start_time)
			               ELSE strftime('%s', end_time) - strftime('%s', start_time)
			           END) AS total_seconds
			FROM app_usage_time_period
			WHERE DATE(start_time) = ?
			GROUP BY app_name
		)
		SELECT t.app_name, t.total_seconds / 60.0,
		       d.time_limit, d.should_alert, d.should_close, d.alert_before_close, d.alert_duration
		FROM app_total t
		JOIN daily_limits d ON d.app_name = t.app_name
		WHERE d.time_limit > 0`, today)
	if err != nil {
		return nil, fmt.Errorf("limit status query: %w", err)
	}
	defer rows.Close()

	var result []model.LimitStatus
	for rows.Next() {
		var st model.LimitStatus
		if err := rows.Scan(&st.AppName, &st.SpentMinutes, &st.TimeLimitMinutes,
			&st.ShouldAlert, &st.ShouldClose, &st.AlertBeforeClose, &st.AlertDuration); err != nil {
			return nil, err
		}
		result = append(result, st)
	}
	return result, rows.Err()
}
