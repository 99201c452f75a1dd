// Package store owns the SQLite database: transactional batch apply,
// usage aggregation, classification state, and daily limits.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/dovakin0007/screen-time-tracking-app/internal/model"
)

// timeLayout is the persisted timestamp format. SQLite's strftime and
// DATE work on it directly, which the aggregation queries rely on.
const timeLayout = "2006-01-02 15:04:05"

// Store is the single owner of the database connection. Every write
// serializes through one guarded connection; the guard is never held
// across anything but the SQL call itself.
type Store struct {
	db *sql.DB
	mu sync.Mutex

	retryDelay time.Duration
	retryable  func(error) bool
}

// Open opens or creates the database at path and applies the schema.
// A failure here is fatal to the caller: nothing works without a store.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One connection: the process is the single writer, and the pool
	// must not hand concurrent statements to SQLite behind the guard.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, retryDelay: 100 * time.Millisecond, retryable: isBusy}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS apps (
		name TEXT PRIMARY KEY,
		path TEXT
	);

	CREATE TABLE IF NOT EXISTS sessions (
		id   TEXT PRIMARY KEY,
		date TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS app_usage_time_period (
		id         TEXT PRIMARY KEY,
		app_name   TEXT NOT NULL,
		start_time TEXT NOT NULL,
		end_time   TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_app_usage_start ON app_usage_time_period(app_name, start_time);

	CREATE TABLE IF NOT EXISTS window_activity_usage (
		id                   TEXT PRIMARY KEY,
		session_id           TEXT NOT NULL,
		app_time_id          TEXT NOT NULL,
		application_name     TEXT NOT NULL,
		current_screen_title TEXT NOT NULL,
		start_time           TEXT NOT NULL,
		last_updated_time    TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_window_usage_session ON window_activity_usage(session_id);

	CREATE TABLE IF NOT EXISTS app_idle_time_period (
		id         TEXT PRIMARY KEY,
		app_id     TEXT NOT NULL,
		window_id  TEXT NOT NULL,
		session_id TEXT NOT NULL,
		app_name   TEXT NOT NULL,
		start_time TEXT NOT NULL,
		end_time   TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_idle_start ON app_idle_time_period(app_name, start_time);

	CREATE TABLE IF NOT EXISTS app_classifications (
		application_name TEXT PRIMARY KEY,
		classification   TEXT
	);

	CREATE TABLE IF NOT EXISTS daily_limits (
		app_name           TEXT PRIMARY KEY,
		time_limit         INTEGER NOT NULL DEFAULT 0,
		should_alert       INTEGER NOT NULL DEFAULT 0,
		should_close       INTEGER NOT NULL DEFAULT 0,
		alert_before_close INTEGER NOT NULL DEFAULT 0,
		alert_duration     INTEGER NOT NULL DEFAULT 300
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// InsertSession records the one session row for this process run.
func (s *Store) InsertSession(ctx context.Context, session model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, date) VALUES (?, ?) ON CONFLICT(id) DO NOTHING`,
		session.ID, formatDate(session.Date))
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// RunWriter consumes tracker batches until the channel closes. Failed
// batches are logged and dropped; the writer keeps going with the next
// batch. It deliberately does not take the daemon context: shutdown
// closes the channel, and the remaining buffered batches must still
// reach the store. The session row is the caller's job, before the
// first batch can arrive.
func (s *Store) RunWriter(batches <-chan model.Batch, logger *slog.Logger) {
	ctx := context.Background()
	for batch := range batches {
		start := time.Now()
		if err := s.ApplyBatch(ctx, batch); err != nil {
			logger.Error("batch apply failed, dropping batch", slog.Any("error", err))
			continue
		}
		logger.Debug("batch applied",
			slog.Int("apps", len(batch.Apps)),
			slog.Int("app_usages", len(batch.AppUsages)),
			slog.Int("window_usages", len(batch.WindowUsages)),
			slog.Int("classifications", len(batch.Classifications)),
			slog.Int("idle_periods", len(batch.IdlePeriods)),
			slog.Duration("took", time.Since(start)))
	}
}

// isBusy reports whether err is SQLite lock contention.
func isBusy(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		code := se.Code()
		return code == sqlite3.SQLITE_BUSY || code == sqlite3.SQLITE_LOCKED
	}
	return false
}

func formatTime(t time.Time) string {
	return t.Format(timeLayout)
}

func formatDate(t time.Time) string {
	return t.Format("2006-01-02")
}
