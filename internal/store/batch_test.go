package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/dovakin0007/screen-time-tracking-app/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testBatch(at time.Time) model.Batch {
	end := at.Add(10 * time.Second)
	return model.Batch{
		Apps: map[string]model.App{
			"editor.exe": {Name: "editor.exe", Path: `C:\Editor\editor.exe`},
		},
		AppUsages: map[string]model.AppUsage{
			"editor.exe": {ID: "at-1", AppName: "editor.exe", StartTime: at, EndTime: end},
		},
		WindowUsages: map[string]model.WindowUsage{
			"Editor - file.txt": {
				ID: "wu-1", SessionID: "sess-1", AppTimeID: "at-1",
				AppName: "editor.exe", WindowTitle: "Editor - file.txt",
				StartTime: at, LastUpdated: end,
			},
		},
		Classifications: map[string]struct{}{"editor.exe": {}},
		IdlePeriods: map[string]model.IdlePeriod{
			"Editor - file.txt": {
				ID: "idle-1", AppTimeID: "at-1", WindowID: "wu-1", SessionID: "sess-1",
				AppName: "editor.exe", StartTime: at, EndTime: end,
			},
		},
	}
}

func countRows(t *testing.T, s *Store, table string) int {
	t.Helper()
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

func TestApplyBatch(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.Local)

	if err := s.ApplyBatch(ctx, testBatch(at)); err != nil {
		t.Fatalf("apply: %v", err)
	}

	for _, table := range []string{"apps", "app_usage_time_period", "window_activity_usage", "app_classifications", "app_idle_time_period", "daily_limits"} {
		if n := countRows(t, s, table); n != 1 {
			t.Errorf("%s: expected 1 row, got %d", table, n)
		}
	}

	var class any
	if err := s.db.QueryRow(`SELECT classification FROM app_classifications WHERE application_name = 'editor.exe'`).Scan(&class); err != nil {
		t.Fatalf("read classification: %v", err)
	}
	if class != nil {
		t.Errorf("placeholder should be NULL, got %v", class)
	}
}

func TestApplyBatchIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.Local)
	batch := testBatch(at)

	if err := s.ApplyBatch(ctx, batch); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	if err := s.ApplyBatch(ctx, batch); err != nil {
		t.Fatalf("second apply: %v", err)
	}

	for _, table := range []string{"apps", "app_usage_time_period", "window_activity_usage", "app_classifications", "app_idle_time_period"} {
		if n := countRows(t, s, table); n != 1 {
			t.Errorf("%s: replay duplicated rows, got %d", table, n)
		}
	}

	var endTime string
	if err := s.db.QueryRow(`SELECT end_time FROM app_usage_time_period WHERE id = 'at-1'`).Scan(&endTime); err != nil {
		t.Fatal(err)
	}
	if want := formatTime(at.Add(10 * time.Second)); endTime != want {
		t.Errorf("end_time after replay: got %q want %q", endTime, want)
	}
}

func TestApplyBatchExtendsIntervals(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.Local)

	if err := s.ApplyBatch(ctx, testBatch(at)); err != nil {
		t.Fatal(err)
	}

	// Same ids, later end times: the second delivery advances rows in
	// place instead of inserting new ones.
	later := testBatch(at)
	usage := later.AppUsages["editor.exe"]
	usage.EndTime = at.Add(30 * time.Second)
	later.AppUsages["editor.exe"] = usage

	if err := s.ApplyBatch(ctx, later); err != nil {
		t.Fatal(err)
	}
	if n := countRows(t, s, "app_usage_time_period"); n != 1 {
		t.Fatalf("expected 1 interval row, got %d", n)
	}
	var endTime string
	s.db.QueryRow(`SELECT end_time FROM app_usage_time_period WHERE id = 'at-1'`).Scan(&endTime)
	if want := formatTime(at.Add(30 * time.Second)); endTime != want {
		t.Errorf("end_time not advanced: got %q want %q", endTime, want)
	}
}

func TestApplyBatchRollsBackOnFailure(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.ApplyBatch(ctx, testBatch(time.Now())); err == nil {
		t.Fatal("expected error from cancelled context")
	}
	if n := countRows(t, s, "apps"); n != 0 {
		t.Errorf("expected rollback, found %d app rows", n)
	}
	if n := countRows(t, s, "app_usage_time_period"); n != 0 {
		t.Errorf("expected rollback, found %d interval rows", n)
	}
}

func TestInsertSession(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	session := model.Session{ID: "sess-1", Date: time.Date(2026, 3, 1, 0, 0, 0, 0, time.Local)}
	if err := s.InsertSession(ctx, session); err != nil {
		t.Fatalf("insert session: %v", err)
	}
	// Re-running the same session id is a no-op, not an error.
	if err := s.InsertSession(ctx, session); err != nil {
		t.Fatalf("repeat insert: %v", err)
	}
	if n := countRows(t, s, "sessions"); n != 1 {
		t.Errorf("expected 1 session, got %d", n)
	}
}
