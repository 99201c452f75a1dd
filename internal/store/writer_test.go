package store

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dovakin0007/screen-time-tracking-app/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunWriterDrainsClosedChannel(t *testing.T) {
	s := newTestStore(t)
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.Local)

	first := testBatch(at)
	later := testBatch(at)
	usage := later.AppUsages["editor.exe"]
	usage.EndTime = at.Add(30 * time.Second)
	later.AppUsages["editor.exe"] = usage

	batches := make(chan model.Batch, 2)
	batches <- first
	batches <- later
	close(batches)

	// Returns only after every buffered batch has been applied.
	s.RunWriter(batches, discardLogger())

	if n := countRows(t, s, "app_usage_time_period"); n != 1 {
		t.Fatalf("expected 1 interval row, got %d", n)
	}
	var endTime string
	if err := s.db.QueryRow(`SELECT end_time FROM app_usage_time_period WHERE id = 'at-1'`).Scan(&endTime); err != nil {
		t.Fatal(err)
	}
	if want := formatTime(at.Add(30 * time.Second)); endTime != want {
		t.Errorf("writer did not apply batches in order: got %q want %q", endTime, want)
	}
}
