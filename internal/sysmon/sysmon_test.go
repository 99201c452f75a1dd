package sysmon

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dovakin0007/screen-time-tracking-app/internal/config"
	"github.com/dovakin0007/screen-time-tracking-app/internal/platform"
)

type fixedReader struct {
	usage Usage
	err   error
}

func (r fixedReader) Read() (Usage, error) { return r.usage, r.err }

type fixedSource struct {
	idle time.Duration
	err  error
}

func (s fixedSource) Snapshot() (platform.Snapshot, error) { return platform.Snapshot{}, nil }
func (s fixedSource) IdleDuration() (time.Duration, error) { return s.idle, s.err }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestQuiet(t *testing.T) {
	cfg := config.Default() // cpu 25, gpu 15, ram 75, gpu ram 10, idle 30s
	calm := Usage{CPU: 10, RAM: 40, GPU: 5, GPURAM: 2}

	cases := []struct {
		name  string
		usage Usage
		idle  time.Duration
		want  bool
	}{
		{"all clear", calm, time.Minute, true},
		{"user active", calm, 5 * time.Second, false},
		{"idle exactly at threshold", calm, 30 * time.Second, false},
		{"cpu at threshold still admits", Usage{CPU: 25, RAM: 40}, time.Minute, true},
		{"cpu over", Usage{CPU: 26, RAM: 40}, time.Minute, false},
		{"ram at threshold blocks", Usage{CPU: 10, RAM: 75}, time.Minute, false},
		{"gpu busy", Usage{CPU: 10, RAM: 40, GPU: 20}, time.Minute, false},
		{"gpu ram busy", Usage{CPU: 10, RAM: 40, GPURAM: 50}, time.Minute, false},
	}
	for _, tc := range cases {
		if got := Quiet(tc.usage, tc.idle, cfg); got != tc.want {
			t.Errorf("%s: Quiet = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestSampleDegradesToBusyOnError(t *testing.T) {
	cfg := config.NewManager(config.Default())

	s := NewSampler(fixedReader{err: errors.New("no counters")}, fixedSource{idle: time.Minute}, cfg, discardLogger())
	if s.sample() {
		t.Error("reader error must yield a busy verdict")
	}

	s = NewSampler(fixedReader{}, fixedSource{err: errors.New("no idle api")}, cfg, discardLogger())
	if s.sample() {
		t.Error("idle error must yield a busy verdict")
	}
}

func TestRunEmitsVerdictsAndDropsWhenFull(t *testing.T) {
	cfg := config.NewManager(config.Default())
	s := NewSampler(fixedReader{usage: Usage{CPU: 5, RAM: 20}}, fixedSource{idle: time.Minute}, cfg, discardLogger())
	s.interval = time.Millisecond

	gate := make(chan bool, 1)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx, gate)
	}()

	select {
	case quiet := <-gate:
		if !quiet {
			t.Error("expected a quiet verdict")
		}
	case <-time.After(time.Second):
		t.Fatal("no verdict emitted")
	}

	// Leave the gate full; Run must keep ticking instead of blocking.
	gate <- true
	time.Sleep(20 * time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sampler did not stop on cancel")
	}
}
