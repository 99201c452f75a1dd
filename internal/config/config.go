// Package config loads the tracker's tunable thresholds from a JSON
// file and hot-reloads them when the file changes.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Config holds the thresholds consumed by the tracking loop and the
// admission controller. Field names match the on-disk JSON keys used
// since the first release.
type Config struct {
	CPUThreshold     float64 `json:"cpu_threshold"`
	GPUThreshold     float64 `json:"gpu_threshold"`
	RAMThreshold     float64 `json:"ram_usage"`
	GPURAMThreshold  float64 `json:"gpu_ram"`
	TimeoutSecs      int64   `json:"timeout"`
	DBUpdateSecs     int64   `json:"db_update_interval"`
	IdleThresholdSec int64   `json:"idle_threshold_period"`
}

// Default returns the shipped configuration.
func Default() Config {
	return Config{
		CPUThreshold:     25.0,
		GPUThreshold:     15.0,
		RAMThreshold:     75.0,
		GPURAMThreshold:  10.0,
		TimeoutSecs:      900,
		DBUpdateSecs:     30,
		IdleThresholdSec: 30,
	}
}

// IdleThreshold returns the idle cutoff as a duration.
func (c Config) IdleThreshold() time.Duration {
	return time.Duration(c.IdleThresholdSec) * time.Second
}

// DBUpdateInterval returns the forced-flush cadence as a duration.
func (c Config) DBUpdateInterval() time.Duration {
	return time.Duration(c.DBUpdateSecs) * time.Second
}

// Timeout returns the classification pipeline run budget.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// clamp pins every field into its sane range. A hand-edited config
// never takes the daemon down; out-of-range values snap to the nearest
// bound.
func (c Config) clamp() Config {
	c.CPUThreshold = clampFloat(c.CPUThreshold, 1, 100)
	c.GPUThreshold = clampFloat(c.GPUThreshold, 1, 100)
	c.RAMThreshold = clampFloat(c.RAMThreshold, 1, 100)
	c.GPURAMThreshold = clampFloat(c.GPURAMThreshold, 1, 100)
	c.TimeoutSecs = clampInt(c.TimeoutSecs, 900, 3600)
	c.DBUpdateSecs = clampInt(c.DBUpdateSecs, 1, 900)
	c.IdleThresholdSec = clampInt(c.IdleThresholdSec, 30, 3600)
	return c
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// LoadOrCreate reads the config file at path, creating it with
// defaults when missing. Parse errors fall back to defaults rather
// than failing startup.
func LoadOrCreate(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg := Default()
		if err := writeFile(path, cfg); err != nil {
			return cfg, fmt.Errorf("create config: %w", err)
		}
		return cfg, nil
	}
	if err != nil {
		return Default(), fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Default(), fmt.Errorf("parse config: %w", err)
	}
	return cfg.clamp(), nil
}

func writeFile(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// Manager hands out immutable config snapshots to concurrent readers.
// Reloads replace the snapshot wholesale; readers never observe a
// half-updated config.
type Manager struct {
	mu  sync.RWMutex
	cfg Config
}

// NewManager returns a manager seeded with cfg.
func NewManager(cfg Config) *Manager {
	return &Manager{cfg: cfg}
}

// Snapshot returns the current config by value.
func (m *Manager) Snapshot() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// Replace swaps in a new config.
func (m *Manager) Replace(cfg Config) {
	m.mu.Lock()
	m.cfg = cfg
	m.mu.Unlock()
}
