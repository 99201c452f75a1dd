// Package sysmon samples system load and user idleness and gates the
// classification pipeline on the result.
package sysmon

import (
	"context"
	"log/slog"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/dovakin0007/screen-time-tracking-app/internal/config"
	"github.com/dovakin0007/screen-time-tracking-app/internal/platform"
)

// SampleInterval is the admission sampling cadence.
const SampleInterval = time.Second

// Usage is one snapshot of system load, all values in percent.
type Usage struct {
	CPU    float64
	RAM    float64
	GPU    float64
	GPURAM float64
}

// Reader produces load snapshots. The production reader combines
// gopsutil and NVML; tests inject fixed readings.
type Reader interface {
	Read() (Usage, error)
}

// Quiet reports whether a classification dispatch is admissible: the
// user has been idle past the threshold and every load metric sits
// under its configured ceiling.
func Quiet(u Usage, idle time.Duration, cfg config.Config) bool {
	return idle > cfg.IdleThreshold() &&
		u.CPU <= cfg.CPUThreshold &&
		u.RAM < cfg.RAMThreshold &&
		u.GPU < cfg.GPUThreshold &&
		u.GPURAM < cfg.GPURAMThreshold
}

// Sampler runs the 1 Hz admission loop.
type Sampler struct {
	reader Reader
	source platform.Source
	cfg    *config.Manager
	logger *slog.Logger

	interval time.Duration
}

func NewSampler(reader Reader, source platform.Source, cfg *config.Manager, logger *slog.Logger) *Sampler {
	return &Sampler{
		reader:   reader,
		source:   source,
		cfg:      cfg,
		logger:   logger,
		interval: SampleInterval,
	}
}

// Run samples until ctx is cancelled, pushing one admission verdict per
// tick onto gate. The send never blocks: when the consumer lags, the
// sample is dropped, since a fresh one arrives a second later.
func (s *Sampler) Run(ctx context.Context, gate chan<- bool) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		select {
		case gate <- s.sample():
		default:
		}
	}
}

// sample reads load and idleness once. Any read failure degrades to a
// busy verdict so the pipeline errs toward staying quiet.
func (s *Sampler) sample() bool {
	usage, err := s.reader.Read()
	if err != nil {
		s.logger.Warn("read system usage", "error", err)
		return false
	}
	idle, err := s.source.IdleDuration()
	if err != nil {
		s.logger.Warn("read idle duration", "error", err)
		return false
	}
	return Quiet(usage, idle, s.cfg.Snapshot())
}

// SystemReader reads host load via gopsutil and, when a device is
// present, GPU load via NVML.
type SystemReader struct {
	gpu *gpuReader
}

// NewReader builds the production load reader. GPU metrics come from
// NVML when a device is present; otherwise they stay at zero.
func NewReader(logger *slog.Logger) *SystemReader {
	return &SystemReader{gpu: newGPUReader(logger)}
}

// Close releases the NVML handle, if one was acquired.
func (r *SystemReader) Close() {
	r.gpu.close()
}

func (r *SystemReader) Read() (Usage, error) {
	var u Usage

	// Non-blocking CPU read: percentages are computed against the
	// previous call, which at a 1 Hz cadence is the last second.
	percents, err := cpu.Percent(0, false)
	if err != nil {
		return Usage{}, err
	}
	if len(percents) > 0 {
		u.CPU = percents[0]
	}

	vm, err := mem.VirtualMemory()
	if err != nil {
		return Usage{}, err
	}
	u.RAM = vm.UsedPercent

	u.GPU, u.GPURAM = r.gpu.read()
	return u, nil
}
