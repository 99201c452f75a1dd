package sysmon

import (
	"log/slog"

	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

// gpuReader wraps NVML. Hosts without an NVIDIA driver are common, so
// every failure path degrades to zero readings instead of erroring the
// whole sample.
type gpuReader struct {
	device  nvml.Device
	enabled bool
}

func newGPUReader(logger *slog.Logger) *gpuReader {
	r := &gpuReader{}
	if ret := nvml.Init(); ret != nvml.SUCCESS {
		logger.Info("nvml unavailable, gpu metrics disabled", "status", nvml.ErrorString(ret))
		return r
	}
	device, ret := nvml.DeviceGetHandleByIndex(0)
	if ret != nvml.SUCCESS {
		logger.Info("no gpu device, gpu metrics disabled", "status", nvml.ErrorString(ret))
		nvml.Shutdown()
		return r
	}
	r.device = device
	r.enabled = true
	return r
}

// read returns GPU utilization and GPU memory use, both in percent.
func (r *gpuReader) read() (gpu, gpuMem float64) {
	if !r.enabled {
		return 0, 0
	}
	util, ret := r.device.GetUtilizationRates()
	if ret == nvml.SUCCESS {
		gpu = float64(util.Gpu)
	}
	info, ret := r.device.GetMemoryInfo()
	if ret == nvml.SUCCESS && info.Total > 0 {
		gpuMem = float64(info.Used) * 100.0 / float64(info.Total)
	}
	return gpu, gpuMem
}

func (r *gpuReader) close() {
	if r.enabled {
		nvml.Shutdown()
		r.enabled = false
	}
}
