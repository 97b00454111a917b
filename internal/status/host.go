package status

import (
	"fmt"
	"time"

	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/mem"
)

// Host is a sample of host load, refreshed on heartbeats.
type Host struct {
	CPUPercent     float64
	MemUsedPercent float64
	SampledAt      time.Time
}

// SampleHost reads CPU and memory usage. CPU usage is measured since the
// previous call (since process start on the first call), so it never blocks.
func SampleHost(now time.Time) (Host, error) {
	cpus, err := cpu.Percent(0, false)
	if err != nil {
		return Host{}, fmt.Errorf("cpu percent: %w", err)
	}
	vm, err := mem.VirtualMemory()
	if err != nil {
		return Host{}, fmt.Errorf("virtual memory: %w", err)
	}
	h := Host{MemUsedPercent: vm.UsedPercent, SampledAt: now}
	if len(cpus) > 0 {
		h.CPUPercent = cpus[0]
	}
	return h, nil
}
