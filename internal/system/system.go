// Package system reports a host resource snapshot for the system API
// endpoint, so operators can see whether the encode host has headroom
// before queueing more work.
package system

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Snapshot is a point-in-time view of host CPU and memory usage.
type Snapshot struct {
	CPUPercent float64 `json:"cpu_percent"`
	RAMPercent float64 `json:"ram_percent"`
	RAMTotal   uint64  `json:"ram_total_bytes"`
	RAMFree    uint64  `json:"ram_free_bytes"`
	// Busy indicates the host has little headroom for another encode.
	Busy bool `json:"busy"`
}

// Thresholds above which the host is reported busy.
const (
	busyCPUPercent = 80.0
	busyRAMPercent = 90.0
)

// Current samples CPU usage over a short window and reads memory usage.
func Current(ctx context.Context) (Snapshot, error) {
	var snap Snapshot

	v, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return snap, fmt.Errorf("failed to read memory stats: %w", err)
	}
	snap.RAMPercent = v.UsedPercent
	snap.RAMTotal = v.Total
	snap.RAMFree = v.Available

	// A short sampling interval is more accurate than the instantaneous
	// gauge gopsutil returns for a zero duration.
	cpuPct, err := cpu.PercentWithContext(ctx, 500*time.Millisecond, false)
	if err != nil {
		return snap, fmt.Errorf("failed to read cpu stats: %w", err)
	}
	if len(cpuPct) > 0 {
		snap.CPUPercent = cpuPct[0]
	}

	snap.Busy = snap.CPUPercent > busyCPUPercent || snap.RAMPercent > busyRAMPercent
	return snap, nil
}
