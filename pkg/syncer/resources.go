package syncer

import (
	"runtime/debug"

	"go.uber.org/zap"

	"github.com/noFAYZ/mappr-backend-new-sub000/internal/metrics"
)

const mb = 1024 * 1024

// RSS returns the worker's current resident set size in bytes, zero
// when the probe is unavailable.
func (m *memoryMonitor) RSS() uint64 {
	if m.proc == nil {
		return 0
	}
	info, err := m.proc.MemoryInfo()
	if err != nil {
		m.logger.Debug("memory probe failed", zap.Error(err))
		return 0
	}
	metrics.ProcessMemoryBytes.Set(float64(info.RSS))
	return info.RSS
}

// releaseAboveHighWater asks the runtime to return memory to the OS when
// the resident set crossed the high-water mark. Called between jobs, not
// during them.
func (o *Orchestrator) releaseAboveHighWater() {
	highWater := o.cfg.MemoryHighWaterMB
	if highWater == 0 {
		return
	}
	rss := o.rss()
	if rss <= highWater*mb {
		return
	}
	o.logger.Info("memory above high water, releasing to OS",
		zap.Uint64("rss_mb", rss/mb),
		zap.Uint64("high_water_mb", highWater))
	debug.FreeOSMemory()
}
