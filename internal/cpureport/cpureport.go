// Package cpureport emits the periodic CPU-usage log line a verbose
// operator expects even while a daemon sits idle with zero channels:
// the one concrete observable the otherwise out-of-scope "CPU-usage
// reporting" feature still owes the Silent-startup scenario.
package cpureport

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"

	"github.com/cwsl/radiod/internal/rlog"
)

// Interval is the period between CPU-usage report lines.
const Interval = 60 * time.Second

// Run logs a CPU-usage line every Interval while verbosity is >= 1,
// until ctx is cancelled. It is a no-op loop (just sleeps) at verbosity
// 0, so it's safe to always start alongside the engine.
func Run(ctx context.Context) {
	ticker := time.NewTicker(Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if rlog.Level() < 1 {
				continue
			}
			report()
		}
	}
}

func report() {
	pct, err := cpu.Percent(0, false)
	if err != nil {
		rlog.V(1).Printf("cpureport: %v", err)
		return
	}
	if len(pct) == 0 {
		return
	}
	rlog.V(1).Printf("cpu usage: %.1f%%", pct[0])
}
