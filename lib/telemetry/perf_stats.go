package telemetry

import (
	"context"
	"log/slog"
	"runtime"

	"github.com/shirou/gopsutil/v4/cpu"
	"go.opentelemetry.io/otel"
)

var meter = otel.Meter("go.perf_stats")
var cpuGauge, _ = meter.Float64Gauge("cpu_usage")
var memoryGauge, _ = meter.Int64Gauge("allocated_mb")
var goroutineGauge, _ = meter.Int64Gauge("goroutine_count")

// ReportPerfSnapshot records a single point-in-time reading of process
// resource usage. Runs are short-lived so a one-shot reading at the end of
// the run replaces a resident sampler.
func ReportPerfSnapshot(ctx context.Context) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	allocatedMb := int64(memStats.Alloc / 1_000_000)
	goroutines := int64(runtime.NumGoroutine())

	memoryGauge.Record(ctx, allocatedMb)
	goroutineGauge.Record(ctx, goroutines)

	cpuUsage, err := cpu.Percent(0, false)
	if err == nil && len(cpuUsage) > 0 {
		cpuGauge.Record(ctx, cpuUsage[0])
		slog.InfoContext(ctx, "run perf snapshot",
			"allocated_mb", allocatedMb,
			"goroutines", goroutines,
			"cpu_pct", cpuUsage[0],
		)
		return
	}

	slog.InfoContext(ctx, "run perf snapshot",
		"allocated_mb", allocatedMb,
		"goroutines", goroutines,
	)
}
