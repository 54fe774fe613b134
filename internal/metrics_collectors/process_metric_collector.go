package metrics_collectors

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/process"

	"github.com/benmeehan/invoxia-agent/internal/models"
)

// ProcessMetricCollector collects CPU and memory usage of the running agent.
type ProcessMetricCollector struct {
	Logger zerolog.Logger

	proc *process.Process
}

var _ MetricCollector = (*ProcessMetricCollector)(nil)

// NewProcessMetricCollector creates a collector for the current process.
func NewProcessMetricCollector(logger zerolog.Logger) (*ProcessMetricCollector, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("failed to open own process: %w", err)
	}
	return &ProcessMetricCollector{Logger: logger, proc: proc}, nil
}

func (p *ProcessMetricCollector) Name() string {
	return "process"
}

// Collect returns a sample. CPU usage is measured since the previous call.
func (p *ProcessMetricCollector) Collect(ctx context.Context) (*models.ProcessMetrics, error) {
	metrics := &models.ProcessMetrics{
		Goroutines: runtime.NumGoroutine(),
	}

	memInfo, err := p.proc.MemoryInfoWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get memory information: %w", err)
	}
	metrics.MemoryRSS = memInfo.RSS

	if cpuPercent, err := p.proc.PercentWithContext(ctx, 0); err == nil {
		metrics.CPUUsage = cpuPercent
	} else {
		p.Logger.Warn().Err(err).Int32("pid", p.proc.Pid).Msg("Failed to get CPU usage")
	}

	return metrics, nil
}
