package metrics_collectors

import (
	"context"

	"github.com/benmeehan/invoxia-agent/internal/models"
)

// MetricCollector samples resource usage of the agent process.
type MetricCollector interface {
	Name() string                                                // Name of the collector
	Collect(ctx context.Context) (*models.ProcessMetrics, error) // Collect the current sample
}
