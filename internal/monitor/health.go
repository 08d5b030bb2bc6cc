package monitor

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/t77yq/trendloop/internal/model"
	"github.com/t77yq/trendloop/internal/queue"
)

// HealthChecker runs one collect -> evaluate -> notify -> persist cycle
type HealthChecker struct {
	collector  *Collector
	alerts     *AlertManager
	statusPath string
	logger     *zap.Logger
}

// NewHealthChecker creates a checker writing its snapshot to statusPath
func NewHealthChecker(collector *Collector, alerts *AlertManager, statusPath string, logger *zap.Logger) *HealthChecker {
	return &HealthChecker{
		collector:  collector,
		alerts:     alerts,
		statusPath: statusPath,
		logger:     logger.Named("health"),
	}
}

// CheckHealth samples the host, fires alerts and writes the status file.
// Sampler and notification failures are logged; only a failure to write the
// status file is returned.
func (h *HealthChecker) CheckHealth(ctx context.Context) (*model.HostStatus, error) {
	status, err := h.collector.Collect(ctx)
	if err != nil {
		h.logger.Warn("Host sample incomplete", zap.Error(err))
	}

	alerts := h.alerts.Evaluate(status)
	if len(alerts) > 0 {
		if err := h.alerts.Notify(ctx, alerts); err != nil {
			h.logger.Warn("Alert delivery incomplete", zap.Error(err))
		}
	}

	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return status, fmt.Errorf("failed to encode status: %w", err)
	}
	if err := queue.WriteFileAtomic(h.statusPath, data); err != nil {
		return status, fmt.Errorf("failed to write status: %w", err)
	}

	health := "OK"
	if !status.Healthy() {
		health = "WARNING"
	}
	h.logger.Info("Health check complete",
		zap.String("health", health),
		zap.Float64("cpu_percent", status.CPUPercent),
		zap.Float64("memory_percent", status.MemoryPercent),
		zap.Float64("disk_percent", status.DiskPercent),
		zap.Int("alerts", len(status.Alerts)))

	return status, nil
}
