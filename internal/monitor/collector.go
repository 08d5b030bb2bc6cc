package monitor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"

	"github.com/t77yq/trendloop/internal/metrics"
	"github.com/t77yq/trendloop/internal/model"
)

// Sampler returns a usage percentage
type Sampler func(ctx context.Context) (float64, error)

// Collector samples host CPU, memory and disk usage
type Collector struct {
	logger *zap.Logger
	cpu    Sampler
	memory Sampler
	disk   Sampler
	now    func() time.Time
}

// NewCollector creates a collector reading the given mount point for disk usage
func NewCollector(diskPath string, logger *zap.Logger) *Collector {
	if diskPath == "" {
		diskPath = "/"
	}
	return &Collector{
		logger: logger.Named("collector"),
		cpu:    cpuPercent,
		memory: memoryPercent,
		disk: func(ctx context.Context) (float64, error) {
			return diskPercent(ctx, diskPath)
		},
		now: time.Now,
	}
}

func cpuPercent(ctx context.Context) (float64, error) {
	values, err := cpu.PercentWithContext(ctx, time.Second, false)
	if err != nil {
		return 0, err
	}
	if len(values) == 0 {
		return 0, errors.New("no cpu samples")
	}
	return values[0], nil
}

func memoryPercent(ctx context.Context) (float64, error) {
	info, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return info.UsedPercent, nil
}

func diskPercent(ctx context.Context, path string) (float64, error) {
	usage, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return 0, err
	}
	return usage.UsedPercent, nil
}

// Collect samples every resource. A failed sampler reports 0 and its error is
// joined into the returned error; the status is always usable.
func (c *Collector) Collect(ctx context.Context) (*model.HostStatus, error) {
	status := &model.HostStatus{
		Timestamp: c.now().UTC(),
		Alerts:    []string{},
	}

	var errs []error
	sample := func(name string, sampler Sampler) float64 {
		v, err := sampler(ctx)
		if err != nil {
			c.logger.Warn("Failed to sample host usage", zap.String("resource", name), zap.Error(err))
			errs = append(errs, fmt.Errorf("failed to get %s usage: %w", name, err))
			return 0
		}
		v = round1(v)
		metrics.HostUsage.WithLabelValues(name).Set(v)
		return v
	}

	status.CPUPercent = sample("cpu", c.cpu)
	status.MemoryPercent = sample("memory", c.memory)
	status.DiskPercent = sample("disk", c.disk)

	c.logger.Debug("Host usage collected",
		zap.Float64("cpu_percent", status.CPUPercent),
		zap.Float64("memory_percent", status.MemoryPercent),
		zap.Float64("disk_percent", status.DiskPercent))

	return status, errors.Join(errs...)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
