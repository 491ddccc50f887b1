package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

// RegistrySizer exposes the live connection count for telemetry.
type RegistrySizer interface {
	Size() int
}

// HealthMonitoringWorker periodically reports the server's own CPU and
// memory usage together with the live connection count. Observability
// only, no decisions are taken from it.
type HealthMonitoringWorker struct {
	log            *slog.Logger
	registry       RegistrySizer
	metricInterval time.Duration
}

func NewHealthMonitoringWorker(log *slog.Logger, registry RegistrySizer, metricInterval time.Duration) *HealthMonitoringWorker {
	return &HealthMonitoringWorker{log: log, registry: registry, metricInterval: metricInterval}
}

func (w *HealthMonitoringWorker) Run(ctx context.Context) error {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping health monitoring")
			return nil
		case <-ticker.C:
			cpu, err := proc.CPUPercent()
			if err != nil {
				w.log.Error("Error while finding process cpu usage", "err", err)
				continue
			}
			ram, err := proc.MemoryPercent()
			if err != nil {
				w.log.Error("Error while finding process ram usage", "err", err)
				continue
			}
			w.log.Debug("Health report",
				"cpu", cpu,
				"ram", ram,
				"connections", w.registry.Size(),
			)
		}
	}
}
