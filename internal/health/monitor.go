package health

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rickgao/marketstream/internal/model"
)

// DefaultScanInterval is how often the monitor evaluates all streams.
const DefaultScanInterval = 15 * time.Second

// MonitorConfig holds tunables for the periodic health scanner.
type MonitorConfig struct {
	Interval       time.Duration // how often to evaluate all streams
	StaleThreshold time.Duration // quiet time before a connected stream reports stale
}

// DefaultMonitorConfig returns production defaults.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Interval:       DefaultScanInterval,
		StaleThreshold: DefaultStaleThreshold,
	}
}

// Monitor periodically evaluates every stream returned by the list function
// and logs status transitions. Scan can also be called on demand.
type Monitor struct {
	cfg    MonitorConfig
	list   func() []Probe
	logger *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu   sync.Mutex
	last map[model.StreamID]model.HealthStatus
}

// NewMonitor creates a health monitor over the probes returned by list.
func NewMonitor(cfg MonitorConfig, list func() []Probe, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultMonitorConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.StaleThreshold <= 0 {
		cfg.StaleThreshold = def.StaleThreshold
	}

	return &Monitor{
		cfg:    cfg,
		list:   list,
		logger: logger,
		last:   make(map[model.StreamID]model.HealthStatus),
	}
}

// Start launches the scan loop.
func (m *Monitor) Start(ctx context.Context) error {
	ctx, m.cancel = context.WithCancel(ctx)

	m.wg.Add(1)
	go m.loop(ctx)

	m.logger.Info("health monitor started",
		"interval", m.cfg.Interval,
		"stale_threshold", m.cfg.StaleThreshold,
	)
	return nil
}

// Stop halts the scan loop, waiting up to ctx's deadline.
func (m *Monitor) Stop(ctx context.Context) error {
	if m.cancel == nil {
		return nil
	}
	m.cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Monitor) loop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Scan()
		}
	}
}

// Scan evaluates every stream once and returns the reports. Status changes
// since the previous scan are logged; quiet or broken streams at warn level,
// recoveries at info.
func (m *Monitor) Scan() []model.HealthReport {
	probes := m.list()
	reports := make([]model.HealthReport, 0, len(probes))
	seen := make(map[model.StreamID]struct{}, len(probes))

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range probes {
		rep := Report(p, m.cfg.StaleThreshold)
		reports = append(reports, rep)
		seen[rep.StreamID] = struct{}{}

		prev, known := m.last[rep.StreamID]
		if known && prev == rep.Status {
			continue
		}
		m.last[rep.StreamID] = rep.Status

		switch rep.Status {
		case model.HealthStale:
			m.logger.Warn("stream stale",
				"stream_id", rep.StreamID,
				"last_activity_age", rep.LastActivityAge,
			)
		case model.HealthDown:
			m.logger.Warn("stream down",
				"stream_id", rep.StreamID,
				"state", rep.State,
				"attempts", rep.AttemptCount,
			)
		case model.HealthHealthy:
			if known {
				m.logger.Info("stream recovered", "stream_id", rep.StreamID)
			}
		}
	}

	// Forget streams that were stopped or superseded.
	for id := range m.last {
		if _, ok := seen[id]; !ok {
			delete(m.last, id)
		}
	}

	return reports
}
