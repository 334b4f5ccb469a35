// Package health runs a registry of named checks on a timer, with per-check
// timeout enforcement, criticality semantics, and bounded report history.
package health

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pulsewatch/pulsewatch/internal/errors"
	"github.com/pulsewatch/pulsewatch/internal/logging"
)

// CheckFunc probes one component. The context carries the per-check deadline;
// well-behaved checks honor it. A check using non-cancellable I/O can outlive
// its timeout in the background; its late result is discarded.
type CheckFunc func(ctx context.Context) (any, error)

// CheckOptions configure a registered check
type CheckOptions struct {
	Timeout  time.Duration
	Critical bool
}

const (
	// DefaultCheckTimeout bounds a single check execution
	DefaultCheckTimeout = 5 * time.Second

	// DefaultCheckInterval is the pause between scheduled cycles
	DefaultCheckInterval = 60 * time.Second

	// DefaultHistoryLimit caps the retained report history
	DefaultHistoryLimit = 100
)

type check struct {
	name     string
	fn       CheckFunc
	timeout  time.Duration
	critical bool
}

// ReportArchive receives completed reports for out-of-process retention.
// Archive failures are logged and never affect monitoring.
type ReportArchive interface {
	SaveReport(ctx context.Context, report *Report) error
}

// Config configures a Monitor
type Config struct {
	CheckInterval time.Duration
	HistoryLimit  int
}

// Monitor executes registered checks sequentially in registration order and
// keeps a bounded, newest-first history of reports.
type Monitor struct {
	logger       *logging.Logger
	interval     time.Duration
	historyLimit int
	archive      ReportArchive

	mu      sync.Mutex
	order   []string
	checks  map[string]*check
	history []*Report
	running bool
	stop    chan struct{}
}

// NewMonitor creates a monitor. Zero config values fall back to defaults.
func NewMonitor(logger *logging.Logger, cfg Config) *Monitor {
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = DefaultCheckInterval
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = DefaultHistoryLimit
	}

	return &Monitor{
		logger:       logger,
		interval:     cfg.CheckInterval,
		historyLimit: cfg.HistoryLimit,
		checks:       make(map[string]*check),
	}
}

// SetArchive attaches a report archive. Must be called before Start.
func (m *Monitor) SetArchive(archive ReportArchive) {
	m.archive = archive
}

// AddCheck registers or overwrites a named check. Overwriting keeps the
// original registration position.
func (m *Monitor) AddCheck(name string, fn CheckFunc, opts CheckOptions) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultCheckTimeout
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.checks[name]; !exists {
		m.order = append(m.order, name)
	}
	m.checks[name] = &check{
		name:     name,
		fn:       fn,
		timeout:  opts.Timeout,
		critical: opts.Critical,
	}
}

// RunAllChecks executes every registered check sequentially in registration
// order, records the report in history, and returns it.
func (m *Monitor) RunAllChecks(ctx context.Context) *Report {
	m.mu.Lock()
	ordered := make([]*check, 0, len(m.order))
	for _, name := range m.order {
		ordered = append(ordered, m.checks[name])
	}
	m.mu.Unlock()

	report := &Report{
		Timestamp: time.Now().UTC(),
		Results:   make([]CheckResult, 0, len(ordered)),
	}

	for _, c := range ordered {
		result := m.runCheck(ctx, c)
		report.Results = append(report.Results, result)

		report.TotalChecks++
		if result.Status == StatusHealthy {
			report.HealthyChecks++
		} else if result.Critical {
			report.CriticalFailures++
		}
	}

	report.Status = StatusHealthy
	for _, result := range report.Results {
		if result.Status != StatusHealthy {
			report.Status = StatusUnhealthy
			break
		}
	}

	if report.CriticalFailures > 0 {
		m.logger.Error("critical health checks failing", map[string]any{
			"failures": criticalFailureSummary(report),
			"count":    report.CriticalFailures,
		})
	}

	m.recordReport(report)

	if m.archive != nil {
		if err := m.archive.SaveReport(ctx, report); err != nil {
			m.logger.Warn("failed to archive health report", map[string]any{
				"error": err,
			})
		}
	}

	return report
}

// runCheck races the check function against its timeout. The loser's result
// is discarded; the goroutine itself is only stopped if the function honors
// context cancellation.
func (m *Monitor) runCheck(ctx context.Context, c *check) CheckResult {
	start := time.Now()
	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	type outcome struct {
		details any
		err     error
	}

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("check panicked: %v", r)}
			}
		}()
		details, err := c.fn(cctx)
		done <- outcome{details: details, err: err}
	}()

	result := CheckResult{
		Name:      c.name,
		Timestamp: start.UTC(),
		Critical:  c.critical,
	}

	var details any
	var err error
	select {
	case out := <-done:
		details, err = out.details, out.err
	case <-cctx.Done():
		if cctx.Err() == context.DeadlineExceeded {
			err = errors.NewTimeoutf("check %q exceeded %s", c.name, c.timeout)
		} else {
			// Parent context cancelled: the cycle is being torn down, which
			// is not the check's fault and must not read as a timeout
			err = fmt.Errorf("check %q interrupted: %w", c.name, cctx.Err())
		}
	}
	result.DurationMS = time.Since(start).Milliseconds()

	if err != nil {
		result.Status = StatusUnhealthy
		result.Error = err.Error()
		m.logger.Error("health check failed", map[string]any{
			"check":       c.name,
			"duration_ms": result.DurationMS,
			"critical":    c.critical,
			"error":       err,
		})
		return result
	}

	result.Status = StatusHealthy
	result.Details = details
	return result
}

func (m *Monitor) recordReport(report *Report) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.history = append([]*Report{report}, m.history...)
	if len(m.history) > m.historyLimit {
		m.history = m.history[:m.historyLimit]
	}
}

func criticalFailureSummary(report *Report) string {
	var parts []string
	for _, result := range report.Results {
		if result.Critical && result.Status == StatusUnhealthy {
			parts = append(parts, fmt.Sprintf("%s: %s", result.Name, result.Error))
		}
	}
	return strings.Join(parts, "; ")
}

// Start begins the scheduling loop: one cycle immediately, then one after
// each interval for as long as the monitor is running. Idempotent.
func (m *Monitor) Start() {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.stop = make(chan struct{})
	stop := m.stop
	m.mu.Unlock()

	m.logger.Info("health monitor started", map[string]any{
		"interval": m.interval.String(),
		"checks":   m.checkCount(),
	})

	go m.loop(stop)
}

// Stop prevents future cycles. A cycle already in progress completes; it is
// not interrupted.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.stop)
	m.mu.Unlock()

	m.logger.Info("health monitor stopped", nil)
}

func (m *Monitor) loop(stop chan struct{}) {
	for {
		m.runCycle()

		select {
		case <-stop:
			return
		case <-time.After(m.interval):
		}
	}
}

// runCycle contains a full cycle so that nothing escaping RunAllChecks can
// kill the scheduling loop
func (m *Monitor) runCycle() {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("health check cycle panicked", map[string]any{
				"panic": fmt.Sprint(r),
			})
		}
	}()

	m.RunAllChecks(context.Background())
}

func (m *Monitor) checkCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.order)
}

// GetStatus returns the most recent report, or a synthetic unknown report if
// no cycle has completed yet
func (m *Monitor) GetStatus() *Report {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.history) == 0 {
		return unknownReport()
	}
	return m.history[0]
}

// GetHistory returns up to limit recent reports, newest first. A
// non-positive limit defaults to 10.
func (m *Monitor) GetHistory(limit int) []*Report {
	if limit <= 0 {
		limit = 10
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if limit > len(m.history) {
		limit = len(m.history)
	}
	out := make([]*Report, limit)
	copy(out, m.history[:limit])
	return out
}
