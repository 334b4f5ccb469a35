package health

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pulsewatch/pulsewatch/internal/logging"
)

func testLogger() *logging.Logger {
	// Console disabled keeps expected failure logs out of test output
	return logging.New(logging.Config{Level: logging.LevelError})
}

func healthyCheck(details any) CheckFunc {
	return func(ctx context.Context) (any, error) {
		return details, nil
	}
}

func failingCheck(msg string) CheckFunc {
	return func(ctx context.Context) (any, error) {
		return nil, fmt.Errorf("%s", msg)
	}
}

func TestRunAllChecksRegistrationOrder(t *testing.T) {
	m := NewMonitor(testLogger(), Config{})

	names := []string{"zeta", "alpha", "mid", "beta"}
	for _, name := range names {
		m.AddCheck(name, healthyCheck(nil), CheckOptions{})
	}

	report := m.RunAllChecks(context.Background())

	if len(report.Results) != len(names) {
		t.Fatalf("expected %d results, got %d", len(names), len(report.Results))
	}
	for i, name := range names {
		if report.Results[i].Name != name {
			t.Errorf("result %d: expected %s, got %s", i, name, report.Results[i].Name)
		}
	}
}

func TestAddCheckOverwriteKeepsPosition(t *testing.T) {
	m := NewMonitor(testLogger(), Config{})

	m.AddCheck("first", failingCheck("old behavior"), CheckOptions{})
	m.AddCheck("second", healthyCheck(nil), CheckOptions{})
	m.AddCheck("first", healthyCheck(nil), CheckOptions{}) // overwrite

	report := m.RunAllChecks(context.Background())

	if len(report.Results) != 2 {
		t.Fatalf("expected 2 results after overwrite, got %d", len(report.Results))
	}
	if report.Results[0].Name != "first" {
		t.Errorf("overwritten check should keep its position, got %s first", report.Results[0].Name)
	}
	if report.Results[0].Status != StatusHealthy {
		t.Error("overwritten check should use the new function")
	}
}

func TestAllHealthy(t *testing.T) {
	m := NewMonitor(testLogger(), Config{})
	m.AddCheck("a", healthyCheck(nil), CheckOptions{})
	m.AddCheck("b", healthyCheck(map[string]any{"latency": 3}), CheckOptions{})

	report := m.RunAllChecks(context.Background())

	if report.Status != StatusHealthy {
		t.Errorf("expected healthy report, got %v", report.Status)
	}
	if report.HealthyChecks != report.TotalChecks {
		t.Errorf("expected healthyChecks == totalChecks, got %d != %d",
			report.HealthyChecks, report.TotalChecks)
	}
	if report.ServiceStatus() != ServiceOK {
		t.Errorf("expected ok service status, got %v", report.ServiceStatus())
	}
}

func TestCriticalFailureForcesUnhealthy(t *testing.T) {
	m := NewMonitor(testLogger(), Config{})
	m.AddCheck("fine", healthyCheck(nil), CheckOptions{})
	m.AddCheck("broken", failingCheck("db unreachable"), CheckOptions{Critical: true})

	report := m.RunAllChecks(context.Background())

	if report.Status != StatusUnhealthy {
		t.Errorf("expected unhealthy report, got %v", report.Status)
	}
	if report.CriticalFailures != 1 {
		t.Errorf("expected 1 critical failure, got %d", report.CriticalFailures)
	}
	if report.ServiceStatus() != ServiceUnhealthy {
		t.Errorf("expected unhealthy service status, got %v", report.ServiceStatus())
	}
}

func TestNonCriticalFailureDegrades(t *testing.T) {
	m := NewMonitor(testLogger(), Config{})
	m.AddCheck("fine", healthyCheck(nil), CheckOptions{})
	m.AddCheck("flaky", failingCheck("timeout talking to cache"), CheckOptions{})

	report := m.RunAllChecks(context.Background())

	if report.CriticalFailures != 0 {
		t.Errorf("expected no critical failures, got %d", report.CriticalFailures)
	}
	// Report-level status is unhealthy, service status only degraded
	if report.Status != StatusUnhealthy {
		t.Errorf("expected unhealthy report status, got %v", report.Status)
	}
	if report.ServiceStatus() != ServiceDegraded {
		t.Errorf("expected degraded service status, got %v", report.ServiceStatus())
	}
}

func TestCheckTimeout(t *testing.T) {
	m := NewMonitor(testLogger(), Config{})
	m.AddCheck("stuck", func(ctx context.Context) (any, error) {
		<-ctx.Done()
		time.Sleep(time.Hour) // ignores cancellation after the deadline
		return nil, nil
	}, CheckOptions{Timeout: 50 * time.Millisecond})

	start := time.Now()
	report := m.RunAllChecks(context.Background())
	elapsed := time.Since(start)

	if elapsed > 500*time.Millisecond {
		t.Errorf("timeout should bound the cycle, took %v", elapsed)
	}

	result := report.Results[0]
	if result.Status != StatusUnhealthy {
		t.Errorf("expected unhealthy result, got %v", result.Status)
	}
	if !strings.Contains(result.Error, "timeout") {
		t.Errorf("expected timeout in error, got %q", result.Error)
	}
}

func TestParentCancellationIsNotATimeout(t *testing.T) {
	m := NewMonitor(testLogger(), Config{})
	block := make(chan struct{})
	defer close(block)
	m.AddCheck("stuck", func(ctx context.Context) (any, error) {
		<-block
		return nil, nil
	}, CheckOptions{Timeout: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report := m.RunAllChecks(ctx)

	result := report.Results[0]
	if result.Status != StatusUnhealthy {
		t.Errorf("expected unhealthy result, got %v", result.Status)
	}
	if strings.Contains(result.Error, "timeout") {
		t.Errorf("cancellation must not be reported as a timeout, got %q", result.Error)
	}
	if !strings.Contains(result.Error, "cancel") {
		t.Errorf("expected cancellation in error, got %q", result.Error)
	}
}

func TestCheckHonorsContextCancellation(t *testing.T) {
	var stopped atomic.Bool
	m := NewMonitor(testLogger(), Config{})
	m.AddCheck("cooperative", func(ctx context.Context) (any, error) {
		<-ctx.Done()
		stopped.Store(true)
		return nil, ctx.Err()
	}, CheckOptions{Timeout: 20 * time.Millisecond})

	m.RunAllChecks(context.Background())

	// The cooperative check observes cancellation shortly after the deadline
	deadline := time.Now().Add(200 * time.Millisecond)
	for !stopped.Load() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if !stopped.Load() {
		t.Error("cooperative check never observed cancellation")
	}
}

func TestCheckPanicIsContained(t *testing.T) {
	m := NewMonitor(testLogger(), Config{})
	m.AddCheck("bad", func(ctx context.Context) (any, error) {
		panic("boom")
	}, CheckOptions{})

	report := m.RunAllChecks(context.Background())

	result := report.Results[0]
	if result.Status != StatusUnhealthy {
		t.Errorf("expected unhealthy result from panicking check, got %v", result.Status)
	}
	if !strings.Contains(result.Error, "panic") {
		t.Errorf("expected panic in error, got %q", result.Error)
	}
}

func TestGetStatusBeforeAnyCycle(t *testing.T) {
	m := NewMonitor(testLogger(), Config{})
	m.AddCheck("a", healthyCheck(nil), CheckOptions{})

	report := m.GetStatus()
	if report.Status != StatusUnknown {
		t.Errorf("expected unknown status, got %v", report.Status)
	}
	if report.TotalChecks != 0 {
		t.Errorf("expected zeroed counts, got totalChecks=%d", report.TotalChecks)
	}
	if report.ServiceStatus() != ServiceOK {
		t.Errorf("unknown report should not read as unhealthy, got %v", report.ServiceStatus())
	}
}

func TestHistoryNewestFirstAndLimited(t *testing.T) {
	m := NewMonitor(testLogger(), Config{})

	var runs atomic.Int64
	m.AddCheck("tick", func(ctx context.Context) (any, error) {
		return runs.Add(1), nil
	}, CheckOptions{})

	var reports []*Report
	for i := 0; i < 5; i++ {
		reports = append(reports, m.RunAllChecks(context.Background()))
	}

	history := m.GetHistory(3)
	if len(history) != 3 {
		t.Fatalf("expected 3 reports, got %d", len(history))
	}
	for i := 0; i < 3; i++ {
		if history[i] != reports[4-i] {
			t.Errorf("history[%d] should be cycle %d's report", i, 5-i)
		}
	}
}

func TestHistoryBound(t *testing.T) {
	m := NewMonitor(testLogger(), Config{HistoryLimit: 2})
	m.AddCheck("a", healthyCheck(nil), CheckOptions{})

	for i := 0; i < 5; i++ {
		m.RunAllChecks(context.Background())
	}

	if got := len(m.GetHistory(100)); got != 2 {
		t.Errorf("expected history capped at 2, got %d", got)
	}
}

func TestStartStopLoop(t *testing.T) {
	m := NewMonitor(testLogger(), Config{CheckInterval: 10 * time.Millisecond})

	var runs atomic.Int64
	m.AddCheck("tick", func(ctx context.Context) (any, error) {
		runs.Add(1)
		return nil, nil
	}, CheckOptions{})

	m.Start()
	m.Start() // idempotent

	time.Sleep(50 * time.Millisecond)
	m.Stop()
	m.Stop() // no-op when not running

	after := runs.Load()
	if after < 2 {
		t.Errorf("expected at least 2 cycles, got %d", after)
	}

	time.Sleep(50 * time.Millisecond)
	if runs.Load() > after+1 {
		t.Errorf("cycles kept running after stop: %d -> %d", after, runs.Load())
	}
}

func TestArchiveReceivesReports(t *testing.T) {
	m := NewMonitor(testLogger(), Config{})
	m.AddCheck("a", healthyCheck(nil), CheckOptions{})

	archive := &recordingArchive{}
	m.SetArchive(archive)

	m.RunAllChecks(context.Background())
	m.RunAllChecks(context.Background())

	if archive.saved.Load() != 2 {
		t.Errorf("expected 2 archived reports, got %d", archive.saved.Load())
	}
}

func TestArchiveFailureDoesNotAffectReport(t *testing.T) {
	m := NewMonitor(testLogger(), Config{})
	m.AddCheck("a", healthyCheck(nil), CheckOptions{})
	m.SetArchive(&recordingArchive{fail: true})

	report := m.RunAllChecks(context.Background())
	if report.Status != StatusHealthy {
		t.Errorf("archive failure must not affect the report, got %v", report.Status)
	}
	if m.GetStatus() != report {
		t.Error("report should still be recorded in history")
	}
}

type recordingArchive struct {
	saved atomic.Int64
	fail  bool
}

func (a *recordingArchive) SaveReport(ctx context.Context, report *Report) error {
	if a.fail {
		return fmt.Errorf("archive unavailable")
	}
	a.saved.Add(1)
	return nil
}
