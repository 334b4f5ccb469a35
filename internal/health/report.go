package health

import (
	"time"
)

// Status is the health of a single check or of a whole report
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusUnknown   Status = "unknown"
)

// ServiceStatus is the aggregate status exposed to operators
type ServiceStatus string

const (
	ServiceOK        ServiceStatus = "ok"
	ServiceDegraded  ServiceStatus = "degraded"
	ServiceUnhealthy ServiceStatus = "unhealthy"
)

// CheckResult is the outcome of one check execution
type CheckResult struct {
	Name       string    `json:"name"`
	Status     Status    `json:"status"`
	DurationMS int64     `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"`
	Details    any       `json:"details,omitempty"`
	Error      string    `json:"error,omitempty"`
	Critical   bool      `json:"critical"`
}

// Report aggregates the results of one full check cycle
type Report struct {
	Status           Status        `json:"status"`
	Timestamp        time.Time     `json:"timestamp"`
	Results          []CheckResult `json:"results"`
	CriticalFailures int           `json:"criticalFailures"`
	TotalChecks      int           `json:"totalChecks"`
	HealthyChecks    int           `json:"healthyChecks"`
}

// ServiceStatus maps a report to the three-state operator status: unhealthy
// when any critical check failed, degraded when some but not all checks
// passed, ok otherwise. Non-critical failures never take the service below
// degraded.
func (r *Report) ServiceStatus() ServiceStatus {
	if r.CriticalFailures > 0 {
		return ServiceUnhealthy
	}
	if r.HealthyChecks < r.TotalChecks {
		return ServiceDegraded
	}
	return ServiceOK
}

// unknownReport is the synthetic status returned before any cycle completes
func unknownReport() *Report {
	return &Report{
		Status:    StatusUnknown,
		Timestamp: time.Now().UTC(),
		Results:   []CheckResult{},
	}
}
