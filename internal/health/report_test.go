package health

import (
	"testing"
	"time"
)

func TestServiceStatusAggregation(t *testing.T) {
	tests := []struct {
		name   string
		report Report
		want   ServiceStatus
	}{
		{
			name: "all healthy",
			report: Report{
				Status: StatusHealthy, TotalChecks: 3, HealthyChecks: 3,
			},
			want: ServiceOK,
		},
		{
			name: "non-critical failure only degrades",
			report: Report{
				Status: StatusUnhealthy, TotalChecks: 3, HealthyChecks: 2,
			},
			want: ServiceDegraded,
		},
		{
			name: "critical failure forces unhealthy",
			report: Report{
				Status: StatusUnhealthy, TotalChecks: 3, HealthyChecks: 2,
				CriticalFailures: 1,
			},
			want: ServiceUnhealthy,
		},
		{
			name: "every check down but none critical",
			report: Report{
				Status: StatusUnhealthy, TotalChecks: 2, HealthyChecks: 0,
			},
			want: ServiceDegraded,
		},
		{
			name:   "unknown report before first cycle",
			report: Report{Status: StatusUnknown, Timestamp: time.Now()},
			want:   ServiceOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.report.ServiceStatus(); got != tt.want {
				t.Errorf("ServiceStatus() = %v, want %v", got, tt.want)
			}
		})
	}
}
