package api

import (
	"time"

	"github.com/pulsewatch/pulsewatch/internal/health"
	"github.com/pulsewatch/pulsewatch/internal/metrics"
)

// HealthResponse is the aggregate health read-out
type HealthResponse struct {
	Status        health.ServiceStatus `json:"status"`
	Timestamp     time.Time            `json:"timestamp"`
	HealthChecks  *health.Report       `json:"healthChecks"`
	Metrics       MetricsSummary       `json:"metrics"`
	UptimeSeconds float64              `json:"uptime"`
	Memory        MemoryInfo           `json:"memory"`
}

// MetricsSummary is the condensed metrics view embedded in HealthResponse
type MetricsSummary struct {
	SeriesCount int `json:"seriesCount"`
}

// MemoryInfo reports process memory at response time
type MemoryInfo struct {
	AllocBytes uint64 `json:"allocBytes"`
	SysBytes   uint64 `json:"sysBytes"`
}

// MetricsResponse is the full metrics snapshot read-out
type MetricsResponse struct {
	Timestamp time.Time                          `json:"timestamp"`
	Metrics   map[string]metrics.SeriesSnapshot `json:"metrics"`
}

// HistoryResponse wraps recent health reports, newest first
type HistoryResponse struct {
	Count   int              `json:"count"`
	Reports []*health.Report `json:"reports"`
}
