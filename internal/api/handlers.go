package api

import (
	"net/http"
	"runtime"
	"strconv"
	"time"
)

// handleHealth reports aggregate service health
// @Summary Aggregate health
// @Description Latest health report with the three-state service status, metrics summary, uptime, and memory
// @Tags Health
// @Produce json
// @Success 200 {object} api.HealthResponse
// @Failure 503 {object} api.HealthResponse "Service unhealthy"
// @Router /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	report := s.monitor.GetStatus()
	status := report.ServiceStatus()

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	response := HealthResponse{
		Status:       status,
		Timestamp:    time.Now().UTC(),
		HealthChecks: report,
		Metrics: MetricsSummary{
			SeriesCount: len(s.collector.Snapshot()),
		},
		UptimeSeconds: s.collector.Uptime().Seconds(),
		Memory: MemoryInfo{
			AllocBytes: mem.Alloc,
			SysBytes:   mem.Sys,
		},
	}

	httpStatus := http.StatusOK
	if status == "unhealthy" {
		httpStatus = http.StatusServiceUnavailable
	}
	s.respondJSON(w, httpStatus, response)
}

// handleReady reports whether the service can take traffic
// @Summary Readiness probe
// @Tags Health
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /ready [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if s.monitor.GetStatus().ServiceStatus() == "unhealthy" {
		s.respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleHealthHistory lists recent health reports
// @Summary Health report history
// @Description Recent health reports, newest first
// @Tags Health
// @Produce json
// @Param limit query int false "Maximum number of reports" default(10)
// @Success 200 {object} api.HistoryResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Security BearerAuth
// @Router /health/history [get]
func (s *Server) handleHealthHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			s.respondError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = parsed
	}

	reports := s.monitor.GetHistory(limit)
	s.respondJSON(w, http.StatusOK, HistoryResponse{
		Count:   len(reports),
		Reports: reports,
	})
}

// handleMetricsSnapshot returns the full metrics snapshot
// @Summary Metrics snapshot
// @Description All series keyed by canonical series key, with histogram statistics derived from the recent window
// @Tags Metrics
// @Produce json
// @Success 200 {object} api.MetricsResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Security BearerAuth
// @Router /metrics [get]
func (s *Server) handleMetricsSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	s.respondJSON(w, http.StatusOK, MetricsResponse{
		Timestamp: time.Now().UTC(),
		Metrics:   s.collector.Snapshot(),
	})
}
