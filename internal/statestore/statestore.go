// Package statestore persists completed health reports for post-mortem
// queries. Metrics are deliberately not persisted; they are process-lifetime
// only.
package statestore

import (
	"context"
	"sync"

	"github.com/pulsewatch/pulsewatch/internal/health"
)

// ReportStore archives health reports and serves them back newest first
type ReportStore interface {
	// SaveReport persists one completed report
	SaveReport(ctx context.Context, report *health.Report) error

	// ListReports returns up to limit archived reports, newest first
	ListReports(ctx context.Context, limit int) ([]*health.Report, error)

	// Ping probes the store for liveness
	Ping(ctx context.Context) error

	// Close releases store resources
	Close() error
}

// MemoryStore is the default in-process archive with bounded retention
type MemoryStore struct {
	mu        sync.Mutex
	reports   []*health.Report
	retention int
}

// NewMemoryStore creates a memory archive retaining the newest retention
// reports
func NewMemoryStore(retention int) *MemoryStore {
	if retention <= 0 {
		retention = 1000
	}
	return &MemoryStore{retention: retention}
}

func (s *MemoryStore) SaveReport(ctx context.Context, report *health.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reports = append([]*health.Report{report}, s.reports...)
	if len(s.reports) > s.retention {
		s.reports = s.reports[:s.retention]
	}
	return nil
}

func (s *MemoryStore) ListReports(ctx context.Context, limit int) ([]*health.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 || limit > len(s.reports) {
		limit = len(s.reports)
	}
	out := make([]*health.Report, limit)
	copy(out, s.reports[:limit])
	return out, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
