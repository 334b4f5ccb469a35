// Package metrics provides in-process accumulation and read-out of counters,
// gauges, and histograms with label dimensions.
//
// Key features:
// - Canonical series keys independent of label insertion order
// - Histograms over a fixed-capacity window of recent observations
// - Nearest-rank percentile computation at read time
// - Optional self-sampling of process gauges on a timer
// - Prometheus exposition via a bridge collector
package metrics

import (
	"sort"
	"sync"
	"time"
)

// Kind identifies the accumulation behavior of a series
type Kind string

const (
	KindCounter   Kind = "counter"
	KindGauge     Kind = "gauge"
	KindHistogram Kind = "histogram"
)

const (
	// DefaultHistogramCap is the number of recent observations retained per
	// histogram series
	DefaultHistogramCap = 1000

	// DefaultSampleInterval is how often the self-sampler records process
	// gauges
	DefaultSampleInterval = 30 * time.Second
)

// series is one metric + label combination
type series struct {
	kind        Kind
	name        string
	labels      map[string]string
	value       float64
	window      *ring
	lastUpdated time.Time
}

// Config configures a Collector
type Config struct {
	HistogramCap   int
	SampleInterval time.Duration
}

// Collector accumulates metric series in memory. All data is
// process-lifetime; nothing is persisted.
type Collector struct {
	mu           sync.Mutex
	series       map[string]*series
	histogramCap int

	sampleInterval time.Duration
	running        bool
	stop           chan struct{}
	startedAt      time.Time
}

// NewCollector creates a collector with the given configuration. Zero values
// fall back to defaults.
func NewCollector(cfg Config) *Collector {
	if cfg.HistogramCap <= 0 {
		cfg.HistogramCap = DefaultHistogramCap
	}
	if cfg.SampleInterval <= 0 {
		cfg.SampleInterval = DefaultSampleInterval
	}

	return &Collector{
		series:         make(map[string]*series),
		histogramCap:   cfg.HistogramCap,
		sampleInterval: cfg.SampleInterval,
		startedAt:      time.Now(),
	}
}

// Counter adds delta to the named counter series, initializing it at zero on
// first use. Deltas are not required to be non-negative, but intended usage
// is increments.
func (c *Collector) Counter(name string, delta float64, labels map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.lookup(KindCounter, name, labels)
	if s == nil {
		return
	}
	s.value += delta
	s.lastUpdated = time.Now()
}

// Gauge overwrites the named gauge series value (last write wins)
func (c *Collector) Gauge(name string, value float64, labels map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.lookup(KindGauge, name, labels)
	if s == nil {
		return
	}
	s.value = value
	s.lastUpdated = time.Now()
}

// Histogram appends an observation to the named histogram series. Once the
// window is full the oldest observation is evicted, so derived statistics
// reflect only the most recent window.
func (c *Collector) Histogram(name string, value float64, labels map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.lookup(KindHistogram, name, labels)
	if s == nil {
		return
	}
	s.window.append(value)
	s.lastUpdated = time.Now()
}

// lookup finds or creates a series; callers hold the mutex. A key already
// registered under a different kind returns nil and the write is dropped, so
// a kind collision can never corrupt an existing series.
func (c *Collector) lookup(kind Kind, name string, labels map[string]string) *series {
	key := SeriesKey(name, labels)
	s, ok := c.series[key]
	if ok {
		if s.kind != kind {
			return nil
		}
		return s
	}

	s = &series{kind: kind, name: name}
	if len(labels) > 0 {
		s.labels = make(map[string]string, len(labels))
		for k, v := range labels {
			s.labels[k] = v
		}
	}
	if kind == KindHistogram {
		s.window = newRing(c.histogramCap)
	}
	c.series[key] = s
	return s
}

// HistogramStats are derived from a histogram's current window at read time
type HistogramStats struct {
	Count int     `json:"count"`
	Sum   float64 `json:"sum"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
}

// SeriesSnapshot is the read-out form of one series. Value is set for
// counters and gauges; the histogram statistics are set for histograms.
type SeriesSnapshot struct {
	Name        string            `json:"-"`
	Type        Kind              `json:"type"`
	Labels      map[string]string `json:"labels,omitempty"`
	LastUpdated time.Time         `json:"lastUpdated"`
	Value       *float64          `json:"value,omitempty"`
	*HistogramStats
}

// Snapshot returns a consistent copy of every series keyed by canonical
// series key. Histogram statistics use nearest-rank percentiles over the
// current window; an empty window yields all-zero statistics.
func (c *Collector) Snapshot() map[string]SeriesSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]SeriesSnapshot, len(c.series))
	for key, s := range c.series {
		snap := SeriesSnapshot{
			Name:        s.name,
			Type:        s.kind,
			LastUpdated: s.lastUpdated,
		}
		if len(s.labels) > 0 {
			snap.Labels = make(map[string]string, len(s.labels))
			for k, v := range s.labels {
				snap.Labels[k] = v
			}
		}

		switch s.kind {
		case KindHistogram:
			stats := summarize(s.window.snapshot())
			snap.HistogramStats = &stats
		default:
			v := s.value
			snap.Value = &v
		}

		out[key] = snap
	}
	return out
}

// summarize computes window statistics. Percentiles are nearest-rank: the
// sorted value at index floor(count*q), favoring the lower value for ties
// and small windows.
func summarize(values []float64) HistogramStats {
	if len(values) == 0 {
		return HistogramStats{}
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}

	return HistogramStats{
		Count: len(sorted),
		Sum:   sum,
		Min:   sorted[0],
		Max:   sorted[len(sorted)-1],
		P50:   nearestRank(sorted, 0.5),
		P95:   nearestRank(sorted, 0.95),
		P99:   nearestRank(sorted, 0.99),
	}
}

func nearestRank(sorted []float64, quantile float64) float64 {
	idx := int(float64(len(sorted)) * quantile)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// Uptime reports how long this collector (and so the process hosting it) has
// been alive
func (c *Collector) Uptime() time.Duration {
	return time.Since(c.startedAt)
}

// Start begins the process self-sampler. Idempotent: a running collector is
// left alone.
func (c *Collector) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return
	}
	c.running = true
	c.stop = make(chan struct{})

	go c.sampleLoop(c.stop)
}

// Stop halts the self-sampler. Stopping when not running is a no-op; a sample
// already in progress completes.
func (c *Collector) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return
	}
	c.running = false
	close(c.stop)
}

func (c *Collector) sampleLoop(stop chan struct{}) {
	for {
		c.sampleProcess()

		select {
		case <-stop:
			return
		case <-time.After(c.sampleInterval):
		}
	}
}
