package metrics

import (
	"testing"
	"time"
)

func TestCounterAccumulates(t *testing.T) {
	c := NewCollector(Config{})

	c.Counter("requests", 1, nil)
	c.Counter("requests", 2, nil)

	snap := c.Snapshot()["requests"]
	if snap.Type != KindCounter {
		t.Errorf("expected counter type, got %v", snap.Type)
	}
	if snap.Value == nil || *snap.Value != 3 {
		t.Errorf("expected value 3, got %v", snap.Value)
	}
	if snap.LastUpdated.IsZero() {
		t.Error("expected lastUpdated to be set")
	}
}

func TestCounterLabelOrderIndependence(t *testing.T) {
	c := NewCollector(Config{})

	c.Counter("x", 1, map[string]string{"a": "1", "b": "2"})
	c.Counter("x", 1, map[string]string{"b": "2", "a": "1"})

	snap := c.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("expected a single series, got %d: %v", len(snap), snap)
	}

	series, ok := snap[`x{a="1",b="2"}`]
	if !ok {
		t.Fatalf("expected canonical key x{a=\"1\",b=\"2\"}, got %v", snap)
	}
	if *series.Value != 2 {
		t.Errorf("expected value 2, got %v", *series.Value)
	}
}

func TestGaugeLastWriteWins(t *testing.T) {
	c := NewCollector(Config{})

	c.Gauge("temp", 40, nil)
	c.Gauge("temp", 20, nil)

	if v := *c.Snapshot()["temp"].Value; v != 20 {
		t.Errorf("expected last write 20, got %v", v)
	}
}

func TestHistogramStats(t *testing.T) {
	c := NewCollector(Config{})

	for _, v := range []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10} {
		c.Histogram("latency", v, nil)
	}

	snap := c.Snapshot()["latency"]
	if snap.HistogramStats == nil {
		t.Fatal("expected histogram stats")
	}
	if snap.Count != 10 {
		t.Errorf("expected count 10, got %d", snap.Count)
	}
	if snap.Sum != 55 {
		t.Errorf("expected sum 55, got %v", snap.Sum)
	}
	if snap.Min != 1 || snap.Max != 10 {
		t.Errorf("expected min 1 max 10, got %v %v", snap.Min, snap.Max)
	}
	// nearest-rank: index floor(10*0.5)=5, zero-indexed sixth value
	if snap.P50 != 6 {
		t.Errorf("expected p50 6, got %v", snap.P50)
	}
	if snap.P95 != 10 {
		t.Errorf("expected p95 10, got %v", snap.P95)
	}
	if snap.P99 != 10 {
		t.Errorf("expected p99 10, got %v", snap.P99)
	}
}

func TestHistogramEmptyWindowIsZeroed(t *testing.T) {
	stats := summarize(nil)
	if stats.Count != 0 || stats.Sum != 0 || stats.Min != 0 ||
		stats.Max != 0 || stats.P50 != 0 || stats.P95 != 0 || stats.P99 != 0 {
		t.Errorf("expected all-zero stats for empty window, got %+v", stats)
	}
}

func TestHistogramWindowEvictsOldest(t *testing.T) {
	c := NewCollector(Config{HistogramCap: 3})

	for _, v := range []float64{100, 1, 2, 3} {
		c.Histogram("latency", v, nil)
	}

	snap := c.Snapshot()["latency"]
	if snap.Count != 3 {
		t.Errorf("expected window of 3, got %d", snap.Count)
	}
	// 100 was the oldest observation and must have been evicted
	if snap.Max != 3 {
		t.Errorf("expected max 3 after eviction, got %v", snap.Max)
	}
	if snap.Sum != 6 {
		t.Errorf("expected sum 6, got %v", snap.Sum)
	}
}

func TestKindCollisionIsDropped(t *testing.T) {
	c := NewCollector(Config{})

	c.Counter("x", 1, nil)
	c.Histogram("x", 2, nil) // mismatched kind, must not panic
	c.Gauge("x", 3, nil)

	snap := c.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("expected the original series only, got %d: %v", len(snap), snap)
	}

	series := snap["x"]
	if series.Type != KindCounter {
		t.Errorf("expected counter to survive, got %v", series.Type)
	}
	if *series.Value != 1 {
		t.Errorf("mismatched writes must be dropped, got value %v", *series.Value)
	}

	// And the reverse direction: a histogram key rejects scalar writes
	c.Histogram("latency", 5, nil)
	c.Counter("latency", 1, nil)

	hist := c.Snapshot()["latency"]
	if hist.Type != KindHistogram || hist.Count != 1 {
		t.Errorf("histogram should be untouched by counter write, got %+v", hist)
	}
}

func TestSnapshotIsIsolated(t *testing.T) {
	c := NewCollector(Config{})
	c.Counter("n", 1, map[string]string{"k": "v"})

	snap := c.Snapshot()
	snap["n{k=\"v\"}"].Labels["k"] = "mutated"
	*snap["n{k=\"v\"}"].Value = 99

	fresh := c.Snapshot()["n{k=\"v\"}"]
	if fresh.Labels["k"] != "v" {
		t.Error("snapshot labels should be a copy")
	}
	if *fresh.Value != 1 {
		t.Error("snapshot values should be a copy")
	}
}

func TestStartStopIdempotence(t *testing.T) {
	c := NewCollector(Config{SampleInterval: 10 * time.Millisecond})

	c.Start()
	c.Start() // second start is a no-op

	time.Sleep(30 * time.Millisecond)

	snap := c.Snapshot()
	if _, ok := snap["process_uptime_seconds"]; !ok {
		t.Error("expected self-sampled uptime gauge after start")
	}
	if _, ok := snap["process_memory_alloc_bytes"]; !ok {
		t.Error("expected self-sampled memory gauge after start")
	}

	c.Stop()
	c.Stop() // stop when not running is a no-op
}

func TestSampleProcessGauges(t *testing.T) {
	c := NewCollector(Config{})
	c.sampleProcess()

	snap := c.Snapshot()
	for _, name := range []string{
		"process_memory_alloc_bytes",
		"process_memory_sys_bytes",
		"process_goroutines",
		"process_uptime_seconds",
	} {
		series, ok := snap[name]
		if !ok {
			t.Errorf("expected gauge %s", name)
			continue
		}
		if series.Type != KindGauge {
			t.Errorf("expected %s to be a gauge, got %v", name, series.Type)
		}
	}
}
