package metrics

import (
	"sort"

	"github.com/prometheus/client_golang/prometheus"
)

// Bridge exposes a Collector's snapshot to a Prometheus registry on demand
// when /metrics is scraped. Counters and gauges map to const metrics;
// histograms map to summaries carrying the window quantiles.
type Bridge struct {
	collector *Collector
	namespace string
}

// NewBridge creates a Prometheus bridge for the given collector. The
// namespace is prefixed to every exported metric name.
func NewBridge(collector *Collector, namespace string) *Bridge {
	return &Bridge{collector: collector, namespace: namespace}
}

// RegisterBridge registers the bridge with the default Prometheus registry
func RegisterBridge(collector *Collector, namespace string) *Bridge {
	b := NewBridge(collector, namespace)
	prometheus.MustRegister(b)
	return b
}

// Describe sends no descriptors: the series set is dynamic, so the bridge
// acts as an unchecked collector
func (b *Bridge) Describe(ch chan<- *prometheus.Desc) {}

// Collect translates the current snapshot into Prometheus metrics
func (b *Bridge) Collect(ch chan<- prometheus.Metric) {
	for _, snap := range b.collector.Snapshot() {
		name := snap.Name
		if name == "" {
			continue
		}
		if b.namespace != "" {
			name = b.namespace + "_" + name
		}

		labelKeys, labelValues := orderedLabels(snap.Labels)

		switch snap.Type {
		case KindCounter:
			desc := prometheus.NewDesc(name, "pulsewatch counter", labelKeys, nil)
			ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, *snap.Value, labelValues...)
		case KindGauge:
			desc := prometheus.NewDesc(name, "pulsewatch gauge", labelKeys, nil)
			ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, *snap.Value, labelValues...)
		case KindHistogram:
			desc := prometheus.NewDesc(name, "pulsewatch histogram window", labelKeys, nil)
			quantiles := map[float64]float64{
				0.5:  snap.P50,
				0.95: snap.P95,
				0.99: snap.P99,
			}
			ch <- prometheus.MustNewConstSummary(desc, uint64(snap.Count), snap.Sum, quantiles, labelValues...)
		}
	}
}

func orderedLabels(labels map[string]string) ([]string, []string) {
	if len(labels) == 0 {
		return nil, nil
	}

	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	values := make([]string, len(keys))
	for i, k := range keys {
		values[i] = labels[k]
	}
	return keys, values
}
