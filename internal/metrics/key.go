package metrics

import (
	"fmt"
	"sort"
	"strings"
)

// SeriesKey builds the canonical identifier for a metric name and label set:
// name{k1="v1",k2="v2"} with label keys sorted lexicographically. Two calls
// with the same labels in any insertion order produce the same key.
func SeriesKey(name string, labels map[string]string) string {
	if len(labels) == 0 {
		return name
	}

	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(name)
	sb.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, "%s=%q", k, labels[k])
	}
	sb.WriteByte('}')
	return sb.String()
}
