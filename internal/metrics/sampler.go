package metrics

import (
	"os"
	"runtime"
	"strconv"
	"strings"
)

// Jiffies per second for /proc stat fields (USER_HZ)
const clockTicksPerSecond = 100

// sampleProcess records process-level gauges: heap and system memory,
// goroutine count, uptime, and cumulative CPU time. A panic in sampling is
// contained so a bad cycle cannot kill the sampler loop.
func (c *Collector) sampleProcess() {
	defer func() {
		_ = recover()
	}()

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	c.Gauge("process_memory_alloc_bytes", float64(mem.Alloc), nil)
	c.Gauge("process_memory_sys_bytes", float64(mem.Sys), nil)
	c.Gauge("process_goroutines", float64(runtime.NumGoroutine()), nil)
	c.Gauge("process_uptime_seconds", c.Uptime().Seconds(), nil)

	if cpu, ok := readProcSelfCPU(); ok {
		c.Gauge("process_cpu_seconds_total", cpu, nil)
	}
}

// readProcSelfCPU reads cumulative user+system CPU seconds from
// /proc/self/stat. Returns false on platforms without procfs.
func readProcSelfCPU() (float64, bool) {
	data, err := os.ReadFile("/proc/self/stat")
	if err != nil {
		return 0, false
	}

	// Fields after the parenthesized comm; utime and stime are stat fields
	// 14 and 15, so indices 11 and 12 here
	raw := string(data)
	rparen := strings.LastIndex(raw, ")")
	if rparen == -1 {
		return 0, false
	}
	parts := strings.Fields(raw[rparen+1:])
	if len(parts) < 13 {
		return 0, false
	}

	utime, err := strconv.ParseFloat(parts[11], 64)
	if err != nil {
		return 0, false
	}
	stime, err := strconv.ParseFloat(parts[12], 64)
	if err != nil {
		return 0, false
	}

	return (utime + stime) / clockTicksPerSecond, true
}
