package health

import (
	"context"
	"os"
	"path/filepath"
	"runtime"

	"github.com/pulsewatch/pulsewatch/internal/errors"
)

// HeapCheck fails when allocated heap bytes exceed maxBytes
func HeapCheck(maxBytes uint64) CheckFunc {
	return func(ctx context.Context) (any, error) {
		var mem runtime.MemStats
		runtime.ReadMemStats(&mem)

		details := map[string]any{
			"alloc_bytes": mem.Alloc,
			"sys_bytes":   mem.Sys,
			"max_bytes":   maxBytes,
		}
		if mem.Alloc > maxBytes {
			return nil, errors.NewTransientf("heap allocation %d exceeds limit %d", mem.Alloc, maxBytes)
		}
		return details, nil
	}
}

// GoroutineCheck fails when the goroutine count exceeds max
func GoroutineCheck(max int) CheckFunc {
	return func(ctx context.Context) (any, error) {
		n := runtime.NumGoroutine()
		if n > max {
			return nil, errors.NewTransientf("goroutine count %d exceeds limit %d", n, max)
		}
		return map[string]any{"goroutines": n, "max": max}, nil
	}
}

// DirWritableCheck fails when a probe file cannot be created in dir
func DirWritableCheck(dir string) CheckFunc {
	return func(ctx context.Context) (any, error) {
		probe := filepath.Join(dir, ".health-probe")
		if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
			return nil, errors.NewTransientf("directory not writable: %w", err)
		}
		_ = os.Remove(probe)
		return map[string]any{"dir": dir}, nil
	}
}

// Pinger is satisfied by stores and clients that support a liveness probe
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck fails when the target's Ping returns an error
func PingCheck(target Pinger) CheckFunc {
	return func(ctx context.Context) (any, error) {
		if err := target.Ping(ctx); err != nil {
			return nil, err
		}
		return nil, nil
	}
}
