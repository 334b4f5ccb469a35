package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/pulsewatch/pulsewatch/internal/api"
	"github.com/pulsewatch/pulsewatch/internal/config"
	"github.com/pulsewatch/pulsewatch/internal/health"
	"github.com/pulsewatch/pulsewatch/internal/logging"
	"github.com/pulsewatch/pulsewatch/internal/metrics"
	"github.com/pulsewatch/pulsewatch/internal/rules"
	"github.com/pulsewatch/pulsewatch/internal/statestore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := logging.New(logging.Config{
		Level:       logging.ParseLevel(cfg.Logging.Level),
		Console:     true,
		EnableFile:  cfg.Logging.EnableFile,
		Dir:         cfg.Logging.Dir,
		MaxFileSize: cfg.Logging.MaxFileSize,
		MaxFiles:    cfg.Logging.MaxFiles,
	})
	logger.Info("starting pulsewatch", map[string]any{
		"log_level":    cfg.Logging.Level,
		"file_logging": cfg.Logging.EnableFile,
		"monitoring":   cfg.Monitoring.Enabled,
		"api_port":     cfg.API.Port,
	})

	collector := metrics.NewCollector(metrics.Config{
		HistogramCap:   cfg.Metrics.HistogramCap,
		SampleInterval: cfg.Metrics.SampleInterval,
	})
	metrics.RegisterBridge(collector, "pulsewatch")
	logger.Debug("metrics collector initialized", map[string]any{
		"histogram_cap":   cfg.Metrics.HistogramCap,
		"sample_interval": cfg.Metrics.SampleInterval.String(),
	})

	monitor := health.NewMonitor(logger, health.Config{
		CheckInterval: cfg.Monitoring.CheckInterval,
		HistoryLimit:  cfg.Monitoring.HistoryLimit,
	})

	logger.Debug("initializing state store", map[string]any{
		"type": cfg.StateStore.Type,
	})
	var store statestore.ReportStore
	switch cfg.StateStore.Type {
	case "sqlite":
		store, err = statestore.NewSQLiteStore(cfg.StateStore.SQLitePath, cfg.StateStore.Retention)
		if err != nil {
			return fmt.Errorf("failed to initialize sqlite store: %w", err)
		}
	case "memory":
		store = statestore.NewMemoryStore(cfg.StateStore.Retention)
	default:
		return fmt.Errorf("unsupported state store type: %s", cfg.StateStore.Type)
	}
	defer store.Close()
	monitor.SetArchive(store)

	monitor.AddCheck("heap", health.HeapCheck(1<<30), health.CheckOptions{})
	monitor.AddCheck("goroutines", health.GoroutineCheck(10000), health.CheckOptions{})
	monitor.AddCheck("statestore", health.PingCheck(store), health.CheckOptions{Critical: true})
	if cfg.Logging.EnableFile {
		monitor.AddCheck("log-dir", health.DirWritableCheck(cfg.Logging.Dir), health.CheckOptions{})
	}

	if len(cfg.Rules) > 0 {
		engine, err := rules.NewEngine(logger, collector, cfg.Rules)
		if err != nil {
			return fmt.Errorf("failed to compile metric rules: %w", err)
		}
		engine.Register(monitor)
	}

	if cfg.Monitoring.Enabled {
		collector.Start()
		monitor.Start()
		defer monitor.Stop()
		defer collector.Stop()
	}

	if cfg.API.Enabled {
		server := api.NewServer(&cfg.API, monitor, collector, logger)
		if err := server.Start(ctx); err != nil {
			return fmt.Errorf("api server: %w", err)
		}
	} else {
		<-ctx.Done()
	}

	logger.Info("pulsewatch shutting down", nil)
	return nil
}
