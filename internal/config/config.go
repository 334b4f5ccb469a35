package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pulsewatch/pulsewatch/internal/errors"
	"github.com/pulsewatch/pulsewatch/internal/logging"
	"github.com/pulsewatch/pulsewatch/internal/rules"
)

// Config represents the complete application configuration
type Config struct {
	ConfigPath string
	Logging    LoggingConfig
	Monitoring MonitoringConfig
	Metrics    MetricsConfig
	StateStore StateStoreConfig
	API        APIConfig
	Rules      []rules.Rule
}

// LoggingConfig configures the structured logger
type LoggingConfig struct {
	Level       string
	EnableFile  bool
	Dir         string
	MaxFileSize int64
	MaxFiles    int
}

// MonitoringConfig configures the health monitor
type MonitoringConfig struct {
	Enabled       bool
	CheckInterval time.Duration
	HistoryLimit  int
}

// MetricsConfig configures the metrics collector
type MetricsConfig struct {
	SampleInterval time.Duration
	HistogramCap   int
}

// StateStoreConfig configures the health report archive
type StateStoreConfig struct {
	Type       string
	SQLitePath string
	Retention  int
}

// APIConfig configures the HTTP read surface
type APIConfig struct {
	Enabled bool
	Port    int
	APIKey  string
}

// fileConfig is the optional pulsewatch.yml shape: interval defaults plus
// metric threshold rules
type fileConfig struct {
	Defaults struct {
		CheckInterval  string `yaml:"check_interval"`
		SampleInterval string `yaml:"sample_interval"`
		HistoryLimit   int    `yaml:"history_limit"`
	} `yaml:"defaults"`
	Rules []rules.Rule `yaml:"rules"`
}

// Load builds configuration from environment variables, with defaults
// optionally seeded from the YAML file named by PULSEWATCH_CONFIG
func Load() (*Config, error) {
	configPath := getEnv("PULSEWATCH_CONFIG", "pulsewatch.yml")

	var fileCfg fileConfig
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return nil, errors.NewPermanentf("failed to parse %s: %w", configPath, err)
		}
	}

	checkInterval := parseIntervalOr(fileCfg.Defaults.CheckInterval, 60*time.Second)
	sampleInterval := parseIntervalOr(fileCfg.Defaults.SampleInterval, 30*time.Second)
	historyLimit := fileCfg.Defaults.HistoryLimit
	if historyLimit == 0 {
		historyLimit = 100
	}

	cfg := &Config{
		ConfigPath: configPath,
		Logging: LoggingConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			EnableFile:  getEnvBool("ENABLE_FILE_LOGGING", false),
			Dir:         getEnv("LOG_DIR", "./logs"),
			MaxFileSize: getEnvInt64("LOG_MAX_FILE_SIZE", logging.DefaultMaxFileSize),
			MaxFiles:    getEnvInt("LOG_MAX_FILES", logging.DefaultMaxFiles),
		},
		Monitoring: MonitoringConfig{
			Enabled:       getEnvBool("ENABLE_MONITORING", true),
			CheckInterval: getEnvDuration("HEALTH_CHECK_INTERVAL", checkInterval),
			HistoryLimit:  getEnvInt("HEALTH_HISTORY_LIMIT", historyLimit),
		},
		Metrics: MetricsConfig{
			SampleInterval: getEnvDuration("METRICS_SAMPLE_INTERVAL", sampleInterval),
			HistogramCap:   getEnvInt("METRICS_HISTOGRAM_CAP", 1000),
		},
		StateStore: StateStoreConfig{
			Type:       getEnv("STATE_STORE_TYPE", "memory"),
			SQLitePath: getEnv("SQLITE_PATH", "pulsewatch.db"),
			Retention:  getEnvInt("STATE_STORE_RETENTION", 1000),
		},
		API: APIConfig{
			Enabled: getEnvBool("API_ENABLED", true),
			Port:    getEnvInt("API_PORT", 8080),
			APIKey:  getEnv("PULSEWATCH_API_KEY", ""),
		},
		Rules: fileCfg.Rules,
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if logging.ParseLevel(c.Logging.Level).String() != c.Logging.Level &&
		c.Logging.Level != "warning" {
		return errors.NewPermanentf("invalid log level: %s (must be error, warn, info, or debug)", c.Logging.Level)
	}

	if c.Logging.EnableFile && c.Logging.Dir == "" {
		return errors.NewPermanentf("log directory is required when file logging is enabled")
	}

	if c.Logging.MaxFiles < 1 {
		return errors.NewPermanentf("LOG_MAX_FILES must be at least 1")
	}

	if c.StateStore.Type != "memory" && c.StateStore.Type != "sqlite" {
		return errors.NewPermanentf("invalid state store type: %s (must be memory or sqlite)", c.StateStore.Type)
	}

	if c.StateStore.Type == "sqlite" && c.StateStore.SQLitePath == "" {
		return errors.NewPermanentf("sqlite path is required when using sqlite state store")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		return errors.NewPermanentf("invalid API port: %d", c.API.Port)
	}

	return nil
}
