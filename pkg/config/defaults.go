package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/dtn-bard/bard/pkg/api"
)

// ApplyDefaults fills in zero-valued fields with sensible defaults
// after loading from file and environment. Explicit values are
// preserved; store/restagecl/quota entries are left to the user to
// configure (there is no sensible default for "where bundles live").
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	applyMetricsDefaults(&cfg.Metrics)
	applyAPIDefaults(&cfg.API)
	for i := range cfg.RestageCLs {
		applyRestageCLDefaults(&cfg.RestageCLs[i])
	}
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)
	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}
	applyProfilingDefaults(&cfg.Profiling)
}

func applyProfilingDefaults(cfg *ProfilingConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:4040"
	}
	if len(cfg.ProfileTypes) == 0 {
		cfg.ProfileTypes = []string{"cpu", "alloc_objects", "inuse_space", "goroutines"}
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Enabled && cfg.Port == 0 {
		cfg.Port = 9091
	}
}

func applyAPIDefaults(cfg *api.APIConfig) {
	// api.NewServer applies its own defaults at construction time.
	_ = cfg
}

func applyRestageCLDefaults(cfg *RestageCLConfig) {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 30 * time.Second
	}
}

// GetDefaultConfig returns a minimal, internally consistent
// configuration with no restage links or quotas configured: enough to
// start bardd with the API and durable store only.
func GetDefaultConfig() *Config {
	cfg := &Config{
		Logging: LoggingConfig{Level: "INFO", Format: "text", Output: "stdout"},
		Telemetry: TelemetryConfig{
			Enabled:    false,
			Endpoint:   "localhost:4317",
			SampleRate: 1.0,
			Profiling: ProfilingConfig{
				Endpoint:     "http://localhost:4040",
				ProfileTypes: []string{"cpu", "alloc_objects", "inuse_space", "goroutines"},
			},
		},
		ShutdownTimeout: 30 * time.Second,
		Store:           StoreConfig{Path: filepath.Join(getConfigDir(), "store")},
		Metrics:         MetricsConfig{Enabled: false},
		API: api.APIConfig{
			Port:         8080,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
	return cfg
}
