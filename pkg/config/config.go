// Package config loads bardd's startup configuration: logging,
// telemetry/profiling, the control-plane API, the durable store, and
// the set of restage links and quota records the daemon starts with.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (BARD_*)
//  2. Configuration file (YAML)
//  3. Built-in defaults
//
// When no configuration file is found, Load returns the built-in
// defaults and environment variables are not consulted.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/dtn-bard/bard/internal/bytesize"
	"github.com/dtn-bard/bard/internal/telemetry"
	"github.com/dtn-bard/bard/pkg/api"
	"github.com/dtn-bard/bard/pkg/bard"
)

// Config is bardd's complete startup configuration.
type Config struct {
	// Logging configures the process-wide slog handler.
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry configures OpenTelemetry trace export and Pyroscope
	// continuous profiling.
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// ShutdownTimeout bounds how long graceful shutdown waits for
	// in-flight restage/reload jobs to drain before forcing exit.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`

	// Store configures the badger-backed durable store for quotas and
	// IMC membership records.
	Store StoreConfig `mapstructure:"store" yaml:"store"`

	// Metrics configures the Prometheus registry bardd exposes.
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// API configures the HTTP control-plane surface.
	API api.APIConfig `mapstructure:"api" yaml:"api"`

	// Separators overrides the field/EID separators used in canonical
	// keys and restage filenames. Rarely changed; present
	// mainly so a node can avoid a separator character that collides
	// with something in its endpoint-ID namespace.
	Separators SeparatorsConfig `mapstructure:"separators" yaml:"separators"`

	// RestageCLs lists the external storage roots BARD restages to.
	RestageCLs []RestageCLConfig `mapstructure:"restagecls" validate:"dive" yaml:"restagecls"`

	// Quotas lists the initial per-endpoint quota records. Quotas
	// added later via the API are persisted to Store and override
	// these on next restart.
	Quotas []QuotaConfig `mapstructure:"quotas" validate:"dive" yaml:"quotas"`
}

// LoggingConfig configures the slog-based logger (internal/logger).
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig configures OTLP trace export and continuous profiling.
type TelemetryConfig struct {
	Enabled     bool              `mapstructure:"enabled" yaml:"enabled"`
	Endpoint    string            `mapstructure:"endpoint" yaml:"endpoint"`
	Insecure    bool              `mapstructure:"insecure" yaml:"insecure"`
	SampleRate  float64           `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`
	Profiling   ProfilingConfig   `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig configures Pyroscope continuous profiling.
type ProfilingConfig struct {
	Enabled      bool     `mapstructure:"enabled" yaml:"enabled"`
	Endpoint     string   `mapstructure:"endpoint" yaml:"endpoint"`
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types"`
}

// MetricsConfig configures the Prometheus registry.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// StoreConfig configures the badger-backed durable store.
type StoreConfig struct {
	Path string `mapstructure:"path" validate:"required" yaml:"path"`
}

// SeparatorsConfig overrides bard.Separators. Empty fields fall back
// to bard.DefaultSeparators().
type SeparatorsConfig struct {
	Field string `mapstructure:"field" yaml:"field,omitempty"`
	EID   string `mapstructure:"eid" yaml:"eid,omitempty"`
}

// ToSeparators converts to bard.Separators, filling unset fields with
// defaults.
func (s SeparatorsConfig) ToSeparators() bard.Separators {
	def := bard.DefaultSeparators()
	out := bard.Separators{Field: def.Field, EID: def.EID}
	if s.Field != "" {
		out.Field = s.Field
	}
	if s.EID != "" {
		out.EID = s.EID
	}
	return out
}

// RestageCLConfig is one restage link's static configuration.
type RestageCLConfig struct {
	// Name identifies the link in quota RestageLinkName fields and in
	// API/CLI output.
	Name string `mapstructure:"name" validate:"required" yaml:"name"`

	// StoragePath is the filesystem root bundles are restaged under.
	StoragePath string `mapstructure:"storage_path" validate:"required" yaml:"storage_path"`

	// RequireMountPoint puts the link in ERROR while StoragePath is not
	// a distinct mounted filesystem; the daemon still starts. Set false for single-disk
	// test setups where the storage path is just a subdirectory.
	RequireMountPoint bool `mapstructure:"require_mount_point" yaml:"require_mount_point"`

	// RateLimitBytesPerSec bounds restage write throughput. Zero
	// disables shaping.
	RateLimitBytesPerSec float64 `mapstructure:"rate_limit_bytes_per_sec" yaml:"rate_limit_bytes_per_sec"`

	// DiskQuota caps block-rounded restaged data on this link. Zero
	// means bounded only by the volume.
	DiskQuota bytesize.ByteSize `mapstructure:"disk_quota" yaml:"disk_quota,omitempty"`

	// ExpireBundles enables the periodic expiry sweep on this link.
	ExpireBundles bool `mapstructure:"expire_bundles" yaml:"expire_bundles"`

	// DaysRetention bounds how long a restaged file may sit on disk
	// regardless of its own expiration. Zero disables the age bound.
	DaysRetention int `mapstructure:"days_retention" validate:"omitempty,min=0" yaml:"days_retention,omitempty"`

	// AutoReloadInterval, when positive, periodically reloads
	// everything on this link independent of quota pressure.
	AutoReloadInterval time.Duration `mapstructure:"auto_reload_interval" yaml:"auto_reload_interval,omitempty"`

	// PollInterval is how often disk usage is re-checked for
	// watermark transitions.
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`

	// PartOfPool marks the link eligible for overflow routing when a
	// quota's preferred RestageLinkName is unavailable.
	PartOfPool bool `mapstructure:"part_of_pool" yaml:"part_of_pool"`

	// Email configures the one-shot state-transition notification.
	Email EmailConfig `mapstructure:"email" yaml:"email"`
}

// EmailConfig configures restagecl.EmailConfig via mapstructure.
type EmailConfig struct {
	Enabled  bool     `mapstructure:"enabled" yaml:"enabled"`
	SMTPAddr string   `mapstructure:"smtp_addr" yaml:"smtp_addr,omitempty"`
	From     string   `mapstructure:"from" yaml:"from,omitempty"`
	To       []string `mapstructure:"to" yaml:"to,omitempty"`
}

// QuotaConfig is one initial quota record.
type QuotaConfig struct {
	QuotaType string `mapstructure:"quota_type" validate:"required,oneof=SRC DST src dst" yaml:"quota_type"`
	Scheme    string `mapstructure:"scheme" validate:"required,oneof=ipn imc dtn IPN IMC DTN" yaml:"scheme"`
	Node      string `mapstructure:"node" validate:"required" yaml:"node"`

	InternalBundles uint64             `mapstructure:"internal_bundles" yaml:"internal_bundles,omitempty"`
	InternalBytes   bytesize.ByteSize  `mapstructure:"internal_bytes" yaml:"internal_bytes,omitempty"`
	ExternalBundles uint64             `mapstructure:"external_bundles" yaml:"external_bundles,omitempty"`
	ExternalBytes   bytesize.ByteSize  `mapstructure:"external_bytes" yaml:"external_bytes,omitempty"`

	RefuseBundle    bool   `mapstructure:"refuse_bundle" yaml:"refuse_bundle"`
	AutoReload      bool   `mapstructure:"auto_reload" yaml:"auto_reload"`
	RestageLinkName string `mapstructure:"restage_link_name" yaml:"restage_link_name,omitempty"`
	Unlimited       bool   `mapstructure:"unlimited" yaml:"unlimited,omitempty"`
}

// ToQuota converts a QuotaConfig's storage fields to a bard.Quota.
// Scheme/QuotaType/Node are parsed separately by the caller since
// bard.AddQuota takes them as arguments rather than struct fields.
func (q QuotaConfig) ToQuota() bard.Quota {
	return bard.Quota{
		InternalBundles: q.InternalBundles,
		InternalBytes:   q.InternalBytes.Uint64(),
		ExternalBundles: q.ExternalBundles,
		ExternalBytes:   q.ExternalBytes.Uint64(),
		RefuseBundle:    q.RefuseBundle,
		AutoReload:      q.AutoReload,
		RestageLinkName: q.RestageLinkName,
	}
}

// ToTelemetryConfig converts to internal/telemetry's Config.
func (c TelemetryConfig) ToTelemetryConfig(serviceName, serviceVersion string) telemetry.Config {
	return telemetry.Config{
		Enabled:        c.Enabled,
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,
		Endpoint:       c.Endpoint,
		Insecure:       c.Insecure,
		SampleRate:     c.SampleRate,
	}
}

// ToProfilingConfig converts to internal/telemetry's ProfilingConfig.
func (c TelemetryConfig) ToProfilingConfig(serviceName, serviceVersion string) telemetry.ProfilingConfig {
	return telemetry.ProfilingConfig{
		Enabled:        c.Profiling.Enabled,
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,
		Endpoint:       c.Profiling.Endpoint,
		ProfileTypes:   c.Profiling.ProfileTypes,
	}
}

// Load loads configuration from file, environment, and defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	if !found {
		cfg := GetDefaultConfig()
		return cfg, nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration, returning an actionable error (pointing
// at `bardd init`) when no config file exists at the given or default
// location.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"Initialize one first:\n"+
				"  bardd init\n\n"+
				"Or point at an existing file:\n"+
				"  bardd start --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s\n\n"+
			"Create it with:\n"+
			"  bardd init --config %s",
			configPath, configPath)
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes cfg as YAML to path, creating parent directories
// as needed.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("BARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		configDir := getConfigDir()
		v.AddConfigPath(configDir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

// configDecodeHooks composes the mapstructure decode hooks that let
// config files write quota sizes as "100Mi" and durations as "30s"
// instead of raw integers.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
	)
}

func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

func getConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "bard")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "bard")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists reports whether a config file exists at the
// default location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path, exposed for
// the init command.
func GetConfigDir() string {
	return getConfigDir()
}
