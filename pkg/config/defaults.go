package config

import (
	"path/filepath"
	"strings"
	"time"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Zero values are replaced; explicit values are preserved. Backend maps
// receive the keys of every backend so that a generated sample file
// documents all of them.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyServerDefaults(&cfg.Server)
	applyDriverDefaults(&cfg.Driver)
	applyRegistryDefaults(&cfg.Registry)
	applyScopeDefaults(&cfg.Scope)
	applyPickerDefaults(&cfg.Picker)
	applyBridgeDefaults(&cfg.Bridge)
	applyAdaptersDefaults(&cfg.Adapters)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
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
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = 9090
	}
}

func applyDriverDefaults(cfg *DriverConfig) {
	if cfg.Type == "" {
		cfg.Type = "local"
	}

	if cfg.Local == nil {
		cfg.Local = make(map[string]any)
	}
	if cfg.S3 == nil {
		cfg.S3 = make(map[string]any)
	}

	// An empty base path exposes the whole host file system
	setDefault(cfg.Local, "base_path", "")
	setDefault(cfg.S3, "region", "us-east-1")
	setDefault(cfg.S3, "bucket", "")
	setDefault(cfg.S3, "key_prefix", "")
	setDefault(cfg.S3, "endpoint", "")
	setDefault(cfg.S3, "force_path_style", false)
	setDefault(cfg.S3, "max_retries", 10)
}

func applyRegistryDefaults(cfg *RegistryConfig) {
	if cfg.Type == "" {
		cfg.Type = "memory"
	}

	if cfg.Badger == nil {
		cfg.Badger = make(map[string]any)
	}
	setDefault(cfg.Badger, "db_path", defaultBadgerPath())
	setDefault(cfg.Badger, "in_memory", false)
}

func applyScopeDefaults(cfg *ScopeConfig) {
	if cfg.Type == "" {
		cfg.Type = "allow_all"
	}
	if cfg.AllowedRoots == nil {
		cfg.AllowedRoots = []string{}
	}
}

func applyPickerDefaults(cfg *PickerConfig) {
	if cfg.Type == "" {
		cfg.Type = "terminal"
	}

	if cfg.Terminal == nil {
		cfg.Terminal = make(map[string]any)
	}
	if cfg.Static == nil {
		cfg.Static = make(map[string]any)
	}

	setDefault(cfg.Terminal, "base_dir", "/")
	setDefault(cfg.Terminal, "show_hidden", false)
	setDefault(cfg.Static, "files", []string{})
	setDefault(cfg.Static, "directory", "")
	setDefault(cfg.Static, "save_dir", "")
}

func applyBridgeDefaults(cfg *BridgeConfig) {
	if cfg.RateLimit.RequestsPerSecond == 0 {
		cfg.RateLimit.RequestsPerSecond = 200
	}
	if cfg.RateLimit.Burst == 0 {
		cfg.RateLimit.Burst = 400
	}
}

// applyAdaptersDefaults enables the stream adapter when no adapter was
// configured at all, so that a config-less start serves something.
func applyAdaptersDefaults(cfg *AdaptersConfig) {
	if !cfg.Stream.Enabled && !cfg.HTTP.Enabled && cfg.Stream.Address == "" && cfg.HTTP.Address == "" {
		cfg.Stream.Enabled = true
	}

	cfg.Stream.ApplyDefaults()
	cfg.HTTP.ApplyDefaults()
	if cfg.HTTP.JWT.Issuer == "" {
		cfg.HTTP.JWT.Issuer = "fsbridge"
	}
	if cfg.HTTP.JWT.TokenDuration == 0 {
		cfg.HTTP.JWT.TokenDuration = 24 * time.Hour
	}
}

func setDefault(m map[string]any, key string, value any) {
	if _, ok := m[key]; !ok {
		m[key] = value
	}
}

func defaultBadgerPath() string {
	return filepath.Join(getConfigDir(), "registry")
}

// GetDefaultConfig returns a Config struct with all default values applied.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	cfg.Adapters.Stream.Enabled = true

	ApplyDefaults(cfg)
	return cfg
}
