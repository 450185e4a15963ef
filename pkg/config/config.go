package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/marmos91/fsbridge/internal/logger"
	"github.com/marmos91/fsbridge/internal/telemetry"
	"github.com/marmos91/fsbridge/pkg/transport/httpapi"
	"github.com/marmos91/fsbridge/pkg/transport/stream"
	"github.com/spf13/viper"
)

// Config represents the complete fsbridge configuration.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (FSBRIDGE_*)
//  3. Configuration file (YAML)
//  4. Default values (lowest priority)
//
// Backend sections follow one pattern: a Type field selects the
// implementation and only the map named after that type is decoded, by the
// matching factory.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging"`

	// Telemetry controls OpenTelemetry tracing
	Telemetry TelemetryConfig `mapstructure:"telemetry"`

	// Server contains process-wide settings
	Server ServerConfig `mapstructure:"server"`

	// Driver selects the file system the bridge operates on
	Driver DriverConfig `mapstructure:"driver"`

	// Registry selects where entry identifiers are stored
	Registry RegistryConfig `mapstructure:"registry"`

	// Scope selects which locations may be accessed
	Scope ScopeConfig `mapstructure:"scope"`

	// Picker selects how file and directory dialogs are answered
	Picker PickerConfig `mapstructure:"picker"`

	// Bridge tunes request dispatch
	Bridge BridgeConfig `mapstructure:"bridge"`

	// Adapters contains the transport adapter configurations
	Adapters AdaptersConfig `mapstructure:"adapters"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required"`
}

// TelemetryConfig controls span export.
type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// Endpoint is the OTLP gRPC collector address (host:port)
	Endpoint string `mapstructure:"endpoint"`

	Insecure bool `mapstructure:"insecure"`

	// SampleRate is the fraction of traces kept
	SampleRate float64 `mapstructure:"sample_rate" validate:"gte=0,lte=1"`
}

// ServerConfig contains process-wide settings.
type ServerConfig struct {
	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0"`

	Metrics MetricsConfig `mapstructure:"metrics"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// Port is the HTTP port serving /metrics
	Port int `mapstructure:"port" validate:"gte=0,lte=65535"`
}

// DriverConfig specifies the file-system driver.
type DriverConfig struct {
	// Type specifies which driver to use
	// Valid values: local, memory, s3
	Type string `mapstructure:"type" validate:"required,oneof=local memory s3"`

	// Local contains local-driver options
	// Only used when Type = "local"
	Local map[string]any `mapstructure:"local"`

	// S3 contains S3 options
	// Only used when Type = "s3"
	S3 map[string]any `mapstructure:"s3"`
}

// RegistryConfig specifies the handle registry backend.
type RegistryConfig struct {
	// Type specifies which registry to use
	// Valid values: memory, badger
	Type string `mapstructure:"type" validate:"required,oneof=memory badger"`

	// Badger contains BadgerDB options
	// Only used when Type = "badger"
	Badger map[string]any `mapstructure:"badger"`
}

// ScopeConfig specifies the scope service.
type ScopeConfig struct {
	// Type specifies which scope service to use
	// Valid values: allow_all, rooted
	Type string `mapstructure:"type" validate:"required,oneof=allow_all rooted"`

	// AllowedRoots lists the directories a rooted service grants
	AllowedRoots []string `mapstructure:"allowed_roots" validate:"dive,startswith=/"`
}

// PickerConfig specifies the picker service.
type PickerConfig struct {
	// Type specifies which picker to use
	// Valid values: terminal, static
	Type string `mapstructure:"type" validate:"required,oneof=terminal static"`

	Terminal map[string]any `mapstructure:"terminal"`

	Static map[string]any `mapstructure:"static"`
}

// BridgeConfig tunes the dispatcher.
type BridgeConfig struct {
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig bounds non-picker requests per second across all
// transports.
type RateLimitConfig struct {
	Enabled bool `mapstructure:"enabled"`

	RequestsPerSecond uint `mapstructure:"requests_per_second"`

	Burst uint `mapstructure:"burst"`
}

// AdaptersConfig contains all transport adapter configurations.
type AdaptersConfig struct {
	Stream stream.Config `mapstructure:"stream"`

	HTTP httpapi.Config `mapstructure:"http"`
}

// Load loads configuration from file, environment, and defaults.
//
// An empty configPath searches the default location. A missing file is
// not an error: defaults apply.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Example: FSBRIDGE_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("FSBRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only applies to keys viper knows about
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// envKeys are the scalar keys that can be set from the environment
// without appearing in the config file.
var envKeys = []string{
	"logging.level",
	"logging.format",
	"logging.output",
	"telemetry.enabled",
	"telemetry.endpoint",
	"server.shutdown_timeout",
	"server.metrics.enabled",
	"server.metrics.port",
	"driver.type",
	"registry.type",
	"scope.type",
	"picker.type",
	"adapters.stream.enabled",
	"adapters.stream.address",
	"adapters.http.enabled",
	"adapters.http.address",
	"adapters.http.jwt.secret",
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "fsbridge")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "fsbridge")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ConfigExists checks if a config file exists at the default location.
func ConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path.
func GetConfigDir() string {
	return getConfigDir()
}

// LoggerConfig converts the section into the logger's configuration.
func (c LoggingConfig) LoggerConfig() logger.Config {
	return logger.Config{Level: c.Level, Format: c.Format, Output: c.Output}
}

// TracingConfig converts the section into the telemetry configuration.
func (c TelemetryConfig) TracingConfig(version string) telemetry.Config {
	tc := telemetry.DefaultConfig()
	tc.Enabled = c.Enabled
	tc.Endpoint = c.Endpoint
	tc.Insecure = c.Insecure
	tc.SampleRate = c.SampleRate
	if version != "" {
		tc.ServiceVersion = version
	}
	return tc
}
