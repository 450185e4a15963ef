package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return configPath
}

func TestLoad_DefaultConfig(t *testing.T) {
	configPath := writeConfig(t, `
logging:
  level: "info"

driver:
  type: "memory"

adapters:
  http:
    enabled: true
    address: "127.0.0.1:9999"
    jwt:
      secret: "0123456789abcdef0123456789abcdef"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected normalized level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Server.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown_timeout 30s, got %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Driver.Type != "memory" {
		t.Errorf("Expected driver type 'memory', got %q", cfg.Driver.Type)
	}
	if !cfg.Adapters.HTTP.Enabled || cfg.Adapters.HTTP.Address != "127.0.0.1:9999" {
		t.Errorf("Expected http adapter on 127.0.0.1:9999, got %+v", cfg.Adapters.HTTP)
	}
	if cfg.Adapters.Stream.Enabled {
		t.Error("Stream adapter should stay disabled when another adapter is configured")
	}
	if cfg.Adapters.HTTP.JWT.Issuer != "fsbridge" {
		t.Errorf("Expected default issuer 'fsbridge', got %q", cfg.Adapters.HTTP.JWT.Issuer)
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	nonExistentPath := filepath.Join(t.TempDir(), "nonexistent.yaml")

	cfg, err := Load(nonExistentPath)
	if err != nil {
		t.Fatalf("Expected no error with missing config file, got: %v", err)
	}

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Driver.Type != "local" {
		t.Errorf("Expected default driver type 'local', got %q", cfg.Driver.Type)
	}
	if cfg.Registry.Type != "memory" {
		t.Errorf("Expected default registry type 'memory', got %q", cfg.Registry.Type)
	}
	if !cfg.Adapters.Stream.Enabled {
		t.Error("Expected the stream adapter to be enabled by default")
	}
	if cfg.Adapters.Stream.Address != "127.0.0.1:7878" {
		t.Errorf("Expected default stream address, got %q", cfg.Adapters.Stream.Address)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, "logging:\n  level: [unclosed\n")

	if _, err := Load(configPath); err == nil {
		t.Fatal("Expected error for invalid YAML")
	}
}

func TestLoad_Durations(t *testing.T) {
	configPath := writeConfig(t, `
server:
  shutdown_timeout: 5s
adapters:
  stream:
    enabled: true
    idle_timeout: 1m
    max_connections: 8
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Server.ShutdownTimeout != 5*time.Second {
		t.Errorf("Expected shutdown_timeout 5s, got %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Adapters.Stream.IdleTimeout != time.Minute {
		t.Errorf("Expected idle_timeout 1m, got %v", cfg.Adapters.Stream.IdleTimeout)
	}
	if cfg.Adapters.Stream.MaxConnections != 8 {
		t.Errorf("Expected max_connections 8, got %d", cfg.Adapters.Stream.MaxConnections)
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("FSBRIDGE_LOGGING_LEVEL", "debug")
	t.Setenv("FSBRIDGE_DRIVER_TYPE", "memory")

	configPath := writeConfig(t, `
logging:
  level: "WARN"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected environment level 'DEBUG', got %q", cfg.Logging.Level)
	}
	if cfg.Driver.Type != "memory" {
		t.Errorf("Expected environment driver 'memory', got %q", cfg.Driver.Type)
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	configPath := writeConfig(t, `
driver:
  type: "ftp"
`)

	if _, err := Load(configPath); err == nil {
		t.Fatal("Expected validation error for unknown driver type")
	}
}

func TestConversions(t *testing.T) {
	cfg := GetDefaultConfig()

	lc := cfg.Logging.LoggerConfig()
	if lc.Level != "INFO" || lc.Format != "text" || lc.Output != "stdout" {
		t.Errorf("Unexpected logger config: %+v", lc)
	}

	tc := cfg.Telemetry.TracingConfig("1.2.3")
	if tc.Enabled {
		t.Error("Telemetry should be disabled by default")
	}
	if tc.ServiceName != "fsbridge" || tc.ServiceVersion != "1.2.3" {
		t.Errorf("Unexpected telemetry identity: %s %s", tc.ServiceName, tc.ServiceVersion)
	}
	if tc.Endpoint != "localhost:4317" || tc.SampleRate != 1.0 {
		t.Errorf("Unexpected telemetry defaults: %+v", tc)
	}
}
