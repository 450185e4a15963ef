package config

import (
	"strings"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults",
			mutate: func(*Config) {},
		},
		{
			name:    "invalid log level",
			mutate:  func(c *Config) { c.Logging.Level = "TRACE" },
			wantErr: "Level",
		},
		{
			name:    "unknown registry",
			mutate:  func(c *Config) { c.Registry.Type = "redis" },
			wantErr: "Type",
		},
		{
			name:    "sample rate out of range",
			mutate:  func(c *Config) { c.Telemetry.SampleRate = 1.5 },
			wantErr: "SampleRate",
		},
		{
			name:    "relative allowed root",
			mutate:  func(c *Config) { c.Scope.AllowedRoots = []string{"docs"} },
			wantErr: "AllowedRoots",
		},
		{
			name: "no adapters",
			mutate: func(c *Config) {
				c.Adapters.Stream.Enabled = false
				c.Adapters.HTTP.Enabled = false
			},
			wantErr: "at least one adapter",
		},
		{
			name: "adapters on the same address",
			mutate: func(c *Config) {
				c.Adapters.HTTP.Enabled = true
				c.Adapters.HTTP.Address = c.Adapters.Stream.Address
			},
			wantErr: "both listen",
		},
		{
			name:    "short jwt secret",
			mutate:  func(c *Config) { c.Adapters.HTTP.JWT.Secret = "short" },
			wantErr: "jwt.secret",
		},
		{
			name:    "rooted without roots",
			mutate:  func(c *Config) { c.Scope.Type = "rooted" },
			wantErr: "allowed_roots",
		},
		{
			name:   "rooted with roots",
			mutate: func(c *Config) { c.Scope.Type = "rooted"; c.Scope.AllowedRoots = []string{"/srv"} },
		},
		{
			name:    "s3 without bucket",
			mutate:  func(c *Config) { c.Driver.Type = "s3" },
			wantErr: "bucket",
		},
		{
			name: "rate limit without rate",
			mutate: func(c *Config) {
				c.Bridge.RateLimit.Enabled = true
				c.Bridge.RateLimit.RequestsPerSecond = 0
			},
			wantErr: "requests_per_second",
		},
		{
			name:    "unknown stream network",
			mutate:  func(c *Config) { c.Adapters.Stream.Network = "udp" },
			wantErr: "Network",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Expected no error, got: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got: %v", tt.wantErr, err)
			}
		})
	}
}
