package config

import (
	"github.com/marmos91/fsbridge/pkg/metrics"
	promMetrics "github.com/marmos91/fsbridge/pkg/metrics/prometheus"
)

// MetricsResult contains all metrics-related components created from configuration.
type MetricsResult struct {
	// Server is the HTTP server exposing Prometheus metrics (nil if disabled)
	Server *metrics.Server

	// Metrics records bridge and transport metrics (never nil, noop if disabled)
	Metrics metrics.Metrics
}

// InitializeMetrics creates the metrics components described by cfg.
//
// If metrics are enabled in the configuration:
//   - Initializes the global Prometheus registry
//   - Creates the metrics HTTP server
//   - Creates one Prometheus-backed recorder shared by the bridge and the
//     transports
//
// If metrics are disabled:
//   - Returns nil server
//   - Returns the no-op recorder
//
// Parameters:
//   - cfg: The complete fsbridge configuration
//
// Returns:
//   - MetricsResult containing all metrics components
func InitializeMetrics(cfg *Config) *MetricsResult {
	if !cfg.Server.Metrics.Enabled {
		// Metrics disabled, every recorder is a no-op
		return &MetricsResult{
			Metrics: metrics.NewNoop(),
		}
	}

	metrics.InitRegistry()

	// Served by BridgeServer as an extra service next to the adapters
	server := metrics.NewServer(metrics.ServerConfig{
		Port: cfg.Server.Metrics.Port,
	})

	return &MetricsResult{
		Server:  server,
		Metrics: promMetrics.NewMetrics(),
	}
}
