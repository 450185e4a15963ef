package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/marmos91/fsbridge/internal/logger"
	"github.com/marmos91/fsbridge/internal/telemetry"
	"github.com/marmos91/fsbridge/pkg/bridge"
	"github.com/marmos91/fsbridge/pkg/config"
	"github.com/marmos91/fsbridge/pkg/server"
	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the bridge",
	Long: `Start the bridge with the specified configuration and serve it on every
enabled adapter until interrupted.

Use --config to specify a custom configuration file, or it will use the
default location at $XDG_CONFIG_HOME/fsbridge/config.yaml. Without any
file the built-in defaults apply.

Examples:
  # Start with the default config
  fsbridge start

  # Start with custom config file
  fsbridge start --config /etc/fsbridge/config.yaml

  # Start with environment variable overrides
  FSBRIDGE_LOGGING_LEVEL=DEBUG FSBRIDGE_DRIVER_TYPE=memory fsbridge start`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return err
	}

	if err := logger.Init(cfg.Logging.LoggerConfig()); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryShutdown, err := telemetry.Init(ctx, cfg.Telemetry.TracingConfig(Version))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(context.Background()); err != nil {
			logger.Error("Telemetry shutdown error: %v", err)
		}
	}()

	fmt.Fprintln(cmd.OutOrStdout(), "fsbridge - file access bridge")
	logger.Info("Log level: %s (format: %s)", cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %s", getConfigSource(GetConfigFile()))
	if telemetry.IsEnabled() {
		logger.Info("Telemetry enabled: endpoint=%s sample_rate=%.2f", cfg.Telemetry.Endpoint, cfg.Telemetry.SampleRate)
	} else {
		logger.Info("Telemetry disabled")
	}

	// Metrics first so every component below records into the live registry.
	metricsResult := config.InitializeMetrics(cfg)

	drv, err := config.CreateDriver(ctx, &cfg.Driver)
	if err != nil {
		return fmt.Errorf("failed to create driver: %w", err)
	}
	logger.Info("Driver: %s", cfg.Driver.Type)

	reg, err := config.CreateRegistry(ctx, &cfg.Registry)
	if err != nil {
		return fmt.Errorf("failed to create registry: %w", err)
	}
	defer func() {
		if err := reg.Close(); err != nil {
			logger.Error("Registry close error: %v", err)
		}
	}()
	logger.Info("Handle registry: %s", cfg.Registry.Type)

	scopes, err := config.CreateScope(&cfg.Scope)
	if err != nil {
		return fmt.Errorf("failed to create scope service: %w", err)
	}

	pick, err := config.CreatePicker(&cfg.Picker, drv)
	if err != nil {
		return fmt.Errorf("failed to create picker: %w", err)
	}
	logger.Info("Picker: %s", cfg.Picker.Type)

	svc, err := bridge.New(bridge.Config{
		Registry: reg,
		Driver:   drv,
		Scopes:   scopes,
		Picker:   pick,
		Metrics:  metricsResult.Metrics,
	})
	if err != nil {
		return err
	}

	dispatcher := bridge.NewDispatcher(svc,
		bridge.WithRateLimiter(config.CreateRateLimiter(&cfg.Bridge.RateLimit)),
		bridge.WithMetrics(metricsResult.Metrics),
	)

	opts := []server.Option{server.WithShutdownTimeout(cfg.Server.ShutdownTimeout)}
	if metricsResult.Server != nil {
		logger.Info("Metrics enabled on port %d", cfg.Server.Metrics.Port)
		opts = append(opts, server.WithService(metricsResult.Server))
	} else {
		logger.Info("Metrics collection disabled")
	}
	srv := server.New(dispatcher, opts...)

	adapters, err := config.CreateAdapters(cfg, metricsResult.Metrics)
	if err != nil {
		return fmt.Errorf("failed to create adapters: %w", err)
	}
	for _, adapter := range adapters {
		if err := srv.AddAdapter(adapter); err != nil {
			return fmt.Errorf("failed to add %s adapter: %w", adapter.Protocol(), err)
		}
		logger.Info("Adapter enabled: %s on %s", adapter.Protocol(), adapter.Address())
	}

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- srv.Serve(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	logger.Info("Bridge is running. Press Ctrl+C to stop.")

	select {
	case <-sigChan:
		logger.Info("Shutdown signal received, initiating graceful shutdown")
		cancel()

		if err := <-serverDone; err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Server shutdown error: %v", err)
			return err
		}
		logger.Info("Bridge stopped gracefully")

	case err := <-serverDone:
		if err != nil {
			logger.Error("Server error: %v", err)
			return err
		}
		logger.Info("Bridge stopped")
	}

	return nil
}

// getConfigSource returns a description of where the config was loaded from.
func getConfigSource(configFile string) string {
	if configFile != "" {
		return configFile
	}
	if config.ConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return "defaults"
}
