package config

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/marmos91/fsbridge/internal/logger"
	"github.com/marmos91/fsbridge/internal/ratelimiter"
	"github.com/marmos91/fsbridge/pkg/driver"
	"github.com/marmos91/fsbridge/pkg/driver/local"
	s3driver "github.com/marmos91/fsbridge/pkg/driver/s3"
	"github.com/marmos91/fsbridge/pkg/picker"
	"github.com/marmos91/fsbridge/pkg/picker/terminal"
	"github.com/marmos91/fsbridge/pkg/registry"
	"github.com/marmos91/fsbridge/pkg/registry/badger"
	"github.com/marmos91/fsbridge/pkg/scope"
	"github.com/mitchellh/mapstructure"
)

// decode decodes a backend option map into out, accepting duration
// strings and tolerating the type drift of YAML and environment input.
func decode(options map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	return decoder.Decode(options)
}

// CreateDriver creates the file-system driver selected by cfg.Type.
//
// Supported types:
//   - "local": the host file system, optionally jailed under base_path
//   - "memory": an empty in-memory file system
//   - "s3": an S3 or S3-compatible bucket
func CreateDriver(ctx context.Context, cfg *DriverConfig) (driver.Driver, error) {
	switch cfg.Type {
	case "local":
		return createLocalDriver(ctx, cfg.Local)
	case "memory":
		return local.NewMemory(), nil
	case "s3":
		return createS3Driver(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown driver type: %q (supported: local, memory, s3)", cfg.Type)
	}
}

func createLocalDriver(ctx context.Context, options map[string]any) (driver.Driver, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type LocalDriverOptions struct {
		BasePath string `mapstructure:"base_path"`
	}

	var opts LocalDriverOptions
	if err := decode(options, &opts); err != nil {
		return nil, fmt.Errorf("failed to decode local driver options: %w", err)
	}

	if opts.BasePath != "" {
		logger.Info("Local driver jailed under %s", opts.BasePath)
	}
	return local.NewOS(opts.BasePath), nil
}

func createS3Driver(ctx context.Context, options map[string]any) (driver.Driver, error) {
	type S3DriverOptions struct {
		Region          string `mapstructure:"region"`
		Bucket          string `mapstructure:"bucket"`
		KeyPrefix       string `mapstructure:"key_prefix"`
		Endpoint        string `mapstructure:"endpoint"`
		AccessKeyID     string `mapstructure:"access_key_id"`
		SecretAccessKey string `mapstructure:"secret_access_key"`
		ForcePathStyle  bool   `mapstructure:"force_path_style"`
		MaxRetries      int    `mapstructure:"max_retries"`
	}

	var opts S3DriverOptions
	if err := decode(options, &opts); err != nil {
		return nil, fmt.Errorf("failed to decode S3 driver options: %w", err)
	}

	if opts.Bucket == "" {
		return nil, fmt.Errorf("S3 driver: bucket is required")
	}
	if opts.Region == "" {
		return nil, fmt.Errorf("S3 driver: region is required")
	}

	// ========================================================================
	// Step 1: Build AWS Config
	// ========================================================================

	configOptions := []func(*awsConfig.LoadOptions) error{
		awsConfig.WithRegion(opts.Region),
	}

	// Static credentials when provided, otherwise the default chain
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		configOptions = append(configOptions, awsConfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	maxRetries := opts.MaxRetries
	if maxRetries == 0 {
		maxRetries = 10
	}
	configOptions = append(configOptions, awsConfig.WithRetryer(func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxAttempts = maxRetries
		})
	}))

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// ========================================================================
	// Step 2: Create S3 Client
	// ========================================================================

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			// MinIO and Localstack need path-style addressing
			o.UsePathStyle = true
		}
		if opts.ForcePathStyle {
			o.UsePathStyle = true
		}
	})

	// ========================================================================
	// Step 3: Create S3 Driver
	// ========================================================================

	drv, err := s3driver.New(ctx, s3driver.Config{
		Client:    client,
		Bucket:    opts.Bucket,
		KeyPrefix: opts.KeyPrefix,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 driver: %w", err)
	}

	logger.Info("S3 driver initialized: bucket=%s, region=%s, prefix=%s",
		opts.Bucket, opts.Region, opts.KeyPrefix)

	return drv, nil
}

// CreateRegistry creates the handle registry selected by cfg.Type.
//
// Supported types:
//   - "memory": identifiers live as long as the process
//   - "badger": identifiers persist in BadgerDB
func CreateRegistry(ctx context.Context, cfg *RegistryConfig) (registry.Registry, error) {
	switch cfg.Type {
	case "memory":
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return registry.NewMemory(), nil
	case "badger":
		var opts badger.Config
		if err := decode(cfg.Badger, &opts); err != nil {
			return nil, fmt.Errorf("failed to decode badger registry options: %w", err)
		}
		reg, err := badger.New(ctx, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to create badger registry: %w", err)
		}
		return reg, nil
	default:
		return nil, fmt.Errorf("unknown registry type: %q (supported: memory, badger)", cfg.Type)
	}
}

// CreateScope creates the scope service selected by cfg.Type.
func CreateScope(cfg *ScopeConfig) (scope.Service, error) {
	switch cfg.Type {
	case "allow_all":
		return scope.NewAllowAll(), nil
	case "rooted":
		if len(cfg.AllowedRoots) == 0 {
			return nil, fmt.Errorf("rooted scope: allowed_roots is empty")
		}
		return scope.NewRooted(cfg.AllowedRoots...), nil
	default:
		return nil, fmt.Errorf("unknown scope type: %q (supported: allow_all, rooted)", cfg.Type)
	}
}

// CreatePicker creates the picker selected by cfg.Type. The terminal
// picker browses drv.
func CreatePicker(cfg *PickerConfig, drv driver.Driver) (picker.Picker, error) {
	switch cfg.Type {
	case "terminal":
		var opts terminal.Config
		if err := decode(cfg.Terminal, &opts); err != nil {
			return nil, fmt.Errorf("failed to decode terminal picker options: %w", err)
		}
		return terminal.New(drv, opts, nil), nil
	case "static":
		var p picker.Static
		if err := decode(cfg.Static, &p); err != nil {
			return nil, fmt.Errorf("failed to decode static picker options: %w", err)
		}
		return &p, nil
	default:
		return nil, fmt.Errorf("unknown picker type: %q (supported: terminal, static)", cfg.Type)
	}
}

// CreateRateLimiter returns the dispatcher limiter, or nil when rate
// limiting is disabled.
func CreateRateLimiter(cfg *RateLimitConfig) *ratelimiter.RateLimiter {
	if !cfg.Enabled {
		return nil
	}
	return ratelimiter.New(cfg.RequestsPerSecond, cfg.Burst)
}
