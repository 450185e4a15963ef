package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/marmos91/fsbridge/pkg/transport/httpapi"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// Log level normalization is handled in ApplyDefaults, not here.
// Validation accepts both uppercase and lowercase log levels.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	if !cfg.Adapters.Stream.Enabled && !cfg.Adapters.HTTP.Enabled {
		return fmt.Errorf("adapters: at least one adapter must be enabled")
	}

	if cfg.Adapters.Stream.Enabled && cfg.Adapters.HTTP.Enabled &&
		cfg.Adapters.Stream.Network == "tcp" && cfg.Adapters.Stream.Address == cfg.Adapters.HTTP.Address {
		return fmt.Errorf("adapters: stream and http both listen on %s", cfg.Adapters.HTTP.Address)
	}

	if secret := cfg.Adapters.HTTP.JWT.Secret; secret != "" && len(secret) < httpapi.MinSecretLength {
		return fmt.Errorf("adapters.http.jwt.secret: must be at least %d characters", httpapi.MinSecretLength)
	}

	if cfg.Scope.Type == "rooted" && len(cfg.Scope.AllowedRoots) == 0 {
		return fmt.Errorf("scope: type rooted requires at least one allowed_roots entry")
	}

	if cfg.Driver.Type == "s3" {
		if bucket, _ := cfg.Driver.S3["bucket"].(string); bucket == "" {
			return fmt.Errorf("driver.s3.bucket: required when driver type is s3")
		}
	}

	if cfg.Bridge.RateLimit.Enabled && cfg.Bridge.RateLimit.RequestsPerSecond == 0 {
		return fmt.Errorf("bridge.rate_limit: requests_per_second must be > 0 when enabled")
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
			e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
