package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const sampleHeader = `# fsbridge Configuration File
#
# Every key can be overridden from the environment with the FSBRIDGE_
# prefix, e.g. FSBRIDGE_LOGGING_LEVEL=DEBUG.
#
# driver.type:   local | memory | s3
# registry.type: memory | badger
# scope.type:    allow_all | rooted
# picker.type:   terminal | static
#
# Only the backend section matching each type is read.

`

// InitConfig writes a sample configuration to the default location and
// returns its path. An existing file is kept unless force is set.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes a sample configuration to path.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
		}
	}

	data, err := renderSample()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func renderSample() ([]byte, error) {
	cfg := GetDefaultConfig()

	secret, err := randomSecret()
	if err != nil {
		return nil, err
	}
	cfg.Adapters.HTTP.JWT.Secret = secret

	body, err := yaml.Marshal(toYAML(reflect.ValueOf(cfg)))
	if err != nil {
		return nil, fmt.Errorf("failed to render config: %w", err)
	}
	return append([]byte(sampleHeader), body...), nil
}

// randomSecret returns 32 random bytes, hex encoded.
func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate JWT secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}

var durationType = reflect.TypeOf(time.Duration(0))

// toYAML mirrors v as plain maps keyed by mapstructure tags, so the output
// reads back through viper. Durations are written as strings.
func toYAML(v reflect.Value) any {
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}

	if v.Type() == durationType {
		return time.Duration(v.Int()).String()
	}

	switch v.Kind() {
	case reflect.Struct:
		out := make(map[string]any)
		for i := 0; i < v.NumField(); i++ {
			field := v.Type().Field(i)
			if !field.IsExported() {
				continue
			}
			name, _, _ := strings.Cut(field.Tag.Get("mapstructure"), ",")
			if name == "-" {
				continue
			}
			if name == "" {
				name = strings.ToLower(field.Name)
			}
			out[name] = toYAML(v.Field(i))
		}
		return out

	case reflect.Map:
		out := make(map[string]any, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			out[fmt.Sprint(iter.Key().Interface())] = toYAML(iter.Value())
		}
		return out

	case reflect.Slice, reflect.Array:
		out := make([]any, v.Len())
		for i := range out {
			out[i] = toYAML(v.Index(i))
		}
		return out

	default:
		return v.Interface()
	}
}
