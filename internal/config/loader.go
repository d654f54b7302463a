package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/goccy/go-yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// Load builds the configuration from defaults, then the YAML file at path
// (skipped when path is empty), then DIRECTSHAPE_* environment variables.
// Later sources take precedence.
func Load(path string) (*Config, error) {
	l := &loader{
		koanf:     koanf.New("."),
		validator: validator.New(),
	}
	if err := l.loadDefaults(); err != nil {
		return nil, err
	}
	if path != "" {
		if err := l.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := l.loadEnvironment(); err != nil {
		return nil, err
	}
	return l.unmarshalAndValidate()
}

type loader struct {
	koanf     *koanf.Koanf
	validator *validator.Validate
}

func (l *loader) loadDefaults() error {
	if err := l.koanf.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return fmt.Errorf("failed to load defaults: %w", err)
	}
	return nil
}

// loadFile merges a YAML document over the defaults.
func (l *loader) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if len(raw) == 0 {
		return nil
	}
	if err := l.koanf.Load(rawMap(raw), nil); err != nil {
		return fmt.Errorf("failed to apply config file %s: %w", path, err)
	}
	return nil
}

// transformEnvKey converts environment variable names to koanf paths.
// For example: DIRECTSHAPE_KERNEL_MESH_CELLS -> kernel.mesh_cells
func transformEnvKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == '_'
	})
	if len(parts) == 0 {
		return ""
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return parts[0] + "." + strings.Join(parts[1:], "_")
}

func (l *loader) loadEnvironment() error {
	if err := l.koanf.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key string, value string) (string, any) {
			return transformEnvKey(key), value
		},
	}), nil); err != nil {
		return fmt.Errorf("failed to load environment variables: %w", err)
	}
	return nil
}

func (l *loader) unmarshalAndValidate() (*Config, error) {
	var config Config
	if err := l.koanf.UnmarshalWithConf("", &config, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &config,
			TagName:          "koanf",
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
		},
	}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := Validate(l.validator, &config); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks struct tags and cross-field rules.
func Validate(v *validator.Validate, config *Config) error {
	if config == nil {
		return errors.New("configuration cannot be nil")
	}
	if v == nil {
		v = validator.New()
	}
	if err := v.Struct(config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	if info, err := os.Stat(config.Export.Dir); err == nil && !info.IsDir() {
		return fmt.Errorf("configuration validation failed: export.dir %s is not a directory", config.Export.Dir)
	}
	return nil
}

// rawMap is a koanf.Provider adapter for map[string]any data.
type rawMap map[string]any

func (r rawMap) Read() (map[string]any, error) {
	return r, nil
}

func (r rawMap) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("ReadBytes not implemented")
}
