// Package config loads the nodes configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/chazu/nodes/internal/logging"
	"github.com/chazu/nodes/pkg/graph"
	"gopkg.in/yaml.v3"
)

// Config is the contents of a nodes.yaml file.
type Config struct {
	Log     LogConfig          `yaml:"log"`
	Engine  EngineConfig       `yaml:"engine"`
	Context map[string]float64 `yaml:"context"` // default evaluation bindings
}

// LogConfig selects logger level and output format.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// EngineConfig tunes the script engine.
type EngineConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Log:    LogConfig{Level: "info", Format: "text"},
		Engine: EngineConfig{Timeout: 5 * time.Second},
	}
}

// Load reads path on top of the defaults. A missing file is an error; pass
// an empty path to get the defaults alone.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every invalid field.
func (c Config) Validate() error {
	var errs []error
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}
	if c.Engine.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("engine.timeout: must be positive, got %s", c.Engine.Timeout))
	}
	return errors.Join(errs...)
}

// EvalContext returns the configured default bindings as an evaluation context.
func (c Config) EvalContext() graph.Context {
	return graph.ContextFrom(c.Context)
}
