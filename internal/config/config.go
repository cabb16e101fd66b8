// Package config loads chialvoctl settings: defaults, then a YAML file, then
// environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"chialvo/internal/events"
	"chialvo/internal/logging"
	"chialvo/internal/simulation"
	"chialvo/internal/storage"
)

// Config is the complete chialvoctl configuration.
type Config struct {
	Simulation simulation.Params `json:"simulation" yaml:"simulation"`
	Store      StoreConfig       `json:"store" yaml:"store"`
	Artifacts  ArtifactsConfig   `json:"artifacts" yaml:"artifacts"`
	Stream     StreamConfig      `json:"stream" yaml:"stream"`
	Metrics    MetricsConfig     `json:"metrics" yaml:"metrics"`
	Logging    LoggingConfig     `json:"logging" yaml:"logging"`
}

type StoreConfig struct {
	// Kind is memory, sqlite or postgres.
	Kind string `json:"kind" yaml:"kind"`

	// Path is the sqlite file or the postgres connection string. ${VAR}
	// references are expanded.
	Path string `json:"path" yaml:"path"`
}

type ArtifactsConfig struct {
	Dir       string `json:"dir" yaml:"dir"`
	PlotDir   string `json:"plot_dir,omitempty" yaml:"plot_dir,omitempty"`
	EventRule string `json:"event_rule" yaml:"event_rule"`
}

type StreamConfig struct {
	// Addr is a nanomsg URL such as tcp://127.0.0.1:40899. Empty disables
	// streaming.
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty"`
}

type MetricsConfig struct {
	Textfile string `json:"textfile,omitempty" yaml:"textfile,omitempty"`
}

type LoggingConfig struct {
	Level string `json:"level" yaml:"level"`
}

// Default returns a Config with the reference simulation parameters.
func Default() *Config {
	return &Config{
		Simulation: simulation.DefaultParams(),
		Store: StoreConfig{
			Kind: storage.DefaultStoreKind(),
			Path: "chialvo.db",
		},
		Artifacts: ArtifactsConfig{
			Dir:       "runs",
			EventRule: string(events.RuleLocalMax),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load applies defaults, then path (when non-empty), then environment
// variables.
func Load(path string) (*Config, error) {
	config := Default()
	if path != "" {
		fileConfig, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		config = fileConfig
	}
	if err := applyEnvOverrides(config); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file. Keys missing
// from the file keep their defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	config.Store.Path = expandEnvVars(config.Store.Path)
	return config, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	switch c.Store.Kind {
	case "memory", "sqlite", "postgres":
	default:
		return fmt.Errorf("invalid store kind: %s (valid: memory, sqlite, postgres)", c.Store.Kind)
	}
	if c.Store.Kind != "memory" && strings.TrimSpace(c.Store.Path) == "" {
		return fmt.Errorf("store path is required for %s", c.Store.Kind)
	}
	if strings.TrimSpace(c.Artifacts.Dir) == "" {
		return fmt.Errorf("artifacts dir is required")
	}
	if _, err := events.ParseRule(c.Artifacts.EventRule); err != nil {
		return err
	}
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}
	return c.Simulation.Validate()
}

func applyEnvOverrides(config *Config) error {
	if v := os.Getenv("CHIALVO_STORE"); v != "" {
		config.Store.Kind = v
	}
	if v := os.Getenv("CHIALVO_DB_PATH"); v != "" {
		config.Store.Path = expandEnvVars(v)
	}
	if v := os.Getenv("CHIALVO_ARTIFACTS_DIR"); v != "" {
		config.Artifacts.Dir = v
	}
	if v := os.Getenv("CHIALVO_STREAM_ADDR"); v != "" {
		config.Stream.Addr = v
	}
	if v := os.Getenv("CHIALVO_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	if v := os.Getenv("CHIALVO_SEED"); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("parsing CHIALVO_SEED: %w", err)
		}
		config.Simulation.Seed = seed
	}
	return nil
}

func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}
