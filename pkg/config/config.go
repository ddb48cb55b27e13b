/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/itm/eventstore/pkg/eventstore"
	"github.com/itm/eventstore/pkg/serde"
)

// Config represents the evlog configuration file
type Config struct {
	BasePath      string  `yaml:"base_path"`
	Backend       string  `yaml:"backend"`
	ReadOnly      bool    `yaml:"read_only"`
	Monotonic     bool    `yaml:"monotonic"`
	DataBlockSize int     `yaml:"data_block_size"`
	TagAssignment string  `yaml:"tag_assignment"`
	FsyncInterval string  `yaml:"fsync_interval"`
	Cycling       Cycling `yaml:"cycling"`
	Logging       Logging `yaml:"logging"`
}

// Cycling contains file backend segment rolling options
type Cycling struct {
	Enabled bool   `yaml:"enabled"`
	Length  string `yaml:"length"`
	Format  string `yaml:"format"`
}

// Logging contains logging configuration
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		BasePath:      "./data/events",
		Backend:       string(eventstore.BackendFile),
		Monotonic:     true,
		DataBlockSize: eventstore.DefaultDataBlockSize,
		TagAssignment: string(eventstore.TagAssignmentEager),
		FsyncInterval: "0s",
		Cycling: Cycling{
			Enabled: false,
			Length:  "24h",
			Format:  "20060102",
		},
		Logging: Logging{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig loads configuration from the specified path
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, errors.Newf("config file does not exist: %s", configPath)
	}

	if !filepath.IsAbs(configPath) {
		absPath, err := filepath.Abs(configPath)
		if err != nil {
			return nil, errors.Wrap(err, "invalid config path")
		}
		configPath = absPath
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	// Fields missing from the file keep their defaults
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	return config, nil
}

// SaveConfig saves the configuration to the specified path with secure permissions
func SaveConfig(config *Config, configPath string) error {
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0750); err != nil {
		return errors.Wrap(err, "failed to create config directory")
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return errors.Wrap(err, "failed to write config file")
	}

	return nil
}

// GetDefaultConfigPath returns the default configuration path for the current platform
func GetDefaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./evlog.yaml"
	}

	// For Linux/macOS, use ~/.config/evlog/config.yaml
	configDir := filepath.Join(homeDir, ".config", "evlog")
	return filepath.Join(configDir, "config.yaml")
}

// ConfigExists checks if a configuration file exists
func ConfigExists(configPath string) bool {
	_, err := os.Stat(configPath)
	return !os.IsNotExist(err)
}

// ToStoreConfig converts the file configuration into an event store
// configuration using the given serializers
func (c *Config) ToStoreConfig(serializers *serde.Set, logger *slog.Logger) (eventstore.Config, error) {
	cfg := eventstore.DefaultConfig()
	cfg.BasePath = c.BasePath
	cfg.Backend = eventstore.Backend(c.Backend)
	cfg.ReadOnly = c.ReadOnly
	cfg.Monotonic = c.Monotonic
	cfg.DataBlockSize = c.DataBlockSize
	cfg.TagAssignment = eventstore.TagAssignment(c.TagAssignment)
	cfg.Serializers = serializers
	cfg.Logger = logger

	var err error
	if cfg.FsyncInterval, err = parseDuration(c.FsyncInterval); err != nil {
		return eventstore.Config{}, errors.Wrap(err, "invalid fsync_interval")
	}

	cfg.Cycling = c.Cycling.Enabled
	if c.Cycling.Length != "" {
		if cfg.CycleLength, err = parseDuration(c.Cycling.Length); err != nil {
			return eventstore.Config{}, errors.Wrap(err, "invalid cycling.length")
		}
	}
	if c.Cycling.Format != "" {
		cfg.CycleFormat = c.Cycling.Format
	}

	return cfg, cfg.Validate()
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}

// NewLogger builds the slog logger described by the logging section
func (l Logging) NewLogger(w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	switch strings.ToLower(l.Level) {
	case "", "info":
		level = slog.LevelInfo
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, errors.Newf("unknown log level %q", l.Level)
	}

	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(l.Format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, errors.Newf("unknown log format %q", l.Format)
	}
}
