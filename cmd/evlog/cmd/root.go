/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/itm/eventstore/pkg/config"
	"github.com/itm/eventstore/pkg/di"
	"github.com/itm/eventstore/pkg/eventstore"
)

var container *di.Container

// SetContainer injects the dependency container used by all commands
func SetContainer(c *di.Container) {
	container = c
}

func getContainer() *di.Container {
	if container == nil {
		container = di.NewContainer()
	}
	return container
}

// rootOptions holds the persistent flags shared by every command
type rootOptions struct {
	configPath string
	basePath   string
	backend    string
	readOnly   bool
}

// NewRootCmd builds the evlog command tree
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "evlog",
		Short: "evlog - embedded timestamped event log",
		Long: `evlog appends timestamped events to an append-only log and replays
them in write order, optionally restricted to a time range.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVarP(&opts.basePath, "base-path", "b", "", "Base path of the log files (overrides config)")
	rootCmd.PersistentFlags().StringVar(&opts.backend, "backend", "", "Log backend: file or pebble (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&opts.readOnly, "read-only", false, "Open the store read-only")

	rootCmd.AddCommand(
		newAppendCmd(opts),
		newScanCmd(opts),
		newStatsCmd(opts),
		newTypesCmd(opts),
		newClearCmd(opts),
		newInitConfigCmd(opts),
	)
	return rootCmd
}

// Execute runs the root command. This is called by main.main().
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file, if any, and applies flag overrides
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if o.configPath != "" {
		loaded, err := config.LoadConfig(o.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if o.basePath != "" {
		cfg.BasePath = o.basePath
	}
	if o.backend != "" {
		cfg.Backend = o.backend
	}
	if o.readOnly {
		cfg.ReadOnly = true
	}
	return cfg, nil
}

// openStore opens the store described by the flags and config file
func (o *rootOptions) openStore(cmd *cobra.Command) (*eventstore.Store, error) {
	fileCfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := fileCfg.Logging.NewLogger(cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}

	storeCfg, err := fileCfg.ToStoreConfig(serializers(), logger)
	if err != nil {
		return nil, err
	}

	if !storeCfg.ReadOnly {
		if err := os.MkdirAll(filepath.Dir(storeCfg.BasePath), 0750); err != nil {
			return nil, errors.Wrap(err, "failed to create data directory")
		}
	}

	store, err := getContainer().OpenStore(storeCfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open store")
	}
	return store, nil
}
