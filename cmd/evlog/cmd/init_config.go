package cmd

import (
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/itm/eventstore/pkg/config"
)

func newInitConfigCmd(opts *rootOptions) *cobra.Command {
	var force bool

	initCmd := &cobra.Command{
		Use:   "init-config",
		Short: "Write a default configuration file",
		Long: `Write a default configuration file to --config, or to the platform
default location when --config is not given. --base-path and --backend
are stored in the file.

Example:
  evlog init-config --config ./evlog.yaml --base-path ./data/events`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := opts.configPath
			if path == "" {
				path = config.GetDefaultConfigPath()
			}
			if config.ConfigExists(path) && !force {
				return errors.Newf("config file %s already exists, use --force to overwrite", path)
			}

			cfg := config.DefaultConfig()
			if opts.basePath != "" {
				cfg.BasePath = opts.basePath
			}
			if opts.backend != "" {
				cfg.Backend = opts.backend
			}
			if err := config.SaveConfig(cfg, path); err != nil {
				return err
			}

			cmd.Printf("Wrote config to %s\n", path)
			return nil
		},
	}

	initCmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing config file")
	return initCmd
}
