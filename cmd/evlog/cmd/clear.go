package cmd

import (
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

func newClearCmd(opts *rootOptions) *cobra.Command {
	var force bool

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every event from the log",
		Long: `Remove every event from the log. The type mapping is kept.

Example:
  evlog clear --force`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				return errors.New("refusing to clear the log without --force")
			}

			store, err := opts.openStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			removed := store.Size()
			if err := store.Clear(); err != nil {
				return errors.Wrap(err, "failed to clear log")
			}
			cmd.Printf("Removed %d events\n", removed)
			return nil
		},
	}

	clearCmd.Flags().BoolVarP(&force, "force", "f", false, "Confirm removal of every event")
	return clearCmd
}
