package cmd

import (
	"github.com/spf13/cobra"
)

func newTypesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List the type tag mapping",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := opts.openStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			for _, entry := range store.Types() {
				cmd.Printf("%d\t%s\n", entry.Tag, entry.Name)
			}
			return nil
		},
	}
}
