package cmd

import (
	"github.com/spf13/cobra"
)

func newStatsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show store statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := opts.openStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			records := store.Size()
			payload, err := store.PayloadByteSize()
			if err != nil {
				return err
			}
			cfg := store.Config()

			cmd.Printf("Base path:     %s\n", cfg.BasePath)
			cmd.Printf("Backend:       %s\n", cfg.Backend)
			cmd.Printf("Session:       %s\n", store.SessionID())
			cmd.Printf("Records:       %d\n", records)
			cmd.Printf("Payload bytes: %d\n", payload)
			cmd.Printf("Types:         %d\n", len(store.Types()))
			return nil
		},
	}
}
