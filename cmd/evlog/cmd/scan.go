package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/itm/eventstore/pkg/eventstore"
)

func newScanCmd(opts *rootOptions) *cobra.Command {
	var (
		from  int64
		to    int64
		limit int
	)

	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Print events in write order",
		Long: `Print events in write order, optionally restricted to a time range.
Timestamps are milliseconds since the epoch and both bounds are inclusive.

Examples:
  evlog scan
  evlog scan --from 1700000000000
  evlog scan --from 1700000000000 --to 1700000600000 --limit 10`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := opts.openStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			var it *eventstore.Iterator
			switch {
			case cmd.Flags().Changed("to"):
				it, err = store.ReadRange(from, to)
			case cmd.Flags().Changed("from"):
				it, err = store.ReadFrom(from)
			default:
				it, err = store.ReadAll()
			}
			if err != nil {
				return err
			}
			defer it.Close()

			printed := 0
			for it.HasNext() && (limit <= 0 || printed < limit) {
				ev, err := it.Next()
				if err != nil {
					return err
				}
				cmd.Println(formatEvent(ev))
				printed++
			}
			return it.Err()
		},
	}

	scanCmd.Flags().Int64Var(&from, "from", 0, "Lowest timestamp to include")
	scanCmd.Flags().Int64Var(&to, "to", 0, "Highest timestamp to include")
	scanCmd.Flags().IntVarP(&limit, "limit", "n", 0, "Stop after this many events (0 = no limit)")
	return scanCmd
}

func formatEvent(ev eventstore.Event) string {
	stamp := ev.Time().UTC().Format(time.RFC3339Nano)
	switch v := ev.Value.(type) {
	case Note:
		return fmt.Sprintf("%d\t%s\tnote\t%s %s", ev.Timestamp, stamp, v.ID, v.Text)
	default:
		return fmt.Sprintf("%d\t%s\t%s\t%v", ev.Timestamp, stamp, ev.Type, v)
	}
}
