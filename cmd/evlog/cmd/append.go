package cmd

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

func newAppendCmd(opts *rootOptions) *cobra.Command {
	var (
		ts       int64
		typeName string
	)

	appendCmd := &cobra.Command{
		Use:   "append <text>...",
		Short: "Append an event",
		Long: `Append one event to the log. The arguments are joined with spaces.

Examples:
  evlog append "order placed"
  evlog append --type note --ts 1700000000000 "deploy finished"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if ts == 0 {
				ts = time.Now().UnixMilli()
			}

			var value any
			switch typeName {
			case "string":
				value = text
			case "note":
				value = newNote(text)
			default:
				return errors.Newf("unknown event type %q, want string or note", typeName)
			}

			store, err := opts.openStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			name := typeString
			if typeName == "note" {
				name = typeNote
			}
			if err := store.StoreAsAt(value, name, ts); err != nil {
				return errors.Wrap(err, "failed to append event")
			}

			cmd.Printf("Appended %s event at %d\n", typeName, ts)
			return nil
		},
	}

	appendCmd.Flags().Int64Var(&ts, "ts", 0, "Timestamp in milliseconds since the epoch (default now)")
	appendCmd.Flags().StringVarP(&typeName, "type", "t", "string", "Event type: string or note")
	return appendCmd
}
