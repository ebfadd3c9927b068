package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewPurgeCommand removes expired messages once and exits. It is meant for
// cron when the in-process sweeper is disabled.
func NewPurgeCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Delete expired and stale messages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(opts.config)
			if err != nil {
				return err
			}
			defer st.Close()

			removed, err := newEngine(st, opts.config, zap.NewNop()).Purge(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired messages\n", removed)
			return nil
		},
	}
}
