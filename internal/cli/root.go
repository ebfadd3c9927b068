package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"burn.note/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string

	config *config.Config
}

// NewRootCommand creates the root command. Running it without a subcommand
// starts the server.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "burnnote",
		Short:         "Messages that can be read once, by one reader",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.ConfigPath)
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			opts.config = cfg
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to config file")

	serve := NewServeCommand(opts)
	cmd.RunE = serve.RunE
	cmd.AddCommand(serve)
	cmd.AddCommand(NewPurgeCommand(opts))

	return cmd
}
