package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func chainsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "chains",
		Short: "Print the chains delegates are registered on",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, id := range opts.cfg.ChainIDs {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}
}
