package commands

import (
	"github.com/better-wallet/webconnect/internal/webconnect"
	"github.com/spf13/cobra"
)

func pairCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pair <code>",
		Short: "Parse a scanned pairing code and print the WalletConnect URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := webconnect.ParsePairingCode(args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), u)
		},
	}
}
