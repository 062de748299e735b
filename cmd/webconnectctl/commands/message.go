package commands

import (
	"fmt"
	"time"

	"github.com/better-wallet/webconnect/internal/crypto"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"
)

func messageCmd() *cobra.Command {
	var at string
	cmd := &cobra.Command{
		Use:   "message <delegate>",
		Short: "Print the message an owner signs to authorize a delegate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !common.IsHexAddress(args[0]) {
				return fmt.Errorf("invalid delegate address %q", args[0])
			}
			delegate := common.HexToAddress(args[0])

			now := time.Now()
			if at != "" {
				t, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("invalid --at: %w", err)
				}
				now = t
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "preimage: %s\n", crypto.DelegateMessagePreimage(delegate, now))
			fmt.Fprintf(out, "hash:     %s\n", hexutil.Encode(crypto.DelegateMessage(delegate, now)))
			return nil
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "RFC 3339 time to build the message for (default: now)")
	return cmd
}
