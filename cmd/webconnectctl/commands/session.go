package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/better-wallet/webconnect/internal/webconnect"
	"github.com/spf13/cobra"
)

func sessionCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "session <file>",
		Short: "Read a wire session (- for stdin) and print the connection it describes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}

			var session webconnect.Session
			if err := json.NewDecoder(r).Decode(&session); err != nil {
				return fmt.Errorf("invalid session: %w", err)
			}

			conn, err := webconnect.NewTransformer(opts.cfg.DefaultChainID).Connection(&session)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), conn)
		},
	}
}
