// Package commands implements webconnectctl, an offline helper for pairing
// codes, wire sessions and delegate messages.
package commands

import (
	"encoding/json"
	"io"

	"github.com/better-wallet/webconnect/internal/config"
	"github.com/spf13/cobra"
)

type options struct {
	configPath string
	cfg        *config.Config
}

// Execute runs the root command
func Execute() error {
	return NewRootCommand().Execute()
}

// NewRootCommand builds the command tree
func NewRootCommand() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:          "webconnectctl",
		Short:        "Inspect WalletConnect pairings and delegate registrations",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Read(opts.configPath)
			if err != nil {
				return err
			}
			opts.cfg = cfg
			return nil
		},
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "TOML config file (default: environment only)")

	root.AddCommand(pairCmd(), sessionCmd(opts), messageCmd(), chainsCmd(opts))
	return root
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
