package main

import (
	"os"

	"github.com/better-wallet/webconnect/cmd/webconnectctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
