// Command trainerctl replays recorded sessions through the jump detector
// and issues access tokens for devices.
package main

import (
	"os"

	"backend-mtbtrainer/internal/config"
	"backend-mtbtrainer/internal/db"

	"github.com/spf13/cobra"
)

var (
	loadConfig   = config.Load
	connectRedis = db.ConnectRedis
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "trainerctl",
		Short:         "Offline tools for the MTB trainer backend",
		SilenceUsage: true,
	}
	root.AddCommand(newReplayCmd(), newTokenCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
