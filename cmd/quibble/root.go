package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/quibbleopt/quibble/internal/logging"
)

var (
	logLevel string
	logger   *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "quibble",
	Short: "Nonlinear program solver",
	Long: `Quibble solves nonlinear programs described as expression graphs:
bounded decision variables, interval constraints, and a single objective,
minimized over randomized multistart trials.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger = logging.New(logging.ParseLevel(logLevel), os.Stderr)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
}
