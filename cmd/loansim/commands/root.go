package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	csvPath string
	dataset string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "loansim",
	Short: "Peer-to-peer lending portfolio backtester",
	Long: `loansim - historical peer-to-peer lending backtests

Replays LendingClub loan histories month by month against pluggable
buy strategies and reports portfolio performance.

Usage:
  go run ./cmd/loansim [command]

Examples:
  go run ./cmd/loansim fetch
  go run ./cmd/loansim backtest --start 2009-01 --end 2011-12
  go run ./cmd/loansim sweep --start 2009-01 --end 2011-12
  go run ./cmd/loansim api`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&csvPath, "csv", "", "load the loan pool from this CSV file directly")
	rootCmd.PersistentFlags().StringVar(&dataset, "dataset", "training", "named dataset to load (training|testing)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
