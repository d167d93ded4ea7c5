package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thegator/loansim/internal/strategy"
)

// strategiesCmd represents the strategies command
var strategiesCmd = &cobra.Command{
	Use:   "strategies",
	Short: "List the available buy strategies",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("📋 Buy Strategies")
		fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		for _, info := range strategy.List() {
			fmt.Printf("%-12s %s\n", info.Tag, info.Label)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(strategiesCmd)
}
