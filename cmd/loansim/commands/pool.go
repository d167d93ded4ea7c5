package commands

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/thegator/loansim/pkg/config"
	"github.com/thegator/loansim/pkg/logger"
)

// poolCmd represents the pool command
var poolCmd = &cobra.Command{
	Use:   "pool",
	Short: "Inspect the loaded loan pool",
	Long: `Prints dataset-level aggregates for the resolved loan pool.

Example:
  go run ./cmd/loansim pool
  go run ./cmd/loansim pool --csv data/training.csv`,
	RunE: runPoolInfo,
}

func init() {
	rootCmd.AddCommand(poolCmd)
}

func runPoolInfo(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg)

	pool, err := loadPool(context.Background(), cfg, log)
	if err != nil {
		return err
	}

	months := pool.Months()

	fmt.Println("📊 Loan Pool")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("%-15s %10d\n", "Loans:", pool.Len())
	fmt.Printf("%-15s %10d\n", "Months:", len(months))
	if len(months) > 0 {
		fmt.Printf("%-15s %10s\n", "First:", months[0])
		fmt.Printf("%-15s %10s\n", "Last:", months[len(months)-1])
	}
	fmt.Println()

	byGrade := make(map[string]int)
	defaulted := 0
	for _, row := range pool.Rows() {
		byGrade[string(row.Grade)]++
		if row.Defaulted {
			defaulted++
		}
	}

	grades := make([]string, 0, len(byGrade))
	for g := range byGrade {
		grades = append(grades, g)
	}
	sort.Strings(grades)

	fmt.Println("🏷️  Grades")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	for _, g := range grades {
		fmt.Printf("%-15s %10d\n", g+":", byGrade[g])
	}
	fmt.Println()
	fmt.Printf("%-15s %10d\n", "Defaulted:", defaulted)

	return nil
}
