package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/thegator/loansim/internal/backtest"
	"github.com/thegator/loansim/internal/loan"
	"github.com/thegator/loansim/internal/report"
	"github.com/thegator/loansim/internal/strategy"
	"github.com/thegator/loansim/pkg/config"
	"github.com/thegator/loansim/pkg/logger"
)

// backtestCmd represents the backtest command
var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Run one backtest",
	Long: `Replays the loan pool month by month against one buy strategy.

The pool is resolved from --csv, the redis cache, postgres, or the
local data directory, in that order.

Example:
  go run ./cmd/loansim backtest --start 2009-01 --end 2011-12
  go run ./cmd/loansim backtest --strategy filtered --cash 5000
  go run ./cmd/loansim backtest --out-csv series.csv --out-json result.json`,
	RunE: runBacktest,
}

var (
	// Backtest flags
	btStrategy  string
	btStart     string
	btEnd       string
	btCash      float64
	btBuySize   float64
	btLiquidity float64
	btOutCSV    string
	btOutJSON   string
)

func init() {
	rootCmd.AddCommand(backtestCmd)

	// Flags
	backtestCmd.Flags().StringVar(&btStrategy, "strategy", "topn", "buy strategy tag (see 'loansim strategies')")
	backtestCmd.Flags().StringVar(&btStart, "start", "", "first simulated month (YYYY-MM), default: first pool month")
	backtestCmd.Flags().StringVar(&btEnd, "end", "", "last simulated month inclusive (YYYY-MM), default: last pool month")
	backtestCmd.Flags().Float64Var(&btCash, "cash", 0, "initial cash (default from SIM_INITIAL_CASH)")
	backtestCmd.Flags().Float64Var(&btBuySize, "buy-size", 0, "investment per loan (default from SIM_BUY_SIZE)")
	backtestCmd.Flags().Float64Var(&btLiquidity, "liquidity", -1, "liquidity limit in [0,1] (default from SIM_LIQUIDITY_LIMIT)")
	backtestCmd.Flags().StringVar(&btOutCSV, "out-csv", "", "write the monthly series to this CSV file")
	backtestCmd.Flags().StringVar(&btOutJSON, "out-json", "", "write the full result to this JSON file")
}

// engineConfigFromFlags resolves flags against configured defaults and the
// pool's own month span.
func engineConfigFromFlags(cfg *config.Config, firstPoolMonth, lastPoolMonth loan.Month) (backtest.Config, error) {
	ec := backtest.Config{
		StartMonth:     firstPoolMonth,
		EndMonth:       lastPoolMonth,
		InitialCash:    cfg.Sim.InitialCash,
		BuySize:        cfg.Sim.BuySize,
		LiquidityLimit: cfg.Sim.LiquidityLimit,
		FeeRate:        cfg.Sim.FeeRate,
	}

	if btStart != "" {
		m, err := loan.ParseMonth(btStart)
		if err != nil {
			return ec, fmt.Errorf("--start: %w", err)
		}
		ec.StartMonth = m
	}
	if btEnd != "" {
		m, err := loan.ParseMonth(btEnd)
		if err != nil {
			return ec, fmt.Errorf("--end: %w", err)
		}
		ec.EndMonth = m
	}
	if btCash > 0 {
		ec.InitialCash = btCash
	}
	if btBuySize > 0 {
		ec.BuySize = btBuySize
	}
	if btLiquidity >= 0 {
		ec.LiquidityLimit = btLiquidity
	}
	return ec, nil
}

func runBacktest(cmd *cobra.Command, args []string) error {
	fmt.Println("=== loansim Backtest ===")

	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	ctx := context.Background()

	// 3. Load the loan pool
	pool, err := loadPool(ctx, cfg, log)
	if err != nil {
		return err
	}
	months := pool.Months()
	if len(months) == 0 {
		return fmt.Errorf("loan pool is empty")
	}

	// 4. Resolve run parameters
	ec, err := engineConfigFromFlags(cfg, months[0], months[len(months)-1])
	if err != nil {
		return err
	}

	// 5. Build the strategy
	solver, err := strategy.New(btStrategy)
	if err != nil {
		return err
	}

	// 6. Run
	engine, err := backtest.NewEngine(ec, pool, solver, log)
	if err != nil {
		return err
	}
	result, err := engine.Run(ctx)
	if err != nil {
		return fmt.Errorf("backtest: %w", err)
	}

	// 7. Report
	fmt.Println()
	report.PrintSummary(os.Stdout, result)

	if btOutCSV != "" {
		if err := report.WriteSeriesCSV(btOutCSV, result.Series); err != nil {
			return fmt.Errorf("write %s: %w", btOutCSV, err)
		}
		fmt.Printf("📄 Series written to %s\n", btOutCSV)
	}
	if btOutJSON != "" {
		if err := report.WriteResultJSON(btOutJSON, result); err != nil {
			return fmt.Errorf("write %s: %w", btOutJSON, err)
		}
		fmt.Printf("📄 Result written to %s\n", btOutJSON)
	}

	return nil
}
