package commands

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/thegator/loansim/internal/backtest"
	"github.com/thegator/loansim/internal/strategy"
	"github.com/thegator/loansim/pkg/config"
	"github.com/thegator/loansim/pkg/logger"
)

// sweepCmd represents the sweep command
var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run every strategy over the same period and compare",
	Long: `Runs one backtest per strategy concurrently over the shared loan
pool and prints a comparison table.

Example:
  go run ./cmd/loansim sweep --start 2009-01 --end 2011-12
  go run ./cmd/loansim sweep --strategies topn,zerobuy`,
	RunE: runSweep,
}

var (
	sweepStrategies string
)

func init() {
	rootCmd.AddCommand(sweepCmd)

	// Reuse the backtest period/sizing flags
	sweepCmd.Flags().StringVar(&btStart, "start", "", "first simulated month (YYYY-MM)")
	sweepCmd.Flags().StringVar(&btEnd, "end", "", "last simulated month inclusive (YYYY-MM)")
	sweepCmd.Flags().Float64Var(&btCash, "cash", 0, "initial cash")
	sweepCmd.Flags().Float64Var(&btBuySize, "buy-size", 0, "investment per loan")
	sweepCmd.Flags().Float64Var(&btLiquidity, "liquidity", -1, "liquidity limit in [0,1]")
	sweepCmd.Flags().StringVar(&sweepStrategies, "strategies", "", "comma-separated strategy tags (default: all)")
}

type sweepRun struct {
	tag    string
	result *backtest.Result
	err    error
}

func runSweep(cmd *cobra.Command, args []string) error {
	fmt.Println("=== loansim Strategy Sweep ===")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg)

	ctx := context.Background()

	pool, err := loadPool(ctx, cfg, log)
	if err != nil {
		return err
	}
	months := pool.Months()
	if len(months) == 0 {
		return fmt.Errorf("loan pool is empty")
	}

	ec, err := engineConfigFromFlags(cfg, months[0], months[len(months)-1])
	if err != nil {
		return err
	}

	var tags []string
	if sweepStrategies != "" {
		tags = strings.Split(sweepStrategies, ",")
	} else {
		for _, info := range strategy.List() {
			tags = append(tags, info.Tag)
		}
	}

	// One engine per strategy; the pool is shared read-only, every engine
	// owns its investor, so the runs are independent.
	runs := make([]sweepRun, len(tags))
	var wg sync.WaitGroup
	for i, tag := range tags {
		wg.Add(1)
		go func(i int, tag string) {
			defer wg.Done()
			runs[i] = sweepRun{tag: tag}

			solver, err := strategy.New(strings.TrimSpace(tag))
			if err != nil {
				runs[i].err = err
				return
			}
			engine, err := backtest.NewEngine(ec, pool, solver, log)
			if err != nil {
				runs[i].err = err
				return
			}
			runs[i].result, runs[i].err = engine.Run(ctx)
		}(i, tag)
	}
	wg.Wait()

	sort.Slice(runs, func(i, j int) bool {
		if runs[i].result == nil || runs[j].result == nil {
			return runs[i].result != nil && runs[j].result == nil
		}
		return runs[i].result.Summary.FinalNetWorth > runs[j].result.Summary.FinalNetWorth
	})

	fmt.Printf("\n📊 Sweep: %s .. %s, cash %.0f, buy size %.0f\n", ec.StartMonth, ec.EndMonth, ec.InitialCash, ec.BuySize)
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("%-12s %12s %10s %8s %8s %8s\n", "strategy", "final worth", "annual", "sharpe", "loans", "defaults")

	for _, run := range runs {
		if run.err != nil {
			fmt.Printf("%-12s ❌ %v\n", run.tag, run.err)
			continue
		}
		s := run.result.Summary
		fmt.Printf("%-12s %12.2f %10s %8s %8d %8d\n",
			run.tag, s.FinalNetWorth, sweepPct(s.AnnualizedReturn), sweepNum(s.SharpeRatio), s.LoansAcquired, s.Defaults)
	}
	fmt.Println()

	return nil
}

func sweepPct(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.2f%%", v*100)
}

func sweepNum(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", v)
}
