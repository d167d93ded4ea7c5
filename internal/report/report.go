package report

import (
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/thegator/loansim/internal/backtest"
)

const divider = "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"

// PrintSummary writes a human-readable run report to w.
func PrintSummary(w io.Writer, result *backtest.Result) {
	s := result.Summary

	fmt.Fprintf(w, "📊 Backtest Result — %s\n", result.Strategy)
	fmt.Fprintln(w, divider)
	fmt.Fprintf(w, "%-22s %s .. %s\n", "Period:", result.Config.StartMonth, result.Config.EndMonth)
	fmt.Fprintf(w, "%-22s %d\n", "Months:", s.Months)
	fmt.Fprintf(w, "%-22s %.2f\n", "Initial cash:", result.Config.InitialCash)
	fmt.Fprintf(w, "%-22s %.2f\n", "Final net worth:", s.FinalNetWorth)
	fmt.Fprintf(w, "%-22s %d\n", "Loans acquired:", s.LoansAcquired)
	fmt.Fprintf(w, "%-22s %d\n", "Defaults:", s.Defaults)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "📈 Performance")
	fmt.Fprintln(w, divider)
	fmt.Fprintf(w, "%-22s %s\n", "Annualized return:", fmtPct(s.AnnualizedReturn))
	fmt.Fprintf(w, "%-22s %s\n", "Sharpe ratio:", fmtRatio(s.SharpeRatio))
	fmt.Fprintf(w, "%-22s %s\n", "Default rate:", fmtPct(s.DefaultRate))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "💧 Liquidity")
	fmt.Fprintln(w, divider)
	fmt.Fprintf(w, "%-22s %s\n", "Added / available:", fmtPct(s.TotalLiquidityRatio))
	fmt.Fprintf(w, "%-22s %s\n", "Added / matching:", fmtPct(s.StrategyLiquidityRatio))
	fmt.Fprintf(w, "%-22s %s\n", "Matching / available:", fmtPct(s.StrategyVsTotalRatio))
	fmt.Fprintln(w)

	printDistribution(w, "🏷️  Grades", s.GradeDistribution)
	printDistribution(w, "⚖️  Imbalance", s.ImbalanceDistribution)
	printDistribution(w, "💹 Interest rates", s.RateDistribution)

	fmt.Fprintf(w, "✅ Completed in %.2fs\n", result.Duration.Seconds())
}

func printDistribution(w io.Writer, title string, dist map[string]int) {
	if len(dist) == 0 {
		return
	}

	keys := make([]string, 0, len(dist))
	total := 0
	for k, n := range dist {
		keys = append(keys, k)
		total += n
	}
	sort.Strings(keys)

	fmt.Fprintln(w, title)
	fmt.Fprintln(w, divider)
	for _, k := range keys {
		n := dist[k]
		fmt.Fprintf(w, "%-15s %6d  %5.1f%%\n", k+":", n, 100*float64(n)/float64(total))
	}
	fmt.Fprintln(w)
}

// fmtPct renders a ratio as a percentage, "n/a" when undefined.
func fmtPct(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.2f%%", v*100)
}

func fmtRatio(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", v)
}
