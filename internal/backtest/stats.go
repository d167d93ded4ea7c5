package backtest

import (
	"fmt"
	"math"
	"sort"

	"github.com/thegator/loansim/internal/loan"
	"github.com/thegator/loansim/pkg/logger"
)

// Summary is the terminal reduction over a run's time series and loan
// lineage. Ratio fields are NaN when their denominator is degenerate; the
// reduction itself never fails.
type Summary struct {
	Months        int     `json:"months"`
	LoansAcquired int     `json:"loans_acquired"`
	Defaults      int     `json:"defaults"`
	FinalNetWorth float64 `json:"final_net_worth"`

	MonthlyReturns   []float64 `json:"monthly_returns"`
	GrowthOfDollar   []float64 `json:"growth_of_dollar"`
	AnnualizedReturn float64   `json:"annualized_return"`
	SharpeRatio      float64   `json:"sharpe_ratio"`
	DefaultRate      float64   `json:"default_rate"`

	// Liquidity: how much of the market the run actually absorbed
	TotalLiquidityRatio    float64 `json:"total_liquidity_ratio"`
	StrategyLiquidityRatio float64 `json:"strategy_liquidity_ratio"`
	StrategyVsTotalRatio   float64 `json:"strategy_vs_total_ratio"`

	// Distributional breakdowns over the full acquisition lineage
	GradeDistribution     map[string]int `json:"grade_distribution"`
	TermDistribution      map[int]int    `json:"term_distribution"`
	RateDistribution      map[string]int `json:"rate_distribution"`
	ImbalanceDistribution map[string]int `json:"imbalance_distribution"`
}

// Summarize reduces the recorded series, the acquisition ledger, and the
// monthly holdings snapshots into terminal aggregates. Degenerate inputs
// (no months, zero variance, zero denominators) produce NaN sentinels
// with a warning, never a panic.
func Summarize(series []MonthStats, ledger []*loan.Loan, snapshots map[loan.Month][]*loan.Loan, log *logger.Logger) Summary {
	held := uniqueHeld(snapshots)

	s := Summary{
		Months:           len(series),
		LoansAcquired:    len(ledger),
		AnnualizedReturn: math.NaN(),
		SharpeRatio:      math.NaN(),
		DefaultRate:      math.NaN(),

		TotalLiquidityRatio:    math.NaN(),
		StrategyLiquidityRatio: math.NaN(),
		StrategyVsTotalRatio:   math.NaN(),

		GradeDistribution:     gradeDistribution(held),
		TermDistribution:      termDistribution(held),
		RateDistribution:      rateDistribution(held),
		ImbalanceDistribution: imbalanceDistribution(ledger),
	}

	if len(series) == 0 {
		log.Warn("Summarize called on an empty series; all aggregates undefined")
		return s
	}

	last := series[len(series)-1]
	s.FinalNetWorth = last.NetWorth
	s.Defaults = last.CumulativeDefaults

	s.MonthlyReturns = monthlyReturns(series)
	s.GrowthOfDollar = growthOfDollar(series, log)
	s.AnnualizedReturn = annualizedReturn(series, log)
	s.SharpeRatio = sharpeRatio(series, log)

	if last.CumulativeLoansHeld > 0 {
		s.DefaultRate = float64(last.CumulativeDefaults) / float64(last.CumulativeLoansHeld)
	} else {
		log.Warn("No loans acquired; default rate undefined")
	}

	var added, matching, available int
	for _, row := range series {
		added += row.LoansAdded
		matching += row.MatchingAvailable
		available += row.TotalAvailable
	}
	if available > 0 {
		s.TotalLiquidityRatio = float64(added) / float64(available)
		s.StrategyVsTotalRatio = float64(matching) / float64(available)
	} else {
		log.Warn("No loans available over the run; liquidity ratios undefined")
	}
	if matching > 0 {
		s.StrategyLiquidityRatio = float64(added) / float64(matching)
	}

	return s
}

// monthlyReturns is the forward one-month return of the net worth series:
// r[t] = (nw[t+1] - nw[t]) / nw[t].
func monthlyReturns(series []MonthStats) []float64 {
	if len(series) < 2 {
		return nil
	}

	returns := make([]float64, 0, len(series)-1)
	for i := 0; i < len(series)-1; i++ {
		prev := series[i].NetWorth
		if prev == 0 {
			returns = append(returns, math.NaN())
			continue
		}
		returns = append(returns, (series[i+1].NetWorth-prev)/prev)
	}
	return returns
}

// growthOfDollar normalizes the net worth series to its initial value.
func growthOfDollar(series []MonthStats, log *logger.Logger) []float64 {
	initial := series[0].NetWorth
	growth := make([]float64, len(series))

	if initial == 0 {
		log.Warn("Initial net worth is zero; growth-of-$1 undefined")
		for i := range growth {
			growth[i] = math.NaN()
		}
		return growth
	}

	for i, row := range series {
		growth[i] = row.NetWorth / initial
	}
	return growth
}

// annualizedReturn is the CAGR of net worth over the simulated span.
func annualizedReturn(series []MonthStats, log *logger.Logger) float64 {
	if len(series) < 2 {
		return math.NaN()
	}

	initial := series[0].NetWorth
	final := series[len(series)-1].NetWorth
	if initial <= 0 || final <= 0 {
		log.Warn("Non-positive net worth endpoint; annualized return undefined")
		return math.NaN()
	}

	months := float64(len(series) - 1)
	return math.Pow(final/initial, 12/months) - 1
}

// sharpeRatio is the mean over the sample standard deviation of the
// month-over-month net worth changes, annualized by sqrt(12).
func sharpeRatio(series []MonthStats, log *logger.Logger) float64 {
	if len(series) < 3 {
		return math.NaN()
	}

	diffs := make([]float64, 0, len(series)-1)
	for i := 1; i < len(series); i++ {
		diffs = append(diffs, series[i].NetWorth-series[i-1].NetWorth)
	}

	mean := 0.0
	for _, d := range diffs {
		mean += d
	}
	mean /= float64(len(diffs))

	variance := 0.0
	for _, d := range diffs {
		variance += (d - mean) * (d - mean)
	}
	variance /= float64(len(diffs) - 1)

	if variance == 0 {
		log.Warn("Zero variance in net worth changes; Sharpe ratio undefined")
		return math.NaN()
	}

	return mean / math.Sqrt(variance) * math.Sqrt(12)
}

// uniqueHeld flattens the monthly snapshots into the distinct loans that
// were held at any point, in ascending month order.
func uniqueHeld(snapshots map[loan.Month][]*loan.Loan) []*loan.Loan {
	months := make([]loan.Month, 0, len(snapshots))
	for m := range snapshots {
		months = append(months, m)
	}
	sort.Slice(months, func(i, j int) bool { return months[i] < months[j] })

	seen := make(map[string]bool)
	var held []*loan.Loan
	for _, m := range months {
		for _, l := range snapshots[m] {
			if seen[l.ID] {
				continue
			}
			seen[l.ID] = true
			held = append(held, l)
		}
	}
	return held
}

func gradeDistribution(ledger []*loan.Loan) map[string]int {
	dist := make(map[string]int)
	for _, l := range ledger {
		dist[string(l.Grade)]++
	}
	return dist
}

func termDistribution(ledger []*loan.Loan) map[int]int {
	dist := make(map[int]int)
	for _, l := range ledger {
		dist[l.RealizedTermMonths]++
	}
	return dist
}

// rateDistribution buckets interest rates into 5-point bands.
func rateDistribution(ledger []*loan.Loan) map[string]int {
	dist := make(map[string]int)
	for _, l := range ledger {
		lo := int(l.InterestRate*100) / 5 * 5
		dist[fmt.Sprintf("%d-%d%%", lo, lo+5)]++
	}
	return dist
}

// imbalanceDistribution buckets completed loans by imbalance ratio.
func imbalanceDistribution(ledger []*loan.Loan) map[string]int {
	dist := make(map[string]int)
	for _, l := range ledger {
		if !l.Complete || math.IsNaN(l.ImbalanceRatio) {
			continue
		}
		dist[imbalanceBucket(l.ImbalanceRatio)]++
	}
	return dist
}

func imbalanceBucket(ratio float64) string {
	switch {
	case ratio < -0.10:
		return "< -10%"
	case ratio < -0.01:
		return "-10% .. -1%"
	case ratio <= 0.01:
		return "-1% .. 1%"
	case ratio <= 0.10:
		return "1% .. 10%"
	default:
		return "> 10%"
	}
}
