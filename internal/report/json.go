package report

import (
	"encoding/json"
	"math"
	"os"

	"github.com/thegator/loansim/internal/backtest"
)

// ResultDoc is the JSON-safe rendering of a run result. encoding/json
// rejects NaN, so every ratio that may be undefined is a pointer that
// serializes to null instead.
type ResultDoc struct {
	Config   backtest.Config `json:"config"`
	Strategy string          `json:"strategy"`
	Series   []MonthDoc      `json:"series"`
	Summary  SummaryDoc      `json:"summary"`
}

type MonthDoc struct {
	Month               string   `json:"month"`
	LoansAdded          int      `json:"loans_added"`
	MatchingAvailable   int      `json:"matching_available"`
	TotalAvailable      int      `json:"total_available"`
	LoansHeld           int      `json:"loans_held"`
	CumulativeLoansHeld int      `json:"cumulative_loans_held"`
	CumulativeDefaults  int      `json:"cumulative_defaults"`
	CashHeld            float64  `json:"cash_held"`
	NetWorth            float64  `json:"net_worth"`
	Imbalance           float64  `json:"imbalance"`
	AbsImbalance        float64  `json:"abs_imbalance"`
	ImbalancePct        *float64 `json:"imbalance_pct"`
	AbsImbalancePct     *float64 `json:"abs_imbalance_pct"`
}

type SummaryDoc struct {
	Months        int     `json:"months"`
	LoansAcquired int     `json:"loans_acquired"`
	Defaults      int     `json:"defaults"`
	FinalNetWorth float64 `json:"final_net_worth"`

	MonthlyReturns   []*float64 `json:"monthly_returns"`
	GrowthOfDollar   []*float64 `json:"growth_of_dollar"`
	AnnualizedReturn *float64   `json:"annualized_return"`
	SharpeRatio      *float64   `json:"sharpe_ratio"`
	DefaultRate      *float64   `json:"default_rate"`

	TotalLiquidityRatio    *float64 `json:"total_liquidity_ratio"`
	StrategyLiquidityRatio *float64 `json:"strategy_liquidity_ratio"`
	StrategyVsTotalRatio   *float64 `json:"strategy_vs_total_ratio"`

	GradeDistribution     map[string]int `json:"grade_distribution"`
	TermDistribution      map[int]int    `json:"term_distribution"`
	RateDistribution      map[string]int `json:"rate_distribution"`
	ImbalanceDistribution map[string]int `json:"imbalance_distribution"`
}

// NewResultDoc converts a run result into its JSON-safe form.
func NewResultDoc(result *backtest.Result) ResultDoc {
	doc := ResultDoc{
		Config:   result.Config,
		Strategy: result.Strategy,
		Series:   make([]MonthDoc, len(result.Series)),
		Summary:  newSummaryDoc(result.Summary),
	}
	for i, r := range result.Series {
		doc.Series[i] = MonthDoc{
			Month:               r.Month.String(),
			LoansAdded:          r.LoansAdded,
			MatchingAvailable:   r.MatchingAvailable,
			TotalAvailable:      r.TotalAvailable,
			LoansHeld:           r.LoansHeld,
			CumulativeLoansHeld: r.CumulativeLoansHeld,
			CumulativeDefaults:  r.CumulativeDefaults,
			CashHeld:            r.CashHeld,
			NetWorth:            r.NetWorth,
			Imbalance:           r.Imbalance,
			AbsImbalance:        r.AbsImbalance,
			ImbalancePct:        opt(r.ImbalancePct),
			AbsImbalancePct:     opt(r.AbsImbalancePct),
		}
	}
	return doc
}

func newSummaryDoc(s backtest.Summary) SummaryDoc {
	return SummaryDoc{
		Months:        s.Months,
		LoansAcquired: s.LoansAcquired,
		Defaults:      s.Defaults,
		FinalNetWorth: s.FinalNetWorth,

		MonthlyReturns:   optSlice(s.MonthlyReturns),
		GrowthOfDollar:   optSlice(s.GrowthOfDollar),
		AnnualizedReturn: opt(s.AnnualizedReturn),
		SharpeRatio:      opt(s.SharpeRatio),
		DefaultRate:      opt(s.DefaultRate),

		TotalLiquidityRatio:    opt(s.TotalLiquidityRatio),
		StrategyLiquidityRatio: opt(s.StrategyLiquidityRatio),
		StrategyVsTotalRatio:   opt(s.StrategyVsTotalRatio),

		GradeDistribution:     s.GradeDistribution,
		TermDistribution:      s.TermDistribution,
		RateDistribution:      s.RateDistribution,
		ImbalanceDistribution: s.ImbalanceDistribution,
	}
}

// WriteResultJSON writes the full result document to path, indented.
func WriteResultJSON(path string, result *backtest.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(NewResultDoc(result))
}

// opt maps NaN to nil so the value serializes as null.
func opt(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

func optSlice(vs []float64) []*float64 {
	if vs == nil {
		return nil
	}
	out := make([]*float64, len(vs))
	for i, v := range vs {
		out[i] = opt(v)
	}
	return out
}
