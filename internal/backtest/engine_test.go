package backtest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/thegator/loansim/internal/loan"
	"github.com/thegator/loansim/internal/loanpool"
	"github.com/thegator/loansim/internal/portfolio"
	"github.com/thegator/loansim/internal/strategy"
	"github.com/thegator/loansim/pkg/logger"
)

func mustMonth(t *testing.T, s string) loan.Month {
	t.Helper()
	m, err := loan.ParseMonth(s)
	if err != nil {
		t.Fatalf("ParseMonth(%q): %v", s, err)
	}
	return m
}

// fixturePool builds a pool with n fully-paid 12-month loans issued in
// each month of [start, start+months).
func fixturePool(t *testing.T, start loan.Month, months, perMonth int) *loanpool.Pool {
	t.Helper()

	var rows []loanpool.Row
	for m := 0; m < months; m++ {
		issue := start.Add(m)
		for i := 0; i < perMonth; i++ {
			rows = append(rows, loanpool.Row{
				ID:             fmt.Sprintf("%s-%d", issue, i),
				Grade:          "B",
				InterestRate:   0.12,
				Term:           " 36 months",
				FundedAmount:   1200,
				IssueMonth:     issue,
				LastPayMonth:   issue.Add(12),
				TotalPayment:   1260,
				TotalPrincipal: 1200,
			})
		}
	}
	return loanpool.NewPool(rows)
}

func baseConfig(t *testing.T) Config {
	return Config{
		StartMonth:     mustMonth(t, "2010-01"),
		EndMonth:       mustMonth(t, "2010-12"),
		InitialCash:    1000,
		BuySize:        25,
		LiquidityLimit: 0.25,
	}
}

func TestNewEngineValidation(t *testing.T) {
	cfg := baseConfig(t)
	pool := fixturePool(t, cfg.StartMonth, 12, 10)
	log := logger.NewNop()

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"start after end", func(c *Config) { c.StartMonth = c.EndMonth.Add(1) }},
		{"zero buy size", func(c *Config) { c.BuySize = 0 }},
		{"negative buy size", func(c *Config) { c.BuySize = -25 }},
		{"liquidity above one", func(c *Config) { c.LiquidityLimit = 1.5 }},
		{"negative liquidity", func(c *Config) { c.LiquidityLimit = -0.1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bad := cfg
			tt.mutate(&bad)
			if _, err := NewEngine(bad, pool, strategy.TopN{}, log); err == nil {
				t.Error("expected config validation error")
			}
		})
	}

	if _, err := NewEngine(cfg, pool, nil, log); err == nil {
		t.Error("expected error for nil solver")
	}
	if _, err := NewEngine(cfg, nil, strategy.TopN{}, log); err == nil {
		t.Error("expected error for nil pool")
	}
}

func TestRunRecordsEveryMonthInclusive(t *testing.T) {
	cfg := baseConfig(t)
	pool := fixturePool(t, cfg.StartMonth, 12, 10)

	e, err := NewEngine(cfg, pool, strategy.TopN{}, logger.NewNop())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	result, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(result.Series) != 12 {
		t.Fatalf("series length = %d, want 12 (inclusive range)", len(result.Series))
	}
	if result.Series[0].Month != cfg.StartMonth {
		t.Errorf("first month = %s, want %s", result.Series[0].Month, cfg.StartMonth)
	}
	if result.Series[11].Month != cfg.EndMonth {
		t.Errorf("last month = %s, want %s", result.Series[11].Month, cfg.EndMonth)
	}
	if !e.Finished() {
		t.Error("engine not finished after Run")
	}
}

func TestStepAfterFinished(t *testing.T) {
	cfg := baseConfig(t)
	cfg.EndMonth = cfg.StartMonth // single-month run
	pool := fixturePool(t, cfg.StartMonth, 1, 5)

	e, err := NewEngine(cfg, pool, strategy.ZeroBuy{}, logger.NewNop())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	if err := e.Step(); err != nil {
		t.Fatalf("Step failed: %v", err)
	}
	if err := e.Step(); !errors.Is(err, ErrFinished) {
		t.Errorf("second Step error = %v, want ErrFinished", err)
	}
}

// recordingSolver wraps a solver and captures what it was asked.
type recordingSolver struct {
	inner   strategy.BuySolver
	desired []int
}

func (r *recordingSolver) Name() string { return r.inner.Name() }

func (r *recordingSolver) Solve(m loan.Month, inv *portfolio.Investor, pool []loanpool.Row, desired int, limit float64) (strategy.Selection, error) {
	r.desired = append(r.desired, desired)
	return r.inner.Solve(m, inv, pool, desired, limit)
}

// Scenario: cash 10 against buy size 25 means a desired count of zero;
// the solver is still invoked and the empty selection is accepted.
func TestStepInvokesSolverWithZeroDesiredCount(t *testing.T) {
	cfg := baseConfig(t)
	cfg.InitialCash = 10
	pool := fixturePool(t, cfg.StartMonth, 12, 10)

	rec := &recordingSolver{inner: strategy.TopN{}}
	e, err := NewEngine(cfg, pool, rec, logger.NewNop())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	if err := e.Step(); err != nil {
		t.Fatalf("Step failed: %v", err)
	}

	if len(rec.desired) != 1 {
		t.Fatalf("solver invoked %d times, want 1", len(rec.desired))
	}
	if rec.desired[0] != 0 {
		t.Errorf("desired count = %d, want floor(10/25) = 0", rec.desired[0])
	}
	if e.Series()[0].LoansAdded != 0 {
		t.Errorf("loans added = %d, want 0", e.Series()[0].LoansAdded)
	}
}

func TestStepConservation(t *testing.T) {
	cfg := baseConfig(t)
	pool := fixturePool(t, cfg.StartMonth, 12, 10)

	e, err := NewEngine(cfg, pool, strategy.TopN{}, logger.NewNop())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	// First month: no holdings, so collections are zero and cash moves
	// only by acquisitions.
	before := e.Investor().CashBalance
	if err := e.Step(); err != nil {
		t.Fatalf("Step failed: %v", err)
	}

	added := e.Series()[0].LoansAdded
	want := before - float64(added)*cfg.BuySize
	if math.Abs(e.Investor().CashBalance-want) > 1e-9 {
		t.Errorf("cash = %v after first month, want %v", e.Investor().CashBalance, want)
	}
	if added == 0 {
		t.Error("expected acquisitions in the first month")
	}
}

// violatingSolver ignores every budget.
type violatingSolver struct{}

func (violatingSolver) Name() string { return "violating" }

func (violatingSolver) Solve(_ loan.Month, _ *portfolio.Investor, pool []loanpool.Row, _ int, _ float64) (strategy.Selection, error) {
	return strategy.Selection{
		Rows:              pool,
		MatchingQuantity:  len(pool),
		AvailableQuantity: len(pool),
	}, nil
}

func TestSolverContractViolationHalts(t *testing.T) {
	cfg := baseConfig(t)
	pool := fixturePool(t, cfg.StartMonth, 12, 100)

	e, err := NewEngine(cfg, pool, violatingSolver{}, logger.NewNop())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	err = e.Step()
	if !errors.Is(err, ErrSolverViolation) {
		t.Errorf("Step error = %v, want ErrSolverViolation", err)
	}
}

// foreignRowSolver selects a row that is not in the month pool.
type foreignRowSolver struct{}

func (foreignRowSolver) Name() string { return "foreign" }

func (foreignRowSolver) Solve(m loan.Month, _ *portfolio.Investor, pool []loanpool.Row, _ int, _ float64) (strategy.Selection, error) {
	return strategy.Selection{
		Rows:              []loanpool.Row{{ID: "not-in-pool", Term: " 36 months", FundedAmount: 1000, IssueMonth: m, LastPayMonth: m.Add(6)}},
		MatchingQuantity:  len(pool),
		AvailableQuantity: len(pool),
	}, nil
}

func TestSolverForeignRowHalts(t *testing.T) {
	cfg := baseConfig(t)
	pool := fixturePool(t, cfg.StartMonth, 12, 100)

	e, err := NewEngine(cfg, pool, foreignRowSolver{}, logger.NewNop())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	if err := e.Step(); !errors.Is(err, ErrSolverViolation) {
		t.Errorf("Step error = %v, want ErrSolverViolation", err)
	}
}

// Scenario: a 36-month run with the single-loan solver and plenty of cash.
// Cumulative loans held never decreases and net worth is never NaN.
func TestLongRunSeriesInvariants(t *testing.T) {
	start := mustMonth(t, "2009-01")
	cfg := Config{
		StartMonth:     start,
		EndMonth:       start.Add(35),
		InitialCash:    10000,
		BuySize:        25,
		LiquidityLimit: 0.25,
	}
	pool := fixturePool(t, start, 36, 20)

	e, err := NewEngine(cfg, pool, strategy.SingleLoan{}, logger.NewNop())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	result, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	prevCumulative := 0
	for i, row := range result.Series {
		if row.CumulativeLoansHeld < prevCumulative {
			t.Errorf("month %d: cumulative loans held decreased %d -> %d", i, prevCumulative, row.CumulativeLoansHeld)
		}
		prevCumulative = row.CumulativeLoansHeld

		if math.IsNaN(row.NetWorth) {
			t.Errorf("month %d: net worth is NaN", i)
		}
		if math.IsNaN(row.CashHeld) {
			t.Errorf("month %d: cash held is NaN", i)
		}
	}

	if result.Series[35].CumulativeLoansHeld == 0 {
		t.Error("no loans acquired over a 36-month run with ample cash")
	}
}

func TestZeroLiquidityMonthIsTolerated(t *testing.T) {
	cfg := baseConfig(t)
	// Pool only covers the first six months; the rest are empty markets
	pool := fixturePool(t, cfg.StartMonth, 6, 10)

	e, err := NewEngine(cfg, pool, strategy.TopN{}, logger.NewNop())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	result, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	for _, row := range result.Series[6:] {
		if row.TotalAvailable != 0 || row.LoansAdded != 0 {
			t.Errorf("month %s: available=%d added=%d in an empty market", row.Month, row.TotalAvailable, row.LoansAdded)
		}
	}
}

func TestRunHonorsCancellation(t *testing.T) {
	cfg := baseConfig(t)
	pool := fixturePool(t, cfg.StartMonth, 12, 10)

	e, err := NewEngine(cfg, pool, strategy.TopN{}, logger.NewNop())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := e.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Run error = %v, want context.Canceled", err)
	}
}

func TestProgressObserver(t *testing.T) {
	cfg := baseConfig(t)
	pool := fixturePool(t, cfg.StartMonth, 12, 10)

	e, err := NewEngine(cfg, pool, strategy.TopN{}, logger.NewNop())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	var seen []loan.Month
	e.SetProgress(func(s MonthStats) { seen = append(seen, s.Month) })

	if _, err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(seen) != 12 {
		t.Errorf("observer saw %d months, want 12", len(seen))
	}
}

func TestZeroNetWorthImbalancePctIsNaN(t *testing.T) {
	cfg := baseConfig(t)
	cfg.InitialCash = 0
	pool := fixturePool(t, cfg.StartMonth, 12, 10)

	e, err := NewEngine(cfg, pool, strategy.ZeroBuy{}, logger.NewNop())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	if err := e.Step(); err != nil {
		t.Fatalf("Step failed: %v", err)
	}

	row := e.Series()[0]
	if !math.IsNaN(row.ImbalancePct) || !math.IsNaN(row.AbsImbalancePct) {
		t.Errorf("imbalance pcts = %v/%v with zero net worth, want NaN", row.ImbalancePct, row.AbsImbalancePct)
	}
}
