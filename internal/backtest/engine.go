package backtest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/thegator/loansim/internal/loan"
	"github.com/thegator/loansim/internal/loanpool"
	"github.com/thegator/loansim/internal/portfolio"
	"github.com/thegator/loansim/internal/strategy"
	"github.com/thegator/loansim/pkg/logger"
)

// ErrSolverViolation marks a strategy returning more loans than its
// budget allows. It is a programming error in the strategy, never clamped.
var ErrSolverViolation = errors.New("solver contract violation")

// ErrFinished is returned when Step is called past the terminal month.
var ErrFinished = errors.New("backtest already finished")

// Config holds one run's parameters.
type Config struct {
	StartMonth     loan.Month `json:"start_month"`
	EndMonth       loan.Month `json:"end_month"` // inclusive
	InitialCash    float64    `json:"initial_cash"`
	BuySize        float64    `json:"buy_size"`
	LiquidityLimit float64    `json:"liquidity_limit"`

	// FeeRate overrides the default servicing fee when positive.
	FeeRate float64 `json:"fee_rate,omitempty"`
}

// MonthStats is the engine's per-month output record.
type MonthStats struct {
	Month               loan.Month `json:"month"`
	LoansAdded          int        `json:"loans_added"`
	MatchingAvailable   int        `json:"matching_available"`
	TotalAvailable      int        `json:"total_available"`
	LoansHeld           int        `json:"loans_held"`
	CumulativeLoansHeld int        `json:"cumulative_loans_held"`
	CumulativeDefaults  int        `json:"cumulative_defaults"`
	CashHeld            float64    `json:"cash_held"`
	NetWorth            float64    `json:"net_worth"`
	Imbalance           float64    `json:"imbalance"`
	AbsImbalance        float64    `json:"abs_imbalance"`
	ImbalancePct        float64    `json:"imbalance_pct"`
	AbsImbalancePct     float64    `json:"abs_imbalance_pct"`
}

// Result is the complete output of one run: the monthly series plus the
// terminal reduction. Returned as a snapshot; the engine keeps no shared
// mutable state with it.
type Result struct {
	Config    Config       `json:"config"`
	Strategy  string       `json:"strategy"`
	Duration  time.Duration `json:"duration"`
	Series    []MonthStats `json:"series"`
	Summary   Summary      `json:"summary"`
}

// Engine drives a backtest from start month to end month, one month at a
// time: collect payments, invoke the strategy, acquire, record.
// ⭐ SSOT: the simulation loop lives here and only here
type Engine struct {
	cfg    Config
	pool   *loanpool.Pool
	solver strategy.BuySolver
	logger *logger.Logger

	investor *portfolio.Investor
	current  loan.Month
	finished bool

	// Full lineage of every acquired loan, append-only; distinct from the
	// investor's active set.
	ledger []*loan.Loan

	snapshots map[loan.Month][]*loan.Loan
	series    []MonthStats

	// onMonth, when set, observes each recorded month (progress streaming).
	onMonth func(MonthStats)
}

// NewEngine validates the configuration and prepares a run.
func NewEngine(cfg Config, pool *loanpool.Pool, solver strategy.BuySolver, log *logger.Logger) (*Engine, error) {
	if solver == nil {
		return nil, fmt.Errorf("solver is nil")
	}
	if pool == nil {
		return nil, fmt.Errorf("loan pool is nil")
	}
	if cfg.StartMonth > cfg.EndMonth {
		return nil, fmt.Errorf("start month %s after end month %s", cfg.StartMonth, cfg.EndMonth)
	}
	if cfg.BuySize <= 0 {
		return nil, fmt.Errorf("buy size must be positive, got %v", cfg.BuySize)
	}
	if cfg.LiquidityLimit < 0 || cfg.LiquidityLimit > 1 {
		return nil, fmt.Errorf("liquidity limit %v outside [0, 1]", cfg.LiquidityLimit)
	}
	if cfg.FeeRate < 0 || cfg.FeeRate >= 1 {
		return nil, fmt.Errorf("fee rate %v outside [0, 1)", cfg.FeeRate)
	}

	return &Engine{
		cfg:       cfg,
		pool:      pool,
		solver:    solver,
		logger:    log,
		investor:  portfolio.New(cfg.InitialCash),
		current:   cfg.StartMonth,
		snapshots: make(map[loan.Month][]*loan.Loan),
	}, nil
}

// SetProgress registers an observer called after each month is recorded.
// Must be set before Run.
func (e *Engine) SetProgress(fn func(MonthStats)) {
	e.onMonth = fn
}

// Finished reports whether the terminal month has been passed.
func (e *Engine) Finished() bool {
	return e.finished
}

// Investor exposes the ledger for inspection; tests and solvers read it,
// nothing outside the engine mutates it.
func (e *Engine) Investor() *portfolio.Investor {
	return e.investor
}

// Series returns a copy of the recorded time series so far.
func (e *Engine) Series() []MonthStats {
	out := make([]MonthStats, len(e.series))
	copy(out, e.series)
	return out
}

// Step advances the simulation by one month.
func (e *Engine) Step() error {
	if e.finished {
		return ErrFinished
	}

	// 1. Collect: age every active loan and bank the payments
	if _, err := e.investor.CollectPayments(); err != nil {
		return fmt.Errorf("month %s: %w", e.current, err)
	}

	// 2-4. Ask the strategy what to buy this month
	desired := int(math.Floor(e.investor.CashBalance / e.cfg.BuySize))
	if desired < 0 {
		desired = 0
	}
	monthPool := e.pool.ByMonth(e.current)

	sel, err := e.solver.Solve(e.current, e.investor, monthPool, desired, e.cfg.LiquidityLimit)
	if err != nil {
		return fmt.Errorf("month %s: solver %s: %w", e.current, e.solver.Name(), err)
	}
	if err := e.checkSelection(sel, monthPool, desired); err != nil {
		return err
	}

	// 5. Construct positions and hand them to the investor
	newLoans := make([]*loan.Loan, 0, len(sel.Rows))
	for _, row := range sel.Rows {
		l, err := loan.New(row.Terms(), e.cfg.BuySize)
		if err != nil {
			return fmt.Errorf("month %s: %w", e.current, err)
		}
		if e.cfg.FeeRate > 0 {
			l.FeeRate = e.cfg.FeeRate
		}
		if l.NegativeAmortizing() {
			e.logger.WithFields(map[string]interface{}{
				"month":   e.current.String(),
				"loan_id": l.ID,
			}).Warn("Installment does not cover interest; balance will grow")
		}
		newLoans = append(newLoans, l)
	}
	e.investor.Acquire(newLoans)
	e.ledger = append(e.ledger, newLoans...)

	// 6. Snapshot holdings for the distributional breakdowns
	e.snapshots[e.current] = e.investor.ActiveLoans()

	// 7. Record the month
	stats := e.record(sel, len(newLoans))
	if e.onMonth != nil {
		e.onMonth(stats)
	}

	// 8. Advance; past the end month the run is terminal
	e.current = e.current.Add(1)
	if e.current > e.cfg.EndMonth {
		e.finished = true
	}

	return nil
}

// checkSelection enforces the BuySolver contract. Violations surface
// immediately with full context rather than being clamped: a strategy
// overdrawing its budget corrupts the cash-balance invariant.
func (e *Engine) checkSelection(sel strategy.Selection, monthPool []loanpool.Row, desired int) error {
	if sel.MatchingQuantity > sel.AvailableQuantity {
		return fmt.Errorf("month %s: solver %s: %w: matching %d exceeds available %d",
			e.current, e.solver.Name(), ErrSolverViolation, sel.MatchingQuantity, sel.AvailableQuantity)
	}
	if len(sel.Rows) > desired {
		return fmt.Errorf("month %s: solver %s: %w: selected %d exceeds desired count %d (cash %.2f)",
			e.current, e.solver.Name(), ErrSolverViolation, len(sel.Rows), desired, e.investor.CashBalance)
	}
	capacity := int(math.Floor(e.cfg.LiquidityLimit * float64(sel.MatchingQuantity)))
	if len(sel.Rows) > capacity {
		return fmt.Errorf("month %s: solver %s: %w: selected %d exceeds liquidity capacity %d",
			e.current, e.solver.Name(), ErrSolverViolation, len(sel.Rows), capacity)
	}

	inPool := make(map[string]bool, len(monthPool))
	for _, row := range monthPool {
		inPool[row.ID] = true
	}
	for _, row := range sel.Rows {
		if !inPool[row.ID] {
			return fmt.Errorf("month %s: solver %s: %w: loan %s not in this month's pool",
				e.current, e.solver.Name(), ErrSolverViolation, row.ID)
		}
	}
	return nil
}

// record computes and appends this month's statistics row.
func (e *Engine) record(sel strategy.Selection, added int) MonthStats {
	netWorth := e.investor.NetWorth()

	stats := MonthStats{
		Month:               e.current,
		LoansAdded:          added,
		MatchingAvailable:   sel.MatchingQuantity,
		TotalAvailable:      sel.AvailableQuantity,
		LoansHeld:           e.investor.ActiveCount(),
		CumulativeLoansHeld: len(e.ledger),
		CumulativeDefaults:  e.investor.CumulativeDefaults,
		CashHeld:            e.investor.CashBalance,
		NetWorth:            netWorth,
		Imbalance:           e.investor.CumulativeImbalance,
		AbsImbalance:        e.investor.CumulativeAbsImbalance,
		ImbalancePct:        math.NaN(),
		AbsImbalancePct:     math.NaN(),
	}

	if netWorth != 0 {
		stats.ImbalancePct = stats.Imbalance / netWorth
		stats.AbsImbalancePct = stats.AbsImbalance / netWorth
	} else {
		e.logger.WithField("month", e.current.String()).Warn("Net worth is zero; imbalance percentages undefined")
	}

	e.series = append(e.series, stats)
	return stats
}

// Run steps from the start month through the end month and reduces the
// recorded series into the terminal summary. Cancellation is checked
// between steps; a step itself never blocks.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	e.logger.WithFields(map[string]interface{}{
		"start":           e.cfg.StartMonth.String(),
		"end":             e.cfg.EndMonth.String(),
		"initial_cash":    e.cfg.InitialCash,
		"buy_size":        e.cfg.BuySize,
		"liquidity_limit": e.cfg.LiquidityLimit,
		"strategy":        e.solver.Name(),
	}).Info("Starting backtest")

	started := time.Now()

	for !e.finished {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if err := e.Step(); err != nil {
			return nil, err
		}
	}

	summary := Summarize(e.series, e.ledger, e.snapshots, e.logger)

	result := &Result{
		Config:   e.cfg,
		Strategy: e.solver.Name(),
		Duration: time.Since(started),
		Series:   e.Series(),
		Summary:  summary,
	}

	e.logger.WithFields(map[string]interface{}{
		"months":         len(result.Series),
		"loans_acquired": len(e.ledger),
		"final_worth":    fmt.Sprintf("%.2f", summary.FinalNetWorth),
		"sharpe":         fmt.Sprintf("%.2f", summary.SharpeRatio),
		"duration":       result.Duration.Seconds(),
	}).Info("Backtest completed")

	return result, nil
}
