package strategy

import (
	"github.com/thegator/loansim/internal/loan"
	"github.com/thegator/loansim/internal/loanpool"
	"github.com/thegator/loansim/internal/portfolio"
)

// TopN buys the first affordable loans of the month without any
// eligibility filter. Pool order is the dataset's own deterministic order,
// so the same inputs always select the same rows.
type TopN struct{}

func (TopN) Name() string { return "topn" }

func (TopN) Solve(_ loan.Month, _ *portfolio.Investor, monthPool []loanpool.Row, desiredCount int, liquidityLimit float64) (Selection, error) {
	matching := len(monthPool)
	budget := buyBudget(desiredCount, matching, liquidityLimit)

	return Selection{
		Rows:              monthPool[:budget],
		MatchingQuantity:  matching,
		AvailableQuantity: len(monthPool),
	}, nil
}

// SingleLoan buys at most one loan per month. Useful as a slow-growth
// baseline with predictable cash consumption.
type SingleLoan struct{}

func (SingleLoan) Name() string { return "single" }

func (SingleLoan) Solve(_ loan.Month, _ *portfolio.Investor, monthPool []loanpool.Row, desiredCount int, liquidityLimit float64) (Selection, error) {
	matching := len(monthPool)
	budget := buyBudget(desiredCount, matching, liquidityLimit)
	if budget > 1 {
		budget = 1
	}

	return Selection{
		Rows:              monthPool[:budget],
		MatchingQuantity:  matching,
		AvailableQuantity: len(monthPool),
	}, nil
}

// ZeroBuy never buys anything. It is the control strategy: a run with it
// isolates the behavior of the engine itself from any selection effect.
type ZeroBuy struct{}

func (ZeroBuy) Name() string { return "zerobuy" }

func (ZeroBuy) Solve(_ loan.Month, _ *portfolio.Investor, monthPool []loanpool.Row, _ int, _ float64) (Selection, error) {
	return Selection{
		Rows:              nil,
		MatchingQuantity:  0,
		AvailableQuantity: len(monthPool),
	}, nil
}

// Filter is the eligibility predicate configuration for the Filtered
// solver. Zero values disable the corresponding condition.
type Filter struct {
	MinEmpYears         float64
	MinCreditHistMonths float64
	MinAnnualIncome     float64
	MaxDTI              float64
	RequireOwnHome      bool
	RequireVerified     bool
}

// Eligible reports whether a pool row passes every enabled condition.
func (f Filter) Eligible(row loanpool.Row) bool {
	if row.EmpLengthYears < f.MinEmpYears {
		return false
	}
	if row.CreditHistoryMonths < f.MinCreditHistMonths {
		return false
	}
	if row.AnnualIncome < f.MinAnnualIncome {
		return false
	}
	if f.MaxDTI > 0 && row.DTI > f.MaxDTI {
		return false
	}
	if f.RequireOwnHome && !row.OwnHome {
		return false
	}
	if f.RequireVerified && !row.Verified {
		return false
	}
	return true
}

// Filtered buys the first eligible loans of the month, where eligibility
// is a predicate over borrower and loan attributes.
type Filtered struct {
	Filter Filter
}

// DefaultFiltered is the reference filtered variant: established borrowers
// with some employment and credit history.
func DefaultFiltered() Filtered {
	return Filtered{Filter: Filter{
		MinEmpYears:         2,
		MinCreditHistMonths: 36,
	}}
}

func (Filtered) Name() string { return "filtered" }

func (s Filtered) Solve(_ loan.Month, _ *portfolio.Investor, monthPool []loanpool.Row, desiredCount int, liquidityLimit float64) (Selection, error) {
	var eligible []loanpool.Row
	for _, row := range monthPool {
		if s.Filter.Eligible(row) {
			eligible = append(eligible, row)
		}
	}

	budget := buyBudget(desiredCount, len(eligible), liquidityLimit)

	return Selection{
		Rows:              eligible[:budget],
		MatchingQuantity:  len(eligible),
		AvailableQuantity: len(monthPool),
	}, nil
}
