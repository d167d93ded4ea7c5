package strategy

import (
	"math"

	"github.com/thegator/loansim/internal/loan"
	"github.com/thegator/loansim/internal/loanpool"
	"github.com/thegator/loansim/internal/portfolio"
)

// Selection is a solver's answer for one month.
type Selection struct {
	// Rows the strategy wants to buy, a subset of its eligible rows.
	Rows []loanpool.Row

	// MatchingQuantity is how many pool rows passed the strategy's
	// eligibility filter this month.
	MatchingQuantity int

	// AvailableQuantity is the full market size this month.
	AvailableQuantity int
}

// BuySolver selects which available loans to buy in a given month. The
// contract is pure: identical inputs must produce identical output, the
// investor is read-only, and the selection must satisfy
//
//	len(Rows) <= desiredCount
//	len(Rows) <= floor(liquidityLimit * MatchingQuantity)
//
// Solvers must tolerate desiredCount == 0 and return an empty selection.
// The engine verifies the bounds and treats a violation as a programming
// error in the strategy.
type BuySolver interface {
	Name() string
	Solve(month loan.Month, inv *portfolio.Investor, monthPool []loanpool.Row, desiredCount int, liquidityLimit float64) (Selection, error)
}

// buyBudget is the shared selection cap: desired count bounded by the
// liquidity limit's share of the matching pool.
func buyBudget(desiredCount, matching int, liquidityLimit float64) int {
	capacity := int(math.Floor(liquidityLimit * float64(matching)))
	if desiredCount < capacity {
		return desiredCount
	}
	return capacity
}
