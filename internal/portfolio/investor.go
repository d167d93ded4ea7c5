package portfolio

import (
	"fmt"

	"github.com/thegator/loansim/internal/loan"
)

// Investor is the portfolio ledger: a cash balance plus the set of active
// loan positions, unique by loan ID. One instance per backtest run, owned
// exclusively by the engine.
//
// ⭐ SSOT: cash only moves through CollectPayments and Acquire
type Investor struct {
	CashBalance float64

	// Active positions. The map gives O(1) identity checks; the slice
	// preserves insertion order so payment collection is deterministic.
	active map[string]*loan.Loan
	order  []string

	CumulativeDefaults     int
	CumulativeImbalance    float64
	CumulativeAbsImbalance float64
}

// New creates an investor with the given starting cash.
func New(initialCash float64) *Investor {
	return &Investor{
		CashBalance: initialCash,
		active:      make(map[string]*loan.Loan),
	}
}

// CollectPayments runs one month of collections: every active loan makes a
// payment and the scaled net cash is credited. Loans that complete this
// month fold their default flag and final imbalance into the cumulative
// counters and are evicted. Returns the total cash collected.
func (inv *Investor) CollectPayments() (float64, error) {
	collected := 0.0
	remaining := inv.order[:0]

	for _, id := range inv.order {
		l := inv.active[id]

		received, err := l.MakePayment()
		if err != nil {
			return collected, fmt.Errorf("collect on loan %s: %w", id, err)
		}
		collected += received
		inv.CashBalance += received

		if l.Complete {
			if l.Defaulted {
				inv.CumulativeDefaults++
			}
			inv.CumulativeImbalance += l.Imbalance()
			inv.CumulativeAbsImbalance += l.AbsImbalance()
			delete(inv.active, id)
			continue
		}
		remaining = append(remaining, id)
	}

	inv.order = remaining
	return collected, nil
}

// Acquire adds the given loans to the portfolio and debits their
// investment from cash. A loan whose ID is already held is ignored
// (defensive double-purchase guard).
func (inv *Investor) Acquire(loans []*loan.Loan) {
	for _, l := range loans {
		if _, held := inv.active[l.ID]; held {
			continue
		}
		inv.active[l.ID] = l
		inv.order = append(inv.order, l.ID)
		inv.CashBalance -= l.Investment
	}
}

// NetWorth is cash plus the present value of all active positions. Pure.
func (inv *Investor) NetWorth() float64 {
	worth := inv.CashBalance
	for _, id := range inv.order {
		worth += inv.active[id].PresentValue()
	}
	return worth
}

// Holds reports whether a loan with the given ID is an active position.
func (inv *Investor) Holds(id string) bool {
	_, held := inv.active[id]
	return held
}

// ActiveCount returns the number of active positions.
func (inv *Investor) ActiveCount() int {
	return len(inv.order)
}

// ActiveLoans returns the active positions in insertion order. The slice
// is a copy; the loans are not.
func (inv *Investor) ActiveLoans() []*loan.Loan {
	loans := make([]*loan.Loan, 0, len(inv.order))
	for _, id := range inv.order {
		loans = append(loans, inv.active[id])
	}
	return loans
}
