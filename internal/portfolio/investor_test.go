package portfolio

import (
	"math"
	"testing"

	"github.com/thegator/loansim/internal/loan"
)

func makeLoan(t *testing.T, id string, realizedMonths int, defaulted bool) *loan.Loan {
	t.Helper()

	issue, err := loan.ParseMonth("2009-01")
	if err != nil {
		t.Fatalf("ParseMonth: %v", err)
	}

	l, err := loan.New(loan.Terms{
		ID:               id,
		Grade:            "C",
		InterestRate:     0.12,
		Term:             " 36 months",
		OriginalAmount:   1200,
		IssueMonth:       issue,
		LastPaymentMonth: issue.Add(realizedMonths),
		Defaulted:        defaulted,
		TotalPayment:     1260,
		TotalPrincipal:   1200,
	}, 25)
	if err != nil {
		t.Fatalf("loan.New: %v", err)
	}
	return l
}

func TestAcquireDebitsCash(t *testing.T) {
	inv := New(1000)
	inv.Acquire([]*loan.Loan{makeLoan(t, "a", 12, false), makeLoan(t, "b", 12, false)})

	if inv.CashBalance != 950 {
		t.Errorf("CashBalance = %v, want 950", inv.CashBalance)
	}
	if inv.ActiveCount() != 2 {
		t.Errorf("ActiveCount = %d, want 2", inv.ActiveCount())
	}
}

func TestAcquireIgnoresDuplicateIdentity(t *testing.T) {
	inv := New(1000)
	first := makeLoan(t, "dup", 12, false)
	second := makeLoan(t, "dup", 12, false) // same identity, distinct value

	inv.Acquire([]*loan.Loan{first})
	inv.Acquire([]*loan.Loan{second})

	if inv.ActiveCount() != 1 {
		t.Errorf("ActiveCount = %d, want 1", inv.ActiveCount())
	}
	// Only the first purchase should have been debited
	if inv.CashBalance != 975 {
		t.Errorf("CashBalance = %v, want 975", inv.CashBalance)
	}
	if got := inv.ActiveLoans()[0]; got != first {
		t.Error("duplicate acquisition replaced the original position")
	}
}

// Conservation: cash after collection equals cash before plus the sum of
// net payments.
func TestCollectPaymentsConservation(t *testing.T) {
	inv := New(100)
	inv.Acquire([]*loan.Loan{makeLoan(t, "a", 12, false), makeLoan(t, "b", 6, false)})

	before := inv.CashBalance
	collected, err := inv.CollectPayments()
	if err != nil {
		t.Fatalf("CollectPayments failed: %v", err)
	}

	if collected <= 0 {
		t.Errorf("collected = %v, want > 0", collected)
	}
	if math.Abs(inv.CashBalance-(before+collected)) > 1e-9 {
		t.Errorf("CashBalance = %v, want %v", inv.CashBalance, before+collected)
	}
}

func TestCollectPaymentsEvictsCompleted(t *testing.T) {
	inv := New(100)
	short := makeLoan(t, "short", 1, false) // completes on the first payment
	long := makeLoan(t, "long", 12, false)
	inv.Acquire([]*loan.Loan{short, long})

	if _, err := inv.CollectPayments(); err != nil {
		t.Fatalf("CollectPayments failed: %v", err)
	}

	if inv.Holds("short") {
		t.Error("completed loan still held")
	}
	if !inv.Holds("long") {
		t.Error("active loan was evicted")
	}
	if inv.CumulativeImbalance == 0 {
		t.Error("completed loan's imbalance not folded into cumulative")
	}
	if inv.CumulativeAbsImbalance <= 0 {
		t.Errorf("CumulativeAbsImbalance = %v, want > 0", inv.CumulativeAbsImbalance)
	}
}

func TestCollectPaymentsCountsDefaults(t *testing.T) {
	inv := New(100)
	inv.Acquire([]*loan.Loan{
		makeLoan(t, "defaulted", 1, true),
		makeLoan(t, "healthy", 1, false),
	})

	if _, err := inv.CollectPayments(); err != nil {
		t.Fatalf("CollectPayments failed: %v", err)
	}

	if inv.CumulativeDefaults != 1 {
		t.Errorf("CumulativeDefaults = %d, want 1", inv.CumulativeDefaults)
	}
}

func TestCollectPaymentsDeterministicOrder(t *testing.T) {
	inv := New(100)
	ids := []string{"c", "a", "b"}
	for _, id := range ids {
		inv.Acquire([]*loan.Loan{makeLoan(t, id, 12, false)})
	}

	loans := inv.ActiveLoans()
	for i, id := range ids {
		if loans[i].ID != id {
			t.Errorf("ActiveLoans()[%d].ID = %s, want %s (insertion order)", i, loans[i].ID, id)
		}
	}
}

func TestNetWorth(t *testing.T) {
	inv := New(1000)
	l := makeLoan(t, "a", 12, false)
	inv.Acquire([]*loan.Loan{l})

	want := inv.CashBalance + l.PresentValue()
	if got := inv.NetWorth(); math.Abs(got-want) > 1e-9 {
		t.Errorf("NetWorth() = %v, want %v", got, want)
	}

	// Pure: calling twice changes nothing
	if got := inv.NetWorth(); math.Abs(got-want) > 1e-9 {
		t.Errorf("second NetWorth() = %v, want %v", got, want)
	}
}

func TestNetWorthEmptyPortfolio(t *testing.T) {
	inv := New(500)
	if got := inv.NetWorth(); got != 500 {
		t.Errorf("NetWorth() = %v, want 500", got)
	}
}
