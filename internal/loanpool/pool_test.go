package loanpool

import (
	"testing"

	"github.com/thegator/loansim/internal/loan"
)

func month(t *testing.T, s string) loan.Month {
	t.Helper()
	m, err := loan.ParseMonth(s)
	if err != nil {
		t.Fatalf("ParseMonth(%q): %v", s, err)
	}
	return m
}

func TestPoolIndexesByIssueMonth(t *testing.T) {
	jan := month(t, "2010-01")
	feb := month(t, "2010-02")

	p := NewPool([]Row{
		{ID: "1", IssueMonth: feb},
		{ID: "2", IssueMonth: jan},
		{ID: "3", IssueMonth: jan},
	})

	if p.Len() != 3 {
		t.Errorf("Len() = %d, want 3", p.Len())
	}

	janRows := p.ByMonth(jan)
	if len(janRows) != 2 {
		t.Fatalf("ByMonth(jan) returned %d rows, want 2", len(janRows))
	}
	// Input order preserved within a month
	if janRows[0].ID != "2" || janRows[1].ID != "3" {
		t.Errorf("ByMonth(jan) order = %s, %s; want 2, 3", janRows[0].ID, janRows[1].ID)
	}

	if rows := p.ByMonth(month(t, "2011-01")); len(rows) != 0 {
		t.Errorf("ByMonth(empty month) returned %d rows, want 0", len(rows))
	}

	months := p.Months()
	if len(months) != 2 || months[0] != jan || months[1] != feb {
		t.Errorf("Months() = %v, want [jan feb] ascending", months)
	}
}

func TestRowTermsMapping(t *testing.T) {
	row := Row{
		ID:             "42",
		Grade:          "D",
		InterestRate:   0.18,
		Term:           " 36 months",
		FundedAmount:   2500,
		IssueMonth:     month(t, "2010-03"),
		LastPayMonth:   month(t, "2012-01"),
		Defaulted:      true,
		TotalPayment:   900,
		TotalPrincipal: 700,
		Recoveries:     55,
	}

	terms := row.Terms()
	if terms.ID != "42" || terms.Grade != "D" || !terms.Defaulted {
		t.Errorf("Terms() lost identity fields: %+v", terms)
	}
	if terms.OriginalAmount != 2500 || terms.TotalPayment != 900 || terms.Recoveries != 55 {
		t.Errorf("Terms() lost economics fields: %+v", terms)
	}

	// The mapping must produce a constructible loan
	l, err := loan.New(terms, 25)
	if err != nil {
		t.Fatalf("loan.New from Terms() failed: %v", err)
	}
	if l.RealizedTermMonths != 22 {
		t.Errorf("RealizedTermMonths = %d, want 22", l.RealizedTermMonths)
	}
}
