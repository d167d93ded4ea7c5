package loanpool

import (
	"sort"

	"github.com/thegator/loansim/internal/loan"
)

// Row is one historical loan in the pool: the contract terms, the observed
// outcome, and the borrower attributes strategies may filter on.
type Row struct {
	ID             string     `json:"id"`
	Grade          loan.Grade `json:"grade"`
	InterestRate   float64    `json:"int_rate"`
	Term           string     `json:"term"`
	FundedAmount   float64    `json:"funded_amnt"`
	IssueMonth     loan.Month `json:"issue_d"`
	LastPayMonth   loan.Month `json:"last_pymnt_d"`
	Defaulted      bool       `json:"defaulted"`
	TotalPayment   float64    `json:"total_pymnt"`
	TotalPrincipal float64    `json:"total_rec_prncp"`
	Recoveries     float64    `json:"recoveries"`

	// Borrower attributes (strategy filter inputs)
	EmpLengthYears      float64 `json:"emp_length"`
	OwnHome             bool    `json:"own_home"`
	CreditHistoryMonths float64 `json:"credit_history"`
	AnnualIncome        float64 `json:"annual_inc"`
	OpenAccounts        float64 `json:"open_acc"`
	TotalAccounts       float64 `json:"total_acc"`
	DTI                 float64 `json:"dti"`
	Verified            bool    `json:"verified"`
	State               string  `json:"addr_state"`
	Purpose             string  `json:"purpose"`
}

// Terms maps the row onto loan construction terms.
func (r Row) Terms() loan.Terms {
	return loan.Terms{
		ID:               r.ID,
		Grade:            r.Grade,
		InterestRate:     r.InterestRate,
		Term:             r.Term,
		OriginalAmount:   r.FundedAmount,
		IssueMonth:       r.IssueMonth,
		LastPaymentMonth: r.LastPayMonth,
		Defaulted:        r.Defaulted,
		TotalPayment:     r.TotalPayment,
		TotalPrincipal:   r.TotalPrincipal,
		Recoveries:       r.Recoveries,
	}
}

// Pool is the historical loan table, queryable by issue month.
type Pool struct {
	byMonth map[loan.Month][]Row
	months  []loan.Month
	size    int
}

// NewPool indexes rows by issue month. Row order within a month is
// preserved from the input, so a given dataset always yields the same
// iteration order.
func NewPool(rows []Row) *Pool {
	p := &Pool{byMonth: make(map[loan.Month][]Row)}
	for _, r := range rows {
		if _, seen := p.byMonth[r.IssueMonth]; !seen {
			p.months = append(p.months, r.IssueMonth)
		}
		p.byMonth[r.IssueMonth] = append(p.byMonth[r.IssueMonth], r)
		p.size++
	}
	sort.Slice(p.months, func(i, j int) bool { return p.months[i] < p.months[j] })
	return p
}

// ByMonth returns the rows issued in the given month, possibly empty.
func (p *Pool) ByMonth(m loan.Month) []Row {
	return p.byMonth[m]
}

// Months returns the distinct issue months in ascending order.
func (p *Pool) Months() []loan.Month {
	out := make([]loan.Month, len(p.months))
	copy(out, p.months)
	return out
}

// Len returns the total row count.
func (p *Pool) Len() int {
	return p.size
}

// Rows returns every row, grouped by ascending issue month.
func (p *Pool) Rows() []Row {
	out := make([]Row, 0, p.size)
	for _, m := range p.months {
		out = append(out, p.byMonth[m]...)
	}
	return out
}
