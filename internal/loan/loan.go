package loan

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DefaultFeeRate is the platform servicing fee withheld from every payment.
const DefaultFeeRate = 0.01

var (
	// ErrMalformedTerm is returned when a contract term string cannot be
	// parsed to a positive month count.
	ErrMalformedTerm = errors.New("malformed loan term")

	// ErrLoanComplete is returned when a payment is requested on a loan
	// that has already run to completion.
	ErrLoanComplete = errors.New("loan is complete")
)

// Grade is the LendingClub credit grade, A (best) through G.
type Grade string

// Terms describes one loan as observed in the historical pool. All fields
// are ground truth from the dataset; nothing here is simulation state.
type Terms struct {
	ID               string
	Grade            Grade
	InterestRate     float64 // annual, as a fraction
	Term             string  // contract term string, e.g. " 36 months"
	OriginalAmount   float64 // funded principal at issue
	IssueMonth       Month
	LastPaymentMonth Month
	Defaulted        bool
	TotalPayment     float64 // historical total received over the loan's life
	TotalPrincipal   float64
	Recoveries       float64
}

// Loan is one purchased fractional position, replaying its historical
// outcome as a synthetic monthly annuity stream.
//
// ⭐ SSOT: all payment math lives here
type Loan struct {
	// Identity and terms, immutable after construction
	ID                 string
	Grade              Grade
	InterestRate       float64
	NominalTermMonths  int
	IssueMonth         Month
	LastObservedMonth  Month
	RealizedTermMonths int

	// Economics
	OriginalAmount float64
	Investment     float64
	Scale          float64 // Investment / OriginalAmount, in (0, 1]

	// Historical ground truth used for reconciliation
	Defaulted              bool
	HistoricalTotalPayment float64
	HistoricalPrincipal    float64
	Recoveries             float64

	// Derived once at construction
	MonthlyInstallment float64
	FeeRate            float64

	// Mutable simulation state
	CurrentAmount       float64
	RemainingTermMonths int
	CumulativeImbalance float64
	Complete            bool
	ImbalanceRatio      float64 // NaN until completion
}

// ParseTermMonths extracts the month count from a contract term string such
// as " 36 months".
func ParseTermMonths(term string) (int, error) {
	fields := strings.Fields(strings.TrimSpace(term))
	if len(fields) == 0 {
		return 0, fmt.Errorf("%w: %q", ErrMalformedTerm, term)
	}

	months, err := strconv.Atoi(fields[0])
	if err != nil || months <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrMalformedTerm, term)
	}

	return months, nil
}

// New constructs a Loan position of size investment against the historical
// loan described by terms. It fails fast on malformed terms or an
// investment outside (0, OriginalAmount].
func New(terms Terms, investment float64) (*Loan, error) {
	nominalTerm, err := ParseTermMonths(terms.Term)
	if err != nil {
		return nil, fmt.Errorf("loan %s: %w", terms.ID, err)
	}

	if terms.OriginalAmount <= 0 {
		return nil, fmt.Errorf("loan %s: original amount must be positive, got %v", terms.ID, terms.OriginalAmount)
	}
	if investment <= 0 || investment > terms.OriginalAmount {
		return nil, fmt.Errorf("loan %s: investment %v outside (0, %v]", terms.ID, investment, terms.OriginalAmount)
	}

	// Realized term is the historically observed life of the loan; spans of
	// zero or less (same-month payoff, dirty dates) clamp to one payment.
	realizedTerm := terms.LastPaymentMonth.Sub(terms.IssueMonth)
	if realizedTerm < 1 {
		realizedTerm = 1
	}

	l := &Loan{
		ID:                 terms.ID,
		Grade:              terms.Grade,
		InterestRate:       terms.InterestRate,
		NominalTermMonths:  nominalTerm,
		IssueMonth:         terms.IssueMonth,
		LastObservedMonth:  terms.LastPaymentMonth,
		RealizedTermMonths: realizedTerm,

		OriginalAmount: terms.OriginalAmount,
		Investment:     investment,
		Scale:          investment / terms.OriginalAmount,

		Defaulted:              terms.Defaulted,
		HistoricalTotalPayment: terms.TotalPayment,
		HistoricalPrincipal:    terms.TotalPrincipal,
		Recoveries:             terms.Recoveries,

		FeeRate: DefaultFeeRate,

		CurrentAmount:       terms.OriginalAmount,
		RemainingTermMonths: realizedTerm,
		ImbalanceRatio:      math.NaN(),
	}

	// A defaulted loan's realized cash flow departs from standard
	// amortization; amortize toward the known historical total instead so
	// the synthetic stream lands on the observed outcome.
	if l.Defaulted {
		l.CurrentAmount = l.HistoricalTotalPayment
	}

	l.MonthlyInstallment = annuityPayment(l.CurrentAmount, l.InterestRate/12, realizedTerm)

	return l, nil
}

// annuityPayment is the fixed payment that amortizes principal p at monthly
// rate r to exactly zero over n periods, rounded to cents.
func annuityPayment(p, r float64, n int) float64 {
	var pmt float64
	if r == 0 {
		pmt = p / float64(n)
	} else {
		pmt = p * r / (1 - math.Pow(1+r, -float64(n)))
	}
	return math.Round(pmt*100) / 100
}

// MakePayment advances the loan by one month: accrues interest, retires
// principal, and accumulates the synthesized net payment into the running
// imbalance. On the final period it reconciles the synthetic stream against
// the historical total and transitions to Complete.
//
// The returned cash is net of fee and scaled to the investor's fractional
// stake. Calling MakePayment on a complete loan is an error.
func (l *Loan) MakePayment() (float64, error) {
	if l.Complete {
		return 0, fmt.Errorf("loan %s: %w", l.ID, ErrLoanComplete)
	}

	// Guard against overpaying a nearly-exhausted balance
	paymentDue := math.Min(l.MonthlyInstallment, l.CurrentAmount)

	interest := l.InterestRate / 12 * l.CurrentAmount
	principal := paymentDue - interest

	l.CurrentAmount -= principal
	l.RemainingTermMonths--

	netReceived := paymentDue * (1 - l.FeeRate)
	l.CumulativeImbalance += netReceived

	if l.RemainingTermMonths == 0 {
		// Terminal reconciliation: the accumulated synthetic stream minus
		// the historically observed total, both net of fee. Scale is
		// applied on read, see Imbalance.
		l.CumulativeImbalance -= l.HistoricalTotalPayment * (1 - l.FeeRate)
		if l.HistoricalTotalPayment != 0 {
			l.ImbalanceRatio = l.CumulativeImbalance / l.HistoricalTotalPayment
		}
		l.Complete = true
	}

	return netReceived * l.Scale, nil
}

// PresentValue reports the position's current worth at the investor's
// scale. For a defaulted loan the outstanding basis plus the unrecovered
// principal shortfall is used.
func (l *Loan) PresentValue() float64 {
	if l.Defaulted {
		return (l.CurrentAmount + l.OriginalAmount - l.HistoricalTotalPayment) * l.Scale
	}
	return l.CurrentAmount * l.Scale
}

// Imbalance returns the running reconciliation error at the investor's
// scale.
func (l *Loan) Imbalance() float64 {
	return l.CumulativeImbalance * l.Scale
}

// AbsImbalance returns the magnitude of Imbalance.
func (l *Loan) AbsImbalance() float64 {
	return math.Abs(l.CumulativeImbalance) * l.Scale
}

// NegativeAmortizing reports whether the fixed installment cannot cover the
// first month's interest, so the balance grows instead of shrinking. Such
// positions are kept as-is (clamping would break the terminal
// reconciliation) but callers may want to flag them.
func (l *Loan) NegativeAmortizing() bool {
	return l.MonthlyInstallment < l.InterestRate/12*l.CurrentAmount
}
