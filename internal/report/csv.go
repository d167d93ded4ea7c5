package report

import (
	"encoding/csv"
	"math"
	"os"
	"strconv"

	"github.com/thegator/loansim/internal/backtest"
)

// WriteSeriesCSV writes the monthly time series to path, one row per
// simulated month. NaN values are written as empty cells.
func WriteSeriesCSV(path string, series []backtest.MonthStats) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	header := []string{
		"month",
		"loans_added",
		"matching_available",
		"total_available",
		"loans_held",
		"cumulative_loans_held",
		"cumulative_defaults",
		"cash_held",
		"net_worth",
		"imbalance",
		"abs_imbalance",
		"imbalance_pct",
		"abs_imbalance_pct",
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, r := range series {
		row := []string{
			r.Month.String(),
			strconv.Itoa(r.LoansAdded),
			strconv.Itoa(r.MatchingAvailable),
			strconv.Itoa(r.TotalAvailable),
			strconv.Itoa(r.LoansHeld),
			strconv.Itoa(r.CumulativeLoansHeld),
			strconv.Itoa(r.CumulativeDefaults),
			fmtFloat(r.CashHeld),
			fmtFloat(r.NetWorth),
			fmtFloat(r.Imbalance),
			fmtFloat(r.AbsImbalance),
			fmtFloat(r.ImbalancePct),
			fmtFloat(r.AbsImbalancePct),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	return w.Error()
}

func fmtFloat(x float64) string {
	if math.IsNaN(x) {
		return ""
	}
	return strconv.FormatFloat(x, 'f', 6, 64)
}
