package loanpool

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/thegator/loansim/internal/loan"
	"github.com/thegator/loansim/pkg/logger"
)

// Options controls which rows of a raw LendingClub export survive loading.
type Options struct {
	// Grades to keep; empty means A through G.
	Grades []loan.Grade

	// Keep only loans with this contract term in months; 0 keeps all.
	TermMonths int

	// Drop loans issued at or after this month; zero keeps all.
	MaxIssue loan.Month
}

// DefaultOptions matches the classic study setup: grades A-G, 36-month
// loans only.
func DefaultOptions() Options {
	return Options{TermMonths: 36}
}

// LoadStats summarizes a load: how many raw rows were seen, kept, and why
// the rest were dropped.
type LoadStats struct {
	RawRows    int
	Kept       int
	Filtered   int // failed an Options filter or still-open status
	Malformed  int // missing/unparseable required field
	NoLastDate int // no last-payment month recorded
}

// statusPrefix is prepended by LendingClub to loans that predate the
// current credit policy; the outcome label follows it.
const statusPrefix = "Does not meet the credit policy. Status:"

// LoadCSV reads a raw LendingClub export and produces cleaned pool rows.
// Only resolved loans (Fully Paid or Charged Off) are kept: the replay
// needs the realized outcome of every row.
func LoadCSV(path string, opts Options, log *logger.Logger) ([]Row, LoadStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, LoadStats{}, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	rows, stats, err := parseCSV(f, opts)
	if err != nil {
		return nil, stats, fmt.Errorf("parse %s: %w", path, err)
	}

	log.WithFields(map[string]interface{}{
		"path":         path,
		"raw_rows":     stats.RawRows,
		"kept":         stats.Kept,
		"filtered":     stats.Filtered,
		"malformed":    stats.Malformed,
		"no_last_date": stats.NoLastDate,
	}).Info("Loan pool loaded")

	return rows, stats, nil
}

func parseCSV(r io.Reader, opts Options) ([]Row, LoadStats, error) {
	grades := opts.Grades
	if len(grades) == 0 {
		grades = []loan.Grade{"A", "B", "C", "D", "E", "F", "G"}
	}
	gradeSet := make(map[loan.Grade]bool, len(grades))
	for _, g := range grades {
		gradeSet[g] = true
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // LendingClub exports carry ragged trailer lines

	header, err := cr.Read()
	if err != nil {
		return nil, LoadStats{}, fmt.Errorf("read header: %w", err)
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{"id", "grade", "int_rate", "term", "funded_amnt", "issue_d", "last_pymnt_d", "loan_status", "total_pymnt", "total_rec_prncp"} {
		if _, ok := col[required]; !ok {
			return nil, LoadStats{}, fmt.Errorf("dataset missing required column %q", required)
		}
	}

	field := func(record []string, name string) string {
		idx, ok := col[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	var rows []Row
	var stats LoadStats

	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, stats, fmt.Errorf("read record: %w", err)
		}
		stats.RawRows++

		status := strings.TrimSpace(strings.TrimPrefix(field(record, "loan_status"), statusPrefix))
		if status != "Fully Paid" && status != "Charged Off" {
			stats.Filtered++
			continue
		}

		grade := loan.Grade(field(record, "grade"))
		if !gradeSet[grade] {
			stats.Filtered++
			continue
		}

		term := field(record, "term")
		if opts.TermMonths != 0 {
			months, err := loan.ParseTermMonths(term)
			if err != nil || months != opts.TermMonths {
				stats.Filtered++
				continue
			}
		}

		issue, err := loan.ParseMonth(field(record, "issue_d"))
		if err != nil {
			stats.Malformed++
			continue
		}
		if !opts.MaxIssue.IsZero() && issue >= opts.MaxIssue {
			stats.Filtered++
			continue
		}

		lastStr := field(record, "last_pymnt_d")
		if lastStr == "" {
			stats.NoLastDate++
			continue
		}
		last, err := loan.ParseMonth(lastStr)
		if err != nil {
			stats.Malformed++
			continue
		}

		rate, err := parsePercent(field(record, "int_rate"))
		if err != nil {
			stats.Malformed++
			continue
		}
		funded, err := strconv.ParseFloat(field(record, "funded_amnt"), 64)
		if err != nil || funded <= 0 {
			stats.Malformed++
			continue
		}
		totalPayment, err := strconv.ParseFloat(field(record, "total_pymnt"), 64)
		if err != nil {
			stats.Malformed++
			continue
		}
		totalPrincipal, err := strconv.ParseFloat(field(record, "total_rec_prncp"), 64)
		if err != nil {
			stats.Malformed++
			continue
		}

		row := Row{
			ID:             field(record, "id"),
			Grade:          grade,
			InterestRate:   rate,
			Term:           term,
			FundedAmount:   funded,
			IssueMonth:     issue,
			LastPayMonth:   last,
			Defaulted:      status == "Charged Off",
			TotalPayment:   totalPayment,
			TotalPrincipal: totalPrincipal,

			EmpLengthYears: parseEmpLength(field(record, "emp_length")),
			OwnHome:        ownsHome(field(record, "home_ownership")),
			AnnualIncome:   parseFloatOrZero(field(record, "annual_inc")),
			OpenAccounts:   parseFloatOrZero(field(record, "open_acc")),
			TotalAccounts:  parseFloatOrZero(field(record, "total_acc")),
			Verified:       isVerified(field(record, "verification_status")),
			State:          field(record, "addr_state"),
			Purpose:        field(record, "purpose"),
		}
		if row.ID == "" {
			stats.Malformed++
			continue
		}

		row.Recoveries = parseFloatOrZero(field(record, "recoveries"))
		if dti, err := strconv.ParseFloat(field(record, "dti"), 64); err == nil {
			row.DTI = dti / 100
		}
		if earliest, err := loan.ParseMonth(field(record, "earliest_cr_line")); err == nil {
			history := issue.Sub(earliest)
			if history < 1 {
				history = 1
			}
			row.CreditHistoryMonths = float64(history)
		}

		rows = append(rows, row)
		stats.Kept++
	}

	return rows, stats, nil
}

// parsePercent parses "13.56%" (or a bare number) to a fraction.
func parsePercent(s string) (float64, error) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable percentage %q", s)
	}
	return v / 100, nil
}

// parseEmpLength normalizes LendingClub employment length labels to years:
// "n/a" and "< 1 year" count as 0, "10+ years" as 10.
func parseEmpLength(s string) float64 {
	s = strings.ReplaceAll(s, "n/a", "0")
	s = strings.ReplaceAll(s, "<", "0")
	s = strings.ReplaceAll(s, "+", "")
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0
	}
	v, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0
	}
	return v
}

func ownsHome(s string) bool {
	return s == "MORTGAGE" || s == "OWN"
}

func isVerified(s string) bool {
	if s == "" {
		return false
	}
	return !strings.Contains(strings.ToLower(s), "not")
}

func parseFloatOrZero(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
