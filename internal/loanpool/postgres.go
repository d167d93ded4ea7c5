package loanpool

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/thegator/loansim/internal/loan"
)

// Repository persists processed loan pools so repeated runs skip the raw
// CSV pipeline. Pools are namespaced by a dataset tag ("training",
// "testing", ...).
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new loan pool repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// EnsureSchema creates the backing table if it does not exist.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS loan_pool (
			dataset          TEXT NOT NULL,
			loan_id          TEXT NOT NULL,
			grade            TEXT NOT NULL,
			int_rate         DOUBLE PRECISION NOT NULL,
			term             TEXT NOT NULL,
			funded_amnt      DOUBLE PRECISION NOT NULL,
			issue_month      INTEGER NOT NULL,
			last_pymnt_month INTEGER NOT NULL,
			defaulted        BOOLEAN NOT NULL,
			total_pymnt      DOUBLE PRECISION NOT NULL,
			total_rec_prncp  DOUBLE PRECISION NOT NULL,
			recoveries       DOUBLE PRECISION NOT NULL,
			emp_length       DOUBLE PRECISION NOT NULL,
			own_home         BOOLEAN NOT NULL,
			credit_history   DOUBLE PRECISION NOT NULL,
			annual_inc       DOUBLE PRECISION NOT NULL,
			open_acc         DOUBLE PRECISION NOT NULL,
			total_acc        DOUBLE PRECISION NOT NULL,
			dti              DOUBLE PRECISION NOT NULL,
			verified         BOOLEAN NOT NULL,
			addr_state       TEXT NOT NULL,
			purpose          TEXT NOT NULL,
			PRIMARY KEY (dataset, loan_id)
		);
		CREATE INDEX IF NOT EXISTS loan_pool_issue_idx ON loan_pool (dataset, issue_month);
	`)
	if err != nil {
		return fmt.Errorf("ensure loan_pool schema: %w", err)
	}
	return nil
}

// SaveRows replaces the stored pool for a dataset tag.
func (r *Repository) SaveRows(ctx context.Context, dataset string, rows []Row) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM loan_pool WHERE dataset = $1`, dataset); err != nil {
		return fmt.Errorf("clear dataset %s: %w", dataset, err)
	}

	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"loan_pool"},
		[]string{
			"dataset", "loan_id", "grade", "int_rate", "term", "funded_amnt",
			"issue_month", "last_pymnt_month", "defaulted", "total_pymnt",
			"total_rec_prncp", "recoveries", "emp_length", "own_home",
			"credit_history", "annual_inc", "open_acc", "total_acc", "dti",
			"verified", "addr_state", "purpose",
		},
		pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
			row := rows[i]
			return []any{
				dataset, row.ID, string(row.Grade), row.InterestRate, row.Term,
				row.FundedAmount, int(row.IssueMonth), int(row.LastPayMonth),
				row.Defaulted, row.TotalPayment, row.TotalPrincipal,
				row.Recoveries, row.EmpLengthYears, row.OwnHome,
				row.CreditHistoryMonths, row.AnnualIncome, row.OpenAccounts,
				row.TotalAccounts, row.DTI, row.Verified, row.State, row.Purpose,
			}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("copy dataset %s: %w", dataset, err)
	}

	return tx.Commit(ctx)
}

// LoadRows retrieves the stored pool for a dataset tag, ordered by issue
// month then loan id so pool iteration stays deterministic.
func (r *Repository) LoadRows(ctx context.Context, dataset string) ([]Row, error) {
	query := `
		SELECT loan_id, grade, int_rate, term, funded_amnt, issue_month,
		       last_pymnt_month, defaulted, total_pymnt, total_rec_prncp,
		       recoveries, emp_length, own_home, credit_history, annual_inc,
		       open_acc, total_acc, dti, verified, addr_state, purpose
		FROM loan_pool
		WHERE dataset = $1
		ORDER BY issue_month ASC, loan_id ASC
	`

	dbRows, err := r.pool.Query(ctx, query, dataset)
	if err != nil {
		return nil, fmt.Errorf("query dataset %s: %w", dataset, err)
	}
	defer dbRows.Close()

	var rows []Row
	for dbRows.Next() {
		var row Row
		var grade string
		var issue, last int
		if err := dbRows.Scan(
			&row.ID, &grade, &row.InterestRate, &row.Term, &row.FundedAmount,
			&issue, &last, &row.Defaulted, &row.TotalPayment,
			&row.TotalPrincipal, &row.Recoveries, &row.EmpLengthYears,
			&row.OwnHome, &row.CreditHistoryMonths, &row.AnnualIncome,
			&row.OpenAccounts, &row.TotalAccounts, &row.DTI, &row.Verified,
			&row.State, &row.Purpose,
		); err != nil {
			return nil, fmt.Errorf("scan dataset %s: %w", dataset, err)
		}
		row.Grade = loan.Grade(grade)
		row.IssueMonth = loan.Month(issue)
		row.LastPayMonth = loan.Month(last)
		rows = append(rows, row)
	}
	return rows, dbRows.Err()
}

// Count returns the number of stored rows for a dataset tag.
func (r *Repository) Count(ctx context.Context, dataset string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM loan_pool WHERE dataset = $1`, dataset).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count dataset %s: %w", dataset, err)
	}
	return count, nil
}
