package handlers

import (
	"net/http"

	"github.com/thegator/loansim/internal/loanpool"
	"github.com/thegator/loansim/pkg/logger"
)

// PoolHandler exposes read-only views of the loaded loan pool.
type PoolHandler struct {
	pool   *loanpool.Pool
	logger *logger.Logger
}

// NewPoolHandler creates a pool handler.
func NewPoolHandler(pool *loanpool.Pool, log *logger.Logger) *PoolHandler {
	return &PoolHandler{pool: pool, logger: log}
}

// PoolSummary describes the loaded dataset.
type PoolSummary struct {
	Loans      int            `json:"loans"`
	Months     int            `json:"months"`
	FirstMonth string         `json:"first_month,omitempty"`
	LastMonth  string         `json:"last_month,omitempty"`
	ByGrade    map[string]int `json:"by_grade"`
	Defaulted  int            `json:"defaulted"`
}

// Summary returns dataset-level aggregates.
// GET /api/pool/summary
func (h *PoolHandler) Summary(w http.ResponseWriter, r *http.Request) {
	months := h.pool.Months()

	summary := PoolSummary{
		Loans:   h.pool.Len(),
		Months:  len(months),
		ByGrade: make(map[string]int),
	}
	if len(months) > 0 {
		summary.FirstMonth = months[0].String()
		summary.LastMonth = months[len(months)-1].String()
	}
	for _, row := range h.pool.Rows() {
		summary.ByGrade[string(row.Grade)]++
		if row.Defaulted {
			summary.Defaulted++
		}
	}

	respondJSON(w, http.StatusOK, summary)
}

// MonthCount is the per-month issuance volume.
type MonthCount struct {
	Month string `json:"month"`
	Loans int    `json:"loans"`
}

// Months returns per-month loan counts in ascending order.
// GET /api/pool/months
func (h *PoolHandler) Months(w http.ResponseWriter, r *http.Request) {
	months := h.pool.Months()
	counts := make([]MonthCount, len(months))
	for i, m := range months {
		counts[i] = MonthCount{Month: m.String(), Loans: len(h.pool.ByMonth(m))}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"months": counts,
	})
}
