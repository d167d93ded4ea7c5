package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/thegator/loansim/internal/backtest"
	"github.com/thegator/loansim/internal/loan"
	"github.com/thegator/loansim/internal/loanpool"
	"github.com/thegator/loansim/internal/report"
	"github.com/thegator/loansim/internal/strategy"
	"github.com/thegator/loansim/pkg/config"
	"github.com/thegator/loansim/pkg/logger"
)

// BacktestHandler runs simulations over the loaded loan pool.
// ⭐ SSOT: backtest API entry points live only in this struct
type BacktestHandler struct {
	pool   *loanpool.Pool
	cfg    *config.Config
	logger *logger.Logger
}

// NewBacktestHandler creates a backtest handler.
func NewBacktestHandler(pool *loanpool.Pool, cfg *config.Config, log *logger.Logger) *BacktestHandler {
	return &BacktestHandler{pool: pool, cfg: cfg, logger: log}
}

// RunRequest describes one simulation request. Omitted numeric fields
// fall back to the configured defaults.
type RunRequest struct {
	Strategy       string   `json:"strategy"`
	StartMonth     string   `json:"start_month"` // YYYY-MM
	EndMonth       string   `json:"end_month"`   // YYYY-MM, inclusive
	InitialCash    *float64 `json:"initial_cash"`
	BuySize        *float64 `json:"buy_size"`
	LiquidityLimit *float64 `json:"liquidity_limit"`
}

// engineConfig resolves a request against configured defaults.
func engineConfig(req RunRequest, cfg *config.Config) (backtest.Config, error) {
	start, err := loan.ParseMonth(req.StartMonth)
	if err != nil {
		return backtest.Config{}, fmt.Errorf("start_month: %w", err)
	}
	end, err := loan.ParseMonth(req.EndMonth)
	if err != nil {
		return backtest.Config{}, fmt.Errorf("end_month: %w", err)
	}

	ec := backtest.Config{
		StartMonth:     start,
		EndMonth:       end,
		InitialCash:    cfg.Sim.InitialCash,
		BuySize:        cfg.Sim.BuySize,
		LiquidityLimit: cfg.Sim.LiquidityLimit,
		FeeRate:        cfg.Sim.FeeRate,
	}
	if req.InitialCash != nil {
		ec.InitialCash = *req.InitialCash
	}
	if req.BuySize != nil {
		ec.BuySize = *req.BuySize
	}
	if req.LiquidityLimit != nil {
		ec.LiquidityLimit = *req.LiquidityLimit
	}
	return ec, nil
}

// Run executes a full backtest and returns the result document.
// POST /api/backtest/run
func (h *BacktestHandler) Run(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Strategy == "" {
		req.Strategy = "topn"
	}

	solver, err := strategy.New(req.Strategy)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	ec, err := engineConfig(req, h.cfg)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	engine, err := backtest.NewEngine(ec, h.pool, solver, h.logger)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := engine.Run(ctx)
	if err != nil {
		if errors.Is(err, backtest.ErrSolverViolation) {
			h.logger.WithError(err).Error("Strategy violated its contract")
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		h.logger.WithError(err).Error("Backtest failed")
		respondError(w, http.StatusInternalServerError, "Backtest failed")
		return
	}

	respondJSON(w, http.StatusOK, report.NewResultDoc(result))
}

// ListStrategies returns the registered strategy variants.
// GET /api/strategies
func (h *BacktestHandler) ListStrategies(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"strategies": strategy.List(),
	})
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
