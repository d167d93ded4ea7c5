package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/thegator/loansim/internal/api/handlers"
	"github.com/thegator/loansim/internal/loanpool"
	"github.com/thegator/loansim/pkg/config"
	"github.com/thegator/loansim/pkg/logger"
)

func testRouter() http.Handler {
	cfg := &config.Config{
		Port: "8090",
		Env:  "development",
		Sim: config.SimConfig{
			InitialCash:    1000,
			BuySize:        25,
			LiquidityLimit: 0.25,
			FeeRate:        0.01,
		},
	}
	log := logger.NewNop()
	pool := loanpool.NewPool(nil)

	return NewRouter(
		handlers.NewBacktestHandler(pool, cfg, log),
		handlers.NewPoolHandler(pool, log),
		handlers.NewStreamHandler(pool, cfg, log),
		log,
	)
}

func TestHealthEndpoint(t *testing.T) {
	router := testRouter()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %v, want ok", body["status"])
	}
}

func TestUnknownRoute(t *testing.T) {
	router := testRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/nope", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	router := testRouter()

	// run is POST-only
	req := httptest.NewRequest(http.MethodGet, "/api/backtest/run", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code == http.StatusOK {
		t.Error("GET on a POST-only route should not succeed")
	}
}
