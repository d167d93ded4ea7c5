package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/thegator/loansim/internal/loan"
	"github.com/thegator/loansim/internal/loanpool"
	"github.com/thegator/loansim/pkg/config"
	"github.com/thegator/loansim/pkg/logger"
)

func testConfig() *config.Config {
	return &config.Config{
		Port: "8090",
		Env:  "development",
		Sim: config.SimConfig{
			InitialCash:    1000,
			BuySize:        25,
			LiquidityLimit: 0.25,
			FeeRate:        0.01,
		},
	}
}

func testPool(t *testing.T) *loanpool.Pool {
	t.Helper()

	start, err := loan.ParseMonth("2010-01")
	if err != nil {
		t.Fatalf("ParseMonth: %v", err)
	}

	var rows []loanpool.Row
	for m := 0; m < 12; m++ {
		issue := start.Add(m)
		for i := 0; i < 10; i++ {
			rows = append(rows, loanpool.Row{
				ID:             fmt.Sprintf("%s-%d", issue, i),
				Grade:          "C",
				InterestRate:   0.14,
				Term:           " 36 months",
				FundedAmount:   1500,
				IssueMonth:     issue,
				LastPayMonth:   issue.Add(10),
				TotalPayment:   1580,
				TotalPrincipal: 1500,
			})
		}
	}
	return loanpool.NewPool(rows)
}

func TestRunEndpoint(t *testing.T) {
	h := NewBacktestHandler(testPool(t), testConfig(), logger.NewNop())

	body := `{"strategy":"topn","start_month":"2010-01","end_month":"2010-12"}`
	req := httptest.NewRequest(http.MethodPost, "/api/backtest/run", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.Run(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", rec.Code, rec.Body.String())
	}

	var doc struct {
		Strategy string `json:"strategy"`
		Series   []struct {
			Month string `json:"month"`
		} `json:"series"`
		Summary struct {
			Months int `json:"months"`
		} `json:"summary"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if doc.Strategy != "topn" {
		t.Errorf("strategy = %q, want topn", doc.Strategy)
	}
	if doc.Summary.Months != 12 || len(doc.Series) != 12 {
		t.Errorf("months = %d, series = %d, want 12", doc.Summary.Months, len(doc.Series))
	}
}

func TestRunEndpointBadRequests(t *testing.T) {
	h := NewBacktestHandler(testPool(t), testConfig(), logger.NewNop())

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{`},
		{"unknown strategy", `{"strategy":"momentum","start_month":"2010-01","end_month":"2010-12"}`},
		{"bad month", `{"start_month":"January 2010","end_month":"2010-12"}`},
		{"inverted range", `{"start_month":"2011-01","end_month":"2010-01"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/backtest/run", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			h.Run(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestRunEndpointOverrides(t *testing.T) {
	h := NewBacktestHandler(testPool(t), testConfig(), logger.NewNop())

	body := `{"strategy":"zerobuy","start_month":"2010-01","end_month":"2010-03","initial_cash":5000}`
	req := httptest.NewRequest(http.MethodPost, "/api/backtest/run", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.Run(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", rec.Code, rec.Body.String())
	}

	var doc struct {
		Config struct {
			InitialCash float64 `json:"initial_cash"`
			BuySize     float64 `json:"buy_size"`
		} `json:"config"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if doc.Config.InitialCash != 5000 {
		t.Errorf("initial_cash = %v, want the 5000 override", doc.Config.InitialCash)
	}
	if doc.Config.BuySize != 25 {
		t.Errorf("buy_size = %v, want the configured default 25", doc.Config.BuySize)
	}
}

func TestListStrategiesEndpoint(t *testing.T) {
	h := NewBacktestHandler(testPool(t), testConfig(), logger.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/strategies", nil)
	rec := httptest.NewRecorder()

	h.ListStrategies(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var doc struct {
		Strategies []struct {
			Tag   string `json:"tag"`
			Label string `json:"label"`
		} `json:"strategies"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(doc.Strategies) < 4 {
		t.Errorf("strategies = %d, want >= 4", len(doc.Strategies))
	}
}

func TestPoolSummaryEndpoint(t *testing.T) {
	h := NewPoolHandler(testPool(t), logger.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/pool/summary", nil)
	rec := httptest.NewRecorder()

	h.Summary(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var summary PoolSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if summary.Loans != 120 || summary.Months != 12 {
		t.Errorf("loans/months = %d/%d, want 120/12", summary.Loans, summary.Months)
	}
	if summary.FirstMonth != "2010-01" || summary.LastMonth != "2010-12" {
		t.Errorf("span = %s..%s", summary.FirstMonth, summary.LastMonth)
	}
	if summary.ByGrade["C"] != 120 {
		t.Errorf("grade C count = %d, want 120", summary.ByGrade["C"])
	}
}

func TestPoolMonthsEndpoint(t *testing.T) {
	h := NewPoolHandler(testPool(t), logger.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/pool/months", nil)
	rec := httptest.NewRecorder()

	h.Months(rec, req)

	var doc struct {
		Months []MonthCount `json:"months"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(doc.Months) != 12 {
		t.Fatalf("months = %d, want 12", len(doc.Months))
	}
	if doc.Months[0].Month != "2010-01" || doc.Months[0].Loans != 10 {
		t.Errorf("first month = %+v", doc.Months[0])
	}
}
