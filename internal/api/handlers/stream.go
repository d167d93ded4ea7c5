package handlers

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/thegator/loansim/internal/backtest"
	"github.com/thegator/loansim/internal/loanpool"
	"github.com/thegator/loansim/internal/report"
	"github.com/thegator/loansim/internal/strategy"
	"github.com/thegator/loansim/pkg/config"
	"github.com/thegator/loansim/pkg/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true // Allow all origins during development.
	},
}

// StreamHandler runs a backtest over a WebSocket, pushing one frame per
// simulated month and a final summary frame.
type StreamHandler struct {
	pool   *loanpool.Pool
	cfg    *config.Config
	logger *logger.Logger
}

// NewStreamHandler creates a stream handler.
func NewStreamHandler(pool *loanpool.Pool, cfg *config.Config, log *logger.Logger) *StreamHandler {
	return &StreamHandler{pool: pool, cfg: cfg, logger: log}
}

// StreamFrame is one WebSocket message: either a monthly progress update
// or the terminal result.
type StreamFrame struct {
	Type   string            `json:"type"` // "month", "result", "error"
	Month  *report.MonthDoc  `json:"month,omitempty"`
	Result *report.ResultDoc `json:"result,omitempty"`
	Error  string            `json:"error,omitempty"`
}

// Stream upgrades the connection and runs the requested backtest.
// GET /api/backtest/stream?strategy=topn&start=2010-01&end=2012-12
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Error("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	q := r.URL.Query()
	req := RunRequest{
		Strategy:   q.Get("strategy"),
		StartMonth: q.Get("start"),
		EndMonth:   q.Get("end"),
	}
	if req.Strategy == "" {
		req.Strategy = "topn"
	}

	solver, err := strategy.New(req.Strategy)
	if err != nil {
		h.sendError(conn, err.Error())
		return
	}
	ec, err := engineConfig(req, h.cfg)
	if err != nil {
		h.sendError(conn, err.Error())
		return
	}
	engine, err := backtest.NewEngine(ec, h.pool, solver, h.logger)
	if err != nil {
		h.sendError(conn, err.Error())
		return
	}

	// One frame per recorded month; write errors abort via the run context
	// on the next read, so a broken client just ends the stream.
	writeFailed := false
	engine.SetProgress(func(s backtest.MonthStats) {
		if writeFailed {
			return
		}
		doc := report.NewResultDoc(&backtest.Result{Series: []backtest.MonthStats{s}})
		frame := StreamFrame{Type: "month", Month: &doc.Series[0]}
		if err := conn.WriteJSON(frame); err != nil {
			writeFailed = true
		}
	})

	result, err := engine.Run(r.Context())
	if err != nil {
		h.sendError(conn, err.Error())
		return
	}
	if writeFailed {
		return
	}

	doc := report.NewResultDoc(result)
	if err := conn.WriteJSON(StreamFrame{Type: "result", Result: &doc}); err != nil {
		h.logger.WithError(err).Debug("Client dropped before final frame")
	}
}

func (h *StreamHandler) sendError(conn *websocket.Conn, msg string) {
	if err := conn.WriteJSON(StreamFrame{Type: "error", Error: msg}); err != nil {
		h.logger.WithError(err).Debug("Failed to send error frame")
	}
}
