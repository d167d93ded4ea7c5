package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/thegator/loansim/internal/api"
	"github.com/thegator/loansim/internal/api/handlers"
	"github.com/thegator/loansim/internal/loanpool"
	"github.com/thegator/loansim/internal/scheduler"
	"github.com/thegator/loansim/internal/scheduler/jobs"
	"github.com/thegator/loansim/pkg/config"
	"github.com/thegator/loansim/pkg/database"
	"github.com/thegator/loansim/pkg/httputil"
	"github.com/thegator/loansim/pkg/logger"
	"github.com/thegator/loansim/pkg/redis"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the API server",
	Long: `Starts the REST/WebSocket API server over the resolved loan pool.

Endpoints:
  GET  /health                - Health check
  POST /api/backtest/run      - Run a backtest
  GET  /api/backtest/stream   - Stream a backtest over WebSocket
  GET  /api/strategies        - List buy strategies
  GET  /api/pool/summary      - Pool aggregates
  GET  /api/pool/months       - Per-month issuance volume

Example:
  go run ./cmd/loansim api
  go run ./cmd/loansim api --port 8080`,
	RunE: runAPIServer,
}

var (
	apiPort string
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API server port (default from PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== loansim API Server ===")

	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if apiPort != "" {
		cfg.Port = apiPort
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	ctx := context.Background()

	// 3. Load the loan pool once; handlers share the immutable pool
	pool, err := loadPool(ctx, cfg, log)
	if err != nil {
		return err
	}

	// 4. Create handlers
	btHandler := handlers.NewBacktestHandler(pool, cfg, log)
	poolHandler := handlers.NewPoolHandler(pool, log)
	streamHandler := handlers.NewStreamHandler(pool, cfg, log)

	// 5. Create router and server
	router := api.NewRouter(btHandler, poolHandler, streamHandler, log)
	server := api.New(cfg, log, router)

	// 6. Background dataset refresh when storage is wired
	var sched *scheduler.Scheduler
	if cfg.Database.Enabled && (cfg.Data.TrainingURL != "" || cfg.Data.TestingURL != "") {
		db, err := database.New(cfg)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer db.Close()

		var cache *loanpool.Cache
		if cfg.Redis.Enabled {
			if client, err := redis.New(cfg); err == nil {
				defer client.Close()
				cache = loanpool.NewCache(client)
			}
		}

		repo := loanpool.NewRepository(db.Pool)
		httpClient := httputil.New(log, cfg.Data.FetchRPS)

		sched = scheduler.New(log)
		if err := sched.AddJob(jobs.NewDatasetRefreshJob(cfg, httpClient, repo, cache, log)); err != nil {
			return fmt.Errorf("schedule refresh: %w", err)
		}
		sched.Start()
		defer sched.Stop()
	}

	// 7. Start server with graceful shutdown
	go func() {
		if err := server.Start(); err != nil {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	fmt.Printf("\n✅ Server running on http://localhost:%s\n", cfg.Port)
	fmt.Println("\nAvailable endpoints:")
	fmt.Println("  GET  /health")
	fmt.Println("  POST /api/backtest/run")
	fmt.Println("  GET  /api/backtest/stream")
	fmt.Println("  GET  /api/strategies")
	fmt.Println("  GET  /api/pool/summary")
	fmt.Println("  GET  /api/pool/months")
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}
