package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/thegator/loansim/internal/loanpool"
	"github.com/thegator/loansim/pkg/config"
	"github.com/thegator/loansim/pkg/database"
	"github.com/thegator/loansim/pkg/httputil"
	"github.com/thegator/loansim/pkg/logger"
	"github.com/thegator/loansim/pkg/redis"
)

// fetchCmd represents the fetch command
var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download and ingest loan datasets",
	Long: `Downloads the configured LendingClub datasets, parses them, and
stores the rows.

This command:
- downloads DATASET_TRAINING_URL and DATASET_TESTING_URL into DATA_DIR
- parses and filters the CSVs
- saves rows to postgres when DB_ENABLED=true
- warms the redis cache when REDIS_ENABLED=true

Example:
  go run ./cmd/loansim fetch
  go run ./cmd/loansim fetch --skip-download`,
	RunE: runFetch,
}

var (
	fetchSkipDownload bool
)

func init() {
	rootCmd.AddCommand(fetchCmd)

	// Flags
	fetchCmd.Flags().BoolVar(&fetchSkipDownload, "skip-download", false, "parse existing files in DATA_DIR without downloading")
}

func runFetch(cmd *cobra.Command, args []string) error {
	fmt.Println("=== loansim Dataset Fetch ===")

	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	ctx := context.Background()

	if err := os.MkdirAll(cfg.Data.Dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	// 3. Optional storage backends
	var repo *loanpool.Repository
	if cfg.Database.Enabled {
		db, err := database.New(cfg)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer db.Close()

		repo = loanpool.NewRepository(db.Pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
		log.Info("Connected to database")
	}

	var cache *loanpool.Cache
	if cfg.Redis.Enabled {
		client, err := redis.New(cfg)
		if err != nil {
			log.WithError(err).Warn("Redis unavailable, continuing without cache")
		} else {
			defer client.Close()
			cache = loanpool.NewCache(client)
		}
	}

	// 4. Rate-limited HTTP client
	client := httputil.New(log, cfg.Data.FetchRPS)

	datasets := map[string]string{
		"training": cfg.Data.TrainingURL,
		"testing":  cfg.Data.TestingURL,
	}

	fetched := 0
	for name, url := range datasets {
		dest := filepath.Join(cfg.Data.Dir, name+".csv")

		if fetchSkipDownload || url == "" {
			if _, err := os.Stat(dest); err != nil {
				log.WithField("dataset", name).Warn("No URL configured and no local file, skipping")
				continue
			}
		} else {
			fmt.Printf("⬇️  Downloading %s ...\n", name)
			size, err := client.Download(ctx, url, dest)
			if err != nil {
				return fmt.Errorf("download %s: %w", name, err)
			}
			fmt.Printf("   %s: %d bytes\n", dest, size)
		}

		rows, stats, err := loanpool.LoadCSV(dest, loanpool.DefaultOptions(), log)
		if err != nil {
			return fmt.Errorf("parse %s: %w", dest, err)
		}
		fmt.Printf("📊 %s: %d raw rows, %d kept, %d filtered, %d malformed\n",
			name, stats.RawRows, stats.Kept, stats.Filtered, stats.Malformed)

		if repo != nil {
			if err := repo.SaveRows(ctx, name, rows); err != nil {
				return fmt.Errorf("save %s: %w", name, err)
			}
			fmt.Printf("💾 %s: saved to database\n", name)
		}
		if cache != nil {
			if err := cache.Set(ctx, name, rows); err != nil {
				log.WithError(err).Warn("Cache warm failed")
			} else {
				fmt.Printf("⚡ %s: cache warmed\n", name)
			}
		}
		fetched++
	}

	if fetched == 0 {
		return fmt.Errorf("no datasets fetched; set DATASET_TRAINING_URL or place files in %s", cfg.Data.Dir)
	}

	fmt.Println("\n✅ Fetch complete")
	return nil
}
