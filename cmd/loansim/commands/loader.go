package commands

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/thegator/loansim/internal/loanpool"
	"github.com/thegator/loansim/pkg/config"
	"github.com/thegator/loansim/pkg/database"
	"github.com/thegator/loansim/pkg/logger"
	"github.com/thegator/loansim/pkg/redis"
)

// loadPool resolves the loan pool for a command run. Resolution order:
// explicit --csv file, redis cache, postgres, then the local dataset file
// under the data directory.
func loadPool(ctx context.Context, cfg *config.Config, log *logger.Logger) (*loanpool.Pool, error) {
	if csvPath != "" {
		rows, stats, err := loanpool.LoadCSV(csvPath, loanpool.DefaultOptions(), log)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", csvPath, err)
		}
		log.WithFields(map[string]interface{}{
			"path": csvPath,
			"kept": stats.Kept,
		}).Info("Loan pool loaded from CSV")
		return loanpool.NewPool(rows), nil
	}

	var cache *loanpool.Cache
	if cfg.Redis.Enabled {
		client, err := redis.New(cfg)
		if err != nil {
			log.WithError(err).Warn("Redis unavailable, skipping cache")
		} else {
			cache = loanpool.NewCache(client)
			rows, hit, err := cache.Get(ctx, dataset)
			if err != nil {
				log.WithError(err).Warn("Cache read failed")
			} else if hit {
				log.WithFields(map[string]interface{}{
					"dataset": dataset,
					"rows":    len(rows),
				}).Info("Loan pool loaded from cache")
				return loanpool.NewPool(rows), nil
			}
		}
	}

	if cfg.Database.Enabled {
		db, err := database.New(cfg)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		defer db.Close()

		repo := loanpool.NewRepository(db.Pool)
		rows, err := repo.LoadRows(ctx, dataset)
		if err != nil {
			return nil, fmt.Errorf("load dataset %s: %w", dataset, err)
		}
		if len(rows) > 0 {
			if cache != nil {
				if err := cache.Set(ctx, dataset, rows); err != nil {
					log.WithError(err).Warn("Cache write failed")
				}
			}
			log.WithFields(map[string]interface{}{
				"dataset": dataset,
				"rows":    len(rows),
			}).Info("Loan pool loaded from database")
			return loanpool.NewPool(rows), nil
		}
		log.WithField("dataset", dataset).Warn("Dataset empty in database, falling back to local file")
	}

	path := filepath.Join(cfg.Data.Dir, dataset+".csv")
	rows, stats, err := loanpool.LoadCSV(path, loanpool.DefaultOptions(), log)
	if err != nil {
		return nil, fmt.Errorf("load %s (run 'loansim fetch' first?): %w", path, err)
	}
	log.WithFields(map[string]interface{}{
		"path": path,
		"kept": stats.Kept,
	}).Info("Loan pool loaded from local file")
	return loanpool.NewPool(rows), nil
}
