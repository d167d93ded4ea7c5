package jobs

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/thegator/loansim/internal/loanpool"
	"github.com/thegator/loansim/pkg/config"
	"github.com/thegator/loansim/pkg/httputil"
	"github.com/thegator/loansim/pkg/logger"
)

// DatasetRefreshJob re-downloads the configured loan datasets, reparses
// them, and pushes the rows into Postgres. Stale cache entries are
// invalidated so the next read repopulates from the fresh data.
type DatasetRefreshJob struct {
	cfg    *config.Config
	client *httputil.Client
	repo   *loanpool.Repository // nil when the database is disabled
	cache  *loanpool.Cache      // nil when redis is disabled
	logger *logger.Logger
}

// NewDatasetRefreshJob creates the refresh job. repo and cache may be nil.
func NewDatasetRefreshJob(cfg *config.Config, client *httputil.Client, repo *loanpool.Repository, cache *loanpool.Cache, log *logger.Logger) *DatasetRefreshJob {
	return &DatasetRefreshJob{
		cfg:    cfg,
		client: client,
		repo:   repo,
		cache:  cache,
		logger: log,
	}
}

// Name returns the job name
func (j *DatasetRefreshJob) Name() string {
	return "dataset_refresh"
}

// Schedule runs weekly; LendingClub published new files quarterly, so
// weekly is already generous.
func (j *DatasetRefreshJob) Schedule() string {
	return "0 0 3 * * 1" // Mondays at 3 AM
}

// Run refreshes every configured dataset.
func (j *DatasetRefreshJob) Run(ctx context.Context) error {
	datasets := map[string]string{
		"training": j.cfg.Data.TrainingURL,
		"testing":  j.cfg.Data.TestingURL,
	}

	refreshed := 0
	for name, url := range datasets {
		if url == "" {
			continue
		}
		if err := j.refresh(ctx, name, url); err != nil {
			return fmt.Errorf("dataset %s: %w", name, err)
		}
		refreshed++
	}

	if refreshed == 0 {
		j.logger.Warn("No dataset URLs configured; nothing to refresh")
	}
	return nil
}

func (j *DatasetRefreshJob) refresh(ctx context.Context, name, url string) error {
	dest := filepath.Join(j.cfg.Data.Dir, name+".csv")

	size, err := j.client.Download(ctx, url, dest)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	j.logger.WithFields(map[string]interface{}{
		"dataset": name,
		"bytes":   size,
	}).Info("Dataset downloaded")

	rows, stats, err := loanpool.LoadCSV(dest, loanpool.DefaultOptions(), j.logger)
	if err != nil {
		return fmt.Errorf("parse: %w", err)
	}
	j.logger.WithFields(map[string]interface{}{
		"dataset":   name,
		"raw":       stats.RawRows,
		"kept":      stats.Kept,
		"malformed": stats.Malformed,
	}).Info("Dataset parsed")

	if j.repo != nil {
		if err := j.repo.SaveRows(ctx, name, rows); err != nil {
			return fmt.Errorf("save: %w", err)
		}
	}
	if j.cache != nil {
		if err := j.cache.Invalidate(ctx, name); err != nil {
			j.logger.WithError(err).Warn("Cache invalidation failed")
		}
	}

	return nil
}
