package scheduler

import (
	"context"
	"time"
)

// Job is one schedulable unit of work.
// ⭐ SSOT: the scheduled job interface is defined only here
type Job interface {
	// Name returns the job name
	Name() string

	// Run executes the job
	Run(ctx context.Context) error

	// Schedule returns the cron schedule expression
	// Examples: "0 0 3 * * 1" (Mondays at 3 AM), "@weekly"
	Schedule() string
}

// JobResult records one job execution.
type JobResult struct {
	JobName   string        `json:"job_name"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
}

// JobHistory keeps the most recent executions of one job.
type JobHistory struct {
	Results []JobResult
}

// AddResult appends a result, keeping only the last 100.
func (h *JobHistory) AddResult(result JobResult) {
	h.Results = append(h.Results, result)

	if len(h.Results) > 100 {
		h.Results = h.Results[len(h.Results)-100:]
	}
}

// SuccessRate returns the fraction of successful runs, 0 when empty.
func (h *JobHistory) SuccessRate() float64 {
	if len(h.Results) == 0 {
		return 0.0
	}

	successCount := 0
	for _, result := range h.Results {
		if result.Success {
			successCount++
		}
	}

	return float64(successCount) / float64(len(h.Results))
}
