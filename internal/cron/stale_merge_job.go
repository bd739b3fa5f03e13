package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/cartsync-backend/pkg/logger"
	"github.com/angelmondragon/cartsync-backend/pkg/metrics"
)

const (
	staleMergeJobName = "stale-merge-reaper"
	defaultStaleAfter = 15 * time.Minute
)

// StaleMergeJobParams configures the stale merge reaper.
type StaleMergeJobParams struct {
	Logger     *logger.Logger
	Repository staleMergeRepository
	Metrics    *metrics.CronJobMetrics
	StaleAfter time.Duration
}

type staleMergeRepository interface {
	DeleteStalePending(ctx context.Context, cutoff time.Time) (int64, error)
}

// NewStaleMergeJob builds the job that resets merge records left pending by a
// crashed merge, so the user's next login can merge again.
func NewStaleMergeJob(params StaleMergeJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("merge repository required")
	}
	staleAfter := params.StaleAfter
	if staleAfter <= 0 {
		staleAfter = defaultStaleAfter
	}
	return &staleMergeJob{
		logg:       params.Logger,
		repo:       params.Repository,
		metrics:    params.Metrics,
		staleAfter: staleAfter,
		now:        time.Now,
	}, nil
}

type staleMergeJob struct {
	logg       *logger.Logger
	repo       staleMergeRepository
	metrics    *metrics.CronJobMetrics
	staleAfter time.Duration
	now        func() time.Time
}

func (j *staleMergeJob) Name() string { return staleMergeJobName }

func (j *staleMergeJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.staleAfter)
	reset, err := j.repo.DeleteStalePending(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("reset stale merges: %w", err)
	}
	j.metrics.AddAffected(staleMergeJobName, reset)

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":      cutoff,
		"stale_after": j.staleAfter.String(),
		"rows_reset":  reset,
	})
	j.logg.Info(logCtx, "stale merge reset complete")
	return nil
}
