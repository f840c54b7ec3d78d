package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/avelardi/atelia-backend/internal/confirmation"
	"github.com/avelardi/atelia-backend/pkg/logger"
	"github.com/avelardi/atelia-backend/pkg/metrics"
)

type AutoCompleteJobParams struct {
	Logger  *logger.Logger
	Sweeper autoCompleteSweeper
	Metrics *metrics.SettlementMetrics
}

type autoCompleteSweeper interface {
	ProcessAutoCompletions(ctx context.Context, now time.Time) (confirmation.SweepResult, error)
}

// NewAutoCompleteJob builds the sweep that finalizes orders whose buyer
// confirmation window expired.
func NewAutoCompleteJob(params AutoCompleteJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Sweeper == nil {
		return nil, fmt.Errorf("confirmation sweeper required")
	}
	return &autoCompleteJob{
		logg:    params.Logger,
		sweeper: params.Sweeper,
		metrics: params.Metrics,
		now:     time.Now,
	}, nil
}

type autoCompleteJob struct {
	logg    *logger.Logger
	sweeper autoCompleteSweeper
	metrics *metrics.SettlementMetrics
	now     func() time.Time
}

func (j *autoCompleteJob) Name() string { return "auto-complete" }

func (j *autoCompleteJob) Run(ctx context.Context) error {
	result, err := j.sweeper.ProcessAutoCompletions(ctx, j.now().UTC())
	if err != nil {
		return fmt.Errorf("auto-complete sweep: %w", err)
	}
	if j.metrics != nil {
		for i := 0; i < result.Completed; i++ {
			j.metrics.IncCompletion("auto")
		}
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"candidates": result.Candidates,
		"completed":  result.Completed,
		"skipped":    result.Skipped,
		"failed":     result.Failed,
	})
	j.logg.Info(logCtx, "auto-complete sweep finished")
	// Per-order failures stay claimable and are retried on the next sweep.
	return nil
}
