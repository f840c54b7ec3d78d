package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/avelardi/atelia-backend/internal/payouts"
	"github.com/avelardi/atelia-backend/pkg/logger"
)

type PayoutRunJobParams struct {
	Logger  *logger.Logger
	Payouts scheduledPayoutRunner
}

type scheduledPayoutRunner interface {
	RunScheduled(ctx context.Context, now time.Time) (payouts.ScheduledResult, error)
}

// NewPayoutRunJob builds the scheduled payout run over all due wallets.
func NewPayoutRunJob(params PayoutRunJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Payouts == nil {
		return nil, fmt.Errorf("payout service required")
	}
	return &payoutRunJob{
		logg:    params.Logger,
		payouts: params.Payouts,
		now:     time.Now,
	}, nil
}

type payoutRunJob struct {
	logg    *logger.Logger
	payouts scheduledPayoutRunner
	now     func() time.Time
}

func (j *payoutRunJob) Name() string { return "payout-run" }

func (j *payoutRunJob) Run(ctx context.Context) error {
	result, err := j.payouts.RunScheduled(ctx, j.now().UTC())
	if err != nil {
		return fmt.Errorf("scheduled payout run: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"due":       result.Due,
		"processed": result.Processed,
		"skipped":   result.Skipped,
		"failed":    result.Failed,
	})
	j.logg.Info(logCtx, "scheduled payout run finished")
	if result.Failed > 0 {
		return fmt.Errorf("scheduled payout run: %d of %d payouts failed", result.Failed, result.Due)
	}
	return nil
}
