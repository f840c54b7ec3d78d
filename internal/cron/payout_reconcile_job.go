package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/avelardi/atelia-backend/internal/payouts"
	"github.com/avelardi/atelia-backend/pkg/logger"
)

type PayoutReconcileJobParams struct {
	Logger  *logger.Logger
	Payouts payoutReconciler
}

type payoutReconciler interface {
	Reconcile(ctx context.Context, now time.Time) (payouts.ReconcileResult, error)
}

// NewPayoutReconcileJob builds the pass that replays ledger debits for
// payouts whose external transfer completed but whose debit never landed.
func NewPayoutReconcileJob(params PayoutReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Payouts == nil {
		return nil, fmt.Errorf("payout service required")
	}
	return &payoutReconcileJob{
		logg:    params.Logger,
		payouts: params.Payouts,
		now:     time.Now,
	}, nil
}

type payoutReconcileJob struct {
	logg    *logger.Logger
	payouts payoutReconciler
	now     func() time.Time
}

func (j *payoutReconcileJob) Name() string { return "payout-reconcile" }

func (j *payoutReconcileJob) Run(ctx context.Context) error {
	result, err := j.payouts.Reconcile(ctx, j.now().UTC())
	if err != nil {
		return fmt.Errorf("payout reconcile: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"checked":   result.Checked,
		"recovered": result.Recovered,
		"failed":    result.Failed,
	})
	j.logg.Info(logCtx, "payout reconciliation finished")
	if result.Failed > 0 {
		return fmt.Errorf("payout reconcile: %d of %d attempts still stuck", result.Failed, result.Checked)
	}
	return nil
}
