package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/avelardi/atelia-backend/internal/confirmation"
	"github.com/avelardi/atelia-backend/internal/payouts"
	"github.com/avelardi/atelia-backend/pkg/logger"
)

type fakeSweeper struct {
	result confirmation.SweepResult
	err    error
	calls  int
	lastAt time.Time
}

func (f *fakeSweeper) ProcessAutoCompletions(_ context.Context, now time.Time) (confirmation.SweepResult, error) {
	f.calls++
	f.lastAt = now
	return f.result, f.err
}

func TestAutoCompleteJobRunsSweep(t *testing.T) {
	now := time.Date(2026, 5, 2, 12, 0, 0, 0, time.UTC)
	sweeper := &fakeSweeper{result: confirmation.SweepResult{Candidates: 3, Completed: 2, Skipped: 1}}
	jobIface, err := NewAutoCompleteJob(AutoCompleteJobParams{
		Logger:  logger.New(logger.Options{ServiceName: "test"}),
		Sweeper: sweeper,
	})
	if err != nil {
		t.Fatalf("NewAutoCompleteJob: %v", err)
	}
	job := jobIface.(*autoCompleteJob)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sweeper.calls != 1 {
		t.Fatalf("expected one sweep, got %d", sweeper.calls)
	}
	if !sweeper.lastAt.Equal(now) {
		t.Fatalf("expected sweep at %s, got %s", now, sweeper.lastAt)
	}
}

func TestAutoCompleteJobPropagatesError(t *testing.T) {
	sweeper := &fakeSweeper{err: errors.New("boom")}
	job, err := NewAutoCompleteJob(AutoCompleteJobParams{
		Logger:  logger.New(logger.Options{ServiceName: "test"}),
		Sweeper: sweeper,
	})
	if err != nil {
		t.Fatalf("NewAutoCompleteJob: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

type fakePayouts struct {
	scheduled payouts.ScheduledResult
	reconcile payouts.ReconcileResult
	err       error
}

func (f *fakePayouts) RunScheduled(context.Context, time.Time) (payouts.ScheduledResult, error) {
	return f.scheduled, f.err
}

func (f *fakePayouts) Reconcile(context.Context, time.Time) (payouts.ReconcileResult, error) {
	return f.reconcile, f.err
}

func TestPayoutRunJobFailsWhenPayoutsFail(t *testing.T) {
	job, err := NewPayoutRunJob(PayoutRunJobParams{
		Logger:  logger.New(logger.Options{ServiceName: "test"}),
		Payouts: &fakePayouts{scheduled: payouts.ScheduledResult{Due: 2, Processed: 1, Failed: 1}},
	})
	if err != nil {
		t.Fatalf("NewPayoutRunJob: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error when a payout fails")
	}
}

func TestPayoutRunJobSucceedsWithSkips(t *testing.T) {
	job, err := NewPayoutRunJob(PayoutRunJobParams{
		Logger:  logger.New(logger.Options{ServiceName: "test"}),
		Payouts: &fakePayouts{scheduled: payouts.ScheduledResult{Due: 2, Processed: 1, Skipped: 1}},
	})
	if err != nil {
		t.Fatalf("NewPayoutRunJob: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestPayoutReconcileJobFailsWhenStuck(t *testing.T) {
	job, err := NewPayoutReconcileJob(PayoutReconcileJobParams{
		Logger:  logger.New(logger.Options{ServiceName: "test"}),
		Payouts: &fakePayouts{reconcile: payouts.ReconcileResult{Checked: 1, Failed: 1}},
	})
	if err != nil {
		t.Fatalf("NewPayoutReconcileJob: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error when an attempt stays stuck")
	}
}

type fakeRetentionRepo struct {
	batches []int64
	cutoffs []time.Time
	err     error
}

func (f *fakeRetentionRepo) DeletePublishedBefore(cutoff time.Time, _ int) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.cutoffs = append(f.cutoffs, cutoff)
	if len(f.cutoffs) > len(f.batches) {
		return 0, nil
	}
	return f.batches[len(f.cutoffs)-1], nil
}

func TestOutboxRetentionJobDrainsInBatches(t *testing.T) {
	now := time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC)
	repo := &fakeRetentionRepo{batches: []int64{5, 2}}
	jobIface, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "test"}),
		Repository: repo,
		BatchSize:  5,
	})
	if err != nil {
		t.Fatalf("NewOutboxRetentionJob: %v", err)
	}
	job := jobIface.(*outboxRetentionJob)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(repo.cutoffs) != 2 {
		t.Fatalf("expected two delete batches, got %d", len(repo.cutoffs))
	}
	expected := now.Add(-outboxRetentionDays * 24 * time.Hour)
	if !repo.cutoffs[0].Equal(expected) {
		t.Fatalf("expected cutoff %s, got %s", expected, repo.cutoffs[0])
	}
}

func TestOutboxRetentionJobPropagatesError(t *testing.T) {
	job, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "test"}),
		Repository: &fakeRetentionRepo{err: errors.New("boom")},
	})
	if err != nil {
		t.Fatalf("NewOutboxRetentionJob: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

type fakeNotificationCleanupRepo struct {
	cutoff time.Time
	calls  int
	err    error
}

func (f *fakeNotificationCleanupRepo) DeleteReadOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	f.calls++
	f.cutoff = cutoff
	return 4, f.err
}

func TestNotificationCleanupJobUsesRetention(t *testing.T) {
	now := time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC)
	repo := &fakeNotificationCleanupRepo{}
	jobIface, err := NewNotificationCleanupJob(NotificationCleanupJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "test"}),
		Repository: repo,
		Retention:  30,
	})
	if err != nil {
		t.Fatalf("NewNotificationCleanupJob: %v", err)
	}
	job := jobIface.(*notificationCleanupJob)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	expected := now.Add(-30 * 24 * time.Hour)
	if !repo.cutoff.Equal(expected) {
		t.Fatalf("expected cutoff %s, got %s", expected, repo.cutoff)
	}
	if repo.calls != 1 {
		t.Fatalf("expected one delete call, got %d", repo.calls)
	}
}
