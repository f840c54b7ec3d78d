package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestOutboxMetricsExportsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOutboxMetrics(reg)
	m.IncPublished("order.completed")
	m.IncPublished("order.completed")
	m.IncFailed("payout.processed")
	m.IncDeadLettered()
	m.SetBacklog(7)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "outbox_events_published", "event_type", "order.completed"); err != nil {
		t.Fatalf("fetch published: %v", err)
	} else if got != 2 {
		t.Fatalf("expected published=2, got %f", got)
	}
	if got, err := fetchCounterValue(mfs, "outbox_events_failed", "event_type", "payout.processed"); err != nil {
		t.Fatalf("fetch failed: %v", err)
	} else if got != 1 {
		t.Fatalf("expected failed=1, got %f", got)
	}

	backlog := findMetricFamily(mfs, "outbox_backlog")
	if backlog == nil || len(backlog.GetMetric()) != 1 {
		t.Fatalf("backlog gauge missing")
	}
	if got := backlog.GetMetric()[0].GetGauge().GetValue(); got != 7 {
		t.Fatalf("expected backlog=7, got %f", got)
	}
}

func TestSettlementMetricsAccumulates(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSettlementMetrics(reg)
	m.IncCompletion("auto")
	m.IncPayout("processed")
	m.AddPayoutCents(5000)
	m.AddCreditedCents(9000)
	m.AddFeeCents(1000)
	// Non-positive amounts are ignored.
	m.AddPayoutCents(-100)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "order_completions", "trigger", "auto"); err != nil {
		t.Fatalf("fetch completions: %v", err)
	} else if got != 1 {
		t.Fatalf("expected completions=1, got %f", got)
	}

	total := findMetricFamily(mfs, "payout_cents_total")
	if total == nil || len(total.GetMetric()) != 1 {
		t.Fatalf("payout total missing")
	}
	if got := total.GetMetric()[0].GetCounter().GetValue(); got != 5000 {
		t.Fatalf("expected payout cents 5000, got %f", got)
	}
}

func TestNilRegistererReturnsNoopMetrics(t *testing.T) {
	// All recorders must be safe to call when metrics are disabled.
	o := NewOutboxMetrics(nil)
	o.IncPublished("x")
	o.IncFailed("x")
	o.IncDeadLettered()
	o.SetBacklog(1)

	s := NewSettlementMetrics(nil)
	s.IncCompletion("x")
	s.IncPayout("x")
	s.AddPayoutCents(1)
	s.AddCreditedCents(1)
	s.AddFeeCents(1)

	c := NewCronJobMetrics(nil)
	c.IncSuccess("x")
	c.IncFailure("x")
}
