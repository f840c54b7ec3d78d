package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SettlementMetrics tracks order completion and payout activity.
type SettlementMetrics struct {
	completions   *prometheus.CounterVec
	payouts       *prometheus.CounterVec
	payoutCents   prometheus.Counter
	creditedCents prometheus.Counter
	feeCents      prometheus.Counter
}

// NewSettlementMetrics registers settlement counters on the provided registerer.
func NewSettlementMetrics(reg prometheus.Registerer) *SettlementMetrics {
	if reg == nil {
		return &SettlementMetrics{}
	}
	completions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_completions",
		Help: "Orders finalized, by trigger (buyer, auto, dispute).",
	}, []string{"trigger"})
	payouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payouts_processed",
		Help: "Payout attempts by outcome (processed, failed, reconciled).",
	}, []string{"outcome"})
	payoutCents := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "payout_cents_total",
		Help: "Total cents paid out to artisans.",
	})
	creditedCents := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "revenue_credited_cents_total",
		Help: "Total net cents credited to artisan wallets.",
	})
	feeCents := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "platform_fee_cents_total",
		Help: "Total platform fee cents collected.",
	})
	reg.MustRegister(completions, payouts, payoutCents, creditedCents, feeCents)
	return &SettlementMetrics{
		completions:   completions,
		payouts:       payouts,
		payoutCents:   payoutCents,
		creditedCents: creditedCents,
		feeCents:      feeCents,
	}
}

// IncCompletion records a finalized order for the given trigger.
func (s *SettlementMetrics) IncCompletion(trigger string) {
	if s == nil || s.completions == nil {
		return
	}
	s.completions.WithLabelValues(normalizeLabel(trigger)).Inc()
}

// IncPayout records a payout attempt outcome.
func (s *SettlementMetrics) IncPayout(outcome string) {
	if s == nil || s.payouts == nil {
		return
	}
	s.payouts.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// AddPayoutCents accumulates cents paid out.
func (s *SettlementMetrics) AddPayoutCents(cents int64) {
	if s == nil || s.payoutCents == nil || cents <= 0 {
		return
	}
	s.payoutCents.Add(float64(cents))
}

// AddCreditedCents accumulates net revenue credited to wallets.
func (s *SettlementMetrics) AddCreditedCents(cents int64) {
	if s == nil || s.creditedCents == nil || cents <= 0 {
		return
	}
	s.creditedCents.Add(float64(cents))
}

// AddFeeCents accumulates platform fees collected.
func (s *SettlementMetrics) AddFeeCents(cents int64) {
	if s == nil || s.feeCents == nil || cents <= 0 {
		return
	}
	s.feeCents.Add(float64(cents))
}
