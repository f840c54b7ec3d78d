package refunds

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	sq "github.com/square/square-go-sdk"

	"github.com/avelardi/atelia-backend/pkg/enums"
	"github.com/avelardi/atelia-backend/pkg/logger"
	"github.com/avelardi/atelia-backend/pkg/outbox"
	"github.com/avelardi/atelia-backend/pkg/outbox/idempotency"
	"github.com/avelardi/atelia-backend/pkg/outbox/payloads"
	"github.com/avelardi/atelia-backend/pkg/square"
)

const settlementRefundConsumer = "settlement-refunds"

// processor is the buyer-side card processor the refund is pushed through.
type processor interface {
	RefundPayment(ctx context.Context, params square.RefundCreateParams) (*sq.PaymentRefund, error)
}

// Consumer executes buyer refunds decided by dispute resolution. The dispute
// service records the decision and emits the event; actual money movement
// happens here, off the request path.
type Consumer struct {
	processor    processor
	repo         Repository
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	logg         *logger.Logger
}

// NewConsumer builds a refund-execution consumer.
func NewConsumer(proc processor, repo Repository, subscription *pubsub.Subscriber, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if proc == nil {
		return nil, fmt.Errorf("refund processor required")
	}
	if repo == nil {
		return nil, fmt.Errorf("refunds repository required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("refund subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		processor:    proc,
		repo:         repo,
		subscription: subscription,
		idempotency:  manager,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := enums.OutboxEventType(msg.Attributes["event_type"])
	fields := map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	}
	logCtx := c.logg.WithFields(ctx, fields)

	if eventType != enums.EventRefundRequested {
		// The settlement topic also carries payout events; they are not ours.
		c.logg.Info(logCtx, "event type not handled")
		return processResult{ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, settlementRefundConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	var payload payloads.RefundRequestedEvent
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		c.logg.Error(logCtx, "failed to decode refund payload", err)
		return processResult{ack: true}
	}

	if err := c.executeRefund(ctx, payload, logCtx); err != nil {
		c.logg.Error(logCtx, "refund execution failed", err)
		_ = c.idempotency.Delete(ctx, settlementRefundConsumer, eventID)
		return processResult{nack: true}
	}
	return processResult{ack: true}
}

func (c *Consumer) executeRefund(ctx context.Context, payload payloads.RefundRequestedEvent, logCtx context.Context) error {
	logCtx = c.logg.WithFields(logCtx, map[string]any{
		"order_id":   payload.OrderID,
		"dispute_id": payload.DisputeID,
		"amount":     payload.AmountCents,
	})

	if payload.SquarePaymentID == nil || *payload.SquarePaymentID == "" {
		// Orders imported or paid outside Square cannot be refunded through
		// the processor; support handles these manually.
		c.logg.Warn(logCtx, "order has no processor payment id, manual refund required")
		return nil
	}
	if payload.AmountCents <= 0 {
		c.logg.Warn(logCtx, "refund amount not positive, skipping")
		return nil
	}

	refund, err := c.processor.RefundPayment(ctx, square.RefundCreateParams{
		PaymentID:   *payload.SquarePaymentID,
		AmountCents: payload.AmountCents,
		Currency:    string(payload.Currency),
		Reason:      payload.Reason,
		// Keyed by dispute so redeliveries reuse the same refund on the
		// processor side.
		IdempotencyKey: fmt.Sprintf("refund-%s", payload.DisputeID),
	})
	if err != nil {
		return err
	}

	refundID := refundIDValue(refund)
	if refundID == "" {
		c.logg.Warn(logCtx, "processor returned refund without id")
		return nil
	}
	if err := c.repo.RecordRefund(ctx, payload.OrderID, refundID); err != nil {
		return fmt.Errorf("record refund reference: %w", err)
	}

	c.logg.Info(c.logg.WithField(logCtx, "refund_id", refundID), "buyer refund executed")
	return nil
}

func refundIDValue(refund *sq.PaymentRefund) string {
	if refund == nil {
		return ""
	}
	return refund.GetID()
}
