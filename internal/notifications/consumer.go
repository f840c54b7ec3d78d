package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/avelardi/atelia-backend/pkg/db/models"
	"github.com/avelardi/atelia-backend/pkg/enums"
	"github.com/avelardi/atelia-backend/pkg/logger"
	"github.com/avelardi/atelia-backend/pkg/outbox"
	"github.com/avelardi/atelia-backend/pkg/outbox/idempotency"
	"github.com/avelardi/atelia-backend/pkg/outbox/payloads"
)

const settlementNotificationConsumer = "settlement-notifications"

type repository interface {
	Create(ctx context.Context, notification *models.Notification) error
}

// Consumer watches settlement events and turns them into in-app notifications
// for the affected buyer and artisan.
type Consumer struct {
	repo         repository
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	logg         *logger.Logger
}

// NewConsumer builds a settlement notification consumer.
func NewConsumer(repo repository, subscription *pubsub.Subscriber, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("domain subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
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

	if !eventType.IsValid() {
		c.logg.Info(logCtx, "skipping unknown event type")
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

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, settlementNotificationConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	if err := c.handleEvent(ctx, eventType, envelope.Data, logCtx); err != nil {
		c.logg.Error(logCtx, "notification handling failed", err)
		_ = c.idempotency.Delete(ctx, settlementNotificationConsumer, eventID)
		return processResult{nack: true}
	}
	return processResult{ack: true}
}

func (c *Consumer) handleEvent(ctx context.Context, eventType enums.OutboxEventType, data json.RawMessage, logCtx context.Context) error {
	switch eventType {
	case enums.EventConfirmationPending:
		var payload payloads.ConfirmationPendingEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("parse confirmation payload: %w", err)
		}
		return c.notifyConfirmationPending(ctx, payload, logCtx)
	case enums.EventOrderCompleted:
		var payload payloads.OrderCompletedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("parse completion payload: %w", err)
		}
		return c.notifyOrderCompleted(ctx, payload, logCtx)
	case enums.EventDisputeReported:
		var payload payloads.DisputeReportedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("parse dispute payload: %w", err)
		}
		return c.notifyDisputeReported(ctx, payload, logCtx)
	case enums.EventDisputeStatusChanged:
		var payload payloads.DisputeStatusChangedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("parse dispute status payload: %w", err)
		}
		return c.notifyDisputeStatus(ctx, payload, logCtx)
	case enums.EventDisputeResolved:
		var payload payloads.DisputeResolvedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("parse resolution payload: %w", err)
		}
		return c.notifyDisputeResolved(ctx, payload, logCtx)
	case enums.EventPayoutProcessed:
		var payload payloads.PayoutProcessedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("parse payout payload: %w", err)
		}
		return c.notifyPayoutProcessed(ctx, payload, logCtx)
	default:
		c.logg.Info(logCtx, "event type not handled")
		return nil
	}
}

func (c *Consumer) notifyConfirmationPending(ctx context.Context, payload payloads.ConfirmationPendingEvent, logCtx context.Context) error {
	// Guest buyers have no account to notify in-app; email delivery is a
	// separate channel.
	if payload.BuyerID == nil {
		c.logg.Info(logCtx, "guest order, no in-app recipient")
		return nil
	}
	link := fmt.Sprintf("/orders/%s/confirm", payload.OrderID)
	notification := &models.Notification{
		RecipientID:   *payload.BuyerID,
		RecipientRole: enums.ActorRoleBuyer,
		Type:          enums.NotificationConfirmationPending,
		Title:         "Confirm your order",
		Message:       fmt.Sprintf("The seller marked your order as handed off. Please confirm receipt before %s.", payload.CompletionDeadline.Format("Jan 2, 15:04 MST")),
		Link:          &link,
		OrderID:       &payload.OrderID,
	}
	if err := c.repo.Create(ctx, notification); err != nil {
		return err
	}
	c.logg.Info(logCtx, "buyer notified of pending confirmation")
	return nil
}

func (c *Consumer) notifyOrderCompleted(ctx context.Context, payload payloads.OrderCompletedEvent, logCtx context.Context) error {
	link := fmt.Sprintf("/orders/%s", payload.OrderID)
	artisanNote := &models.Notification{
		RecipientID:   payload.ArtisanID,
		RecipientRole: enums.ActorRoleArtisan,
		Type:          enums.NotificationOrderCompleted,
		Title:         "Order completed",
		Message:       fmt.Sprintf("Order completed, %s credited to your wallet.", formatCents(payload.NetAmountCents)),
		Link:          &link,
		OrderID:       &payload.OrderID,
	}
	if err := c.repo.Create(ctx, artisanNote); err != nil {
		return err
	}
	if payload.BuyerID != nil {
		buyerNote := &models.Notification{
			RecipientID:   *payload.BuyerID,
			RecipientRole: enums.ActorRoleBuyer,
			Type:          enums.NotificationOrderCompleted,
			Title:         "Order completed",
			Message:       "Your order is complete. Thanks for shopping with us.",
			Link:          &link,
			OrderID:       &payload.OrderID,
		}
		if err := c.repo.Create(ctx, buyerNote); err != nil {
			return err
		}
	}
	c.logg.Info(logCtx, "parties notified of completion")
	return nil
}

func (c *Consumer) notifyDisputeReported(ctx context.Context, payload payloads.DisputeReportedEvent, logCtx context.Context) error {
	link := fmt.Sprintf("/orders/%s/dispute", payload.OrderID)
	notification := &models.Notification{
		RecipientID:   payload.ReportedBy,
		RecipientRole: payload.ReportedByRole,
		Type:          enums.NotificationDisputeUpdate,
		Title:         "Dispute received",
		Message:       "We received your dispute. Settlement is on hold while our team reviews it.",
		Link:          &link,
		OrderID:       &payload.OrderID,
	}
	if err := c.repo.Create(ctx, notification); err != nil {
		return err
	}
	c.logg.Info(logCtx, "reporter notified of dispute intake")
	return nil
}

func (c *Consumer) notifyDisputeStatus(ctx context.Context, payload payloads.DisputeStatusChangedEvent, logCtx context.Context) error {
	link := fmt.Sprintf("/orders/%s/dispute", payload.OrderID)
	notification := &models.Notification{
		RecipientID:   payload.ChangedBy,
		RecipientRole: enums.ActorRoleAdmin,
		Type:          enums.NotificationDisputeUpdate,
		Title:         "Dispute updated",
		Message:       fmt.Sprintf("Dispute status moved to %s.", payload.Status),
		Link:          &link,
		OrderID:       &payload.OrderID,
	}
	if err := c.repo.Create(ctx, notification); err != nil {
		return err
	}
	c.logg.Info(logCtx, "dispute status notification stored")
	return nil
}

func (c *Consumer) notifyDisputeResolved(ctx context.Context, payload payloads.DisputeResolvedEvent, logCtx context.Context) error {
	link := fmt.Sprintf("/orders/%s/dispute", payload.OrderID)
	notification := &models.Notification{
		RecipientID:   payload.ResolvedBy,
		RecipientRole: enums.ActorRoleAdmin,
		Type:          enums.NotificationDisputeUpdate,
		Title:         "Dispute resolved",
		Message:       fmt.Sprintf("Dispute closed with resolution %s.", payload.Resolution),
		Link:          &link,
		OrderID:       &payload.OrderID,
	}
	if err := c.repo.Create(ctx, notification); err != nil {
		return err
	}
	c.logg.Info(logCtx, "dispute resolution notification stored")
	return nil
}

func (c *Consumer) notifyPayoutProcessed(ctx context.Context, payload payloads.PayoutProcessedEvent, logCtx context.Context) error {
	link := "/wallet"
	notification := &models.Notification{
		RecipientID:   payload.ArtisanID,
		RecipientRole: enums.ActorRoleArtisan,
		Type:          enums.NotificationPayoutProcessed,
		Title:         "Payout on the way",
		Message:       fmt.Sprintf("%s is on its way to your bank account.", formatCents(payload.AmountCents)),
		Link:          &link,
	}
	if err := c.repo.Create(ctx, notification); err != nil {
		return err
	}
	c.logg.Info(logCtx, "artisan notified of payout")
	return nil
}

func formatCents(cents int64) string {
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}
