package confirmation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/avelardi/atelia-backend/pkg/db/models"
	"github.com/avelardi/atelia-backend/pkg/enums"
	pkgerrors "github.com/avelardi/atelia-backend/pkg/errors"
	"github.com/avelardi/atelia-backend/pkg/identity"
	"github.com/avelardi/atelia-backend/pkg/logger"
	"github.com/avelardi/atelia-backend/pkg/outbox"
	"github.com/avelardi/atelia-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitOnce(ctx context.Context, tx *gorm.DB, dedupeKey string, event outbox.DomainEvent) error
}

// RevenueCrediter is the wallet ledger dependency Finalize uses to land the
// seller's net revenue in the same transaction as the order flip.
type RevenueCrediter interface {
	CreditOrderRevenueTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*models.WalletTransaction, error)
}

// Service drives the two-party fulfillment confirmation state machine.
type Service interface {
	ConfirmArtisan(ctx context.Context, input ConfirmArtisanInput) (*models.FulfillmentConfirmation, error)
	ConfirmBuyer(ctx context.Context, input ConfirmBuyerInput) (*models.FulfillmentConfirmation, error)
	GetConfirmation(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	// FinalizeTx flips the order to its terminal state, credits the seller's
	// wallet, and queues the completion event, all inside tx. Idempotent:
	// returns false without side effects when the order is already finalized.
	// The claim requires payment_status = pending, so a dispute hold that
	// committed after this transaction's reads still blocks the settlement.
	FinalizeTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, autoCompleted bool) (bool, error)
	// FinalizeHeldTx settles an order held in dispute. Only the dispute
	// resolution path calls it, with the dispute row already updated in tx.
	FinalizeHeldTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (bool, error)
	ProcessAutoCompletions(ctx context.Context, now time.Time) (SweepResult, error)
}

// ConfirmArtisanInput carries the seller's handoff acknowledgment.
type ConfirmArtisanInput struct {
	OrderID   uuid.UUID
	ArtisanID identity.ArtisanID
	UserID    uuid.UUID
	Leg       enums.ConfirmationLeg
	Notes     *string
}

// ConfirmBuyerInput carries the buyer's receipt acknowledgment. Guest buyers
// identify with the contact email stored on the order.
type ConfirmBuyerInput struct {
	OrderID    uuid.UUID
	BuyerID    *identity.UserID
	GuestEmail *string
	Notes      *string
}

// SweepResult summarizes one auto-completion run.
type SweepResult struct {
	Candidates int
	Completed  int
	Skipped    int
	Failed     int
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxEmitter
	ledger RevenueCrediter
	logg   *logger.Logger
	window time.Duration
	now    func() time.Time
}

// NewService builds a confirmation service. window is the buyer's response
// window applied when the seller confirms (24h in production configuration).
func NewService(repo Repository, tx txRunner, emitter outboxEmitter, ledger RevenueCrediter, logg *logger.Logger, window time.Duration, now func() time.Time) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("confirmation repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("revenue crediter required")
	}
	if window <= 0 {
		return nil, fmt.Errorf("confirmation window must be positive")
	}
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:   repo,
		tx:     tx,
		outbox: emitter,
		ledger: ledger,
		logg:   logg,
		window: window,
		now:    now,
	}, nil
}

// LegForDeliveryMethod maps a delivery method to the confirmation leg it uses.
func LegForDeliveryMethod(method enums.DeliveryMethod) enums.ConfirmationLeg {
	if method == enums.DeliveryMethodPickup {
		return enums.ConfirmationLegPickup
	}
	return enums.ConfirmationLegDelivery
}

func (s *service) ConfirmArtisan(ctx context.Context, input ConfirmArtisanInput) (*models.FulfillmentConfirmation, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.ArtisanID.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "artisan identity missing")
	}
	if !input.Leg.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid confirmation leg")
	}

	var result *models.FulfillmentConfirmation
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindOrder(ctx, input.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.ArtisanID != input.ArtisanID {
			return pkgerrors.New(pkgerrors.CodeUnauthorized, "order does not belong to artisan")
		}
		if LegForDeliveryMethod(order.DeliveryMethod) != input.Leg {
			return pkgerrors.New(pkgerrors.CodeWrongDeliveryMethod, "confirmation leg does not match delivery method")
		}

		now := s.now().UTC()
		deadline := now.Add(s.window)

		conf := order.Confirmation
		if conf != nil && conf.ArtisanConfirmed {
			// Repeat confirmation keeps the original deadline.
			result = conf
			return nil
		}

		if conf == nil {
			conf = &models.FulfillmentConfirmation{
				OrderID:            order.ID,
				Leg:                input.Leg,
				ArtisanConfirmed:   true,
				ArtisanConfirmedAt: &now,
				ArtisanNotes:       input.Notes,
				CompletionDeadline: &deadline,
			}
			if err := repo.CreateConfirmation(ctx, conf); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create confirmation")
			}
		} else {
			updates := map[string]any{
				"artisan_confirmed":    true,
				"artisan_confirmed_at": now,
				"completion_deadline":  deadline,
			}
			if input.Notes != nil {
				updates["artisan_notes"] = *input.Notes
			}
			if err := repo.UpdateConfirmation(ctx, conf.ID, updates); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update confirmation")
			}
			conf.ArtisanConfirmed = true
			conf.ArtisanConfirmedAt = &now
			if input.Notes != nil {
				conf.ArtisanNotes = input.Notes
			}
			conf.CompletionDeadline = &deadline
		}
		result = conf

		event := outbox.DomainEvent{
			EventType:     enums.EventConfirmationPending,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         artisanActor(input.UserID, input.ArtisanID),
			Data: payloads.ConfirmationPendingEvent{
				OrderID:            order.ID,
				ArtisanID:          order.ArtisanID.UUID(),
				BuyerID:            buyerUUID(order.BuyerID),
				GuestEmail:         order.GuestEmail,
				Leg:                input.Leg,
				CompletionDeadline: deadline,
			},
		}
		key := fmt.Sprintf("confirmation.pending:%s", order.ID)
		return s.outbox.EmitOnce(ctx, tx, key, event)
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithOrderID(ctx, input.OrderID.String()), "artisan confirmed fulfillment")
	}
	return result, nil
}

func (s *service) ConfirmBuyer(ctx context.Context, input ConfirmBuyerInput) (*models.FulfillmentConfirmation, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if (input.BuyerID == nil || input.BuyerID.IsZero()) && trimmedEmail(input.GuestEmail) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "buyer identity missing")
	}

	var result *models.FulfillmentConfirmation
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindOrder(ctx, input.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if !buyerMatches(order, input) {
			return pkgerrors.New(pkgerrors.CodeUnauthorized, "caller is not the order's buyer")
		}
		if order.IsDisputed() {
			return pkgerrors.New(pkgerrors.CodeDisputed, "order has an open dispute")
		}

		conf := order.Confirmation
		if conf == nil || !conf.ArtisanConfirmed {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "seller has not confirmed yet")
		}

		now := s.now().UTC()
		if !conf.BuyerConfirmed {
			updates := map[string]any{
				"buyer_confirmed":    true,
				"buyer_confirmed_at": now,
			}
			if input.Notes != nil {
				updates["buyer_notes"] = *input.Notes
			}
			if err := repo.UpdateConfirmation(ctx, conf.ID, updates); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update confirmation")
			}
			conf.BuyerConfirmed = true
			conf.BuyerConfirmedAt = &now
			if input.Notes != nil {
				conf.BuyerNotes = input.Notes
			}
		}
		result = conf

		_, err = s.FinalizeTx(ctx, tx, order.ID, false)
		return err
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithOrderID(ctx, input.OrderID.String()), "buyer confirmed fulfillment")
	}
	return result, nil
}

func (s *service) GetConfirmation(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) FinalizeTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, autoCompleted bool) (bool, error) {
	return s.finalize(ctx, tx, orderID, autoCompleted, enums.PaymentStatusPending)
}

func (s *service) FinalizeHeldTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (bool, error) {
	return s.finalize(ctx, tx, orderID, false, enums.PaymentStatusHeldInDispute)
}

func (s *service) finalize(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, autoCompleted bool, claimFrom enums.PaymentStatus) (bool, error) {
	repo := s.repo.WithTx(tx)

	// Re-read the dispute flag inside this transaction: a dispute committed
	// after the caller's earlier read must still block the money movement.
	dispute, err := repo.FindDispute(ctx, orderID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load dispute")
	}
	if dispute != nil && dispute.IsDisputed {
		return false, pkgerrors.New(pkgerrors.CodeDisputed, "order has an open dispute")
	}

	order, err := repo.FindOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}

	now := s.now().UTC()
	status := terminalStatus(order.DeliveryMethod)
	won, err := repo.MarkOrderFinalized(ctx, orderID, status, now, claimFrom)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "finalize order")
	}
	if !won {
		// Another writer finalized first, or the payment left the expected
		// state (a dispute hold committed under this claim). Nothing to do.
		return false, nil
	}

	row, err := s.ledger.CreditOrderRevenueTx(ctx, tx, orderID)
	if err != nil {
		return false, err
	}

	var netCents, feeCents int64
	if row != nil {
		netCents = row.AmountCents
		if row.Metadata.PlatformFeeCents != nil {
			feeCents = *row.Metadata.PlatformFeeCents
		}
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventOrderCompleted,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Data: payloads.OrderCompletedEvent{
			OrderID:          orderID,
			ArtisanID:        order.ArtisanID.UUID(),
			BuyerID:          buyerUUID(order.BuyerID),
			Status:           status,
			AutoCompleted:    autoCompleted,
			NetAmountCents:   netCents,
			PlatformFeeCents: feeCents,
			CompletedAt:      now,
		},
	}
	key := fmt.Sprintf("order.completed:%s", orderID)
	if err := s.outbox.EmitOnce(ctx, tx, key, event); err != nil {
		return false, err
	}
	return true, nil
}

func (s *service) ProcessAutoCompletions(ctx context.Context, now time.Time) (SweepResult, error) {
	var result SweepResult

	candidates, err := s.repo.ListAutoCompleteCandidates(ctx, now, 0)
	if err != nil {
		return result, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list auto-complete candidates")
	}
	result.Candidates = len(candidates)

	for _, candidate := range candidates {
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			claimed, err := repo.ClaimAutoComplete(ctx, candidate.ID, now)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim auto-complete")
			}
			if !claimed {
				result.Skipped++
				return nil
			}
			finalized, err := s.FinalizeTx(ctx, tx, candidate.OrderID, true)
			if err != nil {
				// Rolling back also releases the claim so the next sweep
				// retries this order.
				return err
			}
			if finalized {
				result.Completed++
			} else {
				result.Skipped++
			}
			return nil
		})
		if err != nil {
			result.Failed++
			if s.logg != nil {
				s.logg.Error(s.logg.WithOrderID(ctx, candidate.OrderID.String()), "auto-completion failed", err)
			}
		}
	}

	if s.logg != nil {
		fields := map[string]any{
			"candidates": result.Candidates,
			"completed":  result.Completed,
			"skipped":    result.Skipped,
			"failed":     result.Failed,
		}
		s.logg.Info(s.logg.WithFields(ctx, fields), "auto-completion sweep finished")
	}
	return result, nil
}

func terminalStatus(method enums.DeliveryMethod) enums.OrderStatus {
	if method == enums.DeliveryMethodPickup {
		return enums.OrderStatusPickedUp
	}
	return enums.OrderStatusDelivered
}

func buyerMatches(order *models.Order, input ConfirmBuyerInput) bool {
	if input.BuyerID != nil && !input.BuyerID.IsZero() {
		return order.BuyerID != nil && *order.BuyerID == *input.BuyerID
	}
	email := trimmedEmail(input.GuestEmail)
	return email != "" && order.GuestEmail != nil && strings.EqualFold(*order.GuestEmail, email)
}

func trimmedEmail(email *string) string {
	if email == nil {
		return ""
	}
	return strings.TrimSpace(*email)
}

func buyerUUID(buyer *identity.UserID) *uuid.UUID {
	if buyer == nil {
		return nil
	}
	id := buyer.UUID()
	return &id
}

func artisanActor(userID uuid.UUID, artisan identity.ArtisanID) *outbox.ActorRef {
	if userID == uuid.Nil {
		return nil
	}
	id := artisan.UUID()
	return &outbox.ActorRef{
		UserID:    userID,
		ArtisanID: &id,
		Role:      string(enums.ActorRoleArtisan),
	}
}
