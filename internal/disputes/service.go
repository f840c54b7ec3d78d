package disputes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/avelardi/atelia-backend/internal/audit"
	"github.com/avelardi/atelia-backend/pkg/db/models"
	"github.com/avelardi/atelia-backend/pkg/enums"
	pkgerrors "github.com/avelardi/atelia-backend/pkg/errors"
	"github.com/avelardi/atelia-backend/pkg/logger"
	"github.com/avelardi/atelia-backend/pkg/outbox"
	"github.com/avelardi/atelia-backend/pkg/outbox/payloads"
	"github.com/avelardi/atelia-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitOnce(ctx context.Context, tx *gorm.DB, dedupeKey string, event outbox.DomainEvent) error
}

// Finalizer settles an order in the seller's favor after a resolution. It is
// the confirmation state machine's held-payment settlement path, which claims
// the order from held_in_dispute rather than pending.
type Finalizer interface {
	FinalizeHeldTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (bool, error)
}

// Service covers dispute reporting by the parties and the admin workflow.
type Service interface {
	Report(ctx context.Context, input ReportInput) (*models.Dispute, error)
	UpdateStatus(ctx context.Context, input UpdateStatusInput) (*models.Dispute, error)
	Resolve(ctx context.Context, input ResolveInput) (*models.Dispute, error)
	GetByOrder(ctx context.Context, orderID uuid.UUID) (*models.Dispute, error)
	List(ctx context.Context, input ListInput) ([]models.Dispute, string, error)
	Statistics(ctx context.Context, filter ListFilter) (*Statistics, error)
}

// ReportInput is filed by the order's buyer or seller.
type ReportInput struct {
	OrderID   uuid.UUID
	ActorID   uuid.UUID
	ActorRole enums.ActorRole
	Type      enums.DisputeType
	Reason    string
	Details   *string
	Evidence  []string
}

// UpdateStatusInput moves a dispute through the admin workflow.
type UpdateStatusInput struct {
	OrderID uuid.UUID
	AdminID uuid.UUID
	Status  enums.DisputeStatus
	Notes   *string
}

// ResolveInput records the admin's final decision and triggers the financial
// branch.
type ResolveInput struct {
	OrderID    uuid.UUID
	AdminID    uuid.UUID
	Resolution enums.DisputeResolution
	Notes      *string
}

// ListInput pages through disputes with optional filters.
type ListInput struct {
	Filter ListFilter
	Page   pagination.Params
}

// Statistics summarizes stored disputes.
type Statistics struct {
	Total                    int64
	ByStatus                 map[string]int64
	ByType                   map[string]int64
	Resolved                 int64
	AverageResolutionSeconds float64
}

type service struct {
	repo      Repository
	tx        txRunner
	outbox    outboxEmitter
	finalizer Finalizer
	audit     audit.Recorder
	logg      *logger.Logger
	now       func() time.Time
}

// NewService wires the dispute workflow with its collaborators.
func NewService(repo Repository, tx txRunner, emitter outboxEmitter, finalizer Finalizer, auditRec audit.Recorder, logg *logger.Logger, now func() time.Time) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("dispute repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if finalizer == nil {
		return nil, fmt.Errorf("finalizer required")
	}
	if auditRec == nil {
		return nil, fmt.Errorf("audit recorder required")
	}
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:      repo,
		tx:        tx,
		outbox:    emitter,
		finalizer: finalizer,
		audit:     auditRec,
		logg:      logg,
		now:       now,
	}, nil
}

func (s *service) Report(ctx context.Context, input ReportInput) (*models.Dispute, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "reporter identity missing")
	}
	if !input.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid dispute type")
	}
	if input.Reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "dispute reason required")
	}

	var dispute *models.Dispute
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindOrder(ctx, input.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if !reporterIsParty(order, input.ActorID, input.ActorRole) {
			return pkgerrors.New(pkgerrors.CodeUnauthorized, "only the order's buyer or seller can report a dispute")
		}
		if order.Dispute != nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "dispute already reported for this order")
		}
		if order.PaymentStatus != enums.PaymentStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is already settled")
		}

		now := s.now().UTC()
		dispute = &models.Dispute{
			OrderID:        order.ID,
			IsDisputed:     true,
			Type:           input.Type,
			Reason:         input.Reason,
			Details:        input.Details,
			Evidence:       input.Evidence,
			ReportedBy:     input.ActorID,
			ReportedByRole: input.ActorRole,
			ReportedAt:     now,
			Status:         enums.DisputeStatusOpen,
		}
		if err := repo.Create(ctx, dispute); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create dispute")
		}

		held, err := repo.UpdateOrderPaymentStatus(ctx, order.ID, enums.PaymentStatusPending, enums.PaymentStatusHeldInDispute)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "hold order payment")
		}
		if !held {
			// Finalize won a concurrent race; money already moved.
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order settled before dispute could be recorded")
		}

		if err := s.audit.Record(ctx, tx, audit.Entry{
			ActorID:    input.ActorID,
			ActorRole:  input.ActorRole,
			Action:     "dispute.reported",
			TargetType: "dispute",
			TargetID:   dispute.ID,
			After:      dispute,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record audit entry")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventDisputeReported,
			AggregateType: enums.AggregateDispute,
			AggregateID:   dispute.ID,
			Actor:         &outbox.ActorRef{UserID: input.ActorID, Role: string(input.ActorRole)},
			Data: payloads.DisputeReportedEvent{
				OrderID:        order.ID,
				DisputeID:      dispute.ID,
				Type:           dispute.Type,
				Reason:         dispute.Reason,
				ReportedBy:     dispute.ReportedBy,
				ReportedByRole: dispute.ReportedByRole,
				ReportedAt:     dispute.ReportedAt,
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		s.logg.Warn(s.logg.WithOrderID(ctx, input.OrderID.String()), "dispute reported, settlement frozen")
	}
	return dispute, nil
}

func (s *service) UpdateStatus(ctx context.Context, input UpdateStatusInput) (*models.Dispute, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.AdminID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "admin identity missing")
	}
	if !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid dispute status")
	}

	var dispute *models.Dispute
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		dispute, err = repo.FindByOrder(ctx, input.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "dispute not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load dispute")
		}

		before := *dispute
		now := s.now().UTC()
		updates := map[string]any{"status": input.Status}
		if input.Notes != nil {
			updates["resolution_notes"] = *input.Notes
		}
		if input.Status == enums.DisputeStatusResolved || input.Status == enums.DisputeStatusClosed {
			updates["resolved_at"] = now
			updates["resolved_by"] = input.AdminID
			dispute.ResolvedAt = &now
			dispute.ResolvedBy = &input.AdminID
		}
		if err := repo.Update(ctx, dispute.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update dispute status")
		}
		dispute.Status = input.Status
		if input.Notes != nil {
			dispute.ResolutionNotes = input.Notes
		}

		if err := s.audit.Record(ctx, tx, audit.Entry{
			ActorID:    input.AdminID,
			ActorRole:  enums.ActorRoleAdmin,
			Action:     "dispute.status_changed",
			TargetType: "dispute",
			TargetID:   dispute.ID,
			Before:     before,
			After:      dispute,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record audit entry")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventDisputeStatusChanged,
			AggregateType: enums.AggregateDispute,
			AggregateID:   dispute.ID,
			Actor:         &outbox.ActorRef{UserID: input.AdminID, Role: string(enums.ActorRoleAdmin)},
			Data: payloads.DisputeStatusChangedEvent{
				OrderID:   input.OrderID,
				DisputeID: dispute.ID,
				Status:    input.Status,
				Notes:     input.Notes,
				ChangedBy: input.AdminID,
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
	if err != nil {
		return nil, err
	}
	return dispute, nil
}

func (s *service) Resolve(ctx context.Context, input ResolveInput) (*models.Dispute, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.AdminID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "admin identity missing")
	}
	if !input.Resolution.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidResolution, fmt.Sprintf("unknown resolution %q", input.Resolution))
	}

	var dispute *models.Dispute
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindOrder(ctx, input.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		dispute = order.Dispute
		if dispute == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "dispute not found")
		}
		if dispute.Status == enums.DisputeStatusResolved || dispute.Status == enums.DisputeStatusClosed {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "dispute already resolved")
		}

		before := *dispute
		now := s.now().UTC()
		resolution := input.Resolution
		updates := map[string]any{
			"status":      enums.DisputeStatusResolved,
			"resolution":  resolution,
			"resolved_at": now,
			"resolved_by": input.AdminID,
		}
		if input.Notes != nil {
			updates["resolution_notes"] = *input.Notes
		}

		switch resolution {
		case enums.DisputeResolutionBuyerRefunded:
			updates["is_disputed"] = false
			if err := repo.Update(ctx, dispute.ID, updates); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve dispute")
			}
			moved, err := repo.UpdateOrderPaymentStatus(ctx, order.ID, enums.PaymentStatusHeldInDispute, enums.PaymentStatusRefunded)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order refunded")
			}
			if !moved {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "order payment left the disputed state")
			}
			// Refund execution is delegated to the refund worker via the
			// settlement topic; the core records the decision only.
			refundEvent := outbox.DomainEvent{
				EventType:     enums.EventRefundRequested,
				AggregateType: enums.AggregateDispute,
				AggregateID:   dispute.ID,
				Actor:         &outbox.ActorRef{UserID: input.AdminID, Role: string(enums.ActorRoleAdmin)},
				Data: payloads.RefundRequestedEvent{
					OrderID:         order.ID,
					DisputeID:       dispute.ID,
					SquarePaymentID: order.SquarePaymentID,
					AmountCents:     order.ProductTotalCents + order.DeliveryFeeCents,
					Currency:        order.Currency,
					Reason:          dispute.Reason,
				},
			}
			key := fmt.Sprintf("refund.requested:%s", dispute.ID)
			if err := s.outbox.EmitOnce(ctx, tx, key, refundEvent); err != nil {
				return err
			}

		case enums.DisputeResolutionArtisanPaid, enums.DisputeResolutionNoActionNeeded:
			updates["is_disputed"] = false
			if err := repo.Update(ctx, dispute.ID, updates); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve dispute")
			}
			if _, err := s.finalizer.FinalizeHeldTx(ctx, tx, order.ID); err != nil {
				return err
			}

		case enums.DisputeResolutionPartialRefund:
			// The exact split is manual follow-up; the money stays frozen
			// until operations runs the compensating entries.
			if err := repo.Update(ctx, dispute.ID, updates); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve dispute")
			}

		default:
			return pkgerrors.New(pkgerrors.CodeInvalidResolution, fmt.Sprintf("unknown resolution %q", resolution))
		}

		dispute.Status = enums.DisputeStatusResolved
		dispute.Resolution = &resolution
		dispute.ResolvedAt = &now
		dispute.ResolvedBy = &input.AdminID
		if input.Notes != nil {
			dispute.ResolutionNotes = input.Notes
		}
		if resolution != enums.DisputeResolutionPartialRefund {
			dispute.IsDisputed = false
		}

		if err := s.audit.Record(ctx, tx, audit.Entry{
			ActorID:    input.AdminID,
			ActorRole:  enums.ActorRoleAdmin,
			Action:     "dispute.resolved",
			TargetType: "dispute",
			TargetID:   dispute.ID,
			Before:     before,
			After:      dispute,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record audit entry")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventDisputeResolved,
			AggregateType: enums.AggregateDispute,
			AggregateID:   dispute.ID,
			Actor:         &outbox.ActorRef{UserID: input.AdminID, Role: string(enums.ActorRoleAdmin)},
			Data: payloads.DisputeResolvedEvent{
				OrderID:    order.ID,
				DisputeID:  dispute.ID,
				Resolution: resolution,
				Notes:      input.Notes,
				ResolvedBy: input.AdminID,
				ResolvedAt: now,
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		fields := map[string]any{
			"order_id":   input.OrderID.String(),
			"resolution": string(input.Resolution),
		}
		s.logg.Info(s.logg.WithFields(ctx, fields), "dispute resolved")
	}
	return dispute, nil
}

func (s *service) GetByOrder(ctx context.Context, orderID uuid.UUID) (*models.Dispute, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	dispute, err := s.repo.FindByOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "dispute not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load dispute")
	}
	return dispute, nil
}

func (s *service) List(ctx context.Context, input ListInput) ([]models.Dispute, string, error) {
	cursor, err := pagination.ParseCursor(input.Page.Cursor)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(input.Page.Limit)

	rows, err := s.repo.List(ctx, input.Filter, cursor, pagination.LimitWithBuffer(input.Page.Limit))
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list disputes")
	}

	next := ""
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[len(rows)-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return rows, next, nil
}

func (s *service) Statistics(ctx context.Context, filter ListFilter) (*Statistics, error) {
	byStatus, err := s.repo.CountByStatus(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count disputes by status")
	}
	byType, err := s.repo.CountByType(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count disputes by type")
	}
	durations, err := s.repo.ResolutionDurations(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load resolution durations")
	}

	stats := &Statistics{
		ByStatus: make(map[string]int64, len(byStatus)),
		ByType:   make(map[string]int64, len(byType)),
	}
	for _, bucket := range byStatus {
		stats.ByStatus[bucket.Status] = bucket.Count
		stats.Total += bucket.Count
		if bucket.Status == string(enums.DisputeStatusResolved) || bucket.Status == string(enums.DisputeStatusClosed) {
			stats.Resolved += bucket.Count
		}
	}
	for _, bucket := range byType {
		stats.ByType[bucket.Type] = bucket.Count
	}
	if len(durations) > 0 {
		var total time.Duration
		for _, d := range durations {
			total += d
		}
		stats.AverageResolutionSeconds = total.Seconds() / float64(len(durations))
	}
	return stats, nil
}

func reporterIsParty(order *models.Order, actorID uuid.UUID, role enums.ActorRole) bool {
	switch role {
	case enums.ActorRoleArtisan:
		return order.ArtisanID.UUID() == actorID
	case enums.ActorRoleBuyer:
		return order.BuyerID != nil && order.BuyerID.UUID() == actorID
	default:
		return false
	}
}
