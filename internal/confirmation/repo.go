package confirmation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/avelardi/atelia-backend/pkg/db/models"
	"github.com/avelardi/atelia-backend/pkg/enums"
)

// Repository manages persistence for orders and their fulfillment
// confirmations.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindDispute(ctx context.Context, orderID uuid.UUID) (*models.Dispute, error)
	CreateConfirmation(ctx context.Context, row *models.FulfillmentConfirmation) error
	UpdateConfirmation(ctx context.Context, confirmationID uuid.UUID, updates map[string]any) error
	// MarkOrderFinalized flips the order to its terminal state only when the
	// payment still sits in the expected pre-settlement state. Returns false
	// when another writer moved the payment first, which makes both double
	// invocation and a stale pre-claim read a no-op.
	MarkOrderFinalized(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus, completedAt time.Time, from enums.PaymentStatus) (bool, error)
	ListAutoCompleteCandidates(ctx context.Context, now time.Time, limit int) ([]models.FulfillmentConfirmation, error)
	// ClaimAutoComplete stamps auto_completed_at only when it is unset, so a
	// single sweep instance wins each order.
	ClaimAutoComplete(ctx context.Context, confirmationID uuid.UUID, now time.Time) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a confirmation repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).
		Preload("Confirmation").
		Preload("Dispute").
		Where("id = ?", orderID).
		First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindDispute(ctx context.Context, orderID uuid.UUID) (*models.Dispute, error) {
	var dispute models.Dispute
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		First(&dispute).Error; err != nil {
		return nil, err
	}
	return &dispute, nil
}

func (r *repository) CreateConfirmation(ctx context.Context, row *models.FulfillmentConfirmation) error {
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *repository) UpdateConfirmation(ctx context.Context, confirmationID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.FulfillmentConfirmation{}).
		Where("id = ?", confirmationID).
		Updates(updates).Error
}

func (r *repository) MarkOrderFinalized(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus, completedAt time.Time, from enums.PaymentStatus) (bool, error) {
	// The single-status predicate is the settlement guard: under READ
	// COMMITTED a confirm racing a dispute report re-evaluates this UPDATE
	// against the committed held_in_dispute row and loses the claim, even
	// when its in-tx dispute re-read predated the dispute insert.
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND payment_status = ?", orderID, from).
		Updates(map[string]any{
			"status":         status,
			"payment_status": enums.PaymentStatusPaid,
			"completed_at":   completedAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) ListAutoCompleteCandidates(ctx context.Context, now time.Time, limit int) ([]models.FulfillmentConfirmation, error) {
	var rows []models.FulfillmentConfirmation
	q := r.db.WithContext(ctx).
		Where("artisan_confirmed = ?", true).
		Where("buyer_confirmed = ?", false).
		Where("completion_deadline IS NOT NULL AND completion_deadline < ?", now).
		Where("auto_completed_at IS NULL").
		Where("NOT EXISTS (SELECT 1 FROM disputes WHERE disputes.order_id = fulfillment_confirmations.order_id AND disputes.is_disputed = ?)", true).
		Order("completion_deadline ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ClaimAutoComplete(ctx context.Context, confirmationID uuid.UUID, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.FulfillmentConfirmation{}).
		Where("id = ? AND auto_completed_at IS NULL", confirmationID).
		Update("auto_completed_at", now)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
