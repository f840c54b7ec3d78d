package refunds

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/avelardi/atelia-backend/pkg/db/models"
)

// Repository stamps processor refund references onto orders.
type Repository interface {
	RecordRefund(ctx context.Context, orderID uuid.UUID, refundID string) error
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a refunds repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) RecordRefund(ctx context.Context, orderID uuid.UUID, refundID string) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		UpdateColumn("square_refund_id", refundID).Error
}
