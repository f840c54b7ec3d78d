package payouts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/avelardi/atelia-backend/pkg/db/models"
	"github.com/avelardi/atelia-backend/pkg/enums"
	"github.com/avelardi/atelia-backend/pkg/identity"
)

// Repository manages persistence for payout attempts and the payout fields on
// wallets.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindWalletByOwner(ctx context.Context, owner identity.ArtisanID) (*models.Wallet, error)
	UpdateWallet(ctx context.Context, walletID uuid.UUID, updates map[string]any) error
	CreateAttempt(ctx context.Context, attempt *models.PayoutAttempt) error
	UpdateAttempt(ctx context.Context, attemptID uuid.UUID, updates map[string]any) error
	FindAttempt(ctx context.Context, attemptID uuid.UUID) (*models.PayoutAttempt, error)
	// ListStuckAttempts returns attempts whose external transfer went out but
	// whose ledger debit never landed.
	ListStuckAttempts(ctx context.Context, requestedBefore time.Time, limit int) ([]models.PayoutAttempt, error)
	FindLedgerEntryByProcessorPayoutID(ctx context.Context, processorPayoutID string) (*models.WalletTransaction, error)
	ListWalletsDueForPayout(ctx context.Context, now time.Time, limit int) ([]models.Wallet, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a payout repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindWalletByOwner(ctx context.Context, owner identity.ArtisanID) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := r.db.WithContext(ctx).
		Where("owner_id = ?", owner).
		First(&wallet).Error; err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *repository) UpdateWallet(ctx context.Context, walletID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Wallet{}).
		Where("id = ?", walletID).
		Updates(updates).Error
}

func (r *repository) CreateAttempt(ctx context.Context, attempt *models.PayoutAttempt) error {
	if attempt.ID == uuid.Nil {
		attempt.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(attempt).Error
}

func (r *repository) UpdateAttempt(ctx context.Context, attemptID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.PayoutAttempt{}).
		Where("id = ?", attemptID).
		Updates(updates).Error
}

func (r *repository) FindAttempt(ctx context.Context, attemptID uuid.UUID) (*models.PayoutAttempt, error) {
	var attempt models.PayoutAttempt
	if err := r.db.WithContext(ctx).
		Where("id = ?", attemptID).
		First(&attempt).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *repository) ListStuckAttempts(ctx context.Context, requestedBefore time.Time, limit int) ([]models.PayoutAttempt, error) {
	var rows []models.PayoutAttempt
	q := r.db.WithContext(ctx).
		Where("status = ?", enums.PayoutAttemptStatusRequested).
		Where("processor_payout_id IS NOT NULL").
		Where("requested_at < ?", requestedBefore).
		Order("requested_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) FindLedgerEntryByProcessorPayoutID(ctx context.Context, processorPayoutID string) (*models.WalletTransaction, error) {
	var row models.WalletTransaction
	if err := r.db.WithContext(ctx).
		Where("processor_payout_id = ?", processorPayoutID).
		First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) ListWalletsDueForPayout(ctx context.Context, now time.Time, limit int) ([]models.Wallet, error) {
	var rows []models.Wallet
	q := r.db.WithContext(ctx).
		Where("payouts_enabled = ?", true).
		Where("is_active = ?", true).
		Where("next_payout_at IS NOT NULL AND next_payout_at <= ?", now).
		Where("balance_cents >= minimum_payout_cents").
		Order("next_payout_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
