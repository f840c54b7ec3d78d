package wallets

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/avelardi/atelia-backend/pkg/db/models"
	"github.com/avelardi/atelia-backend/pkg/identity"
)

// Repository manages persistence for wallets and their transaction ledger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, wallet *models.Wallet) error
	FindByOwner(ctx context.Context, owner identity.ArtisanID) (*models.Wallet, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Wallet, error)
	Update(ctx context.Context, walletID uuid.UUID, updates map[string]any) error
	// CompareAndSwapBalance applies updates only if the wallet's cached balance
	// still matches expectedBalance. Returns false when another writer won.
	CompareAndSwapBalance(ctx context.Context, walletID uuid.UUID, expectedBalance int64, updates map[string]any) (bool, error)
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	CreateTransaction(ctx context.Context, row *models.WalletTransaction) error
	ListTransactions(ctx context.Context, walletID uuid.UUID, limit int) ([]models.WalletTransaction, error)
	FindTransactionByProcessorPayoutID(ctx context.Context, processorPayoutID string) (*models.WalletTransaction, error)
	SumTransactionsByType(ctx context.Context, walletID uuid.UUID) (map[string]int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a wallet repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, wallet *models.Wallet) error {
	if wallet.ID == uuid.Nil {
		wallet.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(wallet).Error
}

func (r *repository) FindByOwner(ctx context.Context, owner identity.ArtisanID) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := r.db.WithContext(ctx).
		Where("owner_id = ?", owner).
		First(&wallet).Error; err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&wallet).Error; err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *repository) Update(ctx context.Context, walletID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Wallet{}).
		Where("id = ?", walletID).
		Updates(updates).Error
}

func (r *repository) CompareAndSwapBalance(ctx context.Context, walletID uuid.UUID, expectedBalance int64, updates map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Wallet{}).
		Where("id = ? AND balance_cents = ?", walletID, expectedBalance).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).
		Where("id = ?", orderID).
		First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) CreateTransaction(ctx context.Context, row *models.WalletTransaction) error {
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *repository) ListTransactions(ctx context.Context, walletID uuid.UUID, limit int) ([]models.WalletTransaction, error) {
	var rows []models.WalletTransaction
	q := r.db.WithContext(ctx).
		Where("wallet_id = ?", walletID).
		Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) FindTransactionByProcessorPayoutID(ctx context.Context, processorPayoutID string) (*models.WalletTransaction, error) {
	var row models.WalletTransaction
	if err := r.db.WithContext(ctx).
		Where("processor_payout_id = ?", processorPayoutID).
		First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) SumTransactionsByType(ctx context.Context, walletID uuid.UUID) (map[string]int64, error) {
	type bucket struct {
		Type string
		Sum  int64
	}
	var buckets []bucket
	if err := r.db.WithContext(ctx).
		Model(&models.WalletTransaction{}).
		Select("type AS type, COALESCE(SUM(amount_cents), 0) AS sum").
		Where("wallet_id = ?", walletID).
		Group("type").
		Scan(&buckets).Error; err != nil {
		return nil, err
	}
	sums := make(map[string]int64, len(buckets))
	for _, b := range buckets {
		sums[b.Type] = b.Sum
	}
	return sums, nil
}
