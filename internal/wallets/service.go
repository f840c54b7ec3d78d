package wallets

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbpkg "github.com/avelardi/atelia-backend/pkg/db"
	"github.com/avelardi/atelia-backend/pkg/db/models"
	"github.com/avelardi/atelia-backend/pkg/enums"
	pkgerrors "github.com/avelardi/atelia-backend/pkg/errors"
	"github.com/avelardi/atelia-backend/pkg/identity"
	"github.com/avelardi/atelia-backend/pkg/logger"
)

// balanceRetryAttempts bounds the optimistic-concurrency loop on the cached
// wallet balance. Each retry re-reads the wallet, so a loser of a concurrent
// update converges on the winner's balance.
const balanceRetryAttempts = 3

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// FeeRateSource supplies the platform fee rate as a fraction in [0, 1].
type FeeRateSource interface {
	PlatformFeeRate() (decimal.Decimal, error)
}

// StaticFeeRate is a FeeRateSource with a fixed rate, used by config wiring
// and tests.
type StaticFeeRate struct {
	Rate decimal.Decimal
}

func (s StaticFeeRate) PlatformFeeRate() (decimal.Decimal, error) {
	return s.Rate, nil
}

// Service defines the wallet ledger operations.
type Service interface {
	GetOrCreateWallet(ctx context.Context, owner identity.ArtisanID) (*models.Wallet, error)
	CreditFunds(ctx context.Context, input FundsInput) (*models.WalletTransaction, error)
	DebitFunds(ctx context.Context, input FundsInput) (*models.WalletTransaction, error)
	CreditFundsTx(ctx context.Context, tx *gorm.DB, input FundsInput) (*models.WalletTransaction, error)
	DebitFundsTx(ctx context.Context, tx *gorm.DB, input FundsInput) (*models.WalletTransaction, error)
	CreditOrderRevenue(ctx context.Context, orderID uuid.UUID) (*models.WalletTransaction, error)
	CreditOrderRevenueTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*models.WalletTransaction, error)
	GetWalletInfo(ctx context.Context, owner identity.ArtisanID, limit int) (*WalletInfo, error)
}

// FundsInput captures a single credit or debit against an owner's wallet.
// AmountCents is always positive; DebitFunds negates it internally.
type FundsInput struct {
	Owner             identity.ArtisanID
	AmountCents       int64
	Type              enums.WalletTransactionType
	Description       string
	ReferenceType     *string
	ReferenceID       *uuid.UUID
	ProcessorPayoutID *string
	Metadata          models.TransactionMetadata
}

// WalletInfo is the read-only projection returned by GetWalletInfo.
type WalletInfo struct {
	Wallet             *models.Wallet
	RecentTransactions []models.WalletTransaction
	EarningsCents      int64
	PayoutsCents       int64
	SpentCents         int64
	RefundedCents      int64
}

// RevenueBreakdown is the fee split applied when an order's revenue lands in
// the seller's wallet.
type RevenueBreakdown struct {
	ProductCents            int64
	DeliveryFeeCents        int64
	PlatformFeeCents        int64
	SellerKeptDeliveryCents int64
	NetCents                int64
}

type service struct {
	repo Repository
	tx   txRunner
	fees FeeRateSource
	logg *logger.Logger
}

// NewService wires a wallet ledger service with the required dependencies.
func NewService(repo Repository, tx txRunner, fees FeeRateSource, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("wallet repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if fees == nil {
		return nil, fmt.Errorf("fee rate source required")
	}
	return &service{repo: repo, tx: tx, fees: fees, logg: logg}, nil
}

func (s *service) GetOrCreateWallet(ctx context.Context, owner identity.ArtisanID) (*models.Wallet, error) {
	if owner.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner id required")
	}

	wallet, err := s.repo.FindByOwner(ctx, owner)
	if err == nil {
		return wallet, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet")
	}

	fresh := &models.Wallet{
		OwnerID:  owner,
		Currency: enums.CurrencyUSD,
		IsActive: true,
	}
	if err := s.repo.Create(ctx, fresh); err != nil {
		// A concurrent first-use call won the insert; read its row.
		if dbpkg.IsUniqueViolation(err, "wallets_owner_id_key") {
			existing, findErr := s.repo.FindByOwner(ctx, owner)
			if findErr != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, findErr, "load wallet after conflict")
			}
			return existing, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create wallet")
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithWalletID(ctx, fresh.ID.String()), "wallet created")
	}
	return fresh, nil
}

func (s *service) CreditFunds(ctx context.Context, input FundsInput) (*models.WalletTransaction, error) {
	var row *models.WalletTransaction
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var innerErr error
		row, innerErr = s.CreditFundsTx(ctx, tx, input)
		return innerErr
	})
	return row, err
}

func (s *service) DebitFunds(ctx context.Context, input FundsInput) (*models.WalletTransaction, error) {
	var row *models.WalletTransaction
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var innerErr error
		row, innerErr = s.DebitFundsTx(ctx, tx, input)
		return innerErr
	})
	return row, err
}

func (s *service) CreditFundsTx(ctx context.Context, tx *gorm.DB, input FundsInput) (*models.WalletTransaction, error) {
	if err := validateFundsInput(input); err != nil {
		return nil, err
	}
	return s.applyEntry(ctx, tx, input.AmountCents, input, nil)
}

func (s *service) DebitFundsTx(ctx context.Context, tx *gorm.DB, input FundsInput) (*models.WalletTransaction, error) {
	if err := validateFundsInput(input); err != nil {
		return nil, err
	}
	return s.applyEntry(ctx, tx, -input.AmountCents, input, nil)
}

func (s *service) CreditOrderRevenue(ctx context.Context, orderID uuid.UUID) (*models.WalletTransaction, error) {
	var row *models.WalletTransaction
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var innerErr error
		row, innerErr = s.CreditOrderRevenueTx(ctx, tx, orderID)
		return innerErr
	})
	return row, err
}

func (s *service) CreditOrderRevenueTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*models.WalletTransaction, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	repo := s.repo.WithTx(tx)
	order, err := repo.FindOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}

	rate, err := s.fees.PlatformFeeRate()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load platform fee rate")
	}
	split := ComputeRevenueSplit(order.ProductTotalCents, order.DeliveryFeeCents, order.DeliveryMethod, rate)

	if _, err := s.GetOrCreateWallet(ctx, order.ArtisanID); err != nil {
		return nil, err
	}

	oid := order.ID
	refType := "order"
	input := FundsInput{
		Owner:         order.ArtisanID,
		AmountCents:   split.NetCents,
		Type:          enums.WalletTransactionTypeRevenue,
		Description:   fmt.Sprintf("Revenue for order %s", order.ID),
		ReferenceType: &refType,
		ReferenceID:   &oid,
		Metadata: models.TransactionMetadata{
			OrderID:          &oid,
			PlatformFeeCents: &split.PlatformFeeCents,
			NetAmountCents:   &split.NetCents,
			DeliveryFeeCents: &split.DeliveryFeeCents,
		},
	}
	extra := map[string]any{
		"total_earnings_cents": gorm.Expr("total_earnings_cents + ?", split.NetCents),
		"platform_fees_cents":  gorm.Expr("platform_fees_cents + ?", split.PlatformFeeCents),
	}
	row, err := s.applyEntry(ctx, tx, split.NetCents, input, extra)
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		fields := map[string]any{
			"order_id":           order.ID.String(),
			"net_cents":          split.NetCents,
			"platform_fee_cents": split.PlatformFeeCents,
		}
		s.logg.Info(s.logg.WithFields(ctx, fields), "order revenue credited")
	}
	return row, nil
}

func (s *service) GetWalletInfo(ctx context.Context, owner identity.ArtisanID, limit int) (*WalletInfo, error) {
	if owner.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner id required")
	}

	wallet, err := s.repo.FindByOwner(ctx, owner)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "wallet not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet")
	}

	rows, err := s.repo.ListTransactions(ctx, wallet.ID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list wallet transactions")
	}
	sums, err := s.repo.SumTransactionsByType(ctx, wallet.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "aggregate wallet transactions")
	}

	return &WalletInfo{
		Wallet:             wallet,
		RecentTransactions: rows,
		EarningsCents:      sums[string(enums.WalletTransactionTypeRevenue)],
		PayoutsCents:       -sums[string(enums.WalletTransactionTypePayout)],
		SpentCents:         -sums[string(enums.WalletTransactionTypePurchase)],
		RefundedCents:      sums[string(enums.WalletTransactionTypeRefund)],
	}, nil
}

// ComputeRevenueSplit applies the platform fee to product revenue only and
// routes the delivery fee by delivery method: personal delivery sellers keep
// it in full, professional (courier) delivery sellers receive none of it.
func ComputeRevenueSplit(productCents, deliveryFeeCents int64, method enums.DeliveryMethod, rate decimal.Decimal) RevenueBreakdown {
	fee := decimal.NewFromInt(productCents).Mul(rate).Round(0).IntPart()

	var kept int64
	if method == enums.DeliveryMethodPersonalDelivery {
		kept = deliveryFeeCents
	}

	return RevenueBreakdown{
		ProductCents:            productCents,
		DeliveryFeeCents:        deliveryFeeCents,
		PlatformFeeCents:        fee,
		SellerKeptDeliveryCents: kept,
		NetCents:                productCents - fee + kept,
	}
}

// applyEntry performs the atomic "append ledger row + update cached balance"
// unit of work inside the caller's transaction. amountCents is signed. The
// balance write is a compare-and-swap on the previously read balance; a lost
// race re-reads and retries so concurrent credits and debits never lose an
// update.
func (s *service) applyEntry(ctx context.Context, tx *gorm.DB, amountCents int64, input FundsInput, extraUpdates map[string]any) (*models.WalletTransaction, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction required for balance mutation")
	}
	repo := s.repo.WithTx(tx)

	for attempt := 0; attempt < balanceRetryAttempts; attempt++ {
		wallet, err := repo.FindByOwner(ctx, input.Owner)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "wallet not found")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet")
		}

		balanceBefore := wallet.BalanceCents
		balanceAfter := balanceBefore + amountCents
		if balanceAfter < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeInsufficientBalance, "wallet balance is insufficient").
				WithDetails(map[string]any{
					"balance_cents":   balanceBefore,
					"requested_cents": -amountCents,
				})
		}

		updates := map[string]any{"balance_cents": balanceAfter}
		switch input.Type {
		case enums.WalletTransactionTypePayout:
			updates["total_payouts_cents"] = gorm.Expr("total_payouts_cents + ?", -amountCents)
		case enums.WalletTransactionTypePurchase:
			updates["total_spent_cents"] = gorm.Expr("total_spent_cents + ?", -amountCents)
		}
		for column, value := range extraUpdates {
			updates[column] = value
		}

		swapped, err := repo.CompareAndSwapBalance(ctx, wallet.ID, balanceBefore, updates)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update wallet balance")
		}
		if !swapped {
			continue
		}

		row := &models.WalletTransaction{
			WalletID:          wallet.ID,
			OwnerID:           input.Owner,
			Type:              input.Type,
			AmountCents:       amountCents,
			Currency:          wallet.Currency,
			BalanceBefore:     balanceBefore,
			BalanceAfter:      balanceAfter,
			Description:       input.Description,
			Status:            enums.WalletTransactionStatusCompleted,
			ReferenceType:     input.ReferenceType,
			ReferenceID:       input.ReferenceID,
			ProcessorPayoutID: input.ProcessorPayoutID,
			Metadata:          input.Metadata,
		}
		if err := repo.CreateTransaction(ctx, row); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append wallet transaction")
		}
		return row, nil
	}

	return nil, pkgerrors.New(pkgerrors.CodeConflict, "wallet balance contention, retry")
}

func validateFundsInput(input FundsInput) error {
	if input.Owner.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "owner id required")
	}
	if input.AmountCents <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if !input.Type.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid transaction type %q", input.Type))
	}
	if input.Description == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "description required")
	}
	return nil
}
