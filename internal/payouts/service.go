package payouts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/avelardi/atelia-backend/internal/wallets"
	"github.com/avelardi/atelia-backend/pkg/db/models"
	"github.com/avelardi/atelia-backend/pkg/enums"
	pkgerrors "github.com/avelardi/atelia-backend/pkg/errors"
	"github.com/avelardi/atelia-backend/pkg/identity"
	"github.com/avelardi/atelia-backend/pkg/logger"
	"github.com/avelardi/atelia-backend/pkg/metrics"
	"github.com/avelardi/atelia-backend/pkg/outbox"
	"github.com/avelardi/atelia-backend/pkg/outbox/payloads"
	"github.com/avelardi/atelia-backend/pkg/stripe"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitOnce(ctx context.Context, tx *gorm.DB, dedupeKey string, event outbox.DomainEvent) error
}

// Processor is the external payment processor surface the payout flow needs.
// *stripe.Client satisfies it.
type Processor interface {
	CreateAccount(ctx context.Context, identity stripe.AccountIdentity) (string, error)
	IsReadyForPayouts(ctx context.Context, accountID string) (bool, error)
	AccountRequirements(ctx context.Context, accountID string) ([]string, error)
	CreatePayout(ctx context.Context, accountID string, amountCents int64, currency, description string) (string, error)
}

// Ledger is the wallet surface the payout flow debits against.
type Ledger interface {
	GetOrCreateWallet(ctx context.Context, owner identity.ArtisanID) (*models.Wallet, error)
	DebitFundsTx(ctx context.Context, tx *gorm.DB, input wallets.FundsInput) (*models.WalletTransaction, error)
}

// Service orchestrates artisan payouts against the external processor.
type Service interface {
	GetPayoutStatus(ctx context.Context, owner identity.ArtisanID) (*Status, error)
	SetupAccount(ctx context.Context, owner identity.ArtisanID, identity stripe.AccountIdentity) (string, error)
	ProcessPayout(ctx context.Context, input ProcessInput) (*models.PayoutAttempt, error)
	Reconcile(ctx context.Context, now time.Time) (ReconcileResult, error)
	RunScheduled(ctx context.Context, now time.Time) (ScheduledResult, error)
}

// Status is the read-only payout readiness projection for one artisan.
type Status struct {
	HasProcessorAccount bool
	IsReadyForPayouts   bool
	RequirementsDue     []string
	BalanceCents        int64
	MinimumPayoutCents  int64
	CanPayout           bool
}

// ProcessInput requests a payout. AmountCents zero means the full balance.
type ProcessInput struct {
	Owner       identity.ArtisanID
	AmountCents int64
}

// ReconcileResult summarizes one reconciliation pass.
type ReconcileResult struct {
	Checked   int
	Recovered int
	Failed    int
}

// ScheduledResult summarizes one scheduled payout run.
type ScheduledResult struct {
	Due       int
	Processed int
	Skipped   int
	Failed    int
}

// Config carries the money rules the payout flow applies.
type Config struct {
	MinimumPayoutCents   int64
	ProcessorCallTimeout time.Duration
	ReconcileAfter       time.Duration
}

type service struct {
	repo      Repository
	tx        txRunner
	ledger    Ledger
	processor Processor
	outbox    outboxEmitter
	metrics   *metrics.SettlementMetrics
	logg      *logger.Logger
	cfg       Config
	now       func() time.Time
}

// NewService wires the payout orchestrator. Metrics and logger may be nil.
func NewService(repo Repository, tx txRunner, ledger Ledger, processor Processor, emitter outboxEmitter, mtr *metrics.SettlementMetrics, logg *logger.Logger, cfg Config, now func() time.Time) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payout repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("wallet ledger required")
	}
	if processor == nil {
		return nil, fmt.Errorf("payment processor required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if cfg.MinimumPayoutCents <= 0 {
		return nil, fmt.Errorf("minimum payout must be positive")
	}
	if cfg.ProcessorCallTimeout <= 0 {
		cfg.ProcessorCallTimeout = 15 * time.Second
	}
	if cfg.ReconcileAfter <= 0 {
		cfg.ReconcileAfter = 5 * time.Minute
	}
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:      repo,
		tx:        tx,
		ledger:    ledger,
		processor: processor,
		outbox:    emitter,
		metrics:   mtr,
		logg:      logg,
		cfg:       cfg,
		now:       now,
	}, nil
}

func (s *service) GetPayoutStatus(ctx context.Context, owner identity.ArtisanID) (*Status, error) {
	wallet, err := s.ledger.GetOrCreateWallet(ctx, owner)
	if err != nil {
		return nil, err
	}

	minimum := wallet.MinimumPayoutCents
	if minimum <= 0 {
		minimum = s.cfg.MinimumPayoutCents
	}
	status := &Status{
		BalanceCents:       wallet.BalanceCents,
		MinimumPayoutCents: minimum,
	}
	if wallet.ProcessorAccountID == nil || *wallet.ProcessorAccountID == "" {
		return status, nil
	}
	status.HasProcessorAccount = true

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.ProcessorCallTimeout)
	defer cancel()
	ready, err := s.processor.IsReadyForPayouts(callCtx, *wallet.ProcessorAccountID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeExternalProcessor, err, "check processor readiness")
	}
	status.IsReadyForPayouts = ready
	if !ready {
		due, err := s.processor.AccountRequirements(callCtx, *wallet.ProcessorAccountID)
		if err == nil {
			status.RequirementsDue = due
		}
	}
	status.CanPayout = ready && wallet.BalanceCents >= minimum
	return status, nil
}

func (s *service) SetupAccount(ctx context.Context, owner identity.ArtisanID, accountIdentity stripe.AccountIdentity) (string, error) {
	wallet, err := s.ledger.GetOrCreateWallet(ctx, owner)
	if err != nil {
		return "", err
	}
	if wallet.ProcessorAccountID != nil && *wallet.ProcessorAccountID != "" {
		return *wallet.ProcessorAccountID, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.ProcessorCallTimeout)
	defer cancel()
	accountID, err := s.processor.CreateAccount(callCtx, accountIdentity)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeExternalProcessor, err, "create processor account")
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.repo.WithTx(tx).UpdateWallet(ctx, wallet.ID, map[string]any{
			"processor_account_id": accountID,
		})
	})
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store processor account id")
	}
	return accountID, nil
}

// ProcessPayout runs the external transfer before the ledger debit and holds
// no database transaction across the network call. A crash between the two
// leaves a requested attempt with a processor payout id, which Reconcile
// replays; the unique processor_payout_id on the ledger makes the replay land
// exactly once.
func (s *service) ProcessPayout(ctx context.Context, input ProcessInput) (*models.PayoutAttempt, error) {
	if input.Owner.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner id required")
	}

	wallet, err := s.repo.FindWalletByOwner(ctx, input.Owner)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "wallet not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet")
	}

	amount := input.AmountCents
	if amount == 0 {
		amount = wallet.BalanceCents
	}
	minimum := wallet.MinimumPayoutCents
	if minimum <= 0 {
		minimum = s.cfg.MinimumPayoutCents
	}
	if amount < minimum || amount > wallet.BalanceCents {
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientBalance, "balance below payout amount").
			WithDetails(map[string]any{
				"balance_cents":   wallet.BalanceCents,
				"requested_cents": amount,
				"minimum_cents":   minimum,
			})
	}
	if wallet.ProcessorAccountID == nil || *wallet.ProcessorAccountID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeProcessorAccountMissing, "no processor account on file")
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.ProcessorCallTimeout)
	defer cancel()
	ready, err := s.processor.IsReadyForPayouts(callCtx, *wallet.ProcessorAccountID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeExternalProcessor, err, "check processor readiness")
	}
	if !ready {
		return nil, pkgerrors.New(pkgerrors.CodeProcessorNotReady, "processor account is not ready for payouts")
	}

	attempt := &models.PayoutAttempt{
		WalletID:           wallet.ID,
		OwnerID:            wallet.OwnerID,
		AmountCents:        amount,
		Currency:           wallet.Currency,
		Status:             enums.PayoutAttemptStatusRequested,
		ProcessorAccountID: *wallet.ProcessorAccountID,
		RequestedAt:        s.now().UTC(),
	}
	if err := s.repo.CreateAttempt(ctx, attempt); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payout attempt")
	}

	payoutID, err := s.processor.CreatePayout(callCtx, *wallet.ProcessorAccountID, amount, string(wallet.Currency), fmt.Sprintf("Payout %s", attempt.ID))
	if err != nil {
		s.failAttempt(ctx, attempt.ID, fmt.Sprintf("processor rejected payout: %v", err))
		s.incPayout("processor_rejected")
		return nil, pkgerrors.Wrap(pkgerrors.CodeExternalProcessor, err, "create payout")
	}
	attempt.ProcessorPayoutID = &payoutID
	if err := s.repo.UpdateAttempt(ctx, attempt.ID, map[string]any{"processor_payout_id": payoutID}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store processor payout id")
	}

	if err := s.debitForAttempt(ctx, attempt); err != nil {
		s.incPayout("debit_failed")
		return nil, err
	}

	s.incPayout("processed")
	if s.metrics != nil {
		s.metrics.AddPayoutCents(amount)
	}
	if s.logg != nil {
		logCtx := s.logg.WithWalletID(ctx, wallet.ID.String())
		s.logg.Info(logCtx, fmt.Sprintf("payout of %d cents processed", amount))
	}
	attempt.Status = enums.PayoutAttemptStatusDebited
	return attempt, nil
}

// debitForAttempt lands the ledger debit for an attempt whose external
// transfer already went out. Shared by the live path and reconciliation.
func (s *service) debitForAttempt(ctx context.Context, attempt *models.PayoutAttempt) error {
	if attempt.ProcessorPayoutID == nil {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "attempt has no processor payout id")
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		existing, err := repo.FindLedgerEntryByProcessorPayoutID(ctx, *attempt.ProcessorPayoutID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check ledger for payout")
		}
		now := s.now().UTC()
		if existing == nil {
			if _, err := s.ledger.DebitFundsTx(ctx, tx, wallets.FundsInput{
				Owner:             attempt.OwnerID,
				AmountCents:       attempt.AmountCents,
				Type:              enums.WalletTransactionTypePayout,
				Description:       fmt.Sprintf("Payout to bank account (%s)", *attempt.ProcessorPayoutID),
				ProcessorPayoutID: attempt.ProcessorPayoutID,
				Metadata:          models.TransactionMetadata{ProcessorPayoutID: attempt.ProcessorPayoutID},
			}); err != nil {
				return err
			}
		}

		if err := repo.UpdateAttempt(ctx, attempt.ID, map[string]any{
			"status":     enums.PayoutAttemptStatusDebited,
			"debited_at": now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark attempt debited")
		}

		wallet, err := repo.FindWalletByOwner(ctx, attempt.OwnerID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload wallet")
		}
		walletUpdates := map[string]any{"last_payout_at": now}
		if wallet.PayoutsEnabled {
			walletUpdates["next_payout_at"] = wallet.PayoutSchedule.Next(now)
		}
		if err := repo.UpdateWallet(ctx, wallet.ID, walletUpdates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "advance payout schedule")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventPayoutProcessed,
			AggregateType: enums.AggregateWallet,
			AggregateID:   wallet.ID,
			Data: payloads.PayoutProcessedEvent{
				WalletID:          wallet.ID,
				ArtisanID:         wallet.OwnerID.UUID(),
				AmountCents:       attempt.AmountCents,
				Currency:          attempt.Currency,
				ProcessorPayoutID: *attempt.ProcessorPayoutID,
				ProcessedAt:       now,
			},
		}
		key := fmt.Sprintf("payout.processed:%s", *attempt.ProcessorPayoutID)
		return s.outbox.EmitOnce(ctx, tx, key, event)
	})
	if err == nil {
		return nil
	}

	// The money already left through the processor; record the failure and
	// leave the attempt for Reconcile instead of pretending it didn't happen.
	s.failAttemptDebit(ctx, attempt, err)
	return err
}

func (s *service) failAttempt(ctx context.Context, attemptID uuid.UUID, reason string) {
	err := s.repo.UpdateAttempt(ctx, attemptID, map[string]any{
		"status":         enums.PayoutAttemptStatusFailed,
		"failure_reason": reason,
	})
	if err != nil && s.logg != nil {
		s.logg.Error(ctx, "mark payout attempt failed", err)
	}
}

func (s *service) failAttemptDebit(ctx context.Context, attempt *models.PayoutAttempt, cause error) {
	if s.logg != nil {
		s.logg.Error(ctx, "payout debit failed after external transfer", cause)
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		event := outbox.DomainEvent{
			EventType:     enums.EventPayoutDebitFailed,
			AggregateType: enums.AggregateWallet,
			AggregateID:   attempt.WalletID,
			Data: payloads.PayoutDebitFailedEvent{
				WalletID:          attempt.WalletID,
				ArtisanID:         attempt.OwnerID.UUID(),
				AmountCents:       attempt.AmountCents,
				ProcessorPayoutID: derefString(attempt.ProcessorPayoutID),
				Error:             cause.Error(),
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
	if err != nil && s.logg != nil {
		s.logg.Error(ctx, "emit payout debit failure event", err)
	}
}

// Reconcile replays the ledger debit for attempts whose external transfer
// completed but whose debit transaction never committed.
func (s *service) Reconcile(ctx context.Context, now time.Time) (ReconcileResult, error) {
	var result ReconcileResult

	stuck, err := s.repo.ListStuckAttempts(ctx, now.Add(-s.cfg.ReconcileAfter), 0)
	if err != nil {
		return result, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stuck payout attempts")
	}
	result.Checked = len(stuck)

	for i := range stuck {
		attempt := stuck[i]
		if err := s.debitForAttempt(ctx, &attempt); err != nil {
			result.Failed++
			continue
		}
		result.Recovered++
		s.incPayout("reconciled")
	}

	if s.logg != nil && result.Checked > 0 {
		fields := map[string]any{
			"checked":   result.Checked,
			"recovered": result.Recovered,
			"failed":    result.Failed,
		}
		s.logg.Info(s.logg.WithFields(ctx, fields), "payout reconciliation pass finished")
	}
	return result, nil
}

// RunScheduled pays out every wallet whose schedule is due and whose balance
// clears its minimum.
func (s *service) RunScheduled(ctx context.Context, now time.Time) (ScheduledResult, error) {
	var result ScheduledResult

	due, err := s.repo.ListWalletsDueForPayout(ctx, now, 0)
	if err != nil {
		return result, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list wallets due for payout")
	}
	result.Due = len(due)

	for _, wallet := range due {
		_, err := s.ProcessPayout(ctx, ProcessInput{Owner: wallet.OwnerID})
		switch {
		case err == nil:
			result.Processed++
		case pkgerrors.HasCode(err, pkgerrors.CodeInsufficientBalance),
			pkgerrors.HasCode(err, pkgerrors.CodeProcessorAccountMissing),
			pkgerrors.HasCode(err, pkgerrors.CodeProcessorNotReady):
			result.Skipped++
		default:
			result.Failed++
			if s.logg != nil {
				s.logg.Error(s.logg.WithWalletID(ctx, wallet.ID.String()), "scheduled payout failed", err)
			}
		}
	}
	return result, nil
}

func (s *service) incPayout(outcome string) {
	if s.metrics != nil {
		s.metrics.IncPayout(outcome)
	}
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
