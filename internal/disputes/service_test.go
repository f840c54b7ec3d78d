package disputes

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/avelardi/atelia-backend/internal/audit"
	"github.com/avelardi/atelia-backend/internal/confirmation"
	"github.com/avelardi/atelia-backend/internal/wallets"
	"github.com/avelardi/atelia-backend/pkg/db/models"
	"github.com/avelardi/atelia-backend/pkg/enums"
	pkgerrors "github.com/avelardi/atelia-backend/pkg/errors"
	"github.com/avelardi/atelia-backend/pkg/identity"
	"github.com/avelardi/atelia-backend/pkg/outbox"
	"github.com/avelardi/atelia-backend/pkg/pagination"
)

type sqliteTxRunner struct {
	db *gorm.DB
}

func (r *sqliteTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit().Error
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

type fixture struct {
	db     *gorm.DB
	svc    Service
	ledger wallets.Service
	clock  *fakeClock
}

func setupFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Order{},
		&models.FulfillmentConfirmation{},
		&models.Dispute{},
		&models.Wallet{},
		&models.WalletTransaction{},
		&models.OutboxEvent{},
		&models.AuditLog{},
	))

	clock := &fakeClock{now: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}
	runner := &sqliteTxRunner{db: db}
	emitter := outbox.NewService(outbox.NewRepository(db), nil)

	ledger, err := wallets.NewService(
		wallets.NewRepository(db),
		runner,
		wallets.StaticFeeRate{Rate: decimal.RequireFromString("0.10")},
		nil,
	)
	require.NoError(t, err)

	finalizer, err := confirmation.NewService(
		confirmation.NewRepository(db),
		runner,
		emitter,
		ledger,
		nil,
		24*time.Hour,
		clock.Now,
	)
	require.NoError(t, err)

	svc, err := NewService(
		NewRepository(db),
		runner,
		emitter,
		finalizer,
		audit.NewRecorder(db),
		nil,
		clock.Now,
	)
	require.NoError(t, err)

	return &fixture{db: db, svc: svc, ledger: ledger, clock: clock}
}

func (f *fixture) createOrder(t *testing.T) (*models.Order, identity.ArtisanID, identity.UserID) {
	t.Helper()
	artisan := identity.NewArtisanID()
	buyer := identity.NewUserID()
	order := &models.Order{
		ID:                uuid.New(),
		ArtisanID:         artisan,
		BuyerID:           &buyer,
		DeliveryMethod:    enums.DeliveryMethodPickup,
		Status:            enums.OrderStatusPending,
		PaymentStatus:     enums.PaymentStatusPending,
		Currency:          enums.CurrencyUSD,
		ProductTotalCents: 10000,
	}
	require.NoError(t, f.db.Create(order).Error)
	return order, artisan, buyer
}

func (f *fixture) reportAsBuyer(t *testing.T, order *models.Order, buyer identity.UserID) *models.Dispute {
	t.Helper()
	dispute, err := f.svc.Report(context.Background(), ReportInput{
		OrderID:   order.ID,
		ActorID:   buyer.UUID(),
		ActorRole: enums.ActorRoleBuyer,
		Type:      enums.DisputeTypeItemNotReceived,
		Reason:    "order never arrived",
	})
	require.NoError(t, err)
	return dispute
}

func (f *fixture) paymentStatus(t *testing.T, orderID uuid.UUID) enums.PaymentStatus {
	t.Helper()
	var order models.Order
	require.NoError(t, f.db.First(&order, "id = ?", orderID).Error)
	return order.PaymentStatus
}

func (f *fixture) eventTypes(t *testing.T) []string {
	t.Helper()
	var rows []models.OutboxEvent
	require.NoError(t, f.db.Order("created_at ASC").Find(&rows).Error)
	types := make([]string, 0, len(rows))
	for _, row := range rows {
		types = append(types, string(row.EventType))
	}
	return types
}

func TestReportHoldsSettlement(t *testing.T) {
	f := setupFixture(t)
	order, _, buyer := f.createOrder(t)

	dispute := f.reportAsBuyer(t, order, buyer)
	require.True(t, dispute.IsDisputed)
	require.Equal(t, enums.DisputeStatusOpen, dispute.Status)
	require.Equal(t, buyer.UUID(), dispute.ReportedBy)
	require.Equal(t, enums.PaymentStatusHeldInDispute, f.paymentStatus(t, order.ID))
	require.Contains(t, f.eventTypes(t), string(enums.EventDisputeReported))

	rec := audit.NewRecorder(f.db)
	rows, err := rec.ListByTarget(context.Background(), dispute.ID, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "dispute.reported", rows[0].Action)
}

func TestReportBySellerAllowed(t *testing.T) {
	f := setupFixture(t)
	order, artisan, _ := f.createOrder(t)

	dispute, err := f.svc.Report(context.Background(), ReportInput{
		OrderID:   order.ID,
		ActorID:   artisan.UUID(),
		ActorRole: enums.ActorRoleArtisan,
		Type:      enums.DisputeTypeOther,
		Reason:    "buyer refused handoff",
	})
	require.NoError(t, err)
	require.Equal(t, enums.ActorRoleArtisan, dispute.ReportedByRole)
}

func TestReportByStrangerRejected(t *testing.T) {
	f := setupFixture(t)
	order, _, _ := f.createOrder(t)

	_, err := f.svc.Report(context.Background(), ReportInput{
		OrderID:   order.ID,
		ActorID:   uuid.New(),
		ActorRole: enums.ActorRoleBuyer,
		Type:      enums.DisputeTypeOther,
		Reason:    "not my order",
	})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized))
	require.Equal(t, enums.PaymentStatusPending, f.paymentStatus(t, order.ID))
}

func TestReportTwiceConflicts(t *testing.T) {
	f := setupFixture(t)
	order, _, buyer := f.createOrder(t)
	f.reportAsBuyer(t, order, buyer)

	_, err := f.svc.Report(context.Background(), ReportInput{
		OrderID:   order.ID,
		ActorID:   buyer.UUID(),
		ActorRole: enums.ActorRoleBuyer,
		Type:      enums.DisputeTypeItemDamaged,
		Reason:    "still broken",
	})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict))
}

func TestReportSettledOrderRejected(t *testing.T) {
	f := setupFixture(t)
	order, _, buyer := f.createOrder(t)
	require.NoError(t, f.db.Model(&models.Order{}).
		Where("id = ?", order.ID).
		Update("payment_status", enums.PaymentStatusPaid).Error)

	_, err := f.svc.Report(context.Background(), ReportInput{
		OrderID:   order.ID,
		ActorID:   buyer.UUID(),
		ActorRole: enums.ActorRoleBuyer,
		Type:      enums.DisputeTypeQualityIssue,
		Reason:    "too late",
	})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))
}

func TestUpdateStatusStampsResolution(t *testing.T) {
	f := setupFixture(t)
	order, _, buyer := f.createOrder(t)
	f.reportAsBuyer(t, order, buyer)
	admin := uuid.New()

	dispute, err := f.svc.UpdateStatus(context.Background(), UpdateStatusInput{
		OrderID: order.ID,
		AdminID: admin,
		Status:  enums.DisputeStatusInvestigating,
	})
	require.NoError(t, err)
	require.Equal(t, enums.DisputeStatusInvestigating, dispute.Status)
	require.Nil(t, dispute.ResolvedAt)

	notes := "buyer stopped responding"
	dispute, err = f.svc.UpdateStatus(context.Background(), UpdateStatusInput{
		OrderID: order.ID,
		AdminID: admin,
		Status:  enums.DisputeStatusClosed,
		Notes:   &notes,
	})
	require.NoError(t, err)
	require.NotNil(t, dispute.ResolvedAt)
	require.Equal(t, admin, *dispute.ResolvedBy)
	require.Contains(t, f.eventTypes(t), string(enums.EventDisputeStatusChanged))
}

func TestResolveBuyerRefunded(t *testing.T) {
	f := setupFixture(t)
	order, _, buyer := f.createOrder(t)
	f.reportAsBuyer(t, order, buyer)
	admin := uuid.New()

	dispute, err := f.svc.Resolve(context.Background(), ResolveInput{
		OrderID:    order.ID,
		AdminID:    admin,
		Resolution: enums.DisputeResolutionBuyerRefunded,
	})
	require.NoError(t, err)
	require.Equal(t, enums.DisputeStatusResolved, dispute.Status)
	require.False(t, dispute.IsDisputed)
	require.Equal(t, enums.PaymentStatusRefunded, f.paymentStatus(t, order.ID))

	types := f.eventTypes(t)
	require.Contains(t, types, string(enums.EventRefundRequested))
	require.Contains(t, types, string(enums.EventDisputeResolved))

	// No money moved through the ledger on a refund.
	var count int64
	require.NoError(t, f.db.Model(&models.WalletTransaction{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestResolveArtisanPaidFinalizesOrder(t *testing.T) {
	f := setupFixture(t)
	order, artisan, buyer := f.createOrder(t)
	f.reportAsBuyer(t, order, buyer)

	dispute, err := f.svc.Resolve(context.Background(), ResolveInput{
		OrderID:    order.ID,
		AdminID:    uuid.New(),
		Resolution: enums.DisputeResolutionArtisanPaid,
	})
	require.NoError(t, err)
	require.False(t, dispute.IsDisputed)
	require.Equal(t, enums.PaymentStatusPaid, f.paymentStatus(t, order.ID))

	// Pickup order: seller receives total minus the 10% platform fee.
	info, err := f.ledger.GetWalletInfo(context.Background(), artisan, 5)
	require.NoError(t, err)
	require.Equal(t, int64(9000), info.Wallet.BalanceCents)

	require.Contains(t, f.eventTypes(t), string(enums.EventOrderCompleted))
}

func TestResolveNoActionNeededFinalizesOrder(t *testing.T) {
	f := setupFixture(t)
	order, artisan, buyer := f.createOrder(t)
	f.reportAsBuyer(t, order, buyer)

	_, err := f.svc.Resolve(context.Background(), ResolveInput{
		OrderID:    order.ID,
		AdminID:    uuid.New(),
		Resolution: enums.DisputeResolutionNoActionNeeded,
	})
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusPaid, f.paymentStatus(t, order.ID))

	info, err := f.ledger.GetWalletInfo(context.Background(), artisan, 5)
	require.NoError(t, err)
	require.Equal(t, int64(9000), info.Wallet.BalanceCents)
}

func TestResolvePartialRefundKeepsHold(t *testing.T) {
	f := setupFixture(t)
	order, _, buyer := f.createOrder(t)
	f.reportAsBuyer(t, order, buyer)

	dispute, err := f.svc.Resolve(context.Background(), ResolveInput{
		OrderID:    order.ID,
		AdminID:    uuid.New(),
		Resolution: enums.DisputeResolutionPartialRefund,
	})
	require.NoError(t, err)
	require.Equal(t, enums.DisputeStatusResolved, dispute.Status)
	// Money stays frozen until operations books the split manually.
	require.True(t, dispute.IsDisputed)
	require.Equal(t, enums.PaymentStatusHeldInDispute, f.paymentStatus(t, order.ID))
}

func TestResolveUnknownResolutionRejected(t *testing.T) {
	f := setupFixture(t)
	order, _, buyer := f.createOrder(t)
	f.reportAsBuyer(t, order, buyer)

	_, err := f.svc.Resolve(context.Background(), ResolveInput{
		OrderID:    order.ID,
		AdminID:    uuid.New(),
		Resolution: enums.DisputeResolution("split_the_difference"),
	})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInvalidResolution))
	require.Equal(t, enums.PaymentStatusHeldInDispute, f.paymentStatus(t, order.ID))
}

func TestResolveTwiceConflicts(t *testing.T) {
	f := setupFixture(t)
	order, _, buyer := f.createOrder(t)
	f.reportAsBuyer(t, order, buyer)

	_, err := f.svc.Resolve(context.Background(), ResolveInput{
		OrderID:    order.ID,
		AdminID:    uuid.New(),
		Resolution: enums.DisputeResolutionBuyerRefunded,
	})
	require.NoError(t, err)

	_, err = f.svc.Resolve(context.Background(), ResolveInput{
		OrderID:    order.ID,
		AdminID:    uuid.New(),
		Resolution: enums.DisputeResolutionArtisanPaid,
	})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))
}

func TestListPaginates(t *testing.T) {
	f := setupFixture(t)
	for i := 0; i < 3; i++ {
		order, _, buyer := f.createOrder(t)
		f.reportAsBuyer(t, order, buyer)
		// Spread created_at so the keyset ordering is deterministic.
		require.NoError(t, f.db.Model(&models.Dispute{}).
			Where("order_id = ?", order.ID).
			Update("created_at", f.clock.now.Add(time.Duration(i)*time.Minute)).Error)
	}

	first, cursor, err := f.svc.List(context.Background(), ListInput{Page: pagination.Params{Limit: 2}})
	require.NoError(t, err)
	require.Len(t, first, 2)
	require.NotEmpty(t, cursor)

	rest, next, err := f.svc.List(context.Background(), ListInput{Page: pagination.Params{Limit: 2, Cursor: cursor}})
	require.NoError(t, err)
	require.Len(t, rest, 1)
	require.Empty(t, next)
	require.True(t, first[1].CreatedAt.After(rest[0].CreatedAt) || first[1].CreatedAt.Equal(rest[0].CreatedAt))
}

func TestListFiltersByStatus(t *testing.T) {
	f := setupFixture(t)
	orderA, _, buyerA := f.createOrder(t)
	f.reportAsBuyer(t, orderA, buyerA)
	orderB, _, buyerB := f.createOrder(t)
	f.reportAsBuyer(t, orderB, buyerB)

	_, err := f.svc.Resolve(context.Background(), ResolveInput{
		OrderID:    orderB.ID,
		AdminID:    uuid.New(),
		Resolution: enums.DisputeResolutionBuyerRefunded,
	})
	require.NoError(t, err)

	open := enums.DisputeStatusOpen
	rows, _, err := f.svc.List(context.Background(), ListInput{Filter: ListFilter{Status: &open}})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, orderA.ID, rows[0].OrderID)
}

func TestStatisticsAggregates(t *testing.T) {
	f := setupFixture(t)
	orderA, _, buyerA := f.createOrder(t)
	f.reportAsBuyer(t, orderA, buyerA)
	orderB, _, buyerB := f.createOrder(t)
	f.reportAsBuyer(t, orderB, buyerB)

	f.clock.now = f.clock.now.Add(2 * time.Hour)
	_, err := f.svc.Resolve(context.Background(), ResolveInput{
		OrderID:    orderB.ID,
		AdminID:    uuid.New(),
		Resolution: enums.DisputeResolutionBuyerRefunded,
	})
	require.NoError(t, err)

	stats, err := f.svc.Statistics(context.Background(), ListFilter{})
	require.NoError(t, err)
	require.Equal(t, int64(2), stats.Total)
	require.Equal(t, int64(1), stats.ByStatus[string(enums.DisputeStatusOpen)])
	require.Equal(t, int64(1), stats.ByStatus[string(enums.DisputeStatusResolved)])
	require.Equal(t, int64(2), stats.ByType[string(enums.DisputeTypeItemNotReceived)])
	require.Equal(t, int64(1), stats.Resolved)
	require.InDelta(t, (2 * time.Hour).Seconds(), stats.AverageResolutionSeconds, 1.0)
}
