package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/avelardi/atelia-backend/api/controllers"
	"github.com/avelardi/atelia-backend/internal/confirmation"
	"github.com/avelardi/atelia-backend/internal/disputes"
	"github.com/avelardi/atelia-backend/internal/notifications"
	"github.com/avelardi/atelia-backend/internal/payouts"
	"github.com/avelardi/atelia-backend/internal/wallets"
	pkgauth "github.com/avelardi/atelia-backend/pkg/auth"
	"github.com/avelardi/atelia-backend/pkg/config"
	"github.com/avelardi/atelia-backend/pkg/db/models"
	"github.com/avelardi/atelia-backend/pkg/enums"
	"github.com/avelardi/atelia-backend/pkg/identity"
	"github.com/avelardi/atelia-backend/pkg/logger"
	"github.com/avelardi/atelia-backend/pkg/stripe"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubConfirmationService struct {
	confirmBuyerCalls int
}

func (s *stubConfirmationService) ConfirmArtisan(ctx context.Context, input confirmation.ConfirmArtisanInput) (*models.FulfillmentConfirmation, error) {
	return &models.FulfillmentConfirmation{}, nil
}

func (s *stubConfirmationService) ConfirmBuyer(ctx context.Context, input confirmation.ConfirmBuyerInput) (*models.FulfillmentConfirmation, error) {
	s.confirmBuyerCalls++
	return &models.FulfillmentConfirmation{}, nil
}

func (s *stubConfirmationService) GetConfirmation(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return &models.Order{}, nil
}

func (s *stubConfirmationService) FinalizeTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, autoCompleted bool) (bool, error) {
	return false, nil
}

func (s *stubConfirmationService) FinalizeHeldTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (bool, error) {
	return false, nil
}

func (s *stubConfirmationService) ProcessAutoCompletions(ctx context.Context, now time.Time) (confirmation.SweepResult, error) {
	return confirmation.SweepResult{}, nil
}

type stubDisputesService struct{}

func (stubDisputesService) Report(ctx context.Context, input disputes.ReportInput) (*models.Dispute, error) {
	return &models.Dispute{}, nil
}

func (stubDisputesService) UpdateStatus(ctx context.Context, input disputes.UpdateStatusInput) (*models.Dispute, error) {
	return &models.Dispute{}, nil
}

func (stubDisputesService) Resolve(ctx context.Context, input disputes.ResolveInput) (*models.Dispute, error) {
	return &models.Dispute{}, nil
}

func (stubDisputesService) GetByOrder(ctx context.Context, orderID uuid.UUID) (*models.Dispute, error) {
	return &models.Dispute{}, nil
}

func (stubDisputesService) List(ctx context.Context, input disputes.ListInput) ([]models.Dispute, string, error) {
	return []models.Dispute{}, "", nil
}

func (stubDisputesService) Statistics(ctx context.Context, filter disputes.ListFilter) (*disputes.Statistics, error) {
	return &disputes.Statistics{}, nil
}

type stubWalletsService struct{}

func (stubWalletsService) GetOrCreateWallet(ctx context.Context, owner identity.ArtisanID) (*models.Wallet, error) {
	return &models.Wallet{}, nil
}

func (stubWalletsService) CreditFunds(ctx context.Context, input wallets.FundsInput) (*models.WalletTransaction, error) {
	return &models.WalletTransaction{}, nil
}

func (stubWalletsService) DebitFunds(ctx context.Context, input wallets.FundsInput) (*models.WalletTransaction, error) {
	return &models.WalletTransaction{}, nil
}

func (stubWalletsService) CreditFundsTx(ctx context.Context, tx *gorm.DB, input wallets.FundsInput) (*models.WalletTransaction, error) {
	return &models.WalletTransaction{}, nil
}

func (stubWalletsService) DebitFundsTx(ctx context.Context, tx *gorm.DB, input wallets.FundsInput) (*models.WalletTransaction, error) {
	return &models.WalletTransaction{}, nil
}

func (stubWalletsService) CreditOrderRevenue(ctx context.Context, orderID uuid.UUID) (*models.WalletTransaction, error) {
	return &models.WalletTransaction{}, nil
}

func (stubWalletsService) CreditOrderRevenueTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*models.WalletTransaction, error) {
	return &models.WalletTransaction{}, nil
}

func (stubWalletsService) GetWalletInfo(ctx context.Context, owner identity.ArtisanID, limit int) (*wallets.WalletInfo, error) {
	return &wallets.WalletInfo{}, nil
}

type stubPayoutsService struct{}

func (stubPayoutsService) GetPayoutStatus(ctx context.Context, owner identity.ArtisanID) (*payouts.Status, error) {
	return &payouts.Status{}, nil
}

func (stubPayoutsService) SetupAccount(ctx context.Context, owner identity.ArtisanID, account stripe.AccountIdentity) (string, error) {
	return "acct_test", nil
}

func (stubPayoutsService) ProcessPayout(ctx context.Context, input payouts.ProcessInput) (*models.PayoutAttempt, error) {
	return &models.PayoutAttempt{}, nil
}

func (stubPayoutsService) Reconcile(ctx context.Context, now time.Time) (payouts.ReconcileResult, error) {
	return payouts.ReconcileResult{}, nil
}

func (stubPayoutsService) RunScheduled(ctx context.Context, now time.Time) (payouts.ScheduledResult, error) {
	return payouts.ScheduledResult{}, nil
}

type stubNotificationsService struct{}

func (stubNotificationsService) List(ctx context.Context, params notifications.ListParams) (*notifications.ListResult, error) {
	return &notifications.ListResult{}, nil
}

func (stubNotificationsService) MarkRead(ctx context.Context, recipientID, notificationID uuid.UUID) error {
	return nil
}

func (stubNotificationsService) MarkAllRead(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	return 0, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", LogLevel: "debug"},
		JWT: config.JWTConfig{Secret: "test-secret", Issuer: "atelia-test", ExpirationMinutes: 60},
	}
}

func newTestRouter(cfg *config.Config) (http.Handler, *stubConfirmationService) {
	confirmations := &stubConfirmationService{}
	router := NewRouter(Dependencies{
		Config:        cfg,
		Logger:        logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("error")}),
		HealthChecks:  map[string]controllers.Pinger{"database": stubPinger{}},
		Confirmations: confirmations,
		Disputes:      stubDisputesService{},
		Wallets:       stubWalletsService{},
		Payouts:       stubPayoutsService{},
		Notifications: stubNotificationsService{},
	})
	return router, confirmations
}

func buildToken(t *testing.T, cfg *config.Config, role enums.ActorRole, artisanID *uuid.UUID) string {
	t.Helper()
	token, err := pkgauth.MintAccessToken(cfg.JWT, time.Now(), pkgauth.AccessTokenPayload{
		UserID:    uuid.New(),
		ArtisanID: artisanID,
		Role:      role,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestHealthEndpoints(t *testing.T) {
	router, _ := newTestRouter(testConfig())

	live := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, live)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for live got %d", resp.Code)
	}
	if resp.Header().Get("X-Atelia-Env") != "test" {
		t.Fatalf("expected env header, got %q", resp.Header().Get("X-Atelia-Env"))
	}

	ready := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, ready)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for ready got %d", resp.Code)
	}
}

func TestPublicPing(t *testing.T) {
	router, _ := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodGet, "/api/public/ping", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestGuestBuyerConfirmSkipsAuth(t *testing.T) {
	router, confirmations := newTestRouter(testConfig())
	body := strings.NewReader(`{"guestEmail":"buyer@example.com"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/public/v1/orders/"+uuid.NewString()+"/confirm/buyer", body)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for guest confirm got %d: %s", resp.Code, resp.Body.String())
	}
	if confirmations.confirmBuyerCalls != 1 {
		t.Fatalf("expected service called once, got %d", confirmations.confirmBuyerCalls)
	}
}

func TestPrivateGroupRejectsMissingJWT(t *testing.T) {
	router, _ := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token got %d", resp.Code)
	}
}

func TestPrivateGroupSucceedsWithJWT(t *testing.T) {
	cfg := testConfig()
	router, _ := newTestRouter(cfg)
	req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.ActorRoleBuyer, nil))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for private ping got %d", resp.Code)
	}
}

func TestAdminGroupRequiresAdminRole(t *testing.T) {
	cfg := testConfig()
	router, _ := newTestRouter(cfg)

	nonAdmin := httptest.NewRequest(http.MethodGet, "/api/admin/ping", nil)
	nonAdmin.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.ActorRoleBuyer, nil))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, nonAdmin)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin got %d", resp.Code)
	}

	admin := httptest.NewRequest(http.MethodGet, "/api/admin/ping", nil)
	admin.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.ActorRoleAdmin, nil))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, admin)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin got %d", resp.Code)
	}
}

func TestWalletRequiresArtisanSession(t *testing.T) {
	cfg := testConfig()
	router, _ := newTestRouter(cfg)

	buyer := httptest.NewRequest(http.MethodGet, "/api/v1/wallet/", nil)
	buyer.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.ActorRoleBuyer, nil))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, buyer)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for buyer wallet access got %d", resp.Code)
	}

	artisanID := uuid.New()
	artisan := httptest.NewRequest(http.MethodGet, "/api/v1/wallet/", nil)
	artisan.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.ActorRoleArtisan, &artisanID))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, artisan)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for artisan wallet got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestArtisanConfirmRoute(t *testing.T) {
	cfg := testConfig()
	router, _ := newTestRouter(cfg)
	artisanID := uuid.New()

	body := strings.NewReader(`{"leg":"pickup"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/"+uuid.NewString()+"/confirm/artisan", body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.ActorRoleArtisan, &artisanID))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for artisan confirm got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestAdminDisputeListRoute(t *testing.T) {
	cfg := testConfig()
	router, _ := newTestRouter(cfg)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/disputes/", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.ActorRoleAdmin, nil))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin dispute list got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestPayoutStatusRoute(t *testing.T) {
	cfg := testConfig()
	router, _ := newTestRouter(cfg)
	artisanID := uuid.New()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payouts/status", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.ActorRoleArtisan, &artisanID))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for payout status got %d: %s", resp.Code, resp.Body.String())
	}
}
