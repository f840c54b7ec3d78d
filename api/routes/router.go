package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/avelardi/atelia-backend/api/controllers"
	"github.com/avelardi/atelia-backend/api/middleware"
	"github.com/avelardi/atelia-backend/internal/confirmation"
	"github.com/avelardi/atelia-backend/internal/disputes"
	"github.com/avelardi/atelia-backend/internal/notifications"
	"github.com/avelardi/atelia-backend/internal/payouts"
	"github.com/avelardi/atelia-backend/internal/wallets"
	"github.com/avelardi/atelia-backend/pkg/config"
	"github.com/avelardi/atelia-backend/pkg/enums"
	"github.com/avelardi/atelia-backend/pkg/logger"
	pkgredis "github.com/avelardi/atelia-backend/pkg/redis"
)

// Dependencies carries everything the router wires into handlers.
type Dependencies struct {
	Config        *config.Config
	Logger        *logger.Logger
	Redis         *pkgredis.Client
	HealthChecks  map[string]controllers.Pinger
	Confirmations confirmation.Service
	Disputes      disputes.Service
	Wallets       wallets.Service
	Payouts       payouts.Service
	Notifications notifications.Service
}

func NewRouter(deps Dependencies) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	var idemStore pkgredis.IdempotencyStore
	if deps.Redis != nil {
		idemStore = deps.Redis
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.HealthChecks))
	})

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
		// Guest buyers confirm receipt without a session; the order's contact
		// email is their credential.
		r.Post("/v1/orders/{orderId}/confirm/buyer", controllers.ConfirmBuyer(deps.Confirmations, logg))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(idemStore, logg))

		r.Get("/ping", controllers.PrivatePing())

		r.Route("/v1/orders/{orderId}", func(r chi.Router) {
			r.Get("/confirmation", controllers.GetConfirmation(deps.Confirmations, logg))
			r.Post("/confirm/artisan", controllers.ConfirmArtisan(deps.Confirmations, logg))
			r.Post("/confirm/buyer", controllers.ConfirmBuyer(deps.Confirmations, logg))
			r.Post("/dispute", controllers.ReportDispute(deps.Disputes, logg))
			r.Get("/dispute", controllers.GetDispute(deps.Disputes, logg))
		})

		r.Route("/v1/wallet", func(r chi.Router) {
			r.Get("/", controllers.WalletInfo(deps.Wallets, logg))
		})

		r.Route("/v1/payouts", func(r chi.Router) {
			r.Get("/status", controllers.PayoutStatus(deps.Payouts, logg))
			r.Post("/setup", controllers.PayoutSetup(deps.Payouts, logg))
			r.Post("/", controllers.ProcessPayout(deps.Payouts, logg))
		})

		r.Route("/v1/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(deps.Notifications, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(deps.Notifications, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(deps.Notifications, logg))
		})
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(string(enums.ActorRoleAdmin), logg))
		r.Use(middleware.Idempotency(idemStore, logg))

		r.Get("/ping", controllers.AdminPing())

		r.Route("/v1/disputes", func(r chi.Router) {
			r.Get("/", controllers.AdminListDisputes(deps.Disputes, logg))
			r.Get("/stats", controllers.AdminDisputeStatistics(deps.Disputes, logg))
		})
		r.Route("/v1/orders/{orderId}/dispute", func(r chi.Router) {
			r.Post("/status", controllers.AdminUpdateDisputeStatus(deps.Disputes, logg))
			r.Post("/resolve", controllers.AdminResolveDispute(deps.Disputes, logg))
		})
	})

	return r
}
