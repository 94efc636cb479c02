package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rebookza/rebook-backend/api/controllers"
	webhookcontrollers "github.com/rebookza/rebook-backend/api/controllers/webhooks"
	"github.com/rebookza/rebook-backend/api/middleware"
	checkoutsvc "github.com/rebookza/rebook-backend/internal/checkout"
	"github.com/rebookza/rebook-backend/internal/feedback"
	"github.com/rebookza/rebook-backend/internal/notifications"
	internalorders "github.com/rebookza/rebook-backend/internal/orders"
	"github.com/rebookza/rebook-backend/internal/profiles"
	"github.com/rebookza/rebook-backend/internal/wallet"
	"github.com/rebookza/rebook-backend/pkg/config"
	"github.com/rebookza/rebook-backend/pkg/logger"
	"github.com/rebookza/rebook-backend/pkg/redis"
)

// Deps carries everything the router wires into handlers.
type Deps struct {
	Config *config.Config
	Logger *logger.Logger

	DB    controllers.Pinger
	Redis *redis.Client

	Sealer checkoutsvc.Sealer

	Profiles      profiles.Repository
	Checkout      checkoutsvc.Service
	Orders        internalorders.Service
	Feedback      feedback.Service
	Wallet        wallet.Service
	Notifications notifications.Service

	MetricsGatherer prometheus.Gatherer
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"postgres": deps.DB,
			"redis":    deps.Redis,
		}))
	})

	if deps.MetricsGatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.MetricsGatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/payment", webhookcontrollers.PaymentWebhook(deps.Checkout, logg))
		r.Post("/courier", webhookcontrollers.CourierWebhook(deps.Orders, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(deps.Redis, logg))

		r.Route("/profile", func(r chi.Router) {
			r.Get("/", controllers.GetProfile(deps.Profiles, logg))
			r.Put("/", controllers.UpdateProfile(deps.Profiles, deps.Sealer, logg))
		})

		r.Post("/checkout", controllers.Checkout(deps.Checkout, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.ListOrders(deps.Orders, logg))
			r.Get("/{orderId}", controllers.OrderDetail(deps.Orders, logg))
			r.Get("/{orderId}/tracking", controllers.OrderTracking(deps.Orders, logg))
			r.Post("/{orderId}/commit", controllers.CommitOrder(deps.Orders, logg))
			r.Post("/{orderId}/cancel", controllers.CancelOrder(deps.Orders, logg))
			r.Post("/{orderId}/receipt", controllers.ConfirmReceipt(deps.Feedback, logg))
		})

		r.Route("/wallet", func(r chi.Router) {
			r.Get("/", controllers.WalletGet(deps.Wallet, logg))
			r.Get("/transactions", controllers.WalletTransactions(deps.Wallet, logg))
			r.Post("/payouts", controllers.RequestPayout(deps.Wallet, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(deps.Notifications, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(deps.Notifications, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(deps.Notifications, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole("admin", logg))
		r.Use(middleware.Idempotency(deps.Redis, logg))

		r.Route("/payouts", func(r chi.Router) {
			r.Get("/", controllers.AdminListPayouts(deps.Wallet, logg))
			r.Post("/{payoutId}/approve", controllers.AdminApprovePayout(deps.Wallet, logg))
			r.Post("/{payoutId}/deny", controllers.AdminDenyPayout(deps.Wallet, logg))
			r.Post("/{payoutId}/mark-paid", controllers.AdminMarkPayoutPaid(deps.Wallet, logg))
		})
	})

	return r
}
