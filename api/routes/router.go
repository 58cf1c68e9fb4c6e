package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/adjeibohyen/tutorhub-backend/api/controllers"
	webhookcontrollers "github.com/adjeibohyen/tutorhub-backend/api/controllers/webhooks"
	"github.com/adjeibohyen/tutorhub-backend/api/middleware"
	"github.com/adjeibohyen/tutorhub-backend/internal/auth"
	"github.com/adjeibohyen/tutorhub-backend/internal/payments"
	"github.com/adjeibohyen/tutorhub-backend/internal/reconcile"
	"github.com/adjeibohyen/tutorhub-backend/internal/videos"
	"github.com/adjeibohyen/tutorhub-backend/pkg/config"
	"github.com/adjeibohyen/tutorhub-backend/pkg/db"
	"github.com/adjeibohyen/tutorhub-backend/pkg/logger"
	"github.com/adjeibohyen/tutorhub-backend/pkg/paystack"
	"github.com/adjeibohyen/tutorhub-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	registry *prometheus.Registry,
	authService auth.Service,
	videoService videos.Service,
	paymentService payments.Service,
	reconcileEngine reconcile.Service,
	paystackClient *paystack.Client,
	webhookGuard *reconcile.IdempotencyGuard,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	var redisP redis.Pinger
	if redisClient != nil {
		redisP = redisClient
	}
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})

	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/paystack", webhookcontrollers.PaystackWebhook(reconcileEngine, paystackClient, webhookGuard, logg))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Post("/register", controllers.AuthRegister(authService, logg))
		r.Post("/login", controllers.AuthLogin(authService, logg))
	})

	r.Route("/api/v1/videos", func(r chi.Router) {
		r.Use(middleware.OptionalAuth(cfg.JWT, logg))
		r.Get("/", controllers.VideoList(videoService, logg))
		r.Get("/{videoId}", controllers.VideoGet(videoService, logg))
	})

	r.Route("/api/v1/admin", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireAdmin(logg))
		r.Route("/videos", func(r chi.Router) {
			r.Post("/", controllers.VideoCreate(videoService, logg))
			r.Patch("/{videoId}", controllers.VideoUpdate(videoService, logg))
			r.Delete("/{videoId}", controllers.VideoDelete(videoService, logg))
		})
	})

	r.Route("/api/v1/payments", func(r chi.Router) {
		// The verify landing is hit by a browser mid-redirect, before any
		// session exists on our side, so it stays public.
		r.Get("/verify", controllers.PaymentVerify(reconcileEngine, cfg.App.BaseURL, logg))
		r.With(middleware.Auth(cfg.JWT, logg)).Post("/initialize", controllers.PaymentInitialize(paymentService, logg))
	})

	r.Route("/api/v1/subscriptions", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Post("/initialize", controllers.SubscriptionInitialize(paymentService, logg))
		r.With(middleware.RequireAdmin(logg)).Get("/plan", controllers.SubscriptionPlanStatus(paymentService, logg))
	})

	return r
}
