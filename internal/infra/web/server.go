package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"lms-payments/internal/config"
	"lms-payments/internal/domain/ports/adapter"
	"lms-payments/internal/domain/ports/repository"
	"lms-payments/internal/usecase"
)

// Server owns the HTTP surface: the client-facing payment API, the gateway
// webhook endpoint, and the JWT-guarded admin API.
type Server struct {
	purchaseUC     usecase.PurchaseUseCase
	subscriptionUC usecase.SubscriptionUseCase
	webhookUC      usecase.WebhookUseCase
	revenueUC      usecase.RevenueUseCase
	decoder        adapter.WebhookDecoder
	plans          repository.SubscriptionPlanRepository
	purchases      repository.PurchaseRepository
	renewals       repository.RenewalRepository
	auth           *adminAuth
	log            *zerolog.Logger

	httpServer *http.Server
}

func NewServer(
	cfg *config.Config,
	purchaseUC usecase.PurchaseUseCase,
	subscriptionUC usecase.SubscriptionUseCase,
	webhookUC usecase.WebhookUseCase,
	revenueUC usecase.RevenueUseCase,
	decoder adapter.WebhookDecoder,
	plans repository.SubscriptionPlanRepository,
	purchases repository.PurchaseRepository,
	renewals repository.RenewalRepository,
	logger *zerolog.Logger,
) *Server {
	webLog := logger.With().Str("component", "web").Logger()
	s := &Server{
		purchaseUC:     purchaseUC,
		subscriptionUC: subscriptionUC,
		webhookUC:      webhookUC,
		revenueUC:      revenueUC,
		decoder:        decoder,
		plans:          plans,
		purchases:      purchases,
		renewals:       renewals,
		auth:           newAdminAuth(cfg.Admin.JWTSecret),
		log:            &webLog,
	}
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Routes builds the router. Exposed separately so handler tests can mount
// it on a httptest server.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/purchases", s.handleCreatePurchase)
		r.Get("/plans", s.handleListPlans)
		r.Post("/subscriptions", s.handleCreateSubscription)
		r.Post("/subscriptions/{id}/cancel", s.handleCancelSubscription)
		r.Post("/subscriptions/{id}/refund", s.handleRefundSubscription)
		r.Post("/webhook", s.handleWebhook)

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.auth.Middleware)
			r.Get("/revenue", s.handleRevenue)
			r.Get("/users/{id}/purchases", s.handleUserPurchases)
			r.Get("/purchases/{intentID}", s.handlePurchaseByIntent)
			r.Get("/subscriptions/{id}/renewals", s.handleSubscriptionRenewals)
		})
	})
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.httpServer.Addr).Msg("HTTP server listening")
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
