package rest

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/frahmantamala/admin-lite-gateway/internal"
	"github.com/frahmantamala/admin-lite-gateway/internal/proxy"
	"github.com/frahmantamala/admin-lite-gateway/internal/session"
	"github.com/frahmantamala/admin-lite-gateway/internal/transport/middleware"
	"github.com/frahmantamala/admin-lite-gateway/internal/transport/swagger"
	"github.com/frahmantamala/admin-lite-gateway/internal/upstream"
)

func RegisterAllRoutes(router *chi.Mux, db *sql.DB, cfg *internal.Config, sessionHandler *session.Handler, proxyHandler *proxy.Handler, gate *middleware.AuthGate, limiter *middleware.RateLimiter, upstreamClient *upstream.Client, logger *slog.Logger) {
	healthHandler := NewHealthHandler(db, cfg, upstreamClient)

	// Apply global middleware
	router.Use(middleware.CORS(cfg))
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))

	// Liveness and readiness at the root, outside rate limiting
	router.Get("/ping", healthHandler.pingHandler)
	router.Get("/health", healthHandler.healthCheckHandler)

	// Serve OpenAPI spec at root (outside API prefix)
	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./api/openapi.yml")
	})
	// Swagger UI route at root
	router.Handle("/swagger/*", swagger.Handler())

	router.Route("/api/admin-lite", func(r chi.Router) {
		if limiter != nil {
			r.Use(limiter.Handler)
		}

		// Session endpoints: login is the one unauthenticated entry point,
		// current/logout work off whatever credential the request carries.
		if sessionHandler != nil {
			r.Post("/session", sessionHandler.Login)
			r.Get("/session", sessionHandler.Current)
			r.Delete("/session", sessionHandler.Logout)
		}

		// Everything else requires a verified session and an allowed origin.
		if proxyHandler != nil && gate != nil {
			r.Group(func(pr chi.Router) {
				pr.Use(middleware.SessionCookieBridge)
				pr.Use(gate.Handler)

				// Creation endpoints with two-step upstream fallback
				pr.Post("/catalog/collections", proxyHandler.CreateCollection)
				pr.Post("/catalog/product-categories", proxyHandler.CreateCategory)
				pr.Post("/uploads", proxyHandler.CreateUpload)
				pr.Post("/products/{id}/variants", proxyHandler.CreateVariant)
				pr.Post("/products/{id}/variants/{variantID}", proxyHandler.UpdateVariant)

				// Catch-all relay for the rest of the admin surface
				pr.HandleFunc("/*", proxyHandler.Forward)
			})
		}
	})
}
