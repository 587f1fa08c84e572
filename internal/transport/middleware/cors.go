package middleware

import (
	"net/http"

	"github.com/go-chi/cors"

	"github.com/frahmantamala/admin-lite-gateway/internal"
)

// CORS answers preflights for the dashboard. It reuses the auth gate's
// allowlist semantics so a preflight and the request behind it agree, and
// always allows credentials because the session rides a cookie.
func CORS(cfg *internal.Config) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowOriginFunc: func(r *http.Request, origin string) bool {
			patterns := cfg.Security.OriginAllowlist()
			if len(patterns) == 0 {
				return true
			}
			if !internal.IsProduction() && isLocalhost([]string{origin}) {
				return true
			}
			for _, pattern := range patterns {
				if matchOrigin(pattern, origin) {
					return true
				}
			}
			return false
		},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Admin-Lite-Token", "X-Request-ID"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}
