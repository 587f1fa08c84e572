package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/frahmantamala/admin-lite-gateway/internal"
	"github.com/frahmantamala/admin-lite-gateway/internal/session"
	"github.com/frahmantamala/admin-lite-gateway/internal/token"
	"github.com/frahmantamala/admin-lite-gateway/pkg/logger"
)

// AuthGate protects the proxied admin routes: it verifies the session token
// and checks the browser origin against the configured allowlist.
type AuthGate struct {
	cfg    *internal.Config
	codec  *token.Codec
	logger *slog.Logger
}

func NewAuthGate(cfg *internal.Config, codec *token.Codec, lg *slog.Logger) *AuthGate {
	if lg == nil {
		lg = logger.LoggerWrapper()
	}
	return &AuthGate{
		cfg:    cfg,
		codec:  codec,
		logger: lg,
	}
}

func (g *AuthGate) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Token first, origin second: a request without a valid session is
		// always a 401 so logged-out clients get routed to login, never a 403.
		tokenString := extractToken(r)
		if tokenString == "" {
			writeGateError(w, internal.ErrNotAuthenticated)
			return
		}

		claims, warning, err := g.codec.VerifyLenient(
			tokenString,
			g.cfg.Security.SecretCandidates(),
			token.Options{Audience: g.cfg.Security.JWTAudience, Issuer: g.cfg.Security.JWTIssuer},
		)
		if err != nil {
			g.logger.Warn("session token rejected", "error", err, "path", r.URL.Path)
			writeGateError(w, internal.ErrInvalidToken)
			return
		}
		if warning != "" {
			g.logger.Warn("session token accepted with warning", "warning", warning)
		}

		if !g.originAllowed(r) {
			g.logger.Warn("request origin rejected",
				"origin", r.Header.Get("Origin"),
				"host", r.Host,
				"path", r.URL.Path)
			writeGateError(w, internal.ErrOriginRejected)
			return
		}

		identity := session.IdentityFromClaims(claims)
		ctx := internal.ContextWithStaff(r.Context(), identity)
		ctx = internal.ContextWithClaims(ctx, claims)
		ctx = logger.With(ctx, "staff_id", identity.ID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// originAllowed applies the allowlist. No configured patterns means the gate
// trusts any origin; outside production, localhost callers always pass so
// local dashboards work without extra configuration.
func (g *AuthGate) originAllowed(r *http.Request) bool {
	patterns := g.cfg.Security.OriginAllowlist()
	if len(patterns) == 0 {
		return true
	}

	candidates := OriginCandidates(r)
	if !internal.IsProduction() && isLocalhost(candidates) {
		return true
	}
	return OriginAllowed(patterns, candidates)
}

func isLocalhost(candidates []string) bool {
	for _, c := range candidates {
		host := normalizeOrigin(c)
		if idx := strings.Index(host, "://"); idx >= 0 {
			host = host[idx+3:]
		}
		if h, _, ok := strings.Cut(host, ":"); ok {
			host = h
		}
		if host == "localhost" || host == "127.0.0.1" {
			return true
		}
	}
	return false
}

// extractToken checks the Authorization bearer first, then the custom header
// the dashboard sends. The cookie itself is handled by SessionCookieBridge
// which runs before the gate.
func extractToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return r.Header.Get("X-Admin-Lite-Token")
}

// SessionCookieBridge copies the session cookie into the Authorization header
// when none is present, so browser requests carry the same credential shape
// as API clients by the time the gate sees them.
func SessionCookieBridge(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			if cookie, err := r.Cookie(session.CookieName); err == nil && cookie.Value != "" {
				r.Header.Set("Authorization", "Bearer "+cookie.Value)
			}
		}
		next.ServeHTTP(w, r)
	})
}

func writeGateError(w http.ResponseWriter, appErr *internal.AppError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.StatusCode)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"code":    appErr.StatusCode,
		"message": appErr.Message,
	})
}
