package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/admin-lite-gateway/internal"
	"github.com/frahmantamala/admin-lite-gateway/internal/staff"
	"github.com/frahmantamala/admin-lite-gateway/internal/transport"
	"github.com/frahmantamala/admin-lite-gateway/pkg/logger"
)

// ServiceAPI is what the handler needs from the session service.
type ServiceAPI interface {
	Authenticate(ctx context.Context, dto LoginDTO) (*Result, error)
	VerifySession(tokenString string) (*staff.Identity, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(svc ServiceAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     svc,
	}
}

// Login handles POST /session: authenticate, mint a token, set the cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var dto LoginDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.Service.Authenticate(r.Context(), dto)
	if err != nil {
		h.Logger.Error("authentication failed", "error", err)

		if _, ok := err.(ValidationError); ok {
			h.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		var appErr *internal.AppError
		if errors.As(err, &appErr) {
			h.WriteError(w, appErr.StatusCode, appErr.Message)
			return
		}
		h.WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	SetCookie(w, r, result.Token, result.TTL)
	h.WriteJSON(w, http.StatusOK, result)
}

// Current handles GET /session: report the authenticated staff user.
func (h *Handler) Current(w http.ResponseWriter, r *http.Request) {
	tokenString := h.extractSessionToken(r)
	if tokenString == "" {
		h.WriteError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	user, err := h.Service.VerifySession(tokenString)
	if err != nil {
		h.WriteError(w, http.StatusUnauthorized, "Invalid or expired token")
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"user":          user,
	})
}

// Logout handles DELETE /session. Clearing is idempotent: a second logout
// still answers 200 with a cleared cookie.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	ClearCookie(w)
	h.WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// extractSessionToken prefers the cookie, then the Authorization bearer,
// then the custom header the dashboard sends from fetch calls.
func (h *Handler) extractSessionToken(r *http.Request) string {
	if cookie, err := r.Cookie(CookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	if bearer := h.ExtractTokenFromHeader(r); bearer != "" {
		return bearer
	}
	return r.Header.Get("X-Admin-Lite-Token")
}
