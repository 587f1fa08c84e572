package transport

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/frahmantamala/admin-lite-gateway/pkg/logger"
)

const bearerPrefix = "Bearer "

// BaseHandler carries the response helpers every HTTP handler in the gateway
// shares: JSON writing, the error envelope and bearer extraction.
type BaseHandler struct {
	Logger *slog.Logger
}

func NewBaseHandler(lg *slog.Logger) *BaseHandler {
	if lg == nil {
		lg = logger.LoggerWrapper()
		if lg == nil {
			lg = slog.Default()
		}
	}
	return &BaseHandler{Logger: lg}
}

// WriteJSON writes data as a JSON response with the given status.
func (h *BaseHandler) WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.Logger.Error("failed to encode JSON response", "error", err)
	}
}

// WriteError writes the gateway's error envelope: the status code doubled
// into the body so browser clients never need to read it off the response.
func (h *BaseHandler) WriteError(w http.ResponseWriter, status int, message string) {
	h.WriteJSON(w, status, map[string]interface{}{
		"code":    status,
		"message": message,
	})
}

// ExtractTokenFromHeader returns the Authorization bearer value, or empty
// when the header is absent or carries another scheme.
func (h *BaseHandler) ExtractTokenFromHeader(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, bearerPrefix) {
		return ""
	}
	return strings.TrimPrefix(auth, bearerPrefix)
}
