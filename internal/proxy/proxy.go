package proxy

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi"

	"github.com/frahmantamala/admin-lite-gateway/internal"
	"github.com/frahmantamala/admin-lite-gateway/internal/session"
	"github.com/frahmantamala/admin-lite-gateway/internal/transport"
	"github.com/frahmantamala/admin-lite-gateway/internal/upstream"
)

// Headers that must never cross the proxy boundary in either direction.
var hopByHopHeaders = map[string]struct{}{
	"connection":        {},
	"keep-alive":        {},
	"transfer-encoding": {},
	"upgrade":           {},
	"te":                {},
	"trailer":           {},
	"content-length":    {},
	"accept-encoding":   {},
	"host":              {},
}

// Inbound credentials are always replaced with the session-derived bearer.
var strippedInboundHeaders = map[string]struct{}{
	"authorization": {},
	"cookie":        {},
}

// Upstream headers the browser must not see: the backend's own cookies and
// an encoding the proxy has not applied itself.
var strippedRelayHeaders = map[string]struct{}{
	"set-cookie":       {},
	"content-encoding": {},
}

// Handler relays lite-prefixed requests to the upstream commerce admin API.
type Handler struct {
	*transport.BaseHandler
	cfg    *internal.Config
	client *upstream.Client
}

func NewHandler(cfg *internal.Config, client *upstream.Client, lg *slog.Logger) *Handler {
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		cfg:         cfg,
		client:      client,
	}
}

// Forward is the catch-all lite route: any method, any path under the lite
// namespace, relayed verbatim.
func (h *Handler) Forward(w http.ResponseWriter, r *http.Request) {
	bearer, ok := h.sessionBearer(w, r)
	if !ok {
		return
	}

	root := ResolveUpstreamRoot(h.cfg, r)
	target := BuildTargetURL(root, requestPath(r), r.URL.RawQuery)

	var body io.Reader
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		body = r.Body
	}

	resp, err := h.client.Do(r.Context(), r.Method, target, body, h.outboundHeaders(r, bearer))
	if err != nil {
		h.Logger.Error("proxy forward failed", "target", target, "error", err)
		h.WriteError(w, http.StatusBadGateway, "Unable to reach backend")
		return
	}
	defer resp.Body.Close()

	h.relay(w, resp)
}

// sessionBearer reads the session cookie. A missing cookie is a 401 plus a
// defensive (idempotent) cookie clear.
func (h *Handler) sessionBearer(w http.ResponseWriter, r *http.Request) (string, bool) {
	cookie, err := r.Cookie(session.CookieName)
	if err != nil || strings.TrimSpace(cookie.Value) == "" {
		session.ClearCookie(w)
		h.WriteError(w, http.StatusUnauthorized, "Not authenticated")
		return "", false
	}
	return cookie.Value, true
}

// outboundHeaders filters the inbound header set and injects the
// session-derived credentials and content negotiation the relay requires.
func (h *Handler) outboundHeaders(r *http.Request, bearer string) http.Header {
	out := http.Header{}
	for name, values := range r.Header {
		key := strings.ToLower(name)
		if _, drop := hopByHopHeaders[key]; drop {
			continue
		}
		if _, drop := strippedInboundHeaders[key]; drop {
			continue
		}
		for _, v := range values {
			out.Add(name, v)
		}
	}

	out.Set("Authorization", "Bearer "+bearer)
	out.Set("Accept", "application/json")
	// identity only: the proxy streams bodies back without re-encoding
	out.Set("Accept-Encoding", "identity")

	if origin := deriveOrigin(r); origin != "" {
		out.Set("Origin", origin)
		out.Set("X-Forwarded-Origin", origin)
		if u, err := url.Parse(origin); err == nil && u.Host != "" {
			out.Set("X-Forwarded-Host", u.Host)
		}
	}

	return out
}

// relay copies the upstream response back verbatim minus hop-by-hop,
// Set-Cookie and Content-Encoding headers. Backend statuses pass through
// untouched, 5xx included; only a transport failure reaching the backend
// yields the gateway's own 502. An upstream 401 is the single point where
// backend-side session expiry propagates to the browser: the local cookie
// is cleared alongside the relayed status.
func (h *Handler) relay(w http.ResponseWriter, resp *http.Response) {
	if resp.StatusCode == http.StatusUnauthorized {
		session.ClearCookie(w)
	}

	for name, values := range resp.Header {
		key := strings.ToLower(name)
		if _, drop := hopByHopHeaders[key]; drop {
			continue
		}
		if _, drop := strippedRelayHeaders[key]; drop {
			continue
		}
		for _, v := range values {
			w.Header().Add(name, v)
		}
	}

	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		h.Logger.Error("relay upstream body failed", "error", err)
	}
}

// forwardWithFallback buffers the body and tries the lite upstream path
// first, falling back to the legacy admin path only when the backend
// answers 404 (endpoint not yet deployed). Any other status is surfaced
// directly.
func (h *Handler) forwardWithFallback(w http.ResponseWriter, r *http.Request, path string) {
	bearer, ok := h.sessionBearer(w, r)
	if !ok {
		return
	}

	var body []byte
	if r.Method != http.MethodGet && r.Method != http.MethodHead && r.Body != nil {
		var err error
		body, err = io.ReadAll(r.Body)
		if err != nil {
			h.WriteError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	root := ResolveUpstreamRoot(h.cfg, r)
	headers := h.outboundHeaders(r, bearer)

	primary := LiteTargetURL(root, path, r.URL.RawQuery)
	resp, err := h.client.Do(r.Context(), r.Method, primary, bytes.NewReader(body), headers)
	if err != nil {
		h.Logger.Error("proxy forward failed", "target", primary, "error", err)
		h.WriteError(w, http.StatusBadGateway, "Unable to reach backend")
		return
	}

	if resp.StatusCode == http.StatusNotFound {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		legacy := BuildTargetURL(root, path, r.URL.RawQuery)
		h.Logger.Info("lite endpoint missing upstream, retrying legacy path",
			"primary", primary, "legacy", legacy)

		resp, err = h.client.Do(r.Context(), r.Method, legacy, bytes.NewReader(body), headers)
		if err != nil {
			h.Logger.Error("proxy fallback failed", "target", legacy, "error", err)
			h.WriteError(w, http.StatusBadGateway, "Unable to reach backend")
			return
		}
	}
	defer resp.Body.Close()

	h.relay(w, resp)
}

// deriveOrigin recovers the browser origin from the Origin header, falling
// back to the Referer's scheme://host.
func deriveOrigin(r *http.Request) string {
	if origin := r.Header.Get("Origin"); origin != "" {
		return origin
	}
	if ref := r.Header.Get("Referer"); ref != "" {
		if u, err := url.Parse(ref); err == nil && u.Scheme != "" && u.Host != "" {
			return u.Scheme + "://" + u.Host
		}
	}
	return ""
}

func requestPath(r *http.Request) string {
	if wildcard := chi.URLParam(r, "*"); wildcard != "" {
		return wildcard
	}
	return strings.TrimPrefix(r.URL.Path, "/")
}
