package session

import (
	"net/http"
	"strings"
	"time"
)

// CookieName is the browser-held session artifact for the admin lite panel.
const CookieName = "admin_lite_token"

// RequestIsSecure reports whether the request arrived over HTTPS, directly
// or behind a TLS-terminating proxy.
func RequestIsSecure(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

// SetCookie installs the session token. Secure tracks the request transport
// so local development without TLS keeps working.
func SetCookie(w http.ResponseWriter, r *http.Request, token string, ttlSeconds int) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   RequestIsSecure(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   ttlSeconds,
	})
}

// ClearCookie expires the session cookie. Safe to call repeatedly; clearing
// an already-cleared cookie is a no-op for the browser.
func ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		// negative MaxAge serializes as Max-Age=0, deleting the cookie
		MaxAge:  -1,
		Expires: time.Unix(0, 0),
	})
}
