package proxy

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/admin-lite-gateway/internal"
	"github.com/frahmantamala/admin-lite-gateway/internal/session"
	"github.com/frahmantamala/admin-lite-gateway/internal/upstream"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   string
}

func newProxyRouter(backendURL string) *chi.Mux {
	cfg := &internal.Config{}
	cfg.Upstream.BackendURL = backendURL

	handler := NewHandler(cfg, upstream.NewClient(2*time.Second, slog.Default()), slog.Default())

	router := chi.NewRouter()
	router.Post("/catalog/collections", handler.CreateCollection)
	router.Post("/uploads", handler.CreateUpload)
	router.HandleFunc("/*", handler.Forward)
	return router
}

func sessionCookie() *http.Cookie {
	return &http.Cookie{Name: session.CookieName, Value: "session-token"}
}

func clearedCookie(res *http.Response) *http.Cookie {
	for _, c := range res.Cookies() {
		if c.Name == session.CookieName && c.Value == "" {
			return c
		}
	}
	return nil
}

var _ = Describe("Proxy Handler", func() {
	Describe("authentication boundary", func() {
		It("should reject a request without a session cookie and clear defensively", func() {
			router := newProxyRouter("http://127.0.0.1:1")

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest("GET", "/orders", nil))

			res := rec.Result()
			Expect(res.StatusCode).To(Equal(http.StatusUnauthorized))

			var body map[string]any
			Expect(json.NewDecoder(res.Body).Decode(&body)).To(Succeed())
			Expect(body["message"]).To(Equal("Not authenticated"))

			cleared := clearedCookie(res)
			Expect(cleared).NotTo(BeNil())
			Expect(cleared.MaxAge).To(BeNumerically("<", 0))
		})
	})

	Describe("request forwarding", func() {
		var (
			captured *recordedRequest
			backend  *httptest.Server
			router   *chi.Mux
		)

		BeforeEach(func() {
			captured = nil
			backend = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				raw, _ := io.ReadAll(r.Body)
				captured = &recordedRequest{
					Method: r.Method,
					Path:   r.URL.Path,
					Query:  r.URL.RawQuery,
					Header: r.Header.Clone(),
					Body:   string(raw),
				}
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(`{"ok":true}`))
			}))
			router = newProxyRouter(backend.URL)
		})

		AfterEach(func() {
			backend.Close()
		})

		It("should map the lite path under the upstream admin root", func() {
			req := httptest.NewRequest("GET", "/orders?limit=5", nil)
			req.AddCookie(sessionCookie())

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(captured.Path).To(Equal("/admin/orders"))
			Expect(captured.Query).To(Equal("limit=5"))
		})

		It("should inject the session bearer and strip inbound credentials", func() {
			req := httptest.NewRequest("GET", "/orders", nil)
			req.AddCookie(sessionCookie())
			req.Header.Set("Authorization", "Bearer stale-inbound-token")

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			Expect(captured.Header.Get("Authorization")).To(Equal("Bearer session-token"))
			Expect(captured.Header.Get("Cookie")).To(BeEmpty())
			Expect(captured.Header.Get("Accept")).To(Equal("application/json"))
			Expect(captured.Header.Get("Accept-Encoding")).To(Equal("identity"))
		})

		It("should drop hop-by-hop headers and keep the rest", func() {
			req := httptest.NewRequest("GET", "/orders", nil)
			req.AddCookie(sessionCookie())
			req.Header.Set("Te", "trailers")
			req.Header.Set("Upgrade", "websocket")
			req.Header.Set("X-Custom-Header", "kept")

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			Expect(captured.Header.Get("Te")).To(BeEmpty())
			Expect(captured.Header.Get("Upgrade")).To(BeEmpty())
			Expect(captured.Header.Get("X-Custom-Header")).To(Equal("kept"))
		})

		It("should derive forwarded origin headers from the Origin header", func() {
			req := httptest.NewRequest("POST", "/orders", strings.NewReader(`{"note":"x"}`))
			req.AddCookie(sessionCookie())
			req.Header.Set("Origin", "https://ops.example.com")

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			Expect(captured.Method).To(Equal("POST"))
			Expect(captured.Body).To(Equal(`{"note":"x"}`))
			Expect(captured.Header.Get("Origin")).To(Equal("https://ops.example.com"))
			Expect(captured.Header.Get("X-Forwarded-Origin")).To(Equal("https://ops.example.com"))
			Expect(captured.Header.Get("X-Forwarded-Host")).To(Equal("ops.example.com"))
		})

		It("should fall back to the Referer for origin derivation", func() {
			req := httptest.NewRequest("GET", "/orders", nil)
			req.AddCookie(sessionCookie())
			req.Header.Set("Referer", "https://ops.example.com/admin-lite/orders?page=2")

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			Expect(captured.Header.Get("X-Forwarded-Origin")).To(Equal("https://ops.example.com"))
		})
	})

	Describe("response relay", func() {
		It("should relay status, body and headers minus set-cookie and content-encoding", func() {
			backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("X-Request-Cost", "3")
				w.Header().Set("Set-Cookie", "upstream_session=leaky")
				w.WriteHeader(http.StatusTeapot)
				w.Write([]byte(`{"brew":"no"}`))
			}))
			defer backend.Close()
			router := newProxyRouter(backend.URL)

			req := httptest.NewRequest("GET", "/orders", nil)
			req.AddCookie(sessionCookie())
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			res := rec.Result()
			Expect(res.StatusCode).To(Equal(http.StatusTeapot))
			body, _ := io.ReadAll(res.Body)
			Expect(string(body)).To(Equal(`{"brew":"no"}`))
			Expect(res.Header.Get("X-Request-Cost")).To(Equal("3"))
			Expect(res.Header.Get("Set-Cookie")).To(BeEmpty())
		})

		It("should relay an upstream 5xx verbatim rather than masking it", func() {
			backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte(`{"message":"inventory module is down"}`))
			}))
			defer backend.Close()
			router := newProxyRouter(backend.URL)

			req := httptest.NewRequest("GET", "/orders", nil)
			req.AddCookie(sessionCookie())
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			res := rec.Result()
			Expect(res.StatusCode).To(Equal(http.StatusServiceUnavailable))
			body, _ := io.ReadAll(res.Body)
			Expect(string(body)).To(ContainSubstring("inventory module is down"))
		})

		It("should clear the local cookie when upstream answers 401", func() {
			backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"message":"backend session expired"}`))
			}))
			defer backend.Close()
			router := newProxyRouter(backend.URL)

			req := httptest.NewRequest("GET", "/orders", nil)
			req.AddCookie(sessionCookie())
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			res := rec.Result()
			Expect(res.StatusCode).To(Equal(http.StatusUnauthorized))
			body, _ := io.ReadAll(res.Body)
			Expect(string(body)).To(ContainSubstring("backend session expired"))

			Expect(clearedCookie(res)).NotTo(BeNil())
		})

		It("should answer 502 when the backend is unreachable", func() {
			router := newProxyRouter("http://127.0.0.1:1")

			req := httptest.NewRequest("GET", "/orders", nil)
			req.AddCookie(sessionCookie())
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusBadGateway))
			Expect(rec.Body.String()).To(ContainSubstring("Unable to reach backend"))
		})
	})

	Describe("two-step fallback addressing", func() {
		It("should retry the legacy path when the lite path 404s", func() {
			var paths []string
			backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				paths = append(paths, r.URL.Path)
				if strings.Contains(r.URL.Path, "/admin/lite/") {
					w.WriteHeader(http.StatusNotFound)
					return
				}
				body, _ := io.ReadAll(r.Body)
				Expect(string(body)).To(Equal(`{"title":"Summer"}`))
				w.WriteHeader(http.StatusCreated)
				w.Write([]byte(`{"collection":{"id":"col_1"}}`))
			}))
			defer backend.Close()
			router := newProxyRouter(backend.URL)

			req := httptest.NewRequest("POST", "/catalog/collections", strings.NewReader(`{"title":"Summer"}`))
			req.AddCookie(sessionCookie())
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusCreated))
			Expect(rec.Body.String()).To(ContainSubstring("col_1"))
			Expect(paths).To(Equal([]string{"/admin/lite/collections", "/admin/collections"}))
		})

		It("should surface any other non-2xx without retrying", func() {
			var calls int
			backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls++
				w.WriteHeader(http.StatusUnprocessableEntity)
				w.Write([]byte(`{"message":"title is required"}`))
			}))
			defer backend.Close()
			router := newProxyRouter(backend.URL)

			req := httptest.NewRequest("POST", "/catalog/collections", strings.NewReader(`{}`))
			req.AddCookie(sessionCookie())
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusUnprocessableEntity))
			Expect(calls).To(Equal(1))
		})
	})
})
