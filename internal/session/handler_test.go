package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/admin-lite-gateway/internal"
	"github.com/frahmantamala/admin-lite-gateway/internal/staff"
)

type mockSessionService struct {
	authResult *Result
	authErr    error
	identity   *staff.Identity
	verifyErr  error
	lastToken  string
}

func (m *mockSessionService) Authenticate(ctx context.Context, dto LoginDTO) (*Result, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}
	if m.authErr != nil {
		return nil, m.authErr
	}
	return m.authResult, nil
}

func (m *mockSessionService) VerifySession(tokenString string) (*staff.Identity, error) {
	m.lastToken = tokenString
	if m.verifyErr != nil {
		return nil, m.verifyErr
	}
	return m.identity, nil
}

var _ = Describe("Session Handler", func() {
	var (
		svc     *mockSessionService
		handler *Handler
	)

	strPtr := func(s string) *string { return &s }

	identity := func() *staff.Identity {
		return &staff.Identity{
			ID:          "usr_1",
			Email:       "staff@x.com",
			Role:        strPtr("admin"),
			Permissions: []string{"orders:read"},
		}
	}

	sessionCookie := func(rec *httptest.ResponseRecorder) *http.Cookie {
		for _, c := range rec.Result().Cookies() {
			if c.Name == CookieName {
				return c
			}
		}
		return nil
	}

	BeforeEach(func() {
		svc = &mockSessionService{}
		handler = NewHandler(svc)
	})

	Describe("Login", func() {
		loginRequest := func(body string) *http.Request {
			return httptest.NewRequest(http.MethodPost, "/api/admin-lite/session", strings.NewReader(body))
		}

		It("should set the session cookie and echo the result", func() {
			svc.authResult = &Result{Token: "signed.jwt.token", User: identity(), TTL: 3600}

			rec := httptest.NewRecorder()
			handler.Login(rec, loginRequest(`{"email":"staff@x.com","password":"pw"}`))

			Expect(rec.Code).To(Equal(http.StatusOK))

			cookie := sessionCookie(rec)
			Expect(cookie).NotTo(BeNil())
			Expect(cookie.Value).To(Equal("signed.jwt.token"))
			Expect(cookie.HttpOnly).To(BeTrue())
			Expect(cookie.Path).To(Equal("/"))
			Expect(cookie.SameSite).To(Equal(http.SameSiteLaxMode))
			Expect(cookie.MaxAge).To(Equal(3600))
			Expect(cookie.Secure).To(BeFalse())

			var body Result
			Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
			Expect(body.Token).To(Equal("signed.jwt.token"))
			Expect(body.User.Email).To(Equal("staff@x.com"))
		})

		It("should mark the cookie Secure behind TLS termination", func() {
			svc.authResult = &Result{Token: "signed.jwt.token", User: identity(), TTL: 3600}

			req := loginRequest(`{"email":"staff@x.com","password":"pw"}`)
			req.Header.Set("X-Forwarded-Proto", "https")
			rec := httptest.NewRecorder()
			handler.Login(rec, req)

			Expect(sessionCookie(rec).Secure).To(BeTrue())
		})

		It("should answer 401 for rejected credentials without a cookie", func() {
			svc.authErr = internal.ErrInvalidCredentials

			rec := httptest.NewRecorder()
			handler.Login(rec, loginRequest(`{"email":"staff@x.com","password":"wrong"}`))

			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
			Expect(sessionCookie(rec)).To(BeNil())
		})

		It("should answer 503 when the backend cannot be reached", func() {
			svc.authErr = internal.ErrBackendUnavailable

			rec := httptest.NewRecorder()
			handler.Login(rec, loginRequest(`{"email":"staff@x.com","password":"pw"}`))

			Expect(rec.Code).To(Equal(http.StatusServiceUnavailable))
		})

		It("should answer 400 for missing fields", func() {
			rec := httptest.NewRecorder()
			handler.Login(rec, loginRequest(`{"email":"staff@x.com"}`))

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("should answer 400 for an unparseable body", func() {
			rec := httptest.NewRecorder()
			handler.Login(rec, loginRequest(`{not json`))

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("Current", func() {
		It("should report the user carried by the cookie", func() {
			svc.identity = identity()

			req := httptest.NewRequest(http.MethodGet, "/api/admin-lite/session", nil)
			req.AddCookie(&http.Cookie{Name: CookieName, Value: "cookie-token"})
			rec := httptest.NewRecorder()
			handler.Current(rec, req)

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(svc.lastToken).To(Equal("cookie-token"))

			var body struct {
				Authenticated bool            `json:"authenticated"`
				User          *staff.Identity `json:"user"`
			}
			Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
			Expect(body.Authenticated).To(BeTrue())
			Expect(body.User.ID).To(Equal("usr_1"))
		})

		It("should fall back to the Authorization bearer", func() {
			svc.identity = identity()

			req := httptest.NewRequest(http.MethodGet, "/api/admin-lite/session", nil)
			req.Header.Set("Authorization", "Bearer header-token")
			rec := httptest.NewRecorder()
			handler.Current(rec, req)

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(svc.lastToken).To(Equal("header-token"))
		})

		It("should fall back to the custom admin-lite header", func() {
			svc.identity = identity()

			req := httptest.NewRequest(http.MethodGet, "/api/admin-lite/session", nil)
			req.Header.Set("X-Admin-Lite-Token", "custom-token")
			rec := httptest.NewRecorder()
			handler.Current(rec, req)

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(svc.lastToken).To(Equal("custom-token"))
		})

		It("should answer 401 without any token", func() {
			rec := httptest.NewRecorder()
			handler.Current(rec, httptest.NewRequest(http.MethodGet, "/api/admin-lite/session", nil))

			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
		})

		It("should answer 401 for a rejected token", func() {
			svc.verifyErr = internal.ErrInvalidToken

			req := httptest.NewRequest(http.MethodGet, "/api/admin-lite/session", nil)
			req.AddCookie(&http.Cookie{Name: CookieName, Value: "stale-token"})
			rec := httptest.NewRecorder()
			handler.Current(rec, req)

			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
		})
	})

	Describe("Logout", func() {
		logout := func() *httptest.ResponseRecorder {
			rec := httptest.NewRecorder()
			handler.Logout(rec, httptest.NewRequest(http.MethodDelete, "/api/admin-lite/session", nil))
			return rec
		}

		It("should clear the cookie", func() {
			rec := logout()

			Expect(rec.Code).To(Equal(http.StatusOK))
			cookie := sessionCookie(rec)
			Expect(cookie).NotTo(BeNil())
			Expect(cookie.Value).To(BeEmpty())
			Expect(cookie.MaxAge).To(BeNumerically("<", 0))
			Expect(rec.Header().Get("Set-Cookie")).To(ContainSubstring("Max-Age=0"))
		})

		It("should stay 200 on repeated logouts", func() {
			first := logout()
			second := logout()

			Expect(first.Code).To(Equal(http.StatusOK))
			Expect(second.Code).To(Equal(http.StatusOK))
			Expect(sessionCookie(second)).NotTo(BeNil())
		})
	})
})
