package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/admin-lite-gateway/internal"
)

var _ = Describe("RateLimiter", func() {
	newLimited := func(cfg internal.RateLimitConfig) (*RateLimiter, http.Handler) {
		rl := NewRateLimiter(cfg, slog.Default())
		h := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))
		return rl, h
	}

	hit := func(h http.Handler, remoteAddr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/admin-lite/orders", nil)
		req.RemoteAddr = remoteAddr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	It("should reject requests past the window limit", func() {
		rl, h := newLimited(internal.RateLimitConfig{Limit: 120, Window: time.Minute})
		defer rl.Stop()

		var codes []int
		for i := 0; i < 130; i++ {
			codes = append(codes, hit(h, "10.0.0.1:5000").Code)
		}

		for i := 0; i < 120; i++ {
			Expect(codes[i]).To(Equal(http.StatusNoContent), fmt.Sprintf("request %d", i+1))
		}
		for i := 120; i < 130; i++ {
			Expect(codes[i]).To(Equal(http.StatusTooManyRequests), fmt.Sprintf("request %d", i+1))
		}
	})

	It("should expose limit headers on every response", func() {
		rl, h := newLimited(internal.RateLimitConfig{Limit: 5, Window: time.Minute})
		defer rl.Stop()

		rec := hit(h, "10.0.0.1:5000")
		Expect(rec.Header().Get("X-RateLimit-Limit")).To(Equal("5"))
		Expect(rec.Header().Get("X-RateLimit-Remaining")).To(Equal("4"))
		Expect(rec.Header().Get("X-RateLimit-Reset")).NotTo(BeEmpty())
	})

	It("should send Retry-After with the rejection", func() {
		rl, h := newLimited(internal.RateLimitConfig{Limit: 1, Window: time.Minute})
		defer rl.Stop()

		hit(h, "10.0.0.1:5000")
		rec := hit(h, "10.0.0.1:5000")

		Expect(rec.Code).To(Equal(http.StatusTooManyRequests))
		Expect(rec.Header().Get("Retry-After")).NotTo(BeEmpty())
		Expect(rec.Header().Get("X-RateLimit-Remaining")).To(Equal("0"))
		Expect(rec.Body.String()).To(ContainSubstring("Too many requests"))
	})

	It("should count clients independently", func() {
		rl, h := newLimited(internal.RateLimitConfig{Limit: 1, Window: time.Minute})
		defer rl.Stop()

		Expect(hit(h, "10.0.0.1:5000").Code).To(Equal(http.StatusNoContent))
		Expect(hit(h, "10.0.0.1:5001").Code).To(Equal(http.StatusTooManyRequests))
		Expect(hit(h, "10.0.0.2:5000").Code).To(Equal(http.StatusNoContent))
	})

	It("should key on the first forwarded hop when present", func() {
		rl, h := newLimited(internal.RateLimitConfig{Limit: 1, Window: time.Minute})
		defer rl.Stop()

		req := httptest.NewRequest(http.MethodGet, "/api/admin-lite/orders", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		Expect(rec.Code).To(Equal(http.StatusNoContent))

		req2 := httptest.NewRequest(http.MethodGet, "/api/admin-lite/orders", nil)
		req2.RemoteAddr = "10.0.0.99:6000"
		req2.Header.Set("X-Forwarded-For", "203.0.113.9")
		rec2 := httptest.NewRecorder()
		h.ServeHTTP(rec2, req2)
		Expect(rec2.Code).To(Equal(http.StatusTooManyRequests))
	})

	It("should open a fresh window after reset", func() {
		rl, h := newLimited(internal.RateLimitConfig{Limit: 1, Window: 30 * time.Millisecond})
		defer rl.Stop()

		Expect(hit(h, "10.0.0.1:5000").Code).To(Equal(http.StatusNoContent))
		Expect(hit(h, "10.0.0.1:5000").Code).To(Equal(http.StatusTooManyRequests))

		time.Sleep(40 * time.Millisecond)
		Expect(hit(h, "10.0.0.1:5000").Code).To(Equal(http.StatusNoContent))
	})

	It("should pass everything through when disabled", func() {
		rl, h := newLimited(internal.RateLimitConfig{Limit: 0, Window: time.Minute})
		defer rl.Stop()

		for i := 0; i < 50; i++ {
			rec := hit(h, "10.0.0.1:5000")
			Expect(rec.Code).To(Equal(http.StatusNoContent))
			Expect(rec.Header().Get("X-RateLimit-Limit")).To(BeEmpty())
		}
	})

	It("should tolerate repeated Stop calls", func() {
		rl, _ := newLimited(internal.RateLimitConfig{Limit: 1, Window: time.Minute, Cleanup: time.Millisecond})
		rl.Stop()
		rl.Stop()
	})
})
