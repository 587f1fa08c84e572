package internal

import (
	"context"
	"time"

	"github.com/frahmantamala/admin-lite-gateway/internal/staff"
	"github.com/frahmantamala/admin-lite-gateway/internal/token"
)

type ctxKey string

const (
	ContextStaffKey  ctxKey = "staff"
	ContextClaimsKey ctxKey = "claims"
)

// StaffFromContext returns the authenticated staff identity attached by the
// auth gate, or nil when the request never passed it.
func StaffFromContext(ctx context.Context) *staff.Identity {
	if ctx == nil {
		return nil
	}
	if id, ok := ctx.Value(ContextStaffKey).(*staff.Identity); ok {
		return id
	}
	return nil
}

func ContextWithStaff(ctx context.Context, id *staff.Identity) context.Context {
	return context.WithValue(ctx, ContextStaffKey, id)
}

// ClaimsFromContext returns the raw verified token claims for handlers that
// need more than the projected identity.
func ClaimsFromContext(ctx context.Context) *token.Claims {
	if ctx == nil {
		return nil
	}
	if c, ok := ctx.Value(ContextClaimsKey).(*token.Claims); ok {
		return c
	}
	return nil
}

func ContextWithClaims(ctx context.Context, claims *token.Claims) context.Context {
	return context.WithValue(ctx, ContextClaimsKey, claims)
}

// WithTimeout returns a context with timeout, defaulting to 5 seconds if duration is zero or negative.
func WithTimeout(ctx context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	if duration <= 0 {
		duration = 5 * time.Second
	}
	return context.WithTimeout(ctx, duration)
}
