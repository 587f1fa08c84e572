package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/frahmantamala/admin-lite-gateway/internal"
	"github.com/frahmantamala/admin-lite-gateway/internal/credentials"
	"github.com/frahmantamala/admin-lite-gateway/internal/staff"
	"github.com/frahmantamala/admin-lite-gateway/internal/token"
	"github.com/frahmantamala/admin-lite-gateway/internal/upstream"
)

// BackendAuthenticator is the slice of the upstream client the issuer needs.
type BackendAuthenticator interface {
	Authenticate(ctx context.Context, adminBase, email, password string) (*upstream.AuthResult, error)
	CurrentUser(ctx context.Context, adminBase, bearer string) (*staff.Source, error)
}

// StaffStore is the locally-readable user store backing the legacy
// credential path for accounts whose hash predates the backend's own auth.
type StaffStore interface {
	GetCredentialsByEmail(email string) (passwordHash string, staffID string, err error)
	GetStaffWithPermissions(staffID string) (*staff.Source, error)
}

// Service mints admin-lite sessions: backend auth first, local credential
// fallback second, then projection and token signing.
type Service struct {
	cfg       *internal.Config
	codec     *token.Codec
	backend   BackendAuthenticator
	store     StaffStore
	adminBase string
	logger    *slog.Logger
}

func NewService(cfg *internal.Config, codec *token.Codec, backend BackendAuthenticator, store StaffStore, adminBase string, logger *slog.Logger) *Service {
	return &Service{
		cfg:       cfg,
		codec:     codec,
		backend:   backend,
		store:     store,
		adminBase: adminBase,
		logger:    logger,
	}
}

// Authenticate validates credentials and mints a session. A backend outage
// with no working local fallback surfaces as retry-later, distinct from a
// clean credential rejection.
func (s *Service) Authenticate(ctx context.Context, dto LoginDTO) (*Result, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	res, backendErr := s.backend.Authenticate(ctx, s.adminBase, dto.Email, dto.Password)
	if backendErr == nil {
		src := res.User
		if src == nil {
			var err error
			src, err = s.backend.CurrentUser(ctx, s.adminBase, res.AccessToken)
			if err != nil {
				s.logger.Error("backend accepted credentials but profile fetch failed", "error", err)
				return nil, internal.ErrBackendUnavailable.WithCause(err)
			}
		}
		return s.IssueToken(src)
	}

	if result, ok := s.authenticateLocal(dto); ok {
		return result, nil
	}

	if errors.Is(backendErr, upstream.ErrUnavailable) {
		s.logger.Warn("backend auth unavailable and no local fallback matched", "email", dto.Email)
		return nil, internal.ErrBackendUnavailable.WithCause(backendErr)
	}
	return nil, internal.ErrInvalidCredentials
}

// authenticateLocal is the legacy path: verify the password against the
// staff store's hash (either scheme) and project from the stored record.
func (s *Service) authenticateLocal(dto LoginDTO) (*Result, bool) {
	if s.store == nil {
		return nil, false
	}
	hash, staffID, err := s.store.GetCredentialsByEmail(dto.Email)
	if err != nil {
		return nil, false
	}
	if !credentials.VerifyPassword(dto.Password, hash) {
		return nil, false
	}
	src, err := s.store.GetStaffWithPermissions(staffID)
	if err != nil {
		s.logger.Error("local staff lookup failed after credential match", "staff_id", staffID, "error", err)
		return nil, false
	}
	result, err := s.IssueToken(src)
	if err != nil {
		s.logger.Error("token issuance failed on local fallback", "error", err)
		return nil, false
	}
	s.logger.Info("authenticated via legacy local credential path", "staff_id", staffID)
	return result, true
}

// IssueToken projects the raw user and signs a session token with the
// current (first) configured secret.
func (s *Service) IssueToken(src *staff.Source) (*Result, error) {
	if src == nil {
		return nil, internal.ErrProjection
	}
	identity, err := staff.Project(*src)
	if err != nil {
		return nil, internal.ErrProjection.WithCause(err)
	}

	secrets := s.cfg.Security.SecretCandidates()
	if len(secrets) == 0 {
		return nil, internal.NewInternalError("no signing secret configured", token.ErrNoSecret)
	}

	ttl := s.cfg.Security.SessionTTLSeconds()
	now := s.codec.Now()
	claims := &token.Claims{
		Email:       identity.Email,
		Name:        identity.DisplayName(),
		Permissions: identity.Permissions,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(ttl) * time.Second)),
		},
	}
	if identity.FirstName != nil {
		claims.FirstName = *identity.FirstName
	}
	if identity.LastName != nil {
		claims.LastName = *identity.LastName
	}
	if identity.Role != nil {
		claims.Role = *identity.Role
	}
	if aud := s.cfg.Security.JWTAudience; aud != "" {
		claims.Audience = jwt.ClaimStrings{aud}
	}
	if iss := s.cfg.Security.JWTIssuer; iss != "" {
		claims.Issuer = iss
	}

	signed, err := s.codec.Sign(claims, secrets[0])
	if err != nil {
		return nil, internal.NewInternalError("failed to sign session token", err)
	}

	return &Result{Token: signed, User: identity.Normalize(), TTL: ttl}, nil
}

// VerifySession validates an existing token leniently (audience or issuer
// drift only warns, matching tokens minted before those were configured).
func (s *Service) VerifySession(tokenString string) (*staff.Identity, error) {
	claims, warning, err := s.codec.VerifyLenient(
		tokenString,
		s.cfg.Security.SecretCandidates(),
		token.Options{Audience: s.cfg.Security.JWTAudience, Issuer: s.cfg.Security.JWTIssuer},
	)
	if err != nil {
		s.logger.Warn("session verification failed", "error", err)
		return nil, internal.ErrInvalidToken.WithCause(err)
	}
	if warning != "" {
		s.logger.Warn("session verification warning", "warning", warning)
	}
	return IdentityFromClaims(claims), nil
}

// IdentityFromClaims rebuilds the normalized staff identity carried by a
// verified token.
func IdentityFromClaims(claims *token.Claims) *staff.Identity {
	id := &staff.Identity{
		ID:          claims.Subject,
		Email:       claims.Email,
		Permissions: claims.Permissions,
	}
	if claims.FirstName != "" {
		v := claims.FirstName
		id.FirstName = &v
	}
	if claims.LastName != "" {
		v := claims.LastName
		id.LastName = &v
	}
	if claims.Role != "" {
		v := claims.Role
		id.Role = &v
	}
	return id.Normalize()
}
