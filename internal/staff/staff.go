package staff

import (
	"errors"
	"strings"
)

// ErrUnprojectable signals a backend user record missing its mandatory
// fields. It indicates an upstream contract violation, not a client error.
var ErrUnprojectable = errors.New("user record missing id or email")

// Source is the raw user shape the commerce backend (or the local staff
// store) hands us before projection.
type Source struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	FirstName   *string  `json:"first_name"`
	LastName    *string  `json:"last_name"`
	Role        *string  `json:"role"`
	Permissions []string `json:"permissions"`
}

// Identity is the canonical staff-user projection. It lives only for the
// duration of a request or a token-signing operation and is never persisted.
type Identity struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	FirstName   *string  `json:"first_name"`
	LastName    *string  `json:"last_name"`
	Role        *string  `json:"role"`
	Permissions []string `json:"permissions"`
}

// Project builds an Identity from a raw user record. ID and email are
// mandatory; their absence makes the record unusable.
func Project(src Source) (*Identity, error) {
	id := strings.TrimSpace(src.ID)
	email := strings.TrimSpace(src.Email)
	if id == "" || email == "" {
		return nil, ErrUnprojectable
	}
	return &Identity{
		ID:          id,
		Email:       email,
		FirstName:   src.FirstName,
		LastName:    src.LastName,
		Role:        src.Role,
		Permissions: src.Permissions,
	}, nil
}

// DisplayName derives a human-readable name from the name parts, falling
// back to the email address.
func (i *Identity) DisplayName() string {
	var parts []string
	if i.FirstName != nil && strings.TrimSpace(*i.FirstName) != "" {
		parts = append(parts, strings.TrimSpace(*i.FirstName))
	}
	if i.LastName != nil && strings.TrimSpace(*i.LastName) != "" {
		parts = append(parts, strings.TrimSpace(*i.LastName))
	}
	if len(parts) == 0 {
		return i.Email
	}
	return strings.Join(parts, " ")
}

// Normalize fills the downstream-facing defaults: role "staff" and a
// non-nil permissions slice.
func (i *Identity) Normalize() *Identity {
	out := *i
	if out.Role == nil || strings.TrimSpace(*out.Role) == "" {
		role := "staff"
		out.Role = &role
	}
	if out.Permissions == nil {
		out.Permissions = []string{}
	}
	return &out
}
