package session

import "github.com/frahmantamala/admin-lite-gateway/internal/staff"

// LoginDTO is the transport shape used by the HTTP handler to accept login requests.
type LoginDTO struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ValidationError represents a simple validation error from DTO validation.
type ValidationError struct {
	Msg string
}

func (v ValidationError) Error() string { return v.Msg }

// Validate checks required fields and returns a ValidationError on failure.
func (d LoginDTO) Validate() error {
	if d.Email == "" {
		return ValidationError{Msg: "email is required"}
	}
	if d.Password == "" {
		return ValidationError{Msg: "password is required"}
	}
	return nil
}

// Result is a freshly minted session: the signed token, the projected user
// and the TTL the cookie was issued with.
type Result struct {
	Token string          `json:"token"`
	User  *staff.Identity `json:"user"`
	TTL   int             `json:"ttl"`
}
