package token

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Verification failures. Handlers collapse all of these into a generic 401;
// the distinction only matters for server-side logs and tests.
var (
	ErrFormat      = errors.New("token is not a three-part JWT")
	ErrAlgorithm   = errors.New("unexpected signing algorithm")
	ErrSignature   = errors.New("signature did not match any candidate secret")
	ErrDecode      = errors.New("malformed token payload")
	ErrExpired     = errors.New("token expired")
	ErrNotYetValid = errors.New("token not yet valid")
	ErrAudience    = errors.New("audience mismatch")
	ErrIssuer      = errors.New("issuer mismatch")
	ErrNoSecret    = errors.New("no signing secret configured")
)

// Claims carried by an admin-lite session token.
type Claims struct {
	Email       string   `json:"email"`
	Name        string   `json:"name"`
	FirstName   string   `json:"first_name,omitempty"`
	LastName    string   `json:"last_name,omitempty"`
	Role        string   `json:"role,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	jwt.RegisteredClaims
}

// Options narrows verification to an expected audience and issuer.
// Zero values skip the corresponding check.
type Options struct {
	Audience string
	Issuer   string
}

// Codec signs and verifies HS256 session tokens. Now is swappable for tests.
type Codec struct {
	Now func() time.Time
}

func NewCodec() *Codec {
	return &Codec{Now: time.Now}
}

func (c *Codec) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Sign serializes and signs the claims with the given secret.
func (c *Codec) Sign(claims *Claims, secret string) (string, error) {
	if secret == "" {
		return "", ErrNoSecret
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString([]byte(secret))
}

// Verify checks structure, algorithm, signature (against each candidate
// secret in order, supporting rotation), expiry, not-before and, when set,
// audience and issuer. The first secret whose signature matches wins.
func (c *Codec) Verify(tokenString string, secrets []string, opts Options) (*Claims, error) {
	if strings.Count(tokenString, ".") != 2 {
		return nil, ErrFormat
	}
	if len(secrets) == 0 {
		return nil, ErrNoSecret
	}
	if err := checkHeader(tokenString); err != nil {
		return nil, err
	}

	var claims *Claims
	verified := false
	for _, secret := range secrets {
		parsed := &Claims{}
		_, err := jwt.ParseWithClaims(tokenString, parsed,
			func(t *jwt.Token) (interface{}, error) { return []byte(secret), nil },
			jwt.WithValidMethods([]string{"HS256"}),
			jwt.WithExpirationRequired(),
			jwt.WithTimeFunc(c.now),
		)
		if err == nil {
			claims = parsed
			verified = true
			break
		}
		switch {
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			continue
		case errors.Is(err, jwt.ErrTokenExpired):
			// Signature matched this secret; expiry is terminal.
			return nil, ErrExpired
		case errors.Is(err, jwt.ErrTokenNotValidYet):
			return nil, ErrNotYetValid
		case errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
			return nil, ErrExpired
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, ErrDecode
		default:
			return nil, ErrDecode
		}
	}
	if !verified {
		return nil, ErrSignature
	}

	if opts.Audience != "" && !containsAudience(claims.Audience, opts.Audience) {
		return nil, ErrAudience
	}
	if opts.Issuer != "" && claims.Issuer != opts.Issuer {
		return nil, ErrIssuer
	}
	return claims, nil
}

// VerifyLenient behaves like Verify except that an audience or issuer
// mismatch downgrades to a warning: the token is re-verified without the
// constraint and accepted. Tokens minted before an audience/issuer was
// configured keep working; tightening this would log every staff member out.
func (c *Codec) VerifyLenient(tokenString string, secrets []string, opts Options) (*Claims, string, error) {
	claims, err := c.Verify(tokenString, secrets, opts)
	if err == nil {
		return claims, "", nil
	}
	if !errors.Is(err, ErrAudience) && !errors.Is(err, ErrIssuer) {
		return nil, "", err
	}
	claims, retryErr := c.Verify(tokenString, secrets, Options{})
	if retryErr != nil {
		return nil, "", retryErr
	}
	return claims, "token accepted despite " + err.Error(), nil
}

func checkHeader(tokenString string) error {
	raw, err := base64.RawURLEncoding.DecodeString(strings.SplitN(tokenString, ".", 2)[0])
	if err != nil {
		return ErrDecode
	}
	var header struct {
		Alg string `json:"alg"`
	}
	if err := json.Unmarshal(raw, &header); err != nil {
		return ErrDecode
	}
	if header.Alg != "HS256" {
		return ErrAlgorithm
	}
	return nil
}

func containsAudience(aud jwt.ClaimStrings, want string) bool {
	for _, a := range aud {
		if a == want {
			return true
		}
	}
	return false
}
