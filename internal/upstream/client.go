package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/frahmantamala/admin-lite-gateway/internal/staff"
)

var (
	// ErrUnauthorized is a clean credential rejection from the backend.
	ErrUnauthorized = errors.New("backend rejected credentials")
	// ErrUnavailable means the backend could not be reached or returned a
	// 5xx; callers should surface this as retry-later, not wrong-password.
	ErrUnavailable = errors.New("backend unavailable")
)

// AuthResult is what the backend's own auth endpoint hands back.
type AuthResult struct {
	AccessToken string
	User        *staff.Source
}

// Client talks to the commerce backend's admin API. All request URLs are
// passed in fully resolved; the proxy layer owns URL resolution.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
			// Redirects pass through as opaque responses; following them
			// here would break the proxy's verbatim relay.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger: logger,
	}
}

// Do forwards a fully prepared request. The response body is left open for
// the caller to stream.
func (c *Client) Do(ctx context.Context, method, rawURL string, body io.Reader, header http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	for name, values := range header {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("upstream request failed", "method", method, "url", rawURL, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return resp, nil
}

// Authenticate exchanges staff credentials for the backend's own access
// token. A 401/400 is a clean rejection; transport failures and 5xx mean
// the backend is unreachable and the caller may retry later.
func (c *Client) Authenticate(ctx context.Context, adminBase, email, password string) (*AuthResult, error) {
	payload, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, fmt.Errorf("marshal auth request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, adminBase+"/auth", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("backend auth unreachable", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusBadRequest:
		return nil, ErrUnauthorized
	case resp.StatusCode >= 500:
		c.logger.Warn("backend auth returned server error", "status", resp.StatusCode)
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated:
		return nil, fmt.Errorf("%w: unexpected status %d", ErrUnavailable, resp.StatusCode)
	}

	var body struct {
		AccessToken string        `json:"access_token"`
		Token       string        `json:"token"`
		User        *staff.Source `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode auth response: %w", err)
	}

	accessToken := body.AccessToken
	if accessToken == "" {
		accessToken = body.Token
	}
	if accessToken == "" {
		// No usable token is treated like a rejection so the caller can
		// fall through to the legacy credential path.
		return nil, ErrUnauthorized
	}

	return &AuthResult{AccessToken: accessToken, User: body.User}, nil
}

// CurrentUser fetches the staff profile for a backend access token, used
// when the auth endpoint did not resolve one.
func (c *Client) CurrentUser(ctx context.Context, adminBase, bearer string) (*staff.Source, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, adminBase+"/users/me", nil)
	if err != nil {
		return nil, fmt.Errorf("build profile request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: profile status %d", ErrUnavailable, resp.StatusCode)
	}

	// Some backends wrap the profile in a "user" envelope, some return it bare.
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read profile response: %w", err)
	}
	var wrapped struct {
		User *staff.Source `json:"user"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.User != nil && wrapped.User.ID != "" {
		return wrapped.User, nil
	}
	var bare staff.Source
	if err := json.Unmarshal(raw, &bare); err != nil {
		return nil, fmt.Errorf("decode profile response: %w", err)
	}
	return &bare, nil
}

// Health probes the backend root for readiness checks.
func (c *Client) Health(ctx context.Context, root string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(root, "/")+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: health status %d", ErrUnavailable, resp.StatusCode)
	}
	return nil
}
