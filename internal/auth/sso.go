package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrAssertionRejected means the external authority did not accept the
// presented assertion.
var ErrAssertionRejected = errors.New("invalid sso token")

// SSOProfile is the identity the external authority vouches for.
type SSOProfile struct {
	Email  string  `json:"email"`
	Name   string  `json:"name"`
	Avatar *string `json:"-"`
}

// SSOClient verifies assertions against the external identity authority.
// Calls are bounded by the configured timeout; there is no retry.
type SSOClient struct {
	baseURL string
	client  *http.Client
}

// NewSSOClient creates a client for the SSO service.
func NewSSOClient(baseURL string, timeout time.Duration) *SSOClient {
	return &SSOClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// LoginURL builds the SSO login URL with a post-login redirect.
func (c *SSOClient) LoginURL(redirect string) string {
	return c.baseURL + "?redirect=" + redirect
}

// VerifyAssertion presents the assertion to the authority and returns the
// profile it vouches for. A 401 from the authority maps to
// ErrAssertionRejected; other failures are transport errors.
func (c *SSOClient) VerifyAssertion(ctx context.Context, assertion string) (*SSOProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/auth/me", nil)
	if err != nil {
		return nil, fmt.Errorf("build sso request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+assertion)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sso request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrAssertionRejected
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sso service returned %d", resp.StatusCode)
	}

	var body struct {
		User struct {
			Email   string  `json:"email"`
			Name    string  `json:"name"`
			Picture *string `json:"picture"`
			Avatar  *string `json:"avatar"`
		} `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode sso response: %w", err)
	}
	if body.User.Email == "" {
		return nil, ErrAssertionRejected
	}
	avatar := body.User.Picture
	if avatar == nil {
		avatar = body.User.Avatar
	}
	return &SSOProfile{Email: body.User.Email, Name: body.User.Name, Avatar: avatar}, nil
}
