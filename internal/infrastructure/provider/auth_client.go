// Package provider contains HTTP clients for the hosted backend that owns
// all account and blog data. Blogify never persists these entities itself;
// every operation here is a thin, authenticated pass-through.
package provider

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
)

// Auth client errors.
var (
	ErrSignUpFailed       = errors.New("sign up failed")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrSessionInvalid     = errors.New("session invalid")
	ErrTokenRefreshFailed = errors.New("failed to refresh token")
	ErrSignOutFailed      = errors.New("sign out failed")
	ErrInvalidResponse    = errors.New("invalid response from provider")
)

// User represents the authenticated account returned by the auth API.
type User struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	EmailConfirmedAt *time.Time `json:"email_confirmed_at"`
	CreatedAt        *time.Time `json:"created_at,omitempty"`
}

// Confirmed reports whether the account completed email verification.
func (u *User) Confirmed() bool {
	return u.EmailConfirmedAt != nil
}

// TokenResponse represents a session grant from the auth API.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
	User         *User  `json:"user,omitempty"`
}

// AuthClientConfig contains configuration for AuthClient.
type AuthClientConfig struct {
	// BaseURL is the base URL of the hosted backend.
	BaseURL string

	// AnonKey is the public API key sent with every auth request.
	AnonKey string

	// HTTPClient is an optional custom HTTP client.
	HTTPClient *http.Client

	// Logger is the structured logger for provider call failures.
	Logger *slog.Logger
}

// AuthClient handles credential and session operations with the provider
// auth API.
type AuthClient struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client
	logger     *slog.Logger
}

const defaultAuthHTTPTimeout = 30 * time.Second

// NewAuthClient creates a new auth API client.
func NewAuthClient(cfg AuthClientConfig) *AuthClient {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: defaultAuthHTTPTimeout,
		}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &AuthClient{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		anonKey:    cfg.AnonKey,
		httpClient: httpClient,
		logger:     logger,
	}
}

// SignUp registers a new account. The provider sends the confirmation
// email; the returned user stays unconfirmed until the owner completes it.
func (c *AuthClient) SignUp(ctx context.Context, email, password string) (*User, error) {
	reqURL := c.baseURL + "/auth/v1/signup"

	resp, err := c.postJSON(ctx, reqURL, "", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSignUpFailed, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var usr User
		if decodeErr := json.NewDecoder(resp.Body).Decode(&usr); decodeErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidResponse, decodeErr)
		}
		return &usr, nil
	case http.StatusUnprocessableEntity, http.StatusConflict:
		// The provider enforces email uniqueness at the account level;
		// this is the authoritative duplicate check, not ours.
		return nil, fmt.Errorf("%w: email already registered", ErrSignUpFailed)
	default:
		return nil, c.statusError(ctx, ErrSignUpFailed, resp)
	}
}

// SignInWithPassword exchanges credentials for a session.
func (c *AuthClient) SignInWithPassword(ctx context.Context, email, password string) (*TokenResponse, error) {
	reqURL := c.baseURL + "/auth/v1/token?grant_type=password"

	resp, err := c.postJSON(ctx, reqURL, "", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		c.logger.WarnContext(ctx, "password grant rejected",
			slog.Int("status", resp.StatusCode),
			slog.String("body", string(body)),
		)
		return nil, fmt.Errorf("%w: status %d", ErrInvalidCredentials, resp.StatusCode)
	}

	var tokenResp TokenResponse
	if decodeErr := json.NewDecoder(resp.Body).Decode(&tokenResp); decodeErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidResponse, decodeErr)
	}

	return &tokenResp, nil
}

// GetUser resolves the account behind an access token. A rejected or
// expired token yields ErrSessionInvalid.
func (c *AuthClient) GetUser(ctx context.Context, accessToken string) (*User, error) {
	reqURL := c.baseURL + "/auth/v1/user"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSessionInvalid, err)
	}
	c.setAuthHeaders(req, accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSessionInvalid, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var usr User
		if decodeErr := json.NewDecoder(resp.Body).Decode(&usr); decodeErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidResponse, decodeErr)
		}
		return &usr, nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, ErrSessionInvalid
	default:
		return nil, c.statusError(ctx, ErrSessionInvalid, resp)
	}
}

// RefreshToken exchanges a refresh token for a fresh session.
func (c *AuthClient) RefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	reqURL := c.baseURL + "/auth/v1/token?grant_type=refresh_token"

	resp, err := c.postJSON(ctx, reqURL, "", map[string]string{
		"refresh_token": refreshToken,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenRefreshFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.statusError(ctx, ErrTokenRefreshFailed, resp)
	}

	var tokenResp TokenResponse
	if decodeErr := json.NewDecoder(resp.Body).Decode(&tokenResp); decodeErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidResponse, decodeErr)
	}

	return &tokenResp, nil
}

// SignOut revokes the session behind an access token.
// The provider treats revoking an already-dead session as success.
func (c *AuthClient) SignOut(ctx context.Context, accessToken string) error {
	reqURL := c.baseURL + "/auth/v1/logout"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSignOutFailed, err)
	}
	c.setAuthHeaders(req, accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSignOutFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return c.statusError(ctx, ErrSignOutFailed, resp)
	}

	return nil
}

// Health probes the auth API's health endpoint.
func (c *AuthClient) Health(ctx context.Context) error {
	reqURL := c.baseURL + "/auth/v1/health"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.setAuthHeaders(req, "")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("provider unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("provider health check failed: status %d", resp.StatusCode)
	}

	return nil
}

// postJSON sends a JSON body with the anon key and optional bearer token.
func (c *AuthClient) postJSON(ctx context.Context, reqURL, accessToken string, body any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.setAuthHeaders(req, accessToken)

	return c.httpClient.Do(req)
}

// setAuthHeaders attaches the anon key and, when present, the caller's
// bearer token.
func (c *AuthClient) setAuthHeaders(req *http.Request, accessToken string) {
	req.Header.Set("apikey", c.anonKey)
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
}

// statusError logs and wraps an unexpected provider response.
func (c *AuthClient) statusError(ctx context.Context, sentinel error, resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	c.logger.ErrorContext(ctx, "provider auth call failed",
		slog.Int("status", resp.StatusCode),
		slog.String("body", string(body)),
	)
	return fmt.Errorf("%w: status %d", sentinel, resp.StatusCode)
}
