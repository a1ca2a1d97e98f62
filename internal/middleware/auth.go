// Package middleware provides the echo middleware chain: request
// logging, panic recovery, CORS, rate limiting, API token auth, and the
// session guard for protected pages.
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

// SessionCookieName is the cookie carrying the provider access token.
const SessionCookieName = "blogify_session"

// Context keys for authentication data.
type contextKey string

const (
	// ContextKeyUserID is the context key for the provider user ID.
	ContextKeyUserID contextKey = "user_id"

	// ContextKeyEmail is the context key for the user email.
	ContextKeyEmail contextKey = "email"

	// ContextKeyAccessToken is the context key for the raw access token.
	// Handlers forward it to the row store so row-level authorization
	// stays with the provider.
	ContextKeyAccessToken contextKey = "access_token"
)

// Auth errors.
var (
	ErrMissingCredentials = errors.New("missing credentials")
	ErrInvalidAuthHeader  = errors.New("invalid authorization header format")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
)

// TokenClaims represents the claims the API layer needs from a verified
// access token.
type TokenClaims struct {
	// UserID is the provider account ID (subject claim).
	UserID string

	// Email is the account email.
	Email string

	// ExpiresAt is the token expiration time.
	ExpiresAt time.Time
}

// TokenValidator verifies access tokens for API requests.
type TokenValidator interface {
	// ValidateToken validates a token and returns its claims.
	ValidateToken(ctx context.Context, token string) (*TokenClaims, error)
}

// AuthConfig holds configuration for the API auth middleware.
type AuthConfig struct {
	// Logger is the structured logger for auth events.
	Logger *slog.Logger

	// TokenValidator validates access tokens.
	TokenValidator TokenValidator

	// SkipPaths are paths that don't require authentication.
	SkipPaths []string

	// AllowExpiredForPaths allows expired tokens for specific paths
	// (the refresh endpoint needs the expired token's subject).
	AllowExpiredForPaths []string

	// SessionCookieName is the cookie checked when no Authorization
	// header is present (browser requests from the rendered pages).
	SessionCookieName string
}

// DefaultAuthConfig returns an AuthConfig with sensible defaults.
func DefaultAuthConfig() AuthConfig {
	return AuthConfig{
		Logger:               slog.Default(),
		SkipPaths:            []string{"/health", "/ready", "/api/check-user", "/api/signup", "/api/login"},
		AllowExpiredForPaths: []string{"/api/refresh"},
		SessionCookieName:    SessionCookieName,
	}
}

// Auth returns the API authentication middleware.
func Auth(config AuthConfig) echo.MiddlewareFunc {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	skipPaths := make(map[string]struct{}, len(config.SkipPaths))
	for _, path := range config.SkipPaths {
		skipPaths[path] = struct{}{}
	}

	allowExpiredPaths := make(map[string]struct{}, len(config.AllowExpiredForPaths))
	for _, path := range config.AllowExpiredForPaths {
		allowExpiredPaths[path] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Request().URL.Path

			if _, ok := skipPaths[path]; ok {
				return next(c)
			}

			token, tokenErr := extractToken(c, config.SessionCookieName)
			if tokenErr != nil {
				return respondAuthError(c, tokenErr)
			}

			if config.TokenValidator == nil {
				config.Logger.Error("token validator not configured")
				return respondAuthError(c, ErrInvalidToken)
			}

			claims, validateErr := config.TokenValidator.ValidateToken(c.Request().Context(), token)
			if validateErr != nil {
				if errors.Is(validateErr, ErrTokenExpired) {
					if _, ok := allowExpiredPaths[path]; ok {
						// The refresh endpoint re-establishes the
						// session from the server-side refresh token.
						c.Set(string(ContextKeyAccessToken), token)
						return next(c)
					}
				}

				config.Logger.Warn("token validation failed",
					slog.String("error", validateErr.Error()),
					slog.String("path", path),
					slog.String("remote_ip", c.RealIP()),
				)
				return respondAuthError(c, validateErr)
			}

			enrichContext(c, token, claims)

			return next(c)
		}
	}
}

// extractToken pulls the access token from the Authorization header,
// falling back to the session cookie.
func extractToken(c echo.Context, cookieName string) (string, error) {
	authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
	if authHeader != "" {
		return extractBearerToken(authHeader)
	}

	if cookieName != "" {
		cookie, cookieErr := c.Cookie(cookieName)
		if cookieErr == nil && cookie.Value != "" {
			return cookie.Value, nil
		}
	}

	return "", ErrMissingCredentials
}

// extractBearerToken extracts the token from a Bearer authorization header.
func extractBearerToken(authHeader string) (string, error) {
	const bearerPrefix = "Bearer "
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return "", ErrInvalidAuthHeader
	}

	token := strings.TrimPrefix(authHeader, bearerPrefix)
	if token == "" {
		return "", ErrInvalidAuthHeader
	}

	return token, nil
}

// enrichContext adds user information to the echo context.
func enrichContext(c echo.Context, token string, claims *TokenClaims) {
	c.Set(string(ContextKeyUserID), claims.UserID)
	c.Set(string(ContextKeyEmail), claims.Email)
	c.Set(string(ContextKeyAccessToken), token)
}

// respondAuthError sends an authentication error response.
func respondAuthError(c echo.Context, err error) error {
	code := "UNAUTHORIZED"
	message := "Authentication required"

	switch {
	case errors.Is(err, ErrMissingCredentials):
		message = "Missing credentials"
	case errors.Is(err, ErrInvalidAuthHeader):
		message = "Invalid authorization header format"
	case errors.Is(err, ErrTokenExpired):
		message = "Token has expired"
		code = "TOKEN_EXPIRED"
	case errors.Is(err, ErrInvalidToken):
		message = "Invalid token"
	}

	return c.JSON(http.StatusUnauthorized, map[string]any{
		"success": false,
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}

// GetUserID extracts the provider user ID from the echo context.
func GetUserID(c echo.Context) string {
	if id, ok := c.Get(string(ContextKeyUserID)).(string); ok {
		return id
	}
	return ""
}

// GetEmail extracts the user email from the echo context.
func GetEmail(c echo.Context) string {
	if email, ok := c.Get(string(ContextKeyEmail)).(string); ok {
		return email
	}
	return ""
}

// GetAccessToken extracts the raw access token from the echo context.
func GetAccessToken(c echo.Context) string {
	if token, ok := c.Get(string(ContextKeyAccessToken)).(string); ok {
		return token
	}
	return ""
}
