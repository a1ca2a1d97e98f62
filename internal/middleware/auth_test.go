package middleware_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lllypuk/blogify/internal/middleware"
)

// mockTokenValidator is a mock implementation of TokenValidator.
type mockTokenValidator struct {
	claims *middleware.TokenClaims
	err    error
	calls  int
}

func (m *mockTokenValidator) ValidateToken(_ context.Context, _ string) (*middleware.TokenClaims, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.claims, nil
}

func validClaims() *middleware.TokenClaims {
	return &middleware.TokenClaims{
		UserID:    "user-123",
		Email:     "user@example.com",
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

func runAuth(
	t *testing.T,
	config middleware.AuthConfig,
	req *http.Request,
) (echo.Context, *httptest.ResponseRecorder, bool) {
	t.Helper()

	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handlerCalled := false
	handler := middleware.Auth(config)(func(c echo.Context) error {
		handlerCalled = true
		return c.String(http.StatusOK, "ok")
	})

	require.NoError(t, handler(c))
	return c, rec, handlerCalled
}

func authErrorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	var body struct {
		Success bool `json:"success"`
		Error   struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)
	return body.Error.Code
}

func TestAuth(t *testing.T) {
	t.Run("skip paths pass through without validation", func(t *testing.T) {
		validator := &mockTokenValidator{claims: validClaims()}
		config := middleware.DefaultAuthConfig()
		config.TokenValidator = validator

		req := httptest.NewRequest(http.MethodPost, "/api/check-user", nil)
		_, rec, handlerCalled := runAuth(t, config, req)

		assert.True(t, handlerCalled)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Zero(t, validator.calls)
	})

	t.Run("missing credentials yields 401", func(t *testing.T) {
		config := middleware.DefaultAuthConfig()
		config.TokenValidator = &mockTokenValidator{claims: validClaims()}

		req := httptest.NewRequest(http.MethodGet, "/api/posts", nil)
		_, rec, handlerCalled := runAuth(t, config, req)

		assert.False(t, handlerCalled)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "UNAUTHORIZED", authErrorCode(t, rec))
	})

	t.Run("valid bearer token enriches context", func(t *testing.T) {
		config := middleware.DefaultAuthConfig()
		config.TokenValidator = &mockTokenValidator{claims: validClaims()}

		req := httptest.NewRequest(http.MethodGet, "/api/posts", nil)
		req.Header.Set(echo.HeaderAuthorization, "Bearer some-token")
		c, rec, handlerCalled := runAuth(t, config, req)

		assert.True(t, handlerCalled)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "user-123", middleware.GetUserID(c))
		assert.Equal(t, "user@example.com", middleware.GetEmail(c))
		assert.Equal(t, "some-token", middleware.GetAccessToken(c))
	})

	t.Run("session cookie works as fallback", func(t *testing.T) {
		config := middleware.DefaultAuthConfig()
		config.TokenValidator = &mockTokenValidator{claims: validClaims()}

		req := httptest.NewRequest(http.MethodGet, "/api/posts", nil)
		req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "cookie-token"})
		c, _, handlerCalled := runAuth(t, config, req)

		assert.True(t, handlerCalled)
		assert.Equal(t, "cookie-token", middleware.GetAccessToken(c))
	})

	t.Run("malformed authorization header yields 401", func(t *testing.T) {
		config := middleware.DefaultAuthConfig()
		config.TokenValidator = &mockTokenValidator{claims: validClaims()}

		req := httptest.NewRequest(http.MethodGet, "/api/posts", nil)
		req.Header.Set(echo.HeaderAuthorization, "Token abc")
		_, rec, handlerCalled := runAuth(t, config, req)

		assert.False(t, handlerCalled)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("invalid token yields 401", func(t *testing.T) {
		config := middleware.DefaultAuthConfig()
		config.TokenValidator = &mockTokenValidator{err: middleware.ErrInvalidToken}

		req := httptest.NewRequest(http.MethodGet, "/api/posts", nil)
		req.Header.Set(echo.HeaderAuthorization, "Bearer bad-token")
		_, rec, handlerCalled := runAuth(t, config, req)

		assert.False(t, handlerCalled)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("expired token yields TOKEN_EXPIRED", func(t *testing.T) {
		config := middleware.DefaultAuthConfig()
		config.TokenValidator = &mockTokenValidator{err: middleware.ErrTokenExpired}

		req := httptest.NewRequest(http.MethodGet, "/api/posts", nil)
		req.Header.Set(echo.HeaderAuthorization, "Bearer expired-token")
		_, rec, handlerCalled := runAuth(t, config, req)

		assert.False(t, handlerCalled)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "TOKEN_EXPIRED", authErrorCode(t, rec))
	})

	t.Run("expired token passes through to the refresh endpoint", func(t *testing.T) {
		config := middleware.DefaultAuthConfig()
		config.TokenValidator = &mockTokenValidator{err: middleware.ErrTokenExpired}

		req := httptest.NewRequest(http.MethodPost, "/api/refresh", nil)
		req.Header.Set(echo.HeaderAuthorization, "Bearer expired-token")
		c, rec, handlerCalled := runAuth(t, config, req)

		assert.True(t, handlerCalled)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "expired-token", middleware.GetAccessToken(c))
		assert.Empty(t, middleware.GetUserID(c), "expired token provides no verified identity")
	})

	t.Run("missing validator fails closed", func(t *testing.T) {
		config := middleware.DefaultAuthConfig()

		req := httptest.NewRequest(http.MethodGet, "/api/posts", nil)
		req.Header.Set(echo.HeaderAuthorization, "Bearer some-token")
		_, rec, handlerCalled := runAuth(t, config, req)

		assert.False(t, handlerCalled)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
