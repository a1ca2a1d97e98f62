package httphandler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lllypuk/blogify/internal/directory"
	httphandler "github.com/lllypuk/blogify/internal/handler/http"
	"github.com/lllypuk/blogify/internal/infrastructure/auth"
	"github.com/lllypuk/blogify/internal/infrastructure/provider"
	"github.com/lllypuk/blogify/internal/middleware"
)

// fakeAuthProvider is a canned AuthProvider.
type fakeAuthProvider struct {
	signUpUser *provider.User
	signUpErr  error

	signInResp *provider.TokenResponse
	signInErr  error

	getUserResp *provider.User
	getUserErr  error

	refreshResp *provider.TokenResponse
	refreshErr  error

	signOutErr   error
	signOutCalls int
}

func (f *fakeAuthProvider) SignUp(_ context.Context, _, _ string) (*provider.User, error) {
	return f.signUpUser, f.signUpErr
}

func (f *fakeAuthProvider) SignInWithPassword(_ context.Context, _, _ string) (*provider.TokenResponse, error) {
	return f.signInResp, f.signInErr
}

func (f *fakeAuthProvider) GetUser(_ context.Context, _ string) (*provider.User, error) {
	return f.getUserResp, f.getUserErr
}

func (f *fakeAuthProvider) RefreshToken(_ context.Context, _ string) (*provider.TokenResponse, error) {
	return f.refreshResp, f.refreshErr
}

func (f *fakeAuthProvider) SignOut(_ context.Context, _ string) error {
	f.signOutCalls++
	return f.signOutErr
}

// fakeTokenStore is an in-memory RefreshTokenStore.
type fakeTokenStore struct {
	tokens map[string]string
	err    error
}

func newFakeTokenStore() *fakeTokenStore {
	return &fakeTokenStore{tokens: make(map[string]string)}
}

func (f *fakeTokenStore) StoreRefreshToken(_ context.Context, userID, refreshToken string, _ time.Duration) error {
	if f.err != nil {
		return f.err
	}
	f.tokens[userID] = refreshToken
	return nil
}

func (f *fakeTokenStore) GetRefreshToken(_ context.Context, userID string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	token, ok := f.tokens[userID]
	if !ok {
		return "", auth.ErrTokenNotFound
	}
	return token, nil
}

func (f *fakeTokenStore) DeleteRefreshToken(_ context.Context, userID string) error {
	delete(f.tokens, userID)
	return nil
}

func confirmedUser() *provider.User {
	now := time.Now()
	return &provider.User{
		ID:               "user-123",
		Email:            "user@example.com",
		EmailConfirmedAt: &now,
	}
}

func sessionGrant(user *provider.User) *provider.TokenResponse {
	return &provider.TokenResponse{
		AccessToken:  accessTokenFor("user-123"),
		RefreshToken: "refresh-abc",
		ExpiresIn:    3600,
		TokenType:    "bearer",
		User:         user,
	}
}

// accessTokenFor builds a syntactically valid JWT whose subject is the
// given user ID. The refresh flow only ever parses it unverified.
func accessTokenFor(userID string) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, _ := token.SignedString([]byte("test-key"))
	return signed
}

func newAuthHandler(p *fakeAuthProvider, tokens *fakeTokenStore, checker httphandler.ExistenceChecker) *httphandler.AuthHandler {
	return httphandler.NewAuthHandler(httphandler.AuthHandlerConfig{
		Provider: p,
		Tokens:   tokens,
		Checker:  checker,
	})
}

func newJSONContext(method, path, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func envelope(t *testing.T, rec *httptest.ResponseRecorder) (bool, string) {
	t.Helper()

	var body struct {
		Success bool `json:"success"`
		Error   *struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	code := ""
	if body.Error != nil {
		code = body.Error.Code
	}
	return body.Success, code
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == middleware.SessionCookieName {
			return cookie
		}
	}
	return nil
}

func TestAuthHandler_SignUp(t *testing.T) {
	t.Run("creates the account", func(t *testing.T) {
		p := &fakeAuthProvider{signUpUser: &provider.User{ID: "user-123", Email: "user@example.com"}}
		handler := newAuthHandler(p, newFakeTokenStore(), &fakeChecker{})

		c, rec := newJSONContext(http.MethodPost, "/api/signup", `{"email":"user@example.com","password":"secret123"}`)
		require.NoError(t, handler.SignUp(c))

		assert.Equal(t, http.StatusCreated, rec.Code)
		success, _ := envelope(t, rec)
		assert.True(t, success)
	})

	t.Run("existing confirmed account is a 409 before the provider call", func(t *testing.T) {
		checker := &fakeChecker{result: directory.Result{Exists: true, Confirmed: true}}
		p := &fakeAuthProvider{signUpErr: errors.New("must not be called")}
		handler := newAuthHandler(p, newFakeTokenStore(), checker)

		c, rec := newJSONContext(http.MethodPost, "/api/signup", `{"email":"user@example.com","password":"secret123"}`)
		require.NoError(t, handler.SignUp(c))

		assert.Equal(t, http.StatusConflict, rec.Code)
		_, code := envelope(t, rec)
		assert.Equal(t, "ALREADY_EXISTS", code)
	})

	t.Run("existing unconfirmed account may sign up again", func(t *testing.T) {
		checker := &fakeChecker{result: directory.Result{Exists: true, Confirmed: false}}
		p := &fakeAuthProvider{signUpUser: &provider.User{ID: "user-123", Email: "user@example.com"}}
		handler := newAuthHandler(p, newFakeTokenStore(), checker)

		c, rec := newJSONContext(http.MethodPost, "/api/signup", `{"email":"user@example.com","password":"secret123"}`)
		require.NoError(t, handler.SignUp(c))

		assert.Equal(t, http.StatusCreated, rec.Code)
	})

	t.Run("pre-check failure falls through to the provider", func(t *testing.T) {
		checker := &fakeChecker{err: errors.New("directory down")}
		p := &fakeAuthProvider{signUpUser: &provider.User{ID: "user-123", Email: "user@example.com"}}
		handler := newAuthHandler(p, newFakeTokenStore(), checker)

		c, rec := newJSONContext(http.MethodPost, "/api/signup", `{"email":"user@example.com","password":"secret123"}`)
		require.NoError(t, handler.SignUp(c))

		assert.Equal(t, http.StatusCreated, rec.Code)
	})

	t.Run("provider duplicate rejection is a 409", func(t *testing.T) {
		p := &fakeAuthProvider{signUpErr: provider.ErrSignUpFailed}
		handler := newAuthHandler(p, newFakeTokenStore(), &fakeChecker{})

		c, rec := newJSONContext(http.MethodPost, "/api/signup", `{"email":"user@example.com","password":"secret123"}`)
		require.NoError(t, handler.SignUp(c))

		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("missing fields are a 400", func(t *testing.T) {
		handler := newAuthHandler(&fakeAuthProvider{}, newFakeTokenStore(), &fakeChecker{})

		c, rec := newJSONContext(http.MethodPost, "/api/signup", `{"email":"user@example.com"}`)
		require.NoError(t, handler.SignUp(c))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestAuthHandler_Login(t *testing.T) {
	t.Run("sets the session cookie and stores the refresh token", func(t *testing.T) {
		tokens := newFakeTokenStore()
		grant := sessionGrant(confirmedUser())
		p := &fakeAuthProvider{signInResp: grant}
		handler := newAuthHandler(p, tokens, &fakeChecker{})

		c, rec := newJSONContext(http.MethodPost, "/api/login", `{"email":"user@example.com","password":"secret123"}`)
		require.NoError(t, handler.Login(c))

		assert.Equal(t, http.StatusOK, rec.Code)

		cookie := sessionCookie(rec)
		require.NotNil(t, cookie)
		assert.Equal(t, grant.AccessToken, cookie.Value)
		assert.True(t, cookie.HttpOnly)

		assert.Equal(t, "refresh-abc", tokens.tokens["user-123"])
	})

	t.Run("bad credentials are a 401", func(t *testing.T) {
		p := &fakeAuthProvider{signInErr: provider.ErrInvalidCredentials}
		handler := newAuthHandler(p, newFakeTokenStore(), &fakeChecker{})

		c, rec := newJSONContext(http.MethodPost, "/api/login", `{"email":"user@example.com","password":"wrong"}`)
		require.NoError(t, handler.Login(c))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		_, code := envelope(t, rec)
		assert.Equal(t, "INVALID_CREDENTIALS", code)
		assert.Nil(t, sessionCookie(rec))
	})

	t.Run("unconfirmed account is a 403 without a session", func(t *testing.T) {
		unconfirmed := &provider.User{ID: "user-123", Email: "user@example.com"}
		p := &fakeAuthProvider{signInResp: sessionGrant(unconfirmed)}
		tokens := newFakeTokenStore()
		handler := newAuthHandler(p, tokens, &fakeChecker{})

		c, rec := newJSONContext(http.MethodPost, "/api/login", `{"email":"user@example.com","password":"secret123"}`)
		require.NoError(t, handler.Login(c))

		assert.Equal(t, http.StatusForbidden, rec.Code)
		_, code := envelope(t, rec)
		assert.Equal(t, "EMAIL_NOT_CONFIRMED", code)
		assert.Empty(t, tokens.tokens)
	})
}

func TestAuthHandler_Logout(t *testing.T) {
	t.Run("revokes the session and clears the cookie", func(t *testing.T) {
		tokens := newFakeTokenStore()
		tokens.tokens["user-123"] = "refresh-abc"
		p := &fakeAuthProvider{}
		handler := newAuthHandler(p, tokens, &fakeChecker{})

		c, rec := newJSONContext(http.MethodPost, "/api/logout", "")
		c.Set(string(middleware.ContextKeyUserID), "user-123")
		c.Set(string(middleware.ContextKeyAccessToken), "access-token")

		require.NoError(t, handler.Logout(c))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 1, p.signOutCalls)
		assert.Empty(t, tokens.tokens)

		cookie := sessionCookie(rec)
		require.NotNil(t, cookie)
		assert.Empty(t, cookie.Value)
		assert.Negative(t, cookie.MaxAge)
	})

	t.Run("provider failure still clears the cookie", func(t *testing.T) {
		p := &fakeAuthProvider{signOutErr: errors.New("provider down")}
		handler := newAuthHandler(p, newFakeTokenStore(), &fakeChecker{})

		c, rec := newJSONContext(http.MethodPost, "/api/logout", "")
		c.Set(string(middleware.ContextKeyAccessToken), "access-token")

		require.NoError(t, handler.Logout(c))

		assert.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, sessionCookie(rec))
	})
}

func TestAuthHandler_Refresh(t *testing.T) {
	t.Run("renews the session from the stored refresh token", func(t *testing.T) {
		tokens := newFakeTokenStore()
		tokens.tokens["user-123"] = "refresh-abc"

		newGrant := sessionGrant(confirmedUser())
		newGrant.RefreshToken = "refresh-def"
		p := &fakeAuthProvider{refreshResp: newGrant}
		handler := newAuthHandler(p, tokens, &fakeChecker{})

		c, rec := newJSONContext(http.MethodPost, "/api/refresh", "")
		c.Set(string(middleware.ContextKeyAccessToken), accessTokenFor("user-123"))

		require.NoError(t, handler.Refresh(c))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "refresh-def", tokens.tokens["user-123"], "rotated refresh token replaces the old one")

		cookie := sessionCookie(rec)
		require.NotNil(t, cookie)
		assert.Equal(t, newGrant.AccessToken, cookie.Value)
	})

	t.Run("no stored refresh token is a 401", func(t *testing.T) {
		handler := newAuthHandler(&fakeAuthProvider{}, newFakeTokenStore(), &fakeChecker{})

		c, rec := newJSONContext(http.MethodPost, "/api/refresh", "")
		c.Set(string(middleware.ContextKeyAccessToken), accessTokenFor("user-123"))

		require.NoError(t, handler.Refresh(c))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		_, code := envelope(t, rec)
		assert.Equal(t, "INVALID_REFRESH_TOKEN", code)
	})

	t.Run("rejected refresh token is deleted", func(t *testing.T) {
		tokens := newFakeTokenStore()
		tokens.tokens["user-123"] = "refresh-abc"
		p := &fakeAuthProvider{refreshErr: provider.ErrTokenRefreshFailed}
		handler := newAuthHandler(p, tokens, &fakeChecker{})

		c, rec := newJSONContext(http.MethodPost, "/api/refresh", "")
		c.Set(string(middleware.ContextKeyAccessToken), accessTokenFor("user-123"))

		require.NoError(t, handler.Refresh(c))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Empty(t, tokens.tokens)
	})

	t.Run("garbage token is a 401", func(t *testing.T) {
		handler := newAuthHandler(&fakeAuthProvider{}, newFakeTokenStore(), &fakeChecker{})

		c, rec := newJSONContext(http.MethodPost, "/api/refresh", "")
		c.Set(string(middleware.ContextKeyAccessToken), "not-a-jwt")

		require.NoError(t, handler.Refresh(c))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("no token at all is a 401", func(t *testing.T) {
		handler := newAuthHandler(&fakeAuthProvider{}, newFakeTokenStore(), &fakeChecker{})

		c, rec := newJSONContext(http.MethodPost, "/api/refresh", "")
		require.NoError(t, handler.Refresh(c))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestAuthHandler_Me(t *testing.T) {
	t.Run("returns the current user", func(t *testing.T) {
		p := &fakeAuthProvider{getUserResp: confirmedUser()}
		handler := newAuthHandler(p, newFakeTokenStore(), &fakeChecker{})

		c, rec := newJSONContext(http.MethodGet, "/api/me", "")
		c.Set(string(middleware.ContextKeyAccessToken), "access-token")

		require.NoError(t, handler.Me(c))

		assert.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			Data httphandler.UserDTO `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "user-123", body.Data.ID)
		assert.True(t, body.Data.Confirmed)
	})

	t.Run("dead session is a 401", func(t *testing.T) {
		p := &fakeAuthProvider{getUserErr: provider.ErrSessionInvalid}
		handler := newAuthHandler(p, newFakeTokenStore(), &fakeChecker{})

		c, rec := newJSONContext(http.MethodGet, "/api/me", "")
		c.Set(string(middleware.ContextKeyAccessToken), "stale-token")

		require.NoError(t, handler.Me(c))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
