package provider_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lllypuk/blogify/internal/infrastructure/provider"
)

func newAuthClient(serverURL string) *provider.AuthClient {
	return provider.NewAuthClient(provider.AuthClientConfig{
		BaseURL: serverURL,
		AnonKey: "anon-key",
	})
}

func TestAuthClient_SignUp(t *testing.T) {
	t.Run("registers an account", func(t *testing.T) {
		var gotPath, gotAPIKey string
		var gotBody map[string]string

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotAPIKey = r.Header.Get("apikey")
			_ = json.NewDecoder(r.Body).Decode(&gotBody)

			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":    "user-123",
				"email": "user@example.com",
			})
		}))
		t.Cleanup(server.Close)

		usr, err := newAuthClient(server.URL).SignUp(context.Background(), "user@example.com", "secret123")

		require.NoError(t, err)
		assert.Equal(t, "/auth/v1/signup", gotPath)
		assert.Equal(t, "anon-key", gotAPIKey)
		assert.Equal(t, "user@example.com", gotBody["email"])

		assert.Equal(t, "user-123", usr.ID)
		assert.False(t, usr.Confirmed())
	})

	t.Run("duplicate email is ErrSignUpFailed", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, `{"msg":"User already registered"}`, http.StatusUnprocessableEntity)
		}))
		t.Cleanup(server.Close)

		_, err := newAuthClient(server.URL).SignUp(context.Background(), "user@example.com", "secret123")

		require.Error(t, err)
		assert.ErrorIs(t, err, provider.ErrSignUpFailed)
	})
}

func TestAuthClient_SignInWithPassword(t *testing.T) {
	t.Run("exchanges credentials for a session", func(t *testing.T) {
		var gotQuery string

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotQuery = r.URL.RawQuery

			now := time.Now().Format(time.RFC3339)
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"access_token":  "access-abc",
				"refresh_token": "refresh-abc",
				"expires_in":    3600,
				"token_type":    "bearer",
				"user": map[string]any{
					"id":                 "user-123",
					"email":              "user@example.com",
					"email_confirmed_at": now,
				},
			})
		}))
		t.Cleanup(server.Close)

		tokens, err := newAuthClient(server.URL).SignInWithPassword(context.Background(), "user@example.com", "secret123")

		require.NoError(t, err)
		assert.Equal(t, "grant_type=password", gotQuery)
		assert.Equal(t, "access-abc", tokens.AccessToken)
		assert.Equal(t, "refresh-abc", tokens.RefreshToken)
		require.NotNil(t, tokens.User)
		assert.True(t, tokens.User.Confirmed())
	})

	t.Run("rejected credentials are ErrInvalidCredentials", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
		}))
		t.Cleanup(server.Close)

		_, err := newAuthClient(server.URL).SignInWithPassword(context.Background(), "user@example.com", "wrong")

		require.Error(t, err)
		assert.ErrorIs(t, err, provider.ErrInvalidCredentials)
	})
}

func TestAuthClient_GetUser(t *testing.T) {
	t.Run("resolves the session owner", func(t *testing.T) {
		var gotAuth string

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")

			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":    "user-123",
				"email": "user@example.com",
			})
		}))
		t.Cleanup(server.Close)

		usr, err := newAuthClient(server.URL).GetUser(context.Background(), "access-abc")

		require.NoError(t, err)
		assert.Equal(t, "Bearer access-abc", gotAuth)
		assert.Equal(t, "user-123", usr.ID)
	})

	t.Run("rejected token is ErrSessionInvalid", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, `{"msg":"invalid JWT"}`, http.StatusUnauthorized)
		}))
		t.Cleanup(server.Close)

		_, err := newAuthClient(server.URL).GetUser(context.Background(), "stale-token")

		require.Error(t, err)
		assert.ErrorIs(t, err, provider.ErrSessionInvalid)
	})
}

func TestAuthClient_RefreshToken(t *testing.T) {
	t.Run("exchanges the refresh token", func(t *testing.T) {
		var gotQuery string
		var gotBody map[string]string

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotQuery = r.URL.RawQuery
			_ = json.NewDecoder(r.Body).Decode(&gotBody)

			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"access_token":  "access-def",
				"refresh_token": "refresh-def",
				"expires_in":    3600,
			})
		}))
		t.Cleanup(server.Close)

		tokens, err := newAuthClient(server.URL).RefreshToken(context.Background(), "refresh-abc")

		require.NoError(t, err)
		assert.Equal(t, "grant_type=refresh_token", gotQuery)
		assert.Equal(t, "refresh-abc", gotBody["refresh_token"])
		assert.Equal(t, "access-def", tokens.AccessToken)
	})

	t.Run("rejected refresh token is ErrTokenRefreshFailed", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
		}))
		t.Cleanup(server.Close)

		_, err := newAuthClient(server.URL).RefreshToken(context.Background(), "dead-token")

		require.Error(t, err)
		assert.ErrorIs(t, err, provider.ErrTokenRefreshFailed)
	})
}

func TestAuthClient_SignOut(t *testing.T) {
	t.Run("revokes the session", func(t *testing.T) {
		var gotPath string

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			w.WriteHeader(http.StatusNoContent)
		}))
		t.Cleanup(server.Close)

		err := newAuthClient(server.URL).SignOut(context.Background(), "access-abc")

		require.NoError(t, err)
		assert.Equal(t, "/auth/v1/logout", gotPath)
	})
}

func TestAuthClient_Health(t *testing.T) {
	t.Run("healthy provider", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		t.Cleanup(server.Close)

		assert.NoError(t, newAuthClient(server.URL).Health(context.Background()))
	})

	t.Run("unreachable provider", func(t *testing.T) {
		client := provider.NewAuthClient(provider.AuthClientConfig{
			BaseURL: "http://127.0.0.1:1",
			AnonKey: "anon-key",
		})

		assert.Error(t, client.Health(context.Background()))
	})
}
