// Package httphandler contains the HTTP handlers: the account existence
// check, session lifecycle endpoints, the posts API, and the rendered
// dashboard pages.
package httphandler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/lllypuk/blogify/internal/infrastructure/auth"
	"github.com/lllypuk/blogify/internal/infrastructure/httpserver"
	"github.com/lllypuk/blogify/internal/infrastructure/provider"
	"github.com/lllypuk/blogify/internal/middleware"
)

// AuthProvider is the slice of the hosted auth API the session
// endpoints need. Declared on the consumer side.
type AuthProvider interface {
	SignUp(ctx context.Context, email, password string) (*provider.User, error)
	SignInWithPassword(ctx context.Context, email, password string) (*provider.TokenResponse, error)
	GetUser(ctx context.Context, accessToken string) (*provider.User, error)
	RefreshToken(ctx context.Context, refreshToken string) (*provider.TokenResponse, error)
	SignOut(ctx context.Context, accessToken string) error
}

// RefreshTokenStore persists refresh tokens server-side, keyed by
// provider user ID. Declared on the consumer side.
type RefreshTokenStore interface {
	StoreRefreshToken(ctx context.Context, userID, refreshToken string, ttl time.Duration) error
	GetRefreshToken(ctx context.Context, userID string) (string, error)
	DeleteRefreshToken(ctx context.Context, userID string) error
}

// SignUpRequest represents the signup request body.
type SignUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest represents the login request body.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SessionResponse represents a session in API responses.
type SessionResponse struct {
	User      UserDTO `json:"user"`
	ExpiresIn int     `json:"expires_in"`
}

// UserDTO represents user data in API responses.
type UserDTO struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Confirmed bool   `json:"confirmed"`
}

// AuthHandlerConfig holds dependencies for the AuthHandler.
type AuthHandlerConfig struct {
	Provider AuthProvider
	Tokens   RefreshTokenStore
	Checker  ExistenceChecker

	// RefreshTokenTTL bounds the server-side refresh token lifetime.
	RefreshTokenTTL time.Duration

	// SecureCookies forces the Secure flag on session cookies.
	SecureCookies bool

	Logger *slog.Logger
}

// AuthHandler handles session lifecycle HTTP requests.
type AuthHandler struct {
	provider      AuthProvider
	tokens        RefreshTokenStore
	checker       ExistenceChecker
	refreshTTL    time.Duration
	secureCookies bool
	logger        *slog.Logger

	// subjectFromToken extracts the user ID from an expired access
	// token during refresh. Overridable in tests.
	subjectFromToken func(tokenString string) (string, error)
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(config AuthHandlerConfig) *AuthHandler {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.RefreshTokenTTL <= 0 {
		config.RefreshTokenTTL = 7 * 24 * time.Hour
	}

	return &AuthHandler{
		provider:         config.Provider,
		tokens:           config.Tokens,
		checker:          config.Checker,
		refreshTTL:       config.RefreshTokenTTL,
		secureCookies:    config.SecureCookies,
		logger:           config.Logger,
		subjectFromToken: auth.SubjectFromToken,
	}
}

// RegisterRoutes registers session routes with the router.
func (h *AuthHandler) RegisterRoutes(r *httpserver.Router) {
	r.API().POST("/signup", h.SignUp)
	r.API().POST("/login", h.Login)
	r.API().POST("/logout", h.Logout)
	r.API().POST("/refresh", h.Refresh)
	r.API().GET("/me", h.Me)
}

// SignUp handles POST /api/signup.
//
// A pre-check against the user directory turns the common "already
// registered and confirmed" case into a clean 409 before the provider
// call. The provider's own uniqueness constraint remains the final
// word; a failed pre-check never blocks signup.
func (h *AuthHandler) SignUp(c echo.Context) error {
	var req SignUpRequest
	if err := c.Bind(&req); err != nil {
		return httpserver.RespondErrorWithCode(
			c,
			http.StatusBadRequest,
			"INVALID_REQUEST",
			"Invalid request body",
		)
	}

	if req.Email == "" || req.Password == "" {
		return httpserver.RespondErrorWithCode(
			c,
			http.StatusBadRequest,
			"VALIDATION_ERROR",
			"Email and password are required",
		)
	}

	if h.checker != nil {
		result, err := h.checker.Resolve(c.Request().Context(), req.Email)
		if err != nil {
			h.logger.Warn("signup pre-check failed, continuing",
				slog.String("error", err.Error()),
			)
		} else if result.Exists && result.Confirmed {
			return httpserver.RespondErrorWithCode(
				c,
				http.StatusConflict,
				"ALREADY_EXISTS",
				"An account with this email already exists",
			)
		}
	}

	usr, err := h.provider.SignUp(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, provider.ErrSignUpFailed) {
			return httpserver.RespondErrorWithCode(
				c,
				http.StatusConflict,
				"SIGNUP_FAILED",
				"Could not create the account",
			)
		}
		h.logger.Error("signup failed",
			slog.String("error", err.Error()),
		)
		return httpserver.RespondErrorWithCode(
			c,
			http.StatusInternalServerError,
			"SIGNUP_FAILED",
			"Failed to complete signup",
		)
	}

	resp := map[string]any{
		"message": "Account created. Check your email to confirm the address.",
	}
	if usr != nil {
		resp["user"] = toUserDTO(usr)
	}

	return httpserver.RespondCreated(c, resp)
}

// Login handles POST /api/login.
func (h *AuthHandler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return httpserver.RespondErrorWithCode(
			c,
			http.StatusBadRequest,
			"INVALID_REQUEST",
			"Invalid request body",
		)
	}

	if req.Email == "" || req.Password == "" {
		return httpserver.RespondErrorWithCode(
			c,
			http.StatusBadRequest,
			"VALIDATION_ERROR",
			"Email and password are required",
		)
	}

	tokens, err := h.provider.SignInWithPassword(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, provider.ErrInvalidCredentials) {
			return httpserver.RespondErrorWithCode(
				c,
				http.StatusUnauthorized,
				"INVALID_CREDENTIALS",
				"Invalid email or password",
			)
		}
		h.logger.Error("login failed",
			slog.String("error", err.Error()),
		)
		return httpserver.RespondErrorWithCode(
			c,
			http.StatusInternalServerError,
			"LOGIN_FAILED",
			"Failed to complete login",
		)
	}

	if tokens.User != nil && !tokens.User.Confirmed() {
		return httpserver.RespondErrorWithCode(
			c,
			http.StatusForbidden,
			"EMAIL_NOT_CONFIRMED",
			"Confirm your email address before logging in",
		)
	}

	if err := h.storeSession(c, tokens); err != nil {
		h.logger.Error("failed to store refresh token",
			slog.String("error", err.Error()),
		)
		return httpserver.RespondErrorWithCode(
			c,
			http.StatusInternalServerError,
			"LOGIN_FAILED",
			"Failed to complete login",
		)
	}

	return httpserver.RespondOK(c, SessionResponse{
		User:      toUserDTO(tokens.User),
		ExpiresIn: tokens.ExpiresIn,
	})
}

// Logout handles POST /api/logout.
//
// The cookie is cleared no matter what the provider says: logout must
// always leave the browser without a session.
func (h *AuthHandler) Logout(c echo.Context) error {
	accessToken := middleware.GetAccessToken(c)
	userID := middleware.GetUserID(c)

	if accessToken != "" {
		if err := h.provider.SignOut(c.Request().Context(), accessToken); err != nil {
			h.logger.Warn("provider sign-out failed",
				slog.String("error", err.Error()),
			)
		}
	}

	if userID != "" {
		if err := h.tokens.DeleteRefreshToken(c.Request().Context(), userID); err != nil {
			h.logger.Warn("failed to delete refresh token",
				slog.String("error", err.Error()),
			)
		}
	}

	clearSessionCookie(c)

	return httpserver.RespondOK(c, map[string]string{
		"message": "Logged out successfully",
	})
}

// Refresh handles POST /api/refresh.
//
// The auth middleware lets an expired access token through to this
// endpoint with only the raw token in context. The token's subject
// selects the server-side refresh token; the provider decides whether
// the session is actually renewed.
func (h *AuthHandler) Refresh(c echo.Context) error {
	accessToken := middleware.GetAccessToken(c)
	if accessToken == "" {
		accessToken = getSessionCookie(c)
	}
	if accessToken == "" {
		return httpserver.RespondErrorWithCode(
			c,
			http.StatusUnauthorized,
			"UNAUTHORIZED",
			"No session to refresh",
		)
	}

	userID, err := h.subjectFromToken(accessToken)
	if err != nil {
		clearSessionCookie(c)
		return httpserver.RespondErrorWithCode(
			c,
			http.StatusUnauthorized,
			"INVALID_TOKEN",
			"Session token is not valid",
		)
	}

	refreshToken, err := h.tokens.GetRefreshToken(c.Request().Context(), userID)
	if err != nil {
		clearSessionCookie(c)
		if errors.Is(err, auth.ErrTokenNotFound) {
			return httpserver.RespondErrorWithCode(
				c,
				http.StatusUnauthorized,
				"INVALID_REFRESH_TOKEN",
				"Session has expired, log in again",
			)
		}
		h.logger.Error("refresh token lookup failed",
			slog.String("error", err.Error()),
		)
		return httpserver.RespondErrorWithCode(
			c,
			http.StatusInternalServerError,
			"REFRESH_FAILED",
			"Failed to refresh session",
		)
	}

	tokens, err := h.provider.RefreshToken(c.Request().Context(), refreshToken)
	if err != nil {
		// The stored refresh token is dead weight once rejected.
		if delErr := h.tokens.DeleteRefreshToken(c.Request().Context(), userID); delErr != nil {
			h.logger.Warn("failed to delete rejected refresh token",
				slog.String("error", delErr.Error()),
			)
		}
		clearSessionCookie(c)
		return httpserver.RespondErrorWithCode(
			c,
			http.StatusUnauthorized,
			"INVALID_REFRESH_TOKEN",
			"Session has expired, log in again",
		)
	}

	if err := h.storeSession(c, tokens); err != nil {
		h.logger.Error("failed to store refresh token",
			slog.String("error", err.Error()),
		)
		return httpserver.RespondErrorWithCode(
			c,
			http.StatusInternalServerError,
			"REFRESH_FAILED",
			"Failed to refresh session",
		)
	}

	return httpserver.RespondOK(c, SessionResponse{
		User:      toUserDTO(tokens.User),
		ExpiresIn: tokens.ExpiresIn,
	})
}

// Me handles GET /api/me.
func (h *AuthHandler) Me(c echo.Context) error {
	accessToken := middleware.GetAccessToken(c)
	if accessToken == "" {
		return httpserver.RespondErrorWithCode(
			c,
			http.StatusUnauthorized,
			"UNAUTHORIZED",
			"User not authenticated",
		)
	}

	usr, err := h.provider.GetUser(c.Request().Context(), accessToken)
	if err != nil {
		if errors.Is(err, provider.ErrSessionInvalid) {
			return httpserver.RespondErrorWithCode(
				c,
				http.StatusUnauthorized,
				"UNAUTHORIZED",
				"Session is no longer valid",
			)
		}
		h.logger.Error("failed to fetch user",
			slog.String("error", err.Error()),
		)
		return httpserver.RespondErrorWithCode(
			c,
			http.StatusInternalServerError,
			"USER_FETCH_FAILED",
			"Failed to fetch user",
		)
	}

	return httpserver.RespondOK(c, toUserDTO(usr))
}

// storeSession sets the session cookie and persists the refresh token.
func (h *AuthHandler) storeSession(c echo.Context, tokens *provider.TokenResponse) error {
	setSessionCookie(c, tokens.AccessToken, tokens.ExpiresIn, h.secureCookies)

	if tokens.User == nil || tokens.RefreshToken == "" {
		return nil
	}

	return h.tokens.StoreRefreshToken(
		c.Request().Context(),
		tokens.User.ID,
		tokens.RefreshToken,
		h.refreshTTL,
	)
}

// toUserDTO converts a provider user to a UserDTO.
func toUserDTO(u *provider.User) UserDTO {
	if u == nil {
		return UserDTO{}
	}
	return UserDTO{
		ID:        u.ID,
		Email:     u.Email,
		Confirmed: u.Confirmed(),
	}
}
