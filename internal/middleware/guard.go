package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// DefaultLoginPath is where unauthenticated requests to protected pages
// are sent.
const DefaultLoginPath = "/login"

// SessionResolver resolves whether an access token still belongs to a
// live provider session.
type SessionResolver interface {
	// ResolveSession returns nil when the session is present and valid.
	ResolveSession(ctx context.Context, accessToken string) error
}

// GuardConfig holds configuration for the route access guard.
type GuardConfig struct {
	// Logger is the structured logger for guard events.
	Logger *slog.Logger

	// Resolver checks the session against the auth provider.
	Resolver SessionResolver

	// ProtectedPrefixes are the path prefixes that require a session.
	// Defaults to ["/dashboard"].
	ProtectedPrefixes []string

	// LoginPath is the redirect target for unauthenticated requests.
	LoginPath string

	// CookieName is the session cookie carrying the access token.
	CookieName string
}

// DefaultGuardConfig returns a GuardConfig with sensible defaults.
func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		Logger:            slog.Default(),
		ProtectedPrefixes: []string{"/dashboard"},
		LoginPath:         DefaultLoginPath,
		CookieName:        SessionCookieName,
	}
}

// Guard returns a middleware that gates protected page routes behind a
// live session.
//
// Requests outside the protected prefixes pass through without any
// session work. For protected paths the session is resolved against the
// provider on every request — session state can change between requests
// (logout in another tab), so nothing is cached. A missing token, a
// rejected token, or a resolver failure all redirect to the login page:
// an error resolving the session must never grant access.
func Guard(config GuardConfig) echo.MiddlewareFunc {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if len(config.ProtectedPrefixes) == 0 {
		config.ProtectedPrefixes = []string{"/dashboard"}
	}
	if config.LoginPath == "" {
		config.LoginPath = DefaultLoginPath
	}
	if config.CookieName == "" {
		config.CookieName = SessionCookieName
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Request().URL.Path

			if !isProtected(path, config.ProtectedPrefixes) {
				return next(c)
			}

			token := sessionToken(c, config.CookieName)
			if token == "" {
				return c.Redirect(http.StatusFound, config.LoginPath)
			}

			if config.Resolver == nil {
				config.Logger.Error("session resolver not configured")
				return c.Redirect(http.StatusFound, config.LoginPath)
			}

			if err := config.Resolver.ResolveSession(c.Request().Context(), token); err != nil {
				config.Logger.Debug("session rejected",
					slog.String("path", path),
					slog.String("error", err.Error()),
				)
				return c.Redirect(http.StatusFound, config.LoginPath)
			}

			return next(c)
		}
	}
}

// isProtected reports whether path falls under any protected prefix.
// A prefix matches the prefix path itself and anything below it, but
// not unrelated siblings ("/dashboard" matches "/dashboard/new", not
// "/dashboard-public").
func isProtected(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}

// sessionToken extracts the access token from the session cookie.
func sessionToken(c echo.Context, cookieName string) string {
	cookie, err := c.Cookie(cookieName)
	if err != nil || cookie.Value == "" {
		return ""
	}
	return cookie.Value
}
