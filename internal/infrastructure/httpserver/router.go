package httpserver

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lllypuk/blogify/internal/middleware"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	// Logger is the structured logger for router events.
	Logger *slog.Logger

	// GuardMiddleware gates the protected page routes behind a session.
	GuardMiddleware echo.MiddlewareFunc

	// AuthMiddleware authenticates API routes via access token.
	AuthMiddleware echo.MiddlewareFunc

	// RateLimitMiddleware is the rate limiting middleware.
	RateLimitMiddleware echo.MiddlewareFunc

	// CORSConfig is the CORS configuration.
	CORSConfig middleware.CORSConfig

	// LoggingConfig is the logging middleware configuration.
	LoggingConfig middleware.LoggingConfig

	// RecoveryConfig is the recovery middleware configuration.
	RecoveryConfig middleware.RecoveryConfig

	// APIPrefix is the prefix for all API routes. Default is "/api".
	APIPrefix string
}

// DefaultRouterConfig returns a RouterConfig with sensible defaults.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		Logger:         slog.Default(),
		CORSConfig:     middleware.DefaultCORSConfig(),
		LoggingConfig:  middleware.DefaultLoggingConfig(),
		RecoveryConfig: middleware.DefaultRecoveryConfig(),
		APIPrefix:      "/api",
	}
}

// Router manages HTTP route groups and middleware chains. Page routes
// go through the session guard; API routes go through token auth.
type Router struct {
	echo   *echo.Echo
	config RouterConfig
	logger *slog.Logger

	pages *echo.Group
	api   *echo.Group
}

// NewRouter creates a new router with the given configuration.
func NewRouter(e *echo.Echo, config RouterConfig) *Router {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.APIPrefix == "" {
		config.APIPrefix = "/api"
	}

	r := &Router{
		echo:   e,
		config: config,
		logger: config.Logger,
	}

	r.setupGlobalMiddleware()
	r.setupRouteGroups()

	return r
}

// setupGlobalMiddleware applies global middleware to the Echo instance.
func (r *Router) setupGlobalMiddleware() {
	// Recovery first so it catches panics from the rest of the chain.
	r.echo.Use(middleware.Recovery(r.config.RecoveryConfig))

	r.echo.Use(middleware.CORS(r.config.CORSConfig))

	r.echo.Use(middleware.Logging(r.config.LoggingConfig))

	if r.config.RateLimitMiddleware != nil {
		r.echo.Use(r.config.RateLimitMiddleware)
	}
}

// setupRouteGroups creates the route group hierarchy.
func (r *Router) setupRouteGroups() {
	// Page routes. The guard only acts on protected prefixes, so public
	// pages register here too.
	if r.config.GuardMiddleware != nil {
		r.pages = r.echo.Group("", r.config.GuardMiddleware)
	} else {
		r.pages = r.echo.Group("")
		r.logger.Warn("no guard middleware configured, dashboard pages are public")
	}

	// API routes behind token auth.
	if r.config.AuthMiddleware != nil {
		r.api = r.echo.Group(r.config.APIPrefix, r.config.AuthMiddleware)
	} else {
		r.api = r.echo.Group(r.config.APIPrefix)
		r.logger.Warn("no auth middleware configured, API routes are public")
	}
}

// Echo returns the underlying Echo instance.
func (r *Router) Echo() *echo.Echo {
	return r.echo
}

// Pages returns the page route group. The session guard redirects
// unauthenticated requests under protected prefixes to the login page.
func (r *Router) Pages() *echo.Group {
	return r.pages
}

// API returns the API route group behind token authentication.
func (r *Router) API() *echo.Group {
	return r.api
}

// RegisterHealthEndpointsWithChecker registers health endpoints with a
// HealthChecker.
func (r *Router) RegisterHealthEndpointsWithChecker(checker HealthChecker) {
	endpoints := NewHealthEndpoints(checker)
	endpoints.Register(r.echo)
}

// RegisterMetricsEndpoint registers the Prometheus metrics endpoint.
func (r *Router) RegisterMetricsEndpoint() {
	r.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// PrintRoutes logs all registered routes (for debugging).
func (r *Router) PrintRoutes() {
	for _, route := range r.echo.Routes() {
		r.logger.Debug("registered route",
			slog.String("method", route.Method),
			slog.String("path", route.Path),
		)
	}
}
