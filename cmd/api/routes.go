package main

import (
	"github.com/lllypuk/blogify/internal/infrastructure/httpserver"
	"github.com/lllypuk/blogify/internal/middleware"
)

// SetupRoutes builds the router with the full middleware chain and
// registers all handlers.
func SetupRoutes(c *Container) *httpserver.Router {
	server := httpserver.NewServer(httpserver.ServerConfig{
		Host:            c.Config.Server.Host,
		Port:            c.Config.Server.Port,
		ReadTimeout:     c.Config.Server.ReadTimeout,
		WriteTimeout:    c.Config.Server.WriteTimeout,
		ShutdownTimeout: c.Config.Server.ShutdownTimeout,
	}, c.Logger)

	e := server.Echo()
	e.Renderer = c.TemplateRenderer

	guardConfig := middleware.DefaultGuardConfig()
	guardConfig.Logger = c.Logger
	guardConfig.Resolver = c.SessionResolver

	authConfig := middleware.DefaultAuthConfig()
	authConfig.Logger = c.Logger
	authConfig.TokenValidator = c.TokenValidator

	routerConfig := httpserver.DefaultRouterConfig()
	routerConfig.Logger = c.Logger
	routerConfig.GuardMiddleware = middleware.Guard(guardConfig)
	routerConfig.AuthMiddleware = middleware.Auth(authConfig)
	routerConfig.LoggingConfig.Logger = c.Logger
	routerConfig.RecoveryConfig.Logger = c.Logger

	if c.Config.RateLimit.Enabled {
		rateLimitConfig := middleware.DefaultRateLimitConfig()
		rateLimitConfig.Logger = c.Logger
		rateLimitConfig.Store = c.RateLimitStore
		rateLimitConfig.Limit = c.Config.RateLimit.Limit
		rateLimitConfig.Window = c.Config.RateLimit.Window
		routerConfig.RateLimitMiddleware = middleware.RateLimit(rateLimitConfig)
	}

	router := httpserver.NewRouter(e, routerConfig)

	router.RegisterHealthEndpointsWithChecker(c)
	router.RegisterMetricsEndpoint()

	c.CheckUserHandler.RegisterRoutes(router)
	c.AuthHandler.RegisterRoutes(router)
	c.PostHandler.RegisterRoutes(router)
	c.PageHandler.RegisterRoutes(router)

	return router
}
