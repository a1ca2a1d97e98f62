// Package main provides the API server entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lllypuk/blogify/internal/config"
	"github.com/lllypuk/blogify/internal/directory"
	httphandler "github.com/lllypuk/blogify/internal/handler/http"
	"github.com/lllypuk/blogify/internal/infrastructure/auth"
	"github.com/lllypuk/blogify/internal/infrastructure/httpserver"
	"github.com/lllypuk/blogify/internal/infrastructure/provider"
	"github.com/lllypuk/blogify/internal/middleware"
)

// Container initialization timeouts.
const (
	redisPingTimeout    = 5 * time.Second
	providerPingTimeout = 5 * time.Second
)

// Container holds all application dependencies and manages their
// lifecycle. It implements httpserver.HealthChecker for the health
// endpoints.
type Container struct {
	// Configuration
	Config *config.Config
	Logger *slog.Logger

	// Infrastructure
	Redis         *redis.Client
	AuthClient    *provider.AuthClient
	AdminClient   *provider.AdminClient
	RowsClient    *provider.RowsClient
	TokenStore    *auth.TokenStore
	TokenVerifier auth.TokenVerifier

	// Core logic
	Resolver *directory.Resolver

	// Middleware components
	TokenValidator  *middleware.VerifierAdapter
	SessionResolver *middleware.ProviderSessionResolver
	RateLimitStore  middleware.RateLimitStore

	// HTTP Handlers
	CheckUserHandler *httphandler.CheckUserHandler
	AuthHandler      *httphandler.AuthHandler
	PostHandler      *httphandler.PostHandler
	PageHandler      *httphandler.PageHandler
	TemplateRenderer *httphandler.TemplateRenderer
}

// Ensure Container implements httpserver.HealthChecker.
var _ httpserver.HealthChecker = (*Container)(nil)

// ContainerOption configures the Container.
type ContainerOption func(*Container)

// WithLogger sets a custom logger for the container.
func WithLogger(logger *slog.Logger) ContainerOption {
	return func(c *Container) {
		c.Logger = logger
	}
}

// NewContainer creates a new dependency injection container.
func NewContainer(cfg *config.Config, opts ...ContainerOption) (*Container, error) {
	c := &Container{
		Config: cfg,
		Logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if err := c.setupInfrastructure(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to setup infrastructure: %w", err)
	}

	c.setupCoreLogic()
	c.setupMiddlewareComponents()

	if err := c.setupTemplateRenderer(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to setup template renderer: %w", err)
	}

	c.setupHTTPHandlers()

	if err := c.validateWiring(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("wiring validation failed: %w", err)
	}

	return c, nil
}

// setupInfrastructure initializes Redis and the provider clients.
func (c *Container) setupInfrastructure() error {
	if err := c.setupRedis(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	c.setupProviderClients()

	if err := c.setupTokenVerifier(); err != nil {
		return fmt.Errorf("token verifier: %w", err)
	}

	return nil
}

// setupRedis initializes the Redis client and verifies connectivity.
func (c *Container) setupRedis() error {
	client := redis.NewClient(&redis.Options{
		Addr:     c.Config.Redis.Addr,
		Password: c.Config.Redis.Password,
		DB:       c.Config.Redis.DB,
		PoolSize: c.Config.Redis.PoolSize,
	})

	pingCtx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("failed to ping: %w", err)
	}

	c.Redis = client
	c.TokenStore = auth.NewTokenStore(auth.TokenStoreConfig{Client: client})

	c.Logger.Info("connected to Redis",
		slog.String("addr", c.Config.Redis.Addr),
	)

	return nil
}

// setupProviderClients initializes the hosted backend clients.
func (c *Container) setupProviderClients() {
	httpClient := &http.Client{Timeout: c.Config.Provider.Timeout}

	c.AuthClient = provider.NewAuthClient(provider.AuthClientConfig{
		BaseURL:    c.Config.Provider.URL,
		AnonKey:    c.Config.Provider.AnonKey,
		HTTPClient: httpClient,
		Logger:     c.Logger,
	})

	c.AdminClient = provider.NewAdminClient(provider.AdminClientConfig{
		BaseURL:        c.Config.Provider.URL,
		ServiceRoleKey: c.Config.Provider.ServiceRoleKey,
		HTTPClient:     httpClient,
	})

	c.RowsClient = provider.NewRowsClient(provider.RowsClientConfig{
		BaseURL:    c.Config.Provider.URL,
		AnonKey:    c.Config.Provider.AnonKey,
		Table:      c.Config.Provider.PostsTable,
		HTTPClient: httpClient,
	})
}

// setupTokenVerifier initializes the JWKS-backed token verifier.
func (c *Container) setupTokenVerifier() error {
	verifier, err := auth.NewTokenVerifier(auth.TokenVerifierConfig{
		BaseURL:         c.Config.Provider.URL,
		Leeway:          c.Config.Provider.JWT.Leeway,
		RefreshInterval: c.Config.Provider.JWT.RefreshInterval,
		Logger:          c.Logger,
	})
	if err != nil {
		return err
	}

	c.TokenVerifier = verifier
	return nil
}

// setupCoreLogic wires the user existence resolver.
func (c *Container) setupCoreLogic() {
	c.Resolver = directory.NewResolver(directory.ResolverConfig{
		Lister: c.AdminClient,
		Logger: c.Logger,
	})
}

// setupMiddlewareComponents wires the middleware adapters.
func (c *Container) setupMiddlewareComponents() {
	c.TokenValidator = middleware.NewVerifierAdapter(c.TokenVerifier)
	c.SessionResolver = middleware.NewProviderSessionResolver(c.AuthClient)
	c.RateLimitStore = middleware.NewRedisRateLimitStore(c.Redis)
}

// setupTemplateRenderer parses the embedded page templates.
func (c *Container) setupTemplateRenderer() error {
	renderer, err := httphandler.NewTemplateRenderer()
	if err != nil {
		return err
	}

	c.TemplateRenderer = renderer
	return nil
}

// setupHTTPHandlers wires the HTTP handlers.
func (c *Container) setupHTTPHandlers() {
	c.CheckUserHandler = httphandler.NewCheckUserHandler(c.Resolver, c.Logger)

	c.AuthHandler = httphandler.NewAuthHandler(httphandler.AuthHandlerConfig{
		Provider:        c.AuthClient,
		Tokens:          c.TokenStore,
		Checker:         c.Resolver,
		RefreshTokenTTL: c.Config.Auth.RefreshTokenTTL,
		SecureCookies:   c.Config.Auth.SecureCookies,
		Logger:          c.Logger,
	})

	c.PostHandler = httphandler.NewPostHandler(c.RowsClient, c.Logger)
	c.PageHandler = httphandler.NewPageHandler()
}

// validateWiring ensures all required dependencies are initialized.
func (c *Container) validateWiring() error {
	var errs []error

	if c.Redis == nil {
		errs = append(errs, errors.New("redis client not initialized"))
	}
	if c.TokenVerifier == nil {
		errs = append(errs, errors.New("token verifier not initialized"))
	}
	if c.Resolver == nil {
		errs = append(errs, errors.New("existence resolver not initialized"))
	}
	if c.SessionResolver == nil {
		errs = append(errs, errors.New("session resolver not initialized"))
	}
	if c.CheckUserHandler == nil {
		errs = append(errs, errors.New("check-user handler not initialized"))
	}
	if c.AuthHandler == nil {
		errs = append(errs, errors.New("auth handler not initialized"))
	}
	if c.PostHandler == nil {
		errs = append(errs, errors.New("post handler not initialized"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// IsReady implements httpserver.HealthChecker.
func (c *Container) IsReady(ctx context.Context) bool {
	for _, comp := range c.GetHealthStatus(ctx) {
		if comp.Status != httpserver.StatusHealthy {
			return false
		}
	}
	return true
}

// GetHealthStatus implements httpserver.HealthChecker.
func (c *Container) GetHealthStatus(ctx context.Context) []httpserver.ComponentStatus {
	components := make([]httpserver.ComponentStatus, 0, 2)

	redisStatus := httpserver.ComponentStatus{Name: "redis", Status: httpserver.StatusHealthy}
	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := c.Redis.Ping(pingCtx).Err(); err != nil {
		redisStatus.Status = httpserver.StatusUnhealthy
		redisStatus.Message = err.Error()
	}
	components = append(components, redisStatus)

	providerStatus := httpserver.ComponentStatus{Name: "provider", Status: httpserver.StatusHealthy}
	healthCtx, healthCancel := context.WithTimeout(ctx, providerPingTimeout)
	defer healthCancel()
	if err := c.AuthClient.Health(healthCtx); err != nil {
		providerStatus.Status = httpserver.StatusUnhealthy
		providerStatus.Message = err.Error()
	}
	components = append(components, providerStatus)

	return components
}

// Close releases container resources.
func (c *Container) Close() error {
	var errs []error

	if c.TokenVerifier != nil {
		if err := c.TokenVerifier.Close(); err != nil {
			errs = append(errs, fmt.Errorf("token verifier: %w", err))
		}
	}

	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}

	return errors.Join(errs...)
}
