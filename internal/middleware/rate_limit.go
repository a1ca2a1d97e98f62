package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// Default rate limit parameters.
const (
	DefaultRateLimit  = 60
	DefaultRateWindow = time.Minute
)

// RateLimitStore counts requests per key within a window.
type RateLimitStore interface {
	// Increment increments the counter for key and returns the new count.
	// The first increment in a window arms the window's expiry.
	Increment(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RateLimitConfig holds configuration for the rate limiting middleware.
type RateLimitConfig struct {
	Logger *slog.Logger

	// Store is the counter backend.
	Store RateLimitStore

	// Limit is the max requests per window per client.
	Limit int64

	// Window is the counting window.
	Window time.Duration

	// SkipPaths are paths exempt from rate limiting.
	SkipPaths []string
}

// DefaultRateLimitConfig returns a RateLimitConfig with sensible defaults.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Logger:    slog.Default(),
		Store:     NewMemoryRateLimitStore(),
		Limit:     DefaultRateLimit,
		Window:    DefaultRateWindow,
		SkipPaths: []string{"/health", "/ready"},
	}
}

// RateLimit returns a middleware that limits requests per client IP.
func RateLimit(config RateLimitConfig) echo.MiddlewareFunc {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Store == nil {
		config.Store = NewMemoryRateLimitStore()
	}
	if config.Limit <= 0 {
		config.Limit = DefaultRateLimit
	}
	if config.Window <= 0 {
		config.Window = DefaultRateWindow
	}

	skipPaths := make(map[string]struct{}, len(config.SkipPaths))
	for _, path := range config.SkipPaths {
		skipPaths[path] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Request().URL.Path

			if _, ok := skipPaths[path]; ok {
				return next(c)
			}

			key := c.RealIP()

			count, err := config.Store.Increment(c.Request().Context(), key, config.Window)
			if err != nil {
				// A broken counter should not take the service down.
				config.Logger.Error("rate limit store failed",
					slog.String("error", err.Error()),
					slog.String("client", key),
				)
				return next(c)
			}

			remaining := config.Limit - count
			if remaining < 0 {
				remaining = 0
			}

			c.Response().Header().Set("X-RateLimit-Limit", strconv.FormatInt(config.Limit, 10))
			c.Response().Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

			if count > config.Limit {
				config.Logger.Warn("rate limit exceeded",
					slog.String("client", key),
					slog.String("path", path),
					slog.Int64("count", count),
				)

				c.Response().Header().Set("Retry-After", strconv.Itoa(int(config.Window.Seconds())))

				return c.JSON(http.StatusTooManyRequests, map[string]any{
					"success": false,
					"error": map[string]string{
						"code":    "RATE_LIMITED",
						"message": "Too many requests",
					},
				})
			}

			return next(c)
		}
	}
}

// MemoryRateLimitStore is an in-process RateLimitStore for single
// instance deployments and tests.
type MemoryRateLimitStore struct {
	mu      sync.Mutex
	entries map[string]*memoryRateEntry
}

type memoryRateEntry struct {
	count     int64
	windowEnd time.Time
}

// NewMemoryRateLimitStore creates an in-memory rate limit store.
func NewMemoryRateLimitStore() *MemoryRateLimitStore {
	return &MemoryRateLimitStore{
		entries: make(map[string]*memoryRateEntry),
	}
}

// Increment implements RateLimitStore.
func (s *MemoryRateLimitStore) Increment(_ context.Context, key string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()

	entry, ok := s.entries[key]
	if !ok || now.After(entry.windowEnd) {
		entry = &memoryRateEntry{windowEnd: now.Add(window)}
		s.entries[key] = entry
	}

	entry.count++

	return entry.count, nil
}

// RedisRateLimitStore is a RateLimitStore backed by Redis, shared across
// instances.
type RedisRateLimitStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisRateLimitStore creates a Redis-backed rate limit store.
func NewRedisRateLimitStore(client *redis.Client) *RedisRateLimitStore {
	return &RedisRateLimitStore{
		client:    client,
		keyPrefix: "ratelimit:",
	}
}

// Increment implements RateLimitStore.
func (s *RedisRateLimitStore) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	redisKey := s.keyPrefix + key

	count, err := s.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return 0, fmt.Errorf("increment rate counter: %w", err)
	}

	if count == 1 {
		if err := s.client.Expire(ctx, redisKey, window).Err(); err != nil {
			return count, fmt.Errorf("set rate counter expiry: %w", err)
		}
	}

	return count, nil
}
