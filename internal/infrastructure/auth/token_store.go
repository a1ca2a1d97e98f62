// Package auth provides session-supporting infrastructure: the redis
// refresh-token store and local verification of provider-issued access
// tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Token store errors.
var (
	ErrTokenNotFound = errors.New("token not found")
)

// TokenStore keeps provider refresh tokens server-side in Redis so they
// never travel to the browser; only the short-lived access token does.
type TokenStore struct {
	client    *redis.Client
	keyPrefix string
}

// TokenStoreConfig contains configuration for TokenStore.
type TokenStoreConfig struct {
	Client    *redis.Client
	KeyPrefix string
}

const (
	defaultKeyPrefix = "auth:refresh_token:"
)

// NewTokenStore creates a new Redis-based token store.
func NewTokenStore(cfg TokenStoreConfig) *TokenStore {
	keyPrefix := cfg.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}

	return &TokenStore{
		client:    cfg.Client,
		keyPrefix: keyPrefix,
	}
}

// tokenKey generates the Redis key for a user's refresh token.
func (s *TokenStore) tokenKey(userID string) string {
	return s.keyPrefix + userID
}

// StoreRefreshToken stores a refresh token for a user with the given TTL.
func (s *TokenStore) StoreRefreshToken(ctx context.Context, userID, refreshToken string, ttl time.Duration) error {
	if userID == "" {
		return errors.New("userID is required")
	}
	if refreshToken == "" {
		return errors.New("refreshToken is required")
	}

	key := s.tokenKey(userID)
	err := s.client.Set(ctx, key, refreshToken, ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to store refresh token: %w", err)
	}

	return nil
}

// GetRefreshToken retrieves a stored refresh token for a user.
func (s *TokenStore) GetRefreshToken(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", errors.New("userID is required")
	}

	key := s.tokenKey(userID)
	token, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrTokenNotFound
		}
		return "", fmt.Errorf("failed to get refresh token: %w", err)
	}

	return token, nil
}

// DeleteRefreshToken removes a user's refresh token (logout).
// Deleting a token that is already gone is not an error.
func (s *TokenStore) DeleteRefreshToken(ctx context.Context, userID string) error {
	if userID == "" {
		return errors.New("userID is required")
	}

	key := s.tokenKey(userID)
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete refresh token: %w", err)
	}

	return nil
}
