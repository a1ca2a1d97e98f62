package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

// Token verification errors.
var (
	ErrInvalidToken    = errors.New("invalid token")
	ErrInvalidClaims   = errors.New("invalid claims")
	ErrMissingSubject  = errors.New("missing subject claim")
	ErrTokenExpired    = errors.New("token expired")
	ErrJWKSFetchFailed = errors.New("failed to fetch JWKS")
)

// TokenClaims represents validated claims from a provider access token.
type TokenClaims struct {
	UserID    string
	Email     string
	Role      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenVerifier validates provider-issued access tokens.
type TokenVerifier interface {
	// Verify validates the token signature and standard claims.
	Verify(ctx context.Context, tokenString string) (*TokenClaims, error)

	// Close stops background JWKS refresh.
	Close() error
}

// TokenVerifierConfig contains configuration for the JWKS verifier.
type TokenVerifierConfig struct {
	// BaseURL is the base URL of the hosted backend. The auth issuer is
	// {BaseURL}/auth/v1 and the key set lives under its well-known path.
	BaseURL string

	// Leeway is the clock-skew tolerance applied to time-based claims.
	Leeway time.Duration

	// RefreshInterval is how often the cached JWKS is refetched.
	RefreshInterval time.Duration

	Logger *slog.Logger
}

// Default configuration values.
const (
	DefaultLeeway          = 30 * time.Second
	DefaultRefreshInterval = 1 * time.Hour
)

// jwksVerifier implements TokenVerifier using the provider's JWKS for
// offline validation.
type jwksVerifier struct {
	jwks      keyfunc.Keyfunc
	config    TokenVerifierConfig
	issuerURL string
	logger    *slog.Logger
	cancel    context.CancelFunc
}

// NewTokenVerifier creates a TokenVerifier with JWKS caching.
func NewTokenVerifier(config TokenVerifierConfig) (TokenVerifier, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("%w: BaseURL is required", ErrJWKSFetchFailed)
	}

	if config.Leeway == 0 {
		config.Leeway = DefaultLeeway
	}
	if config.RefreshInterval == 0 {
		config.RefreshInterval = DefaultRefreshInterval
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	issuerURL := strings.TrimSuffix(config.BaseURL, "/") + "/auth/v1"
	jwksURL := issuerURL + "/.well-known/jwks.json"

	logger.Info("initializing token verifier",
		slog.String("jwks_url", jwksURL),
		slog.Duration("refresh_interval", config.RefreshInterval),
	)

	ctx, cancel := context.WithCancel(context.Background())

	storageOpts := jwkset.HTTPClientStorageOptions{
		Ctx:             ctx,
		RefreshInterval: config.RefreshInterval,
		RefreshErrorHandler: func(_ context.Context, err error) {
			logger.Error("failed to refresh JWKS", slog.Any("error", err))
		},
	}

	storage, err := jwkset.NewStorageFromHTTP(jwksURL, storageOpts)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %w", ErrJWKSFetchFailed, err)
	}

	jwks, err := keyfunc.New(keyfunc.Options{
		Ctx:     ctx,
		Storage: storage,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %w", ErrJWKSFetchFailed, err)
	}

	return &jwksVerifier{
		jwks:      jwks,
		config:    config,
		issuerURL: issuerURL,
		logger:    logger,
		cancel:    cancel,
	}, nil
}

// Verify validates the token and returns its claims.
func (v *jwksVerifier) Verify(_ context.Context, tokenString string) (*TokenClaims, error) {
	if tokenString == "" {
		return nil, ErrInvalidToken
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithLeeway(v.config.Leeway),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(v.issuerURL),
	}

	token, err := jwt.Parse(tokenString, v.jwks.Keyfunc, parserOpts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %w", ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidClaims
	}

	return extractClaims(claims)
}

// Close stops the background JWKS refresh goroutine.
func (v *jwksVerifier) Close() error {
	v.cancel()
	return nil
}

// extractClaims builds TokenClaims from raw JWT claims.
func extractClaims(claims jwt.MapClaims) (*TokenClaims, error) {
	tc := &TokenClaims{}

	tc.UserID, _ = claims["sub"].(string)
	if tc.UserID == "" {
		return nil, ErrMissingSubject
	}

	tc.Email, _ = claims["email"].(string)
	tc.Role, _ = claims["role"].(string)

	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		tc.IssuedAt = iat.Time
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		tc.ExpiresAt = exp.Time
	}

	return tc, nil
}

// SubjectFromToken extracts the subject from a token without verifying
// its signature. Used only to look up the server-side refresh token for
// an expired session; the refreshed session is still granted (or not)
// by the provider itself.
func SubjectFromToken(tokenString string) (string, error) {
	parser := jwt.NewParser()

	token, _, err := parser.ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidClaims
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", ErrMissingSubject
	}

	return sub, nil
}
