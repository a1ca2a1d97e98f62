package middleware

import (
	"context"
	"errors"

	"github.com/lllypuk/blogify/internal/infrastructure/auth"
	"github.com/lllypuk/blogify/internal/infrastructure/provider"
)

// VerifierAdapter adapts auth.TokenVerifier to the middleware
// TokenValidator interface.
type VerifierAdapter struct {
	verifier auth.TokenVerifier
}

// NewVerifierAdapter creates an adapter that bridges the JWKS verifier
// to the API auth middleware.
func NewVerifierAdapter(verifier auth.TokenVerifier) *VerifierAdapter {
	if verifier == nil {
		panic("token verifier is required")
	}

	return &VerifierAdapter{verifier: verifier}
}

// ValidateToken implements the TokenValidator interface.
func (a *VerifierAdapter) ValidateToken(ctx context.Context, token string) (*TokenClaims, error) {
	claims, err := a.verifier.Verify(ctx, token)
	if err != nil {
		return nil, mapVerifierError(err)
	}

	return &TokenClaims{
		UserID:    claims.UserID,
		Email:     claims.Email,
		ExpiresAt: claims.ExpiresAt,
	}, nil
}

// Close closes the underlying verifier.
func (a *VerifierAdapter) Close() error {
	return a.verifier.Close()
}

// mapVerifierError maps verifier errors to middleware errors.
func mapVerifierError(err error) error {
	switch {
	case errors.Is(err, auth.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrInvalidClaims),
		errors.Is(err, auth.ErrMissingSubject):
		return ErrInvalidToken
	default:
		return errors.Join(ErrInvalidToken, err)
	}
}

// ProviderSessionResolver adapts provider.AuthClient to the guard's
// SessionResolver interface. Every call goes to the provider; nothing
// is cached locally.
type ProviderSessionResolver struct {
	client *provider.AuthClient
}

// NewProviderSessionResolver creates the production session resolver.
func NewProviderSessionResolver(client *provider.AuthClient) *ProviderSessionResolver {
	if client == nil {
		panic("auth client is required")
	}

	return &ProviderSessionResolver{client: client}
}

// ResolveSession implements the SessionResolver interface.
func (r *ProviderSessionResolver) ResolveSession(ctx context.Context, accessToken string) error {
	_, err := r.client.GetUser(ctx, accessToken)
	return err
}
