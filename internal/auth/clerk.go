package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	apperrors "github.com/launchkit/polarbridge/internal/errors"
)

// Verifier resolves a bearer token to an identity.
type Verifier interface {
	VerifyToken(ctx context.Context, token string) (*Identity, error)
}

// ClerkVerifier validates Clerk-issued JWTs using the issuer's JWKS.
type ClerkVerifier struct {
	issuer string
	jwks   keyfunc.Keyfunc
}

// NewClerkVerifier derives the issuer from the publishable key and
// starts a JWKS fetcher against it.
func NewClerkVerifier(publishableKey string) (*ClerkVerifier, error) {
	issuer, err := IssuerFromPublishableKey(publishableKey)
	if err != nil {
		return nil, err
	}

	jwksURL := issuer + "/.well-known/jwks.json"
	jwks, err := keyfunc.NewDefault([]string{jwksURL})
	if err != nil {
		return nil, fmt.Errorf("fetch JWKS from %s: %w", jwksURL, err)
	}

	return &ClerkVerifier{issuer: issuer, jwks: jwks}, nil
}

// IssuerFromPublishableKey maps a Clerk publishable key to the frontend
// API issuer URL. The instance slug is the segment between the
// pk_test_/pk_live_ prefix and the next underscore.
func IssuerFromPublishableKey(publishableKey string) (string, error) {
	var rest string
	switch {
	case strings.HasPrefix(publishableKey, "pk_test_"):
		rest = strings.TrimPrefix(publishableKey, "pk_test_")
	case strings.HasPrefix(publishableKey, "pk_live_"):
		rest = strings.TrimPrefix(publishableKey, "pk_live_")
	default:
		return "", fmt.Errorf("unrecognized publishable key format")
	}

	slug, _, found := strings.Cut(rest, "_")
	if !found || slug == "" {
		return "", fmt.Errorf("unrecognized publishable key format")
	}
	return "https://" + slug + ".clerk.accounts.dev", nil
}

// VerifyToken parses a Clerk JWT and returns the caller's identity.
func (c *ClerkVerifier) VerifyToken(ctx context.Context, tokenStr string) (*Identity, error) {
	token, err := jwt.Parse(tokenStr, c.jwks.KeyfuncCtx(ctx),
		jwt.WithIssuer(c.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, apperrors.ErrNotAuthenticated
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, apperrors.ErrNotAuthenticated
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, apperrors.ErrNotAuthenticated
	}

	name := claimStr(claims, "name")
	if name == "" {
		name = strings.TrimSpace(claimStr(claims, "first_name") + " " + claimStr(claims, "last_name"))
	}

	return &Identity{
		Subject: sub,
		Email:   claimStr(claims, "email"),
		Name:    name,
	}, nil
}

// Issuer returns the derived frontend API issuer URL.
func (c *ClerkVerifier) Issuer() string { return c.issuer }

// claimStr extracts a string claim or returns "".
func claimStr(claims jwt.MapClaims, key string) string {
	v, _ := claims[key].(string)
	return v
}
