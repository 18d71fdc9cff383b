// Package oidc implements bearer-token verification against an OIDC
// identity provider via discovery, with a UserInfo fallback for opaque
// access tokens.
package oidc

import (
	"context"
	"fmt"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"alarmtrack/internal/auth"
)

// ProviderConfig holds configuration for creating an OIDC provider.
type ProviderConfig struct {
	IssuerURL string
	ClientID  string
	// SkipClientIDCheck accepts tokens minted for other audiences at the
	// same issuer. Off by default.
	SkipClientIDCheck bool
}

// Provider wraps OIDC discovery and token verification.
type Provider struct {
	oidcProvider *gooidc.Provider
	verifier     *gooidc.IDTokenVerifier
}

// NewProvider creates a Provider by performing OIDC discovery on the issuer URL.
func NewProvider(ctx context.Context, cfg ProviderConfig) (*Provider, error) {
	oidcProv, err := gooidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery: %w", err)
	}
	verifier := oidcProv.Verifier(&gooidc.Config{
		ClientID:          cfg.ClientID,
		SkipClientIDCheck: cfg.SkipClientIDCheck,
	})
	return &Provider{oidcProvider: oidcProv, verifier: verifier}, nil
}

type claims struct {
	Subject    string `json:"sub"`
	Email      string `json:"email"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
	Name       string `json:"name"`
}

func (c claims) identity() *auth.Identity {
	first, last := c.GivenName, c.FamilyName
	if first == "" && c.Name != "" {
		first = c.Name
	}
	return &auth.Identity{
		Subject:   c.Subject,
		Email:     c.Email,
		FirstName: first,
		LastName:  last,
	}
}

// Verify validates a raw bearer token. Signed JWTs are checked against the
// issuer's JWKS; anything else is resolved through the UserInfo endpoint.
func (p *Provider) Verify(ctx context.Context, rawToken string) (*auth.Identity, error) {
	if idToken, err := p.verifier.Verify(ctx, rawToken); err == nil {
		var c claims
		if err := idToken.Claims(&c); err != nil {
			return nil, fmt.Errorf("extract claims: %w", err)
		}
		return c.identity(), nil
	}

	info, err := p.oidcProvider.UserInfo(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: rawToken,
		TokenType:   "Bearer",
	}))
	if err != nil {
		return nil, fmt.Errorf("userinfo: %w", err)
	}
	var c claims
	if err := info.Claims(&c); err != nil {
		return nil, fmt.Errorf("extract userinfo claims: %w", err)
	}
	if c.Subject == "" {
		c.Subject = info.Subject
	}
	if c.Email == "" {
		c.Email = info.Email
	}
	return c.identity(), nil
}
