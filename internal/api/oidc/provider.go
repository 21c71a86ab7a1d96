// Package oidc implements the redirect-based sign-in flow against an
// OpenID Connect identity provider. Verified identities are handed to the
// trusted login path, which provisions local accounts by email.
package oidc

import (
	"context"
	"errors"
	"fmt"
	"slices"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

var (
	ErrMissingCode  = errors.New("missing authorization code")
	ErrMissingEmail = errors.New("identity token carries no email")
	ErrNotAllowed   = errors.New("identity is not in an allowed group")
)

// Config holds the relying-party settings. AdminGroup, when set, promotes
// members of that group to administrators; AllowedGroup, when set, rejects
// identities outside it.
type Config struct {
	IssuerURL    string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	SuccessURL   string
	AdminGroup   string
	AllowedGroup string
}

// Identity is the subset of verified claims the login flow needs.
type Identity struct {
	Email         string
	Name          string
	Administrator bool
}

type Provider struct {
	cfg      Config
	verifier *gooidc.IDTokenVerifier
	oauth2   *oauth2.Config
}

// NewProvider discovers the issuer's endpoints and prepares the relying
// party configuration.
func NewProvider(ctx context.Context, cfg Config) (*Provider, error) {
	provider, err := gooidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("issuer discovery: %w", err)
	}

	return &Provider{
		cfg:      cfg,
		verifier: provider.Verifier(&gooidc.Config{ClientID: cfg.ClientID}),
		oauth2: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     provider.Endpoint(),
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{gooidc.ScopeOpenID, "profile", "email", "groups"},
		},
	}, nil
}

// AuthCodeURL returns the authorization endpoint URL to redirect the
// browser to. The state value is round-tripped by the issuer and must be
// checked on callback.
func (p *Provider) AuthCodeURL(state string) string {
	return p.oauth2.AuthCodeURL(state)
}

// SuccessURL is where the browser lands after the flow completes.
func (p *Provider) SuccessURL() string {
	return p.cfg.SuccessURL
}

// Exchange trades the callback's authorization code for a verified
// identity. Group restrictions are enforced here so callers never see an
// identity that is not allowed to sign in.
func (p *Provider) Exchange(ctx context.Context, code string) (Identity, error) {
	if code == "" {
		return Identity{}, ErrMissingCode
	}

	token, err := p.oauth2.Exchange(ctx, code)
	if err != nil {
		return Identity{}, fmt.Errorf("code exchange: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return Identity{}, errors.New("token response carries no id_token")
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return Identity{}, fmt.Errorf("id token verification: %w", err)
	}

	var claims struct {
		Email  string   `json:"email"`
		Name   string   `json:"name"`
		Groups []string `json:"groups"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return Identity{}, fmt.Errorf("claims decoding: %w", err)
	}
	if claims.Email == "" {
		return Identity{}, ErrMissingEmail
	}
	if p.cfg.AllowedGroup != "" && !slices.Contains(claims.Groups, p.cfg.AllowedGroup) {
		return Identity{}, ErrNotAllowed
	}

	name := claims.Name
	if name == "" {
		name = claims.Email
	}

	return Identity{
		Email:         claims.Email,
		Name:          name,
		Administrator: p.cfg.AdminGroup != "" && slices.Contains(claims.Groups, p.cfg.AdminGroup),
	}, nil
}
