package provider

import (
	"context"
	"fmt"
	"strings"

	"memberclubserver/internal/domain"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	"google.golang.org/api/idtoken"
)

type Google struct {
	conf *oauth2.Config
}

func NewGoogle(clientID, clientSecret, redirectURL string) *Google {
	return &Google{
		conf: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     googleoauth.Endpoint,
		},
	}
}

func (g *Google) Name() string { return domain.ProviderGoogle }

func (g *Google) AuthCodeURL(state string) string {
	return g.conf.AuthCodeURL(state)
}

// Exchange swaps the code for tokens and verifies the returned ID token
// (signature, audience, issuer) rather than trusting the userinfo endpoint.
func (g *Google) Exchange(ctx context.Context, code string) (Identity, error) {
	tok, err := g.conf.Exchange(ctx, code)
	if err != nil {
		return Identity{}, classifyExchangeError(err)
	}

	rawIDToken, _ := tok.Extra("id_token").(string)
	if rawIDToken == "" {
		return Identity{}, fmt.Errorf("%w: google response missing id_token", domain.ErrInvalidCredentials)
	}

	payload, err := idtoken.Validate(ctx, rawIDToken, g.conf.ClientID)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: google id token rejected", domain.ErrInvalidCredentials)
	}
	if payload.Issuer != "accounts.google.com" && payload.Issuer != "https://accounts.google.com" {
		return Identity{}, fmt.Errorf("%w: unexpected issuer %s", domain.ErrInvalidCredentials, payload.Issuer)
	}

	ident := Identity{
		Provider: domain.ProviderGoogle,
		Subject:  payload.Subject,
	}
	if email, ok := payload.Claims["email"].(string); ok && email != "" {
		ident.Emails = []string{strings.TrimSpace(strings.ToLower(email))}
	}
	if name, ok := payload.Claims["name"].(string); ok {
		ident.DisplayName = strings.TrimSpace(name)
	}
	return ident, nil
}
