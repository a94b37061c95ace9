package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"memberclubserver/internal/domain"

	"golang.org/x/oauth2"
	githuboauth "golang.org/x/oauth2/github"
)

type GitHub struct {
	conf *oauth2.Config

	// overridable for tests
	apiBase string
}

func NewGitHub(clientID, clientSecret, redirectURL string) *GitHub {
	return &GitHub{
		conf: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     githuboauth.Endpoint,
		},
		apiBase: "https://api.github.com",
	}
}

func (g *GitHub) Name() string { return domain.ProviderGitHub }

func (g *GitHub) AuthCodeURL(state string) string {
	return g.conf.AuthCodeURL(state)
}

func (g *GitHub) Exchange(ctx context.Context, code string) (Identity, error) {
	tok, err := g.conf.Exchange(ctx, code)
	if err != nil {
		return Identity{}, classifyExchangeError(err)
	}

	client := g.conf.Client(ctx, tok)

	var profile struct {
		ID    int64  `json:"id"`
		Login string `json:"login"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := g.getJSON(ctx, client, "/user", &profile); err != nil {
		return Identity{}, err
	}
	if profile.ID == 0 {
		return Identity{}, fmt.Errorf("%w: github profile missing id", domain.ErrInvalidCredentials)
	}

	ident := Identity{
		Provider:    domain.ProviderGitHub,
		Subject:     strconv.FormatInt(profile.ID, 10),
		Username:    profile.Login,
		DisplayName: strings.TrimSpace(profile.Name),
	}

	// The emails endpoint needs the user:email scope; a profile-level email
	// is an acceptable fallback and no email at all is the resolver's
	// problem, not ours.
	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := g.getJSON(ctx, client, "/user/emails", &emails); err == nil {
		for _, e := range emails {
			if e.Primary && e.Verified {
				ident.Emails = appendEmail(ident.Emails, e.Email)
			}
		}
		for _, e := range emails {
			if e.Verified {
				ident.Emails = appendEmail(ident.Emails, e.Email)
			}
		}
	}
	ident.Emails = appendEmail(ident.Emails, profile.Email)

	return ident, nil
}

func (g *GitHub) getJSON(ctx context.Context, client *http.Client, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.apiBase+path, nil)
	if err != nil {
		return fmt.Errorf("%w: build github request", domain.ErrProviderUnavailable)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return classifyExchangeError(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: github rejected the access token", domain.ErrInvalidCredentials)
	default:
		return fmt.Errorf("%w: github api returned %d", domain.ErrProviderUnavailable, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: decode github response", domain.ErrProviderUnavailable)
	}
	return nil
}

func appendEmail(emails []string, email string) []string {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return emails
	}
	for _, existing := range emails {
		if existing == email {
			return emails
		}
	}
	return append(emails, email)
}
