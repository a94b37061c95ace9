package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"memberclubserver/internal/domain"
)

// LinkedIn is wired as a manual authorization-code exchange instead of an
// oauth2.Config: the token endpoint wants its credentials in the form body
// and the flow is small enough to own outright.
type LinkedIn struct {
	clientID     string
	clientSecret string
	redirectURL  string
	httpClient   *http.Client

	authBase string
	apiBase  string
}

func NewLinkedIn(clientID, clientSecret, redirectURL string) *LinkedIn {
	return &LinkedIn{
		clientID:     clientID,
		clientSecret: clientSecret,
		redirectURL:  redirectURL,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		authBase:     "https://www.linkedin.com/oauth/v2",
		apiBase:      "https://api.linkedin.com/v2",
	}
}

func (l *LinkedIn) Name() string { return domain.ProviderLinkedIn }

func (l *LinkedIn) AuthCodeURL(state string) string {
	v := url.Values{}
	v.Set("response_type", "code")
	v.Set("client_id", l.clientID)
	v.Set("redirect_uri", l.redirectURL)
	v.Set("state", state)
	v.Set("scope", "openid profile email")
	return l.authBase + "/authorization?" + v.Encode()
}

func (l *LinkedIn) Exchange(ctx context.Context, code string) (Identity, error) {
	accessToken, err := l.exchangeCode(ctx, code)
	if err != nil {
		return Identity{}, err
	}
	return l.fetchUserinfo(ctx, accessToken)
}

func (l *LinkedIn) exchangeCode(ctx context.Context, code string) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("client_id", l.clientID)
	form.Set("client_secret", l.clientSecret)
	form.Set("redirect_uri", l.redirectURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.authBase+"/accessToken", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("%w: build linkedin request", domain.ErrProviderUnavailable)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return "", classifyExchangeError(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return "", fmt.Errorf("%w: linkedin rejected the authorization code", domain.ErrInvalidCredentials)
	default:
		return "", fmt.Errorf("%w: linkedin token endpoint returned %d", domain.ErrProviderUnavailable, resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("%w: decode linkedin token response", domain.ErrProviderUnavailable)
	}
	if body.AccessToken == "" {
		return "", fmt.Errorf("%w: linkedin response missing access token", domain.ErrInvalidCredentials)
	}
	return body.AccessToken, nil
}

func (l *LinkedIn) fetchUserinfo(ctx context.Context, accessToken string) (Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.apiBase+"/userinfo", nil)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: build linkedin request", domain.ErrProviderUnavailable)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return Identity{}, classifyExchangeError(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return Identity{}, fmt.Errorf("%w: linkedin rejected the access token", domain.ErrInvalidCredentials)
	default:
		return Identity{}, fmt.Errorf("%w: linkedin userinfo returned %d", domain.ErrProviderUnavailable, resp.StatusCode)
	}

	var info struct {
		Sub   string `json:"sub"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return Identity{}, fmt.Errorf("%w: decode linkedin userinfo", domain.ErrProviderUnavailable)
	}
	if info.Sub == "" {
		return Identity{}, fmt.Errorf("%w: linkedin userinfo missing subject", domain.ErrInvalidCredentials)
	}

	ident := Identity{
		Provider:    domain.ProviderLinkedIn,
		Subject:     info.Sub,
		DisplayName: strings.TrimSpace(info.Name),
	}
	ident.Emails = appendEmail(ident.Emails, info.Email)
	return ident, nil
}
