package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"
)

type OAuthClient struct {
	ClientID     string
	ClientSecret string
}

func (c OAuthClient) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

type Config struct {
	Env         string
	Addr        string
	PublicURL   *url.URL
	WebURL      string
	DBDSN       string
	TokenSecret string
	TokenTTL    time.Duration
	LogLevel    string
	TOTPIssuer  string

	Google   OAuthClient
	GitHub   OAuthClient
	LinkedIn OAuthClient

	AdminBootstrapEmail    string
	AdminBootstrapUsername string
	AdminBootstrapPassword string
}

func Load() (Config, error) {
	return LoadFromEnv(os.Getenv)
}

func LoadFromEnv(getenv func(string) string) (Config, error) {
	cfg := Config{
		Env:         getenv("APP_ENV"),
		Addr:        getenv("APP_ADDR"),
		DBDSN:       getenv("APP_DB_DSN"),
		LogLevel:    getenv("APP_LOG_LEVEL"),
		TokenSecret: getenv("APP_TOKEN_SECRET"),
		TOTPIssuer:  getenv("APP_TOTP_ISSUER"),
		WebURL:      strings.TrimRight(getenv("APP_WEB_URL"), "/"),
		Google: OAuthClient{
			ClientID:     getenv("APP_GOOGLE_CLIENT_ID"),
			ClientSecret: getenv("APP_GOOGLE_CLIENT_SECRET"),
		},
		GitHub: OAuthClient{
			ClientID:     getenv("APP_GITHUB_CLIENT_ID"),
			ClientSecret: getenv("APP_GITHUB_CLIENT_SECRET"),
		},
		LinkedIn: OAuthClient{
			ClientID:     getenv("APP_LINKEDIN_CLIENT_ID"),
			ClientSecret: getenv("APP_LINKEDIN_CLIENT_SECRET"),
		},
	}

	if cfg.Env == "" {
		cfg.Env = "dev"
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8080"
	}
	if cfg.TOTPIssuer == "" {
		cfg.TOTPIssuer = "MemberClub"
	}

	publicURLRaw := getenv("APP_PUBLIC_URL")
	if publicURLRaw != "" {
		parsed, err := url.Parse(publicURLRaw)
		if err != nil {
			return Config{}, fmt.Errorf("APP_PUBLIC_URL: %w", err)
		}
		if !parsed.IsAbs() || parsed.Host == "" {
			return Config{}, errors.New("APP_PUBLIC_URL: must be an absolute URL")
		}
		switch parsed.Scheme {
		case "http", "https":
		default:
			return Config{}, errors.New("APP_PUBLIC_URL: scheme must be http or https")
		}
		cfg.PublicURL = parsed
	}

	ttlRaw := getenv("APP_TOKEN_TTL")
	if ttlRaw == "" {
		cfg.TokenTTL = 24 * time.Hour
	} else {
		ttl, err := time.ParseDuration(ttlRaw)
		if err != nil {
			return Config{}, fmt.Errorf("APP_TOKEN_TTL: %w", err)
		}
		if ttl <= 0 {
			return Config{}, errors.New("APP_TOKEN_TTL: must be > 0")
		}
		cfg.TokenTTL = ttl
	}

	switch cfg.Env {
	case "dev", "prod", "test":
	default:
		return Config{}, errors.New("APP_ENV: must be one of dev, test, prod")
	}

	cfg.AdminBootstrapEmail = strings.TrimSpace(strings.ToLower(getenv("APP_ADMIN_BOOTSTRAP_EMAIL")))
	cfg.AdminBootstrapUsername = strings.TrimSpace(getenv("APP_ADMIN_BOOTSTRAP_USERNAME"))
	cfg.AdminBootstrapPassword = getenv("APP_ADMIN_BOOTSTRAP_PASSWORD")

	if cfg.AdminBootstrapPassword != "" && cfg.AdminBootstrapEmail == "" {
		return Config{}, errors.New("APP_ADMIN_BOOTSTRAP_EMAIL: required when APP_ADMIN_BOOTSTRAP_PASSWORD is set")
	}
	if cfg.AdminBootstrapPassword != "" && cfg.AdminBootstrapUsername == "" {
		cfg.AdminBootstrapUsername = "admin"
	}

	if cfg.IsProd() {
		if cfg.PublicURL == nil {
			return Config{}, errors.New("APP_PUBLIC_URL: required in prod")
		}
		if cfg.DBDSN == "" {
			return Config{}, errors.New("APP_DB_DSN: required in prod")
		}
		if len(cfg.TokenSecret) < 32 {
			return Config{}, errors.New("APP_TOKEN_SECRET: must be at least 32 bytes in prod")
		}
	}

	return cfg, nil
}

func (c Config) IsProd() bool { return c.Env == "prod" }

// CallbackURL builds the provider redirect URI registered with each OAuth
// app. Providers reject mismatched redirect URIs, so this must agree with
// the app registration exactly.
func (c Config) CallbackURL(providerName string) string {
	base := "http://" + c.Addr
	if c.PublicURL != nil {
		base = strings.TrimRight(c.PublicURL.String(), "/")
	}
	return base + "/v1/auth/" + providerName + "/callback"
}
