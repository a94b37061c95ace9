package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"github.com/joho/godotenv"

	"memberclubserver/internal/auth"
	"memberclubserver/internal/config"
	"memberclubserver/internal/domain"
	"memberclubserver/internal/httpapi"
	"memberclubserver/internal/provider"
	"memberclubserver/internal/service"
	"memberclubserver/internal/store/postgres"
)

func main() {
	_ = godotenv.Load(".env.local")

	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}

	logger := newLogger(cfg)

	pgPool, err := postgres.Open(context.Background(), cfg.DBDSN)
	if err != nil {
		logger.Error("db open failed", "err", err)
		os.Exit(1)
	}
	defer pgPool.Close()

	accounts := postgres.NewAccountsStore(pgPool)
	requests := postgres.NewPasswordChangeStore(pgPool)

	if err := bootstrapAdmin(context.Background(), logger, accounts, cfg); err != nil {
		logger.Error("bootstrap admin failed", "err", err)
		os.Exit(1)
	}

	tokens := auth.NewTokenIssuer([]byte(cfg.TokenSecret), cfg.TokenTTL)

	authSvc := &service.AuthService{Accounts: accounts, Tokens: tokens}
	twoFactorSvc := &service.TwoFactorService{
		Accounts: accounts,
		Tokens:   tokens,
		Issuer:   cfg.TOTPIssuer,
	}
	federatedSvc := &service.FederatedService{Accounts: accounts, Tokens: tokens}
	approvalSvc := &service.ApprovalService{Accounts: accounts, Requests: requests}

	var providers []provider.Provider
	if cfg.Google.Configured() {
		providers = append(providers, provider.NewGoogle(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.CallbackURL(domain.ProviderGoogle)))
	}
	if cfg.GitHub.Configured() {
		providers = append(providers, provider.NewGitHub(cfg.GitHub.ClientID, cfg.GitHub.ClientSecret, cfg.CallbackURL(domain.ProviderGitHub)))
	}
	if cfg.LinkedIn.Configured() {
		providers = append(providers, provider.NewLinkedIn(cfg.LinkedIn.ClientID, cfg.LinkedIn.ClientSecret, cfg.CallbackURL(domain.ProviderLinkedIn)))
	}
	for _, p := range providers {
		logger.Info("oauth provider enabled", "provider", p.Name())
	}

	router := httpapi.NewRouter(httpapi.RouterOpts{
		Logger:    logger,
		IsProd:    cfg.IsProd(),
		DBPing:    pgPool.Ping,
		Auth:      authSvc,
		TwoFactor: twoFactorSvc,
		Federated: federatedSvc,
		Approvals: approvalSvc,
		Providers: providers,
		WebURL:    cfg.WebURL,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "env", cfg.Env, "addr", cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "err", err)
			os.Exit(1)
		}
	}
}

// bootstrapAdmin seeds one active administrator so a fresh deployment has
// someone able to approve the first real registrations.
func bootstrapAdmin(ctx context.Context, logger *slog.Logger, accounts *postgres.AccountsStore, cfg config.Config) error {
	if cfg.AdminBootstrapPassword == "" {
		return nil
	}
	if len(cfg.AdminBootstrapPassword) < 12 {
		return errors.New("APP_ADMIN_BOOTSTRAP_PASSWORD: must be at least 12 characters")
	}

	_, err := accounts.GetAccountByEmail(ctx, cfg.AdminBootstrapEmail)
	if err == nil {
		logger.Info("admin bootstrap: account already exists", "email", cfg.AdminBootstrapEmail)
		return nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("admin bootstrap: lookup account: %w", err)
	}

	hash, err := auth.HashPassword(cfg.AdminBootstrapPassword)
	if err != nil {
		return fmt.Errorf("admin bootstrap: hash password: %w", err)
	}

	_, err = accounts.CreateAccount(ctx, domain.NewAccount{
		Username:     cfg.AdminBootstrapUsername,
		Email:        cfg.AdminBootstrapEmail,
		PasswordHash: hash,
		Role:         domain.RoleAdministrator,
		IsActive:     true,
	})
	if err != nil {
		if errors.Is(err, domain.ErrEmailTaken) || errors.Is(err, domain.ErrUsernameTaken) {
			logger.Info("admin bootstrap: account already exists", "email", cfg.AdminBootstrapEmail)
			return nil
		}
		return fmt.Errorf("admin bootstrap: create account: %w", err)
	}

	logger.Info("admin bootstrap: created administrator", "email", cfg.AdminBootstrapEmail)
	return nil
}

func newLogger(cfg config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.IsProd() {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
