package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"memberclubserver/internal/auth"
	"memberclubserver/internal/domain"
	"memberclubserver/internal/provider"
)

type FederatedAccountsStore interface {
	GetAccountByProvider(ctx context.Context, providerName, providerID string) (domain.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (domain.AccountWithSecrets, error)
	LinkProvider(ctx context.Context, accountID, providerName, providerID string) error
	CreateAccount(ctx context.Context, n domain.NewAccount) (domain.Account, error)
	SetLoginStats(ctx context.Context, accountID string, when time.Time, streak, total int) error
}

// FederatedService maps a completed external OAuth exchange onto a local
// account, creating or linking one as needed, and applies the same
// activation and second-factor gates as a password login.
type FederatedService struct {
	Accounts        FederatedAccountsStore
	Tokens          TokenIssuer
	ExchangeTimeout time.Duration
	Now             func() time.Time
}

type FederatedResult struct {
	Account              domain.Account
	Token                string
	PendingApproval      bool
	SecondFactorRequired bool
}

// HandleCallback exchanges the authorization code under a deadline, resolves
// the asserted identity, and gates the login. The deadline keeps a slow
// provider from hanging the request; its expiry surfaces as
// ErrProviderUnavailable out of the provider package.
func (s *FederatedService) HandleCallback(ctx context.Context, p provider.Provider, code string) (FederatedResult, error) {
	if s.Now == nil {
		s.Now = time.Now
	}

	timeout := s.ExchangeTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ident, err := p.Exchange(ctx, code)
	if err != nil {
		return FederatedResult{}, err
	}

	acct, err := s.Resolve(ctx, ident)
	if err != nil {
		return FederatedResult{}, err
	}

	if !acct.IsActive {
		return FederatedResult{Account: acct, PendingApproval: true}, nil
	}
	if acct.SecondFactorRequired() {
		return FederatedResult{Account: acct, SecondFactorRequired: true}, nil
	}

	token, err := finishLogin(ctx, s.Accounts, s.Tokens, s.Now(), acct)
	if err != nil {
		return FederatedResult{}, err
	}
	return FederatedResult{Account: acct, Token: token}, nil
}

// Resolve finds or creates the local account for an external identity.
// Ordered: provider id match, email match (link), create. Retried lookups
// absorb create/link races so two concurrent callbacks for the same person
// converge on one account.
func (s *FederatedService) Resolve(ctx context.Context, ident provider.Identity) (domain.Account, error) {
	acct, err := s.Accounts.GetAccountByProvider(ctx, ident.Provider, ident.Subject)
	if err == nil {
		return acct, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.Account{}, err
	}

	email := pickEmail(ident.Emails)
	if email == "" {
		return domain.Account{}, fmt.Errorf("%w: provider %s supplied no email address", domain.ErrEmailRequired, ident.Provider)
	}

	existing, err := s.Accounts.GetAccountByEmail(ctx, email)
	if err == nil {
		if linkErr := s.Accounts.LinkProvider(ctx, existing.ID, ident.Provider, ident.Subject); linkErr != nil {
			if errors.Is(linkErr, domain.ErrIdentityConflict) {
				// Lost a link race; the provider id is bound now.
				return s.Accounts.GetAccountByProvider(ctx, ident.Provider, ident.Subject)
			}
			return domain.Account{}, linkErr
		}
		return existing.Account, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.Account{}, err
	}

	return s.createAccount(ctx, ident, email)
}

func (s *FederatedService) createAccount(ctx context.Context, ident provider.Identity, email string) (domain.Account, error) {
	// The local password exists only to satisfy the schema; it is random,
	// never communicated, and unusable for a password login.
	password, err := auth.RandomPassword()
	if err != nil {
		return domain.Account{}, err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return domain.Account{}, err
	}

	n := domain.NewAccount{
		Username:     deriveUsername(ident),
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleMember,
		IsActive:     false,
	}
	switch ident.Provider {
	case domain.ProviderGoogle:
		n.GoogleID = ident.Subject
	case domain.ProviderGitHub:
		n.GitHubID = ident.Subject
	case domain.ProviderLinkedIn:
		n.LinkedInID = ident.Subject
	default:
		return domain.Account{}, fmt.Errorf("unknown provider %q", ident.Provider)
	}

	acct, err := s.Accounts.CreateAccount(ctx, n)
	if err == nil {
		return acct, nil
	}
	if errors.Is(err, domain.ErrIdentityConflict) {
		// A concurrent callback created the account first; its record wins.
		return s.Accounts.GetAccountByProvider(ctx, ident.Provider, ident.Subject)
	}
	if errors.Is(err, domain.ErrUsernameTaken) || errors.Is(err, domain.ErrEmailTaken) {
		return domain.Account{}, fmt.Errorf("%w: %v", domain.ErrIdentityConflict, err)
	}
	return domain.Account{}, err
}

func pickEmail(emails []string) string {
	for _, email := range emails {
		email = strings.TrimSpace(strings.ToLower(email))
		if email != "" {
			return email
		}
	}
	return ""
}

// deriveUsername prefers the provider's own handle, then a slug of the
// display name, then a provider-qualified fallback that cannot collide with
// a human-chosen name pattern.
func deriveUsername(ident provider.Identity) string {
	if u := sanitizeUsername(ident.Username); u != "" {
		return u
	}
	if u := sanitizeUsername(ident.DisplayName); u != "" {
		return u
	}
	return sanitizeUsername(ident.Provider + "_" + ident.Subject)
}

func sanitizeUsername(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '.':
			b.WriteByte('_')
		}
	}
	out := b.String()
	if len(out) > 24 {
		out = out[:24]
	}
	if len(out) < 3 {
		return ""
	}
	return out
}
