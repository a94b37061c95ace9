package service

import (
	"context"
	"testing"
	"time"

	"memberclubserver/internal/domain"
)

// accountsStub satisfies every account-store interface in this package.
// A call without a corresponding closure fails the test.
type accountsStub struct {
	t *testing.T

	createAccount        func(domain.NewAccount) (domain.Account, error)
	getAccountByID       func(string) (domain.AccountWithSecrets, error)
	getAccountByEmail    func(string) (domain.AccountWithSecrets, error)
	getAccountByProvider func(string, string) (domain.Account, error)
	linkProvider         func(string, string, string) error
	setLoginStats        func(string, time.Time, int, int) error
	setTwoFactorSecret   func(string, string) error
	enableTwoFactor      func(string, []string) error
	disableTwoFactor     func(string) error
	setTwoFactorBypass   func(string, bool) error
	replaceBackupCodes   func(string, []string) error
	consumeBackupCode    func(string, string) (bool, error)
	activateAccount      func(string) error
	deleteAccount        func(string) error
	listPendingAccounts  func() ([]domain.Account, error)
}

func (s *accountsStub) CreateAccount(_ context.Context, n domain.NewAccount) (domain.Account, error) {
	if s.createAccount == nil {
		s.t.Fatal("unexpected CreateAccount")
	}
	return s.createAccount(n)
}

func (s *accountsStub) GetAccountByID(_ context.Context, id string) (domain.AccountWithSecrets, error) {
	if s.getAccountByID == nil {
		s.t.Fatal("unexpected GetAccountByID")
	}
	return s.getAccountByID(id)
}

func (s *accountsStub) GetAccountByEmail(_ context.Context, email string) (domain.AccountWithSecrets, error) {
	if s.getAccountByEmail == nil {
		s.t.Fatal("unexpected GetAccountByEmail")
	}
	return s.getAccountByEmail(email)
}

func (s *accountsStub) GetAccountByProvider(_ context.Context, provider, providerID string) (domain.Account, error) {
	if s.getAccountByProvider == nil {
		s.t.Fatal("unexpected GetAccountByProvider")
	}
	return s.getAccountByProvider(provider, providerID)
}

func (s *accountsStub) LinkProvider(_ context.Context, accountID, provider, providerID string) error {
	if s.linkProvider == nil {
		s.t.Fatal("unexpected LinkProvider")
	}
	return s.linkProvider(accountID, provider, providerID)
}

func (s *accountsStub) SetLoginStats(_ context.Context, accountID string, when time.Time, streak, total int) error {
	if s.setLoginStats == nil {
		s.t.Fatal("unexpected SetLoginStats")
	}
	return s.setLoginStats(accountID, when, streak, total)
}

func (s *accountsStub) SetTwoFactorSecret(_ context.Context, accountID, secret string) error {
	if s.setTwoFactorSecret == nil {
		s.t.Fatal("unexpected SetTwoFactorSecret")
	}
	return s.setTwoFactorSecret(accountID, secret)
}

func (s *accountsStub) EnableTwoFactor(_ context.Context, accountID string, backupCodes []string) error {
	if s.enableTwoFactor == nil {
		s.t.Fatal("unexpected EnableTwoFactor")
	}
	return s.enableTwoFactor(accountID, backupCodes)
}

func (s *accountsStub) DisableTwoFactor(_ context.Context, accountID string) error {
	if s.disableTwoFactor == nil {
		s.t.Fatal("unexpected DisableTwoFactor")
	}
	return s.disableTwoFactor(accountID)
}

func (s *accountsStub) SetTwoFactorBypass(_ context.Context, accountID string, bypassed bool) error {
	if s.setTwoFactorBypass == nil {
		s.t.Fatal("unexpected SetTwoFactorBypass")
	}
	return s.setTwoFactorBypass(accountID, bypassed)
}

func (s *accountsStub) ReplaceBackupCodes(_ context.Context, accountID string, codes []string) error {
	if s.replaceBackupCodes == nil {
		s.t.Fatal("unexpected ReplaceBackupCodes")
	}
	return s.replaceBackupCodes(accountID, codes)
}

func (s *accountsStub) ConsumeBackupCode(_ context.Context, accountID, code string) (bool, error) {
	if s.consumeBackupCode == nil {
		s.t.Fatal("unexpected ConsumeBackupCode")
	}
	return s.consumeBackupCode(accountID, code)
}

func (s *accountsStub) ActivateAccount(_ context.Context, accountID string) error {
	if s.activateAccount == nil {
		s.t.Fatal("unexpected ActivateAccount")
	}
	return s.activateAccount(accountID)
}

func (s *accountsStub) DeleteAccount(_ context.Context, accountID string) error {
	if s.deleteAccount == nil {
		s.t.Fatal("unexpected DeleteAccount")
	}
	return s.deleteAccount(accountID)
}

func (s *accountsStub) ListPendingAccounts(context.Context) ([]domain.Account, error) {
	if s.listPendingAccounts == nil {
		s.t.Fatal("unexpected ListPendingAccounts")
	}
	return s.listPendingAccounts()
}

type tokensStub struct {
	t      *testing.T
	issue  func(string) (string, error)
	verify func(string) (string, error)
}

func (s *tokensStub) Issue(accountID string) (string, error) {
	if s.issue == nil {
		s.t.Fatal("unexpected Issue")
	}
	return s.issue(accountID)
}

func (s *tokensStub) Verify(token string) (string, error) {
	if s.verify == nil {
		s.t.Fatal("unexpected Verify")
	}
	return s.verify(token)
}

type requestsStub struct {
	t *testing.T

	createRequest func(string, string, string, time.Time) (domain.PasswordChangeRequest, error)
	getRequest    func(string) (domain.PasswordChangeRequest, error)
	listRequests  func(domain.RequestStatus) ([]domain.PasswordChangeRequest, error)
	decideRequest func(string, string, bool, string, time.Time) (domain.PasswordChangeRequest, error)
}

func (s *requestsStub) CreateRequest(_ context.Context, accountID, oldHash, newHash string, at time.Time) (domain.PasswordChangeRequest, error) {
	if s.createRequest == nil {
		s.t.Fatal("unexpected CreateRequest")
	}
	return s.createRequest(accountID, oldHash, newHash, at)
}

func (s *requestsStub) GetRequest(_ context.Context, id string) (domain.PasswordChangeRequest, error) {
	if s.getRequest == nil {
		s.t.Fatal("unexpected GetRequest")
	}
	return s.getRequest(id)
}

func (s *requestsStub) ListRequests(_ context.Context, status domain.RequestStatus) ([]domain.PasswordChangeRequest, error) {
	if s.listRequests == nil {
		s.t.Fatal("unexpected ListRequests")
	}
	return s.listRequests(status)
}

func (s *requestsStub) DecideRequest(_ context.Context, requestID, reviewerID string, approve bool, note string, at time.Time) (domain.PasswordChangeRequest, error) {
	if s.decideRequest == nil {
		s.t.Fatal("unexpected DecideRequest")
	}
	return s.decideRequest(requestID, reviewerID, approve, note, at)
}

func fixedNow() time.Time {
	return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

func staticTokens(t *testing.T) *tokensStub {
	return &tokensStub{
		t:     t,
		issue: func(accountID string) (string, error) { return "token-" + accountID, nil },
	}
}
