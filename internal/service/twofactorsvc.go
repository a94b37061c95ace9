package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"memberclubserver/internal/auth"
	"memberclubserver/internal/domain"
)

type TwoFactorAccountsStore interface {
	GetAccountByID(ctx context.Context, id string) (domain.AccountWithSecrets, error)
	GetAccountByEmail(ctx context.Context, email string) (domain.AccountWithSecrets, error)
	SetTwoFactorSecret(ctx context.Context, accountID, secret string) error
	EnableTwoFactor(ctx context.Context, accountID string, backupCodes []string) error
	DisableTwoFactor(ctx context.Context, accountID string) error
	SetTwoFactorBypass(ctx context.Context, accountID string, bypassed bool) error
	ReplaceBackupCodes(ctx context.Context, accountID string, codes []string) error
	ConsumeBackupCode(ctx context.Context, accountID, code string) (bool, error)
	SetLoginStats(ctx context.Context, accountID string, when time.Time, streak, total int) error
}

// TwoFactorService owns the TOTP secret lifecycle: enrollment, activation,
// login-time verification with single-use backup codes, and the reversible
// bypass for users caught between factors.
type TwoFactorService struct {
	Accounts TwoFactorAccountsStore
	Tokens   TokenIssuer
	Issuer   string
	Now      func() time.Time
}

type Enrollment struct {
	Secret string
	URI    string
}

// Enroll generates a secret without trusting it yet; twoFactorEnabled stays
// false until the user proves the authenticator works via VerifyEnroll.
func (s *TwoFactorService) Enroll(ctx context.Context, accountID string) (Enrollment, error) {
	acct, err := s.Accounts.GetAccountByID(ctx, accountID)
	if err != nil {
		return Enrollment{}, err
	}
	if acct.TwoFactorEnabled {
		return Enrollment{}, fmt.Errorf("%w: two-factor already enabled", domain.ErrConflict)
	}

	secret, err := auth.NewTOTPSecret()
	if err != nil {
		return Enrollment{}, err
	}
	if err := s.Accounts.SetTwoFactorSecret(ctx, accountID, secret); err != nil {
		return Enrollment{}, err
	}

	issuer := s.Issuer
	if issuer == "" {
		issuer = "MemberClub"
	}
	return Enrollment{
		Secret: secret,
		URI:    auth.TOTPProvisionURI(issuer, acct.Email, secret),
	}, nil
}

// VerifyEnroll activates 2FA after one correct code and returns the backup
// codes, which are shown exactly once and never retrievable again.
func (s *TwoFactorService) VerifyEnroll(ctx context.Context, accountID, code string) ([]string, error) {
	if s.Now == nil {
		s.Now = time.Now
	}

	acct, err := s.Accounts.GetAccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if acct.TwoFactorEnabled {
		return nil, fmt.Errorf("%w: two-factor already enabled", domain.ErrConflict)
	}
	if acct.TwoFactorSecret == "" {
		return nil, fmt.Errorf("%w: no enrollment in progress", domain.ErrConflict)
	}

	if !auth.VerifyTOTP(acct.TwoFactorSecret, code, s.Now()) {
		return nil, domain.ErrInvalidCode
	}

	codes, err := auth.NewBackupCodes()
	if err != nil {
		return nil, err
	}
	if err := s.Accounts.EnableTwoFactor(ctx, accountID, codes); err != nil {
		return nil, err
	}
	return codes, nil
}

// VerifyLogin completes the second step of a login. Backup codes are tried
// first and consumed atomically, so a code spent by a concurrent login
// cannot authenticate twice; TOTP is the fallback.
func (s *TwoFactorService) VerifyLogin(ctx context.Context, email, code string) (LoginResult, error) {
	if s.Now == nil {
		s.Now = time.Now
	}

	email = strings.TrimSpace(strings.ToLower(email))

	acct, err := s.Accounts.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return LoginResult{}, domain.ErrInvalidCredentials
		}
		return LoginResult{}, err
	}
	if !acct.IsActive {
		return LoginResult{}, domain.ErrPendingApproval
	}
	if !acct.TwoFactorEnabled {
		return LoginResult{}, domain.ErrInvalidCredentials
	}

	consumed, err := s.Accounts.ConsumeBackupCode(ctx, acct.ID, auth.NormalizeBackupCode(code))
	if err != nil {
		return LoginResult{}, err
	}
	if !consumed && !auth.VerifyTOTP(acct.TwoFactorSecret, code, s.Now()) {
		return LoginResult{}, domain.ErrInvalidCode
	}

	token, err := finishLogin(ctx, s.Accounts, s.Tokens, s.Now(), acct.Account)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{Account: acct.Account, Token: token}, nil
}

// Disable turns 2FA off entirely, discarding secret and backup codes. Proof
// of possession of the factor is required.
func (s *TwoFactorService) Disable(ctx context.Context, accountID, code string) error {
	acct, err := s.requireEnabled(ctx, accountID)
	if err != nil {
		return err
	}
	if !s.verifyCode(acct, code) {
		return domain.ErrInvalidCode
	}
	return s.Accounts.DisableTwoFactor(ctx, accountID)
}

// TemporarilyDisable flips the reversible bypass. The caller must present a
// valid code from the factor being bypassed; the flag, not the enrollment,
// is what changes.
func (s *TwoFactorService) TemporarilyDisable(ctx context.Context, accountID, code string) error {
	acct, err := s.requireEnabled(ctx, accountID)
	if err != nil {
		return err
	}
	if acct.TwoFactorTempDisabled {
		return fmt.Errorf("%w: two-factor already bypassed", domain.ErrConflict)
	}
	if !s.verifyCode(acct, code) {
		return domain.ErrInvalidCode
	}
	return s.Accounts.SetTwoFactorBypass(ctx, accountID, true)
}

// TemporarilyEnable lifts the bypass. No code is demanded: the bypass was
// authenticated when it was set.
func (s *TwoFactorService) TemporarilyEnable(ctx context.Context, accountID string) error {
	if _, err := s.requireEnabled(ctx, accountID); err != nil {
		return err
	}
	return s.Accounts.SetTwoFactorBypass(ctx, accountID, false)
}

// RegenerateBackupCodes replaces the whole set, invalidating any unspent
// codes. Requires a fresh valid TOTP code.
func (s *TwoFactorService) RegenerateBackupCodes(ctx context.Context, accountID, code string) ([]string, error) {
	acct, err := s.requireEnabled(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if !s.verifyCode(acct, code) {
		return nil, domain.ErrInvalidCode
	}

	codes, err := auth.NewBackupCodes()
	if err != nil {
		return nil, err
	}
	if err := s.Accounts.ReplaceBackupCodes(ctx, accountID, codes); err != nil {
		return nil, err
	}
	return codes, nil
}

func (s *TwoFactorService) requireEnabled(ctx context.Context, accountID string) (domain.AccountWithSecrets, error) {
	acct, err := s.Accounts.GetAccountByID(ctx, accountID)
	if err != nil {
		return domain.AccountWithSecrets{}, err
	}
	if !acct.TwoFactorEnabled {
		return domain.AccountWithSecrets{}, fmt.Errorf("%w: two-factor not enabled", domain.ErrConflict)
	}
	return acct, nil
}

func (s *TwoFactorService) verifyCode(acct domain.AccountWithSecrets, code string) bool {
	if s.Now == nil {
		s.Now = time.Now
	}
	return auth.VerifyTOTP(acct.TwoFactorSecret, code, s.Now())
}
