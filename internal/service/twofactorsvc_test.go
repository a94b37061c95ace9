package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"memberclubserver/internal/auth"
	"memberclubserver/internal/domain"
)

func totpAccount(t *testing.T) (domain.AccountWithSecrets, string) {
	t.Helper()
	secret, err := auth.NewTOTPSecret()
	if err != nil {
		t.Fatalf("NewTOTPSecret: %v", err)
	}
	acct := domain.AccountWithSecrets{
		Account: domain.Account{
			ID:               "acct-1",
			Email:            "alice@club.example",
			IsActive:         true,
			TwoFactorEnabled: true,
		},
		TwoFactorSecret: secret,
	}
	return acct, secret
}

func currentCode(t *testing.T, secret string) string {
	t.Helper()
	code, err := auth.TOTPCode(secret, fixedNow())
	if err != nil {
		t.Fatalf("TOTPCode: %v", err)
	}
	return code
}

func TestEnrollIssuesSecret(t *testing.T) {
	var stored string
	accounts := &accountsStub{
		t: t,
		getAccountByID: func(string) (domain.AccountWithSecrets, error) {
			return domain.AccountWithSecrets{Account: domain.Account{ID: "acct-1", Email: "alice@club.example", IsActive: true}}, nil
		},
		setTwoFactorSecret: func(_, secret string) error {
			stored = secret
			return nil
		},
	}
	svc := &TwoFactorService{Accounts: accounts, Issuer: "MemberClub", Now: fixedNow}

	enrollment, err := svc.Enroll(context.Background(), "acct-1")
	if err != nil {
		t.Fatalf("Enroll: %v", err)
	}
	if enrollment.Secret == "" || enrollment.Secret != stored {
		t.Fatalf("secret: got %q stored %q", enrollment.Secret, stored)
	}
	if !strings.Contains(enrollment.URI, "otpauth://totp/") || !strings.Contains(enrollment.URI, "issuer=MemberClub") {
		t.Fatalf("uri: got %q", enrollment.URI)
	}
}

func TestEnrollConflictsWhenEnabled(t *testing.T) {
	acct, _ := totpAccount(t)
	accounts := &accountsStub{
		t:              t,
		getAccountByID: func(string) (domain.AccountWithSecrets, error) { return acct, nil },
	}
	svc := &TwoFactorService{Accounts: accounts, Now: fixedNow}

	if _, err := svc.Enroll(context.Background(), "acct-1"); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("got %v", err)
	}
}

func TestVerifyEnrollActivates(t *testing.T) {
	acct, secret := totpAccount(t)
	acct.TwoFactorEnabled = false

	var enabledCodes []string
	accounts := &accountsStub{
		t:              t,
		getAccountByID: func(string) (domain.AccountWithSecrets, error) { return acct, nil },
		enableTwoFactor: func(_ string, codes []string) error {
			enabledCodes = codes
			return nil
		},
	}
	svc := &TwoFactorService{Accounts: accounts, Now: fixedNow}

	codes, err := svc.VerifyEnroll(context.Background(), "acct-1", currentCode(t, secret))
	if err != nil {
		t.Fatalf("VerifyEnroll: %v", err)
	}
	if len(codes) != auth.BackupCodeCount {
		t.Fatalf("backup codes: got %d", len(codes))
	}
	if len(enabledCodes) != auth.BackupCodeCount {
		t.Fatalf("stored codes: got %d", len(enabledCodes))
	}
}

func TestVerifyEnrollWrongCode(t *testing.T) {
	acct, _ := totpAccount(t)
	acct.TwoFactorEnabled = false
	accounts := &accountsStub{
		t:              t,
		getAccountByID: func(string) (domain.AccountWithSecrets, error) { return acct, nil },
	}
	svc := &TwoFactorService{Accounts: accounts, Now: fixedNow}

	if _, err := svc.VerifyEnroll(context.Background(), "acct-1", "000000"); !errors.Is(err, domain.ErrInvalidCode) {
		t.Fatalf("got %v", err)
	}
}

func TestVerifyEnrollWithoutEnrollment(t *testing.T) {
	accounts := &accountsStub{
		t: t,
		getAccountByID: func(string) (domain.AccountWithSecrets, error) {
			return domain.AccountWithSecrets{Account: domain.Account{ID: "acct-1", IsActive: true}}, nil
		},
	}
	svc := &TwoFactorService{Accounts: accounts, Now: fixedNow}

	if _, err := svc.VerifyEnroll(context.Background(), "acct-1", "123456"); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("got %v", err)
	}
}

func TestVerifyLoginWithTOTP(t *testing.T) {
	acct, secret := totpAccount(t)
	accounts := &accountsStub{
		t:                 t,
		getAccountByEmail: func(string) (domain.AccountWithSecrets, error) { return acct, nil },
		consumeBackupCode: func(string, string) (bool, error) { return false, nil },
		setLoginStats:     func(string, time.Time, int, int) error { return nil },
	}
	svc := &TwoFactorService{Accounts: accounts, Tokens: staticTokens(t), Now: fixedNow}

	res, err := svc.VerifyLogin(context.Background(), acct.Email, currentCode(t, secret))
	if err != nil {
		t.Fatalf("VerifyLogin: %v", err)
	}
	if res.Token != "token-acct-1" {
		t.Fatalf("token: got %q", res.Token)
	}
}

func TestVerifyLoginWithBackupCode(t *testing.T) {
	acct, _ := totpAccount(t)
	var consumedCode string
	accounts := &accountsStub{
		t:                 t,
		getAccountByEmail: func(string) (domain.AccountWithSecrets, error) { return acct, nil },
		consumeBackupCode: func(_, code string) (bool, error) {
			consumedCode = code
			return true, nil
		},
		setLoginStats: func(string, time.Time, int, int) error { return nil },
	}
	svc := &TwoFactorService{Accounts: accounts, Tokens: staticTokens(t), Now: fixedNow}

	res, err := svc.VerifyLogin(context.Background(), acct.Email, " ab2cd3ef ")
	if err != nil {
		t.Fatalf("VerifyLogin: %v", err)
	}
	if consumedCode != "AB2CD3EF" {
		t.Fatalf("code not normalized: %q", consumedCode)
	}
	if res.Token == "" {
		t.Fatal("expected token")
	}
}

func TestVerifyLoginSpentBackupCode(t *testing.T) {
	acct, _ := totpAccount(t)
	accounts := &accountsStub{
		t:                 t,
		getAccountByEmail: func(string) (domain.AccountWithSecrets, error) { return acct, nil },
		consumeBackupCode: func(string, string) (bool, error) { return false, nil },
	}
	svc := &TwoFactorService{Accounts: accounts, Tokens: &tokensStub{t: t}, Now: fixedNow}

	// A code the store did not consume and that is not a valid TOTP code fails.
	if _, err := svc.VerifyLogin(context.Background(), acct.Email, "AB2CD3EF"); !errors.Is(err, domain.ErrInvalidCode) {
		t.Fatalf("got %v", err)
	}
}

func TestVerifyLoginGates(t *testing.T) {
	acct, _ := totpAccount(t)

	t.Run("unknown email", func(t *testing.T) {
		accounts := &accountsStub{
			t: t,
			getAccountByEmail: func(string) (domain.AccountWithSecrets, error) {
				return domain.AccountWithSecrets{}, domain.ErrNotFound
			},
		}
		svc := &TwoFactorService{Accounts: accounts, Tokens: &tokensStub{t: t}, Now: fixedNow}
		if _, err := svc.VerifyLogin(context.Background(), "nobody@club.example", "123456"); !errors.Is(err, domain.ErrInvalidCredentials) {
			t.Fatalf("got %v", err)
		}
	})

	t.Run("inactive", func(t *testing.T) {
		inactive := acct
		inactive.IsActive = false
		accounts := &accountsStub{
			t:                 t,
			getAccountByEmail: func(string) (domain.AccountWithSecrets, error) { return inactive, nil },
		}
		svc := &TwoFactorService{Accounts: accounts, Tokens: &tokensStub{t: t}, Now: fixedNow}
		if _, err := svc.VerifyLogin(context.Background(), acct.Email, "123456"); !errors.Is(err, domain.ErrPendingApproval) {
			t.Fatalf("got %v", err)
		}
	})

	t.Run("2fa not enabled", func(t *testing.T) {
		plain := acct
		plain.TwoFactorEnabled = false
		accounts := &accountsStub{
			t:                 t,
			getAccountByEmail: func(string) (domain.AccountWithSecrets, error) { return plain, nil },
		}
		svc := &TwoFactorService{Accounts: accounts, Tokens: &tokensStub{t: t}, Now: fixedNow}
		if _, err := svc.VerifyLogin(context.Background(), acct.Email, "123456"); !errors.Is(err, domain.ErrInvalidCredentials) {
			t.Fatalf("got %v", err)
		}
	})
}

func TestDisableRequiresValidCode(t *testing.T) {
	acct, secret := totpAccount(t)
	disabled := false
	accounts := &accountsStub{
		t:                t,
		getAccountByID:   func(string) (domain.AccountWithSecrets, error) { return acct, nil },
		disableTwoFactor: func(string) error { disabled = true; return nil },
	}
	svc := &TwoFactorService{Accounts: accounts, Now: fixedNow}

	if err := svc.Disable(context.Background(), "acct-1", "000000"); !errors.Is(err, domain.ErrInvalidCode) {
		t.Fatalf("wrong code: got %v", err)
	}
	if disabled {
		t.Fatal("disabled despite wrong code")
	}

	if err := svc.Disable(context.Background(), "acct-1", currentCode(t, secret)); err != nil {
		t.Fatalf("Disable: %v", err)
	}
	if !disabled {
		t.Fatal("expected DisableTwoFactor call")
	}
}

func TestTemporaryBypass(t *testing.T) {
	acct, secret := totpAccount(t)

	var setTo *bool
	accounts := &accountsStub{
		t:              t,
		getAccountByID: func(string) (domain.AccountWithSecrets, error) { return acct, nil },
		setTwoFactorBypass: func(_ string, bypassed bool) error {
			setTo = &bypassed
			return nil
		},
	}
	svc := &TwoFactorService{Accounts: accounts, Now: fixedNow}

	// Setting the bypass demands a fresh valid code.
	if err := svc.TemporarilyDisable(context.Background(), "acct-1", "000000"); !errors.Is(err, domain.ErrInvalidCode) {
		t.Fatalf("wrong code: got %v", err)
	}
	if err := svc.TemporarilyDisable(context.Background(), "acct-1", currentCode(t, secret)); err != nil {
		t.Fatalf("TemporarilyDisable: %v", err)
	}
	if setTo == nil || !*setTo {
		t.Fatal("expected bypass set true")
	}

	// Lifting it does not.
	setTo = nil
	if err := svc.TemporarilyEnable(context.Background(), "acct-1"); err != nil {
		t.Fatalf("TemporarilyEnable: %v", err)
	}
	if setTo == nil || *setTo {
		t.Fatal("expected bypass set false")
	}
}

func TestTemporaryDisableAlreadyBypassed(t *testing.T) {
	acct, secret := totpAccount(t)
	acct.TwoFactorTempDisabled = true
	accounts := &accountsStub{
		t:              t,
		getAccountByID: func(string) (domain.AccountWithSecrets, error) { return acct, nil },
	}
	svc := &TwoFactorService{Accounts: accounts, Now: fixedNow}

	if err := svc.TemporarilyDisable(context.Background(), "acct-1", currentCode(t, secret)); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("got %v", err)
	}
}

func TestRegenerateBackupCodes(t *testing.T) {
	acct, secret := totpAccount(t)
	var replaced []string
	accounts := &accountsStub{
		t:              t,
		getAccountByID: func(string) (domain.AccountWithSecrets, error) { return acct, nil },
		replaceBackupCodes: func(_ string, codes []string) error {
			replaced = codes
			return nil
		},
	}
	svc := &TwoFactorService{Accounts: accounts, Now: fixedNow}

	if _, err := svc.RegenerateBackupCodes(context.Background(), "acct-1", "000000"); !errors.Is(err, domain.ErrInvalidCode) {
		t.Fatalf("wrong code: got %v", err)
	}

	codes, err := svc.RegenerateBackupCodes(context.Background(), "acct-1", currentCode(t, secret))
	if err != nil {
		t.Fatalf("RegenerateBackupCodes: %v", err)
	}
	if len(codes) != auth.BackupCodeCount || len(replaced) != auth.BackupCodeCount {
		t.Fatalf("got %d returned, %d stored", len(codes), len(replaced))
	}
}

func TestTwoFactorOpsRequireEnrollment(t *testing.T) {
	accounts := &accountsStub{
		t: t,
		getAccountByID: func(string) (domain.AccountWithSecrets, error) {
			return domain.AccountWithSecrets{Account: domain.Account{ID: "acct-1", IsActive: true}}, nil
		},
	}
	svc := &TwoFactorService{Accounts: accounts, Now: fixedNow}

	if err := svc.Disable(context.Background(), "acct-1", "123456"); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("Disable: got %v", err)
	}
	if err := svc.TemporarilyEnable(context.Background(), "acct-1"); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("TemporarilyEnable: got %v", err)
	}
	if _, err := svc.RegenerateBackupCodes(context.Background(), "acct-1", "123456"); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("RegenerateBackupCodes: got %v", err)
	}
}
