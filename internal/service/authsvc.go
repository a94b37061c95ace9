package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"memberclubserver/internal/auth"
	"memberclubserver/internal/domain"
)

type AccountsStore interface {
	CreateAccount(ctx context.Context, n domain.NewAccount) (domain.Account, error)
	GetAccountByID(ctx context.Context, id string) (domain.AccountWithSecrets, error)
	GetAccountByEmail(ctx context.Context, email string) (domain.AccountWithSecrets, error)
	SetLoginStats(ctx context.Context, accountID string, when time.Time, streak, total int) error
}

type AuthService struct {
	Accounts AccountsStore
	Tokens   TokenIssuer
	Now      func() time.Time
}

type RegisterParams struct {
	Username          string
	Email             string
	Password          string
	SecurityQuestions []domain.SecurityQuestion
	Profile           map[string]any
}

// Register creates an inactive member account and issues a token anyway, so
// the client can poll its own pending state. The access gate keeps the
// token useless for protected actions until an admin approves the account.
func (s *AuthService) Register(ctx context.Context, p RegisterParams) (domain.Account, string, error) {
	if s.Now == nil {
		s.Now = time.Now
	}

	p.Username = strings.TrimSpace(p.Username)
	p.Email = strings.TrimSpace(strings.ToLower(p.Email))

	if err := validateRegistration(p); err != nil {
		return domain.Account{}, "", err
	}

	hash, err := auth.HashPassword(p.Password)
	if err != nil {
		return domain.Account{}, "", err
	}

	acct, err := s.Accounts.CreateAccount(ctx, domain.NewAccount{
		Username:          p.Username,
		Email:             p.Email,
		PasswordHash:      hash,
		Role:              domain.RoleMember,
		IsActive:          false,
		Profile:           p.Profile,
		SecurityQuestions: p.SecurityQuestions,
	})
	if err != nil {
		return domain.Account{}, "", err
	}

	token, err := s.Tokens.Issue(acct.ID)
	if err != nil {
		return domain.Account{}, "", err
	}
	return acct, token, nil
}

type LoginResult struct {
	Account              domain.Account
	Token                string
	SecondFactorRequired bool
}

// Login verifies password credentials. Unknown email and wrong password are
// deliberately indistinguishable. No token is issued while the account is
// pending approval or still owes a second factor.
func (s *AuthService) Login(ctx context.Context, email, password string) (LoginResult, error) {
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

	ok, err := auth.VerifyPassword(acct.PasswordHash, password)
	if err != nil {
		return LoginResult{}, err
	}
	if !ok {
		return LoginResult{}, domain.ErrInvalidCredentials
	}

	if !acct.IsActive {
		return LoginResult{}, domain.ErrPendingApproval
	}
	if acct.SecondFactorRequired() {
		return LoginResult{Account: acct.Account, SecondFactorRequired: true}, nil
	}

	token, err := finishLogin(ctx, s.Accounts, s.Tokens, s.Now(), acct.Account)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{Account: acct.Account, Token: token}, nil
}

// GetAccountForToken resolves a bearer token to a live account record.
// Authorization state is always read fresh from the store; the token proves
// identity only.
func (s *AuthService) GetAccountForToken(ctx context.Context, token string) (domain.Account, error) {
	accountID, err := s.Tokens.Verify(token)
	if err != nil {
		return domain.Account{}, domain.ErrUnauthenticated
	}

	acct, err := s.Accounts.GetAccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Account{}, domain.ErrUnauthenticated
		}
		return domain.Account{}, err
	}
	return acct.Account, nil
}

func validateRegistration(p RegisterParams) error {
	fields := map[string]string{}

	if p.Username == "" || !validUsername(p.Username) {
		fields["username"] = "must be 3-24 chars [A-Za-z0-9_]"
	}
	if p.Email == "" || !strings.Contains(p.Email, "@") {
		fields["email"] = "must be a valid email address"
	}
	if len(p.Password) < 6 {
		fields["password"] = "must be at least 6 characters"
	}
	if err := validateSecurityQuestions(p.SecurityQuestions); err != "" {
		fields["security_questions"] = err
	}

	if len(fields) > 0 {
		return domain.NewValidationError(fields)
	}
	return nil
}

func validateSecurityQuestions(questions []domain.SecurityQuestion) string {
	distinct := map[string]bool{}
	for _, q := range questions {
		question := strings.TrimSpace(q.Question)
		answer := strings.TrimSpace(q.Answer)
		if question == "" || answer == "" {
			return "every question needs both a question and an answer"
		}
		distinct[strings.ToLower(question)] = true
	}
	if len(distinct) < 2 {
		return "at least two distinct security questions are required"
	}
	return ""
}

func validUsername(s string) bool {
	if len(s) < 3 || len(s) > 24 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_':
		default:
			return false
		}
	}
	return true
}
