package service

import (
	"context"
	"errors"
	"time"

	"memberclubserver/internal/auth"
	"memberclubserver/internal/domain"
)

type ApprovalAccountsStore interface {
	GetAccountByID(ctx context.Context, id string) (domain.AccountWithSecrets, error)
	ListPendingAccounts(ctx context.Context) ([]domain.Account, error)
	ActivateAccount(ctx context.Context, accountID string) error
	DeleteAccount(ctx context.Context, accountID string) error
}

type PasswordChangeStore interface {
	CreateRequest(ctx context.Context, accountID, oldHash, newHash string, at time.Time) (domain.PasswordChangeRequest, error)
	GetRequest(ctx context.Context, id string) (domain.PasswordChangeRequest, error)
	ListRequests(ctx context.Context, status domain.RequestStatus) ([]domain.PasswordChangeRequest, error)
	DecideRequest(ctx context.Context, requestID, reviewerID string, approve bool, note string, at time.Time) (domain.PasswordChangeRequest, error)
}

// ApprovalService is the only writer allowed to move a request out of
// pending, and the only path (outside registration) that changes an
// account's password hash or activation flag.
type ApprovalService struct {
	Accounts ApprovalAccountsStore
	Requests PasswordChangeStore
	Now      func() time.Time
}

// SubmitPasswordChange queues a reviewable change. The owner must re-prove
// the current password, so a stolen session alone cannot stage a hostile
// change. The new password is hashed here; approval later is a pure
// metadata flip plus one field copy.
func (s *ApprovalService) SubmitPasswordChange(ctx context.Context, accountID, currentPassword, newPassword string) (domain.PasswordChangeRequest, error) {
	if s.Now == nil {
		s.Now = time.Now
	}

	if len(newPassword) < 6 {
		return domain.PasswordChangeRequest{}, domain.NewValidationError(map[string]string{
			"new_password": "must be at least 6 characters",
		})
	}

	acct, err := s.Accounts.GetAccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.PasswordChangeRequest{}, domain.ErrUnauthenticated
		}
		return domain.PasswordChangeRequest{}, err
	}

	ok, err := auth.VerifyPassword(acct.PasswordHash, currentPassword)
	if err != nil {
		return domain.PasswordChangeRequest{}, err
	}
	if !ok {
		return domain.PasswordChangeRequest{}, domain.ErrInvalidCredentials
	}

	newHash, err := auth.HashPassword(newPassword)
	if err != nil {
		return domain.PasswordChangeRequest{}, err
	}

	return s.Requests.CreateRequest(ctx, acct.ID, acct.PasswordHash, newHash, s.Now())
}

func (s *ApprovalService) ApprovePasswordChange(ctx context.Context, requestID string, reviewer domain.Account, note string) (domain.PasswordChangeRequest, error) {
	if err := s.requireReviewer(reviewer); err != nil {
		return domain.PasswordChangeRequest{}, err
	}
	if s.Now == nil {
		s.Now = time.Now
	}
	return s.Requests.DecideRequest(ctx, requestID, reviewer.ID, true, note, s.Now())
}

func (s *ApprovalService) RejectPasswordChange(ctx context.Context, requestID string, reviewer domain.Account, note string) (domain.PasswordChangeRequest, error) {
	if err := s.requireReviewer(reviewer); err != nil {
		return domain.PasswordChangeRequest{}, err
	}
	if s.Now == nil {
		s.Now = time.Now
	}
	return s.Requests.DecideRequest(ctx, requestID, reviewer.ID, false, note, s.Now())
}

func (s *ApprovalService) ListPasswordChanges(ctx context.Context, status domain.RequestStatus) ([]domain.PasswordChangeRequest, error) {
	return s.Requests.ListRequests(ctx, status)
}

func (s *ApprovalService) ListPendingAccounts(ctx context.Context) ([]domain.Account, error) {
	return s.Accounts.ListPendingAccounts(ctx)
}

// ApproveAccount activates a pending registration. Re-approving an already
// active account reports ErrAlreadyProcessed.
func (s *ApprovalService) ApproveAccount(ctx context.Context, accountID string, reviewer domain.Account) error {
	if err := s.requireReviewer(reviewer); err != nil {
		return err
	}
	return s.Accounts.ActivateAccount(ctx, accountID)
}

// RejectAccount deletes a never-activated registration outright; there is
// no useful rejected-but-retained state for an account that was never used.
func (s *ApprovalService) RejectAccount(ctx context.Context, accountID string, reviewer domain.Account) error {
	if err := s.requireReviewer(reviewer); err != nil {
		return err
	}

	acct, err := s.Accounts.GetAccountByID(ctx, accountID)
	if err != nil {
		return err
	}
	if acct.IsActive {
		return domain.ErrAlreadyProcessed
	}
	return s.Accounts.DeleteAccount(ctx, accountID)
}

func (s *ApprovalService) requireReviewer(reviewer domain.Account) error {
	if !reviewer.Role.CanReview() {
		return domain.ErrInsufficientRole
	}
	return nil
}
