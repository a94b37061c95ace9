package httpapi

import (
	"net/http"
	"time"

	"memberclubserver/internal/domain"
)

// accountResponse is the only account shape that leaves the API. Hashes,
// TOTP secrets, backup codes and security questions are not representable
// here, so they cannot leak by accident.
type accountResponse struct {
	ID               string         `json:"id"`
	Username         string         `json:"username"`
	Email            string         `json:"email"`
	Role             string         `json:"role"`
	IsActive         bool           `json:"is_active"`
	TwoFactorEnabled bool           `json:"two_factor_enabled"`
	Profile          map[string]any `json:"profile,omitempty"`
	LastLoginAt      *time.Time     `json:"last_login_at,omitempty"`
	LoginStreak      int            `json:"login_streak"`
	TotalLogins      int            `json:"total_logins"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

func accountSnapshot(a domain.Account) accountResponse {
	return accountResponse{
		ID:               a.ID,
		Username:         a.Username,
		Email:            a.Email,
		Role:             string(a.Role),
		IsActive:         a.IsActive,
		TwoFactorEnabled: a.TwoFactorEnabled,
		Profile:          a.Profile,
		LastLoginAt:      a.LastLoginAt,
		LoginStreak:      a.LoginStreak,
		TotalLogins:      a.TotalLogins,
		CreatedAt:        a.CreatedAt,
		UpdatedAt:        a.UpdatedAt,
	}
}

type requestResponse struct {
	ID          string     `json:"id"`
	AccountID   string     `json:"account_id"`
	Status      string     `json:"status"`
	RequestedAt time.Time  `json:"requested_at"`
	ReviewedAt  *time.Time `json:"reviewed_at,omitempty"`
	ReviewedBy  string     `json:"reviewed_by,omitempty"`
	ReviewNote  string     `json:"review_note,omitempty"`
}

func requestSnapshot(r domain.PasswordChangeRequest) requestResponse {
	return requestResponse{
		ID:          r.ID,
		AccountID:   r.AccountID,
		Status:      string(r.Status),
		RequestedAt: r.RequestedAt,
		ReviewedAt:  r.ReviewedAt,
		ReviewedBy:  r.ReviewedBy,
		ReviewNote:  r.ReviewNote,
	}
}

// handleUsersMe is reachable with a pending account on purpose: it is how a
// freshly registered client observes its own approval state.
func (a *api) handleUsersMe(w http.ResponseWriter, r *http.Request) {
	acct, ok := CurrentAccount(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthenticated)
		return
	}
	WriteJSON(w, http.StatusOK, accountSnapshot(acct))
}
