package domain

import "time"

type Role string

const (
	RoleMember        Role = "member"
	RoleModerator     Role = "moderator"
	RoleAdministrator Role = "administrator"
)

// CanReview reports whether the role may decide approval requests.
func (r Role) CanReview() bool {
	return r == RoleAdministrator || r == RoleModerator
}

const (
	ProviderGoogle   = "google"
	ProviderGitHub   = "github"
	ProviderLinkedIn = "linkedin"
)

type Account struct {
	ID       string
	Username string
	Email    string
	Role     Role
	IsActive bool

	GoogleID   string
	GitHubID   string
	LinkedInID string

	// Profile is carried opaquely; the identity core never inspects it.
	Profile map[string]any

	TwoFactorEnabled      bool
	TwoFactorTempDisabled bool

	LastLoginAt *time.Time
	LoginStreak int
	TotalLogins int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// SecondFactorRequired reports whether a login for this account must pass
// TOTP or backup-code verification before a token may be issued.
func (a Account) SecondFactorRequired() bool {
	return a.TwoFactorEnabled && !a.TwoFactorTempDisabled
}

// AccountWithSecrets carries the security-sensitive columns. It never leaves
// the service layer; API responses are built from the embedded Account only.
type AccountWithSecrets struct {
	Account
	PasswordHash         string
	TwoFactorSecret      string
	TwoFactorBackupCodes []string
	SecurityQuestions    []SecurityQuestion
}

type SecurityQuestion struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type NewAccount struct {
	Username     string
	Email        string
	PasswordHash string
	Role         Role
	IsActive     bool

	GoogleID   string
	GitHubID   string
	LinkedInID string

	Profile           map[string]any
	SecurityQuestions []SecurityQuestion
}

type RequestStatus string

const (
	StatusPending  RequestStatus = "pending"
	StatusApproved RequestStatus = "approved"
	StatusRejected RequestStatus = "rejected"
)

// PasswordChangeRequest is a deferred, admin-reviewed mutation of an
// account's password hash. The new password is hashed at submission time;
// approval copies the hash and never touches plaintext.
type PasswordChangeRequest struct {
	ID              string
	AccountID       string
	OldPasswordHash string
	NewPasswordHash string
	Status          RequestStatus
	RequestedAt     time.Time
	ReviewedAt      *time.Time
	ReviewedBy      string
	ReviewNote      string
}
