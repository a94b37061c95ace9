package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"memberclubserver/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AccountsStore struct {
	pool *pgxpool.Pool
}

func NewAccountsStore(pool *pgxpool.Pool) *AccountsStore {
	return &AccountsStore{pool: pool}
}

const accountColumns = `
	id, username, email, password_hash, role, is_active,
	google_id, github_id, linkedin_id, profile, security_questions,
	two_factor_enabled, two_factor_secret, two_factor_backup_codes,
	two_factor_temp_disabled, last_login_at, login_streak, total_logins,
	created_at, updated_at
`

func (s *AccountsStore) CreateAccount(ctx context.Context, n domain.NewAccount) (domain.Account, error) {
	const q = `
		INSERT INTO accounts (
			username, email, password_hash, role, is_active,
			google_id, github_id, linkedin_id, profile, security_questions
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::jsonb, $10::jsonb)
		RETURNING ` + accountColumns

	profileJSON, err := marshalJSONField(n.Profile)
	if err != nil {
		return domain.Account{}, fmt.Errorf("encode profile: %w", err)
	}
	questionsJSON, err := marshalJSONField(n.SecurityQuestions)
	if err != nil {
		return domain.Account{}, fmt.Errorf("encode security questions: %w", err)
	}

	row := s.pool.QueryRow(ctx, q,
		n.Username,
		n.Email,
		n.PasswordHash,
		string(n.Role),
		n.IsActive,
		nullIfEmpty(n.GoogleID),
		nullIfEmpty(n.GitHubID),
		nullIfEmpty(n.LinkedInID),
		profileJSON,
		questionsJSON,
	)

	acct, err := scanAccount(row)
	if err != nil {
		return domain.Account{}, mapAccountWriteError(err)
	}
	return acct.Account, nil
}

func (s *AccountsStore) GetAccountByID(ctx context.Context, id string) (domain.AccountWithSecrets, error) {
	const q = `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return s.getAccount(ctx, q, id)
}

func (s *AccountsStore) GetAccountByEmail(ctx context.Context, email string) (domain.AccountWithSecrets, error) {
	const q = `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1`
	return s.getAccount(ctx, q, email)
}

func (s *AccountsStore) GetAccountByProvider(ctx context.Context, provider, providerID string) (domain.Account, error) {
	col, err := providerColumn(provider)
	if err != nil {
		return domain.Account{}, err
	}

	q := `SELECT ` + accountColumns + ` FROM accounts WHERE ` + col + ` = $1`
	acct, err := s.getAccount(ctx, q, providerID)
	if err != nil {
		return domain.Account{}, err
	}
	return acct.Account, nil
}

// LinkProvider sets the provider id on an existing account. The column's
// unique index keeps one external identity bound to at most one account.
func (s *AccountsStore) LinkProvider(ctx context.Context, accountID, provider, providerID string) error {
	col, err := providerColumn(provider)
	if err != nil {
		return err
	}

	q := `UPDATE accounts SET ` + col + ` = $2, updated_at = now() WHERE id = $1`
	tag, err := s.pool.Exec(ctx, q, accountID, providerID)
	if err != nil {
		return mapAccountWriteError(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *AccountsStore) SetLoginStats(ctx context.Context, accountID string, when time.Time, streak, total int) error {
	const q = `
		UPDATE accounts
		SET last_login_at = $2, login_streak = $3, total_logins = $4, updated_at = now()
		WHERE id = $1
	`
	if _, err := s.pool.Exec(ctx, q, accountID, when, streak, total); err != nil {
		return fmt.Errorf("set login stats: %w", err)
	}
	return nil
}

func (s *AccountsStore) SetTwoFactorSecret(ctx context.Context, accountID, secret string) error {
	const q = `
		UPDATE accounts
		SET two_factor_secret = $2, updated_at = now()
		WHERE id = $1
	`
	tag, err := s.pool.Exec(ctx, q, accountID, secret)
	if err != nil {
		return fmt.Errorf("set two-factor secret: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *AccountsStore) EnableTwoFactor(ctx context.Context, accountID string, backupCodes []string) error {
	const q = `
		UPDATE accounts
		SET two_factor_enabled = TRUE,
		    two_factor_temp_disabled = FALSE,
		    two_factor_backup_codes = $2,
		    updated_at = now()
		WHERE id = $1
	`
	tag, err := s.pool.Exec(ctx, q, accountID, backupCodes)
	if err != nil {
		return fmt.Errorf("enable two-factor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *AccountsStore) DisableTwoFactor(ctx context.Context, accountID string) error {
	const q = `
		UPDATE accounts
		SET two_factor_enabled = FALSE,
		    two_factor_temp_disabled = FALSE,
		    two_factor_secret = NULL,
		    two_factor_backup_codes = '{}',
		    updated_at = now()
		WHERE id = $1
	`
	tag, err := s.pool.Exec(ctx, q, accountID)
	if err != nil {
		return fmt.Errorf("disable two-factor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *AccountsStore) SetTwoFactorBypass(ctx context.Context, accountID string, bypassed bool) error {
	const q = `
		UPDATE accounts
		SET two_factor_temp_disabled = $2, updated_at = now()
		WHERE id = $1
	`
	tag, err := s.pool.Exec(ctx, q, accountID, bypassed)
	if err != nil {
		return fmt.Errorf("set two-factor bypass: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *AccountsStore) ReplaceBackupCodes(ctx context.Context, accountID string, codes []string) error {
	const q = `
		UPDATE accounts
		SET two_factor_backup_codes = $2, updated_at = now()
		WHERE id = $1
	`
	tag, err := s.pool.Exec(ctx, q, accountID, codes)
	if err != nil {
		return fmt.Errorf("replace backup codes: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ConsumeBackupCode atomically tests membership and removes the code. The
// row lock serializes concurrent logins presenting the same code; the loser
// sees zero rows affected.
func (s *AccountsStore) ConsumeBackupCode(ctx context.Context, accountID, code string) (bool, error) {
	const q = `
		UPDATE accounts
		SET two_factor_backup_codes = array_remove(two_factor_backup_codes, $2),
		    updated_at = now()
		WHERE id = $1 AND $2 = ANY(two_factor_backup_codes)
	`
	tag, err := s.pool.Exec(ctx, q, accountID, code)
	if err != nil {
		return false, fmt.Errorf("consume backup code: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ActivateAccount flips is_active false -> true. Re-approving an already
// active account reports ErrAlreadyProcessed rather than silently passing.
func (s *AccountsStore) ActivateAccount(ctx context.Context, accountID string) error {
	const q = `
		UPDATE accounts
		SET is_active = TRUE, updated_at = now()
		WHERE id = $1 AND is_active = FALSE
	`
	tag, err := s.pool.Exec(ctx, q, accountID)
	if err != nil {
		return fmt.Errorf("activate account: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, accountID).Scan(&exists); err != nil {
		return fmt.Errorf("activate account: %w", err)
	}
	if exists {
		return domain.ErrAlreadyProcessed
	}
	return domain.ErrNotFound
}

func (s *AccountsStore) DeleteAccount(ctx context.Context, accountID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, accountID)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *AccountsStore) ListPendingAccounts(ctx context.Context) ([]domain.Account, error) {
	const q = `SELECT ` + accountColumns + ` FROM accounts WHERE is_active = FALSE ORDER BY created_at ASC`

	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list pending accounts: %w", err)
	}
	defer rows.Close()

	var out []domain.Account
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("list pending accounts: %w", err)
		}
		out = append(out, acct.Account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list pending accounts: %w", err)
	}
	return out, nil
}

func (s *AccountsStore) getAccount(ctx context.Context, q string, arg any) (domain.AccountWithSecrets, error) {
	acct, err := scanAccount(s.pool.QueryRow(ctx, q, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.AccountWithSecrets{}, domain.ErrNotFound
		}
		return domain.AccountWithSecrets{}, fmt.Errorf("get account: %w", err)
	}
	return acct, nil
}

func scanAccount(row pgx.Row) (domain.AccountWithSecrets, error) {
	var (
		a             domain.AccountWithSecrets
		idUUID        pgtype.UUID
		emailText     pgtype.Text
		role          string
		googleText    pgtype.Text
		githubText    pgtype.Text
		linkedinText  pgtype.Text
		profileJSON   []byte
		questionsJSON []byte
		secretText    pgtype.Text
		backupCodes   pgtype.FlatArray[string]
		lastLoginTS   pgtype.Timestamptz
	)

	err := row.Scan(
		&idUUID,
		&a.Username,
		&emailText,
		&a.PasswordHash,
		&role,
		&a.IsActive,
		&googleText,
		&githubText,
		&linkedinText,
		&profileJSON,
		&questionsJSON,
		&a.TwoFactorEnabled,
		&secretText,
		&backupCodes,
		&a.TwoFactorTempDisabled,
		&lastLoginTS,
		&a.LoginStreak,
		&a.TotalLogins,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return domain.AccountWithSecrets{}, err
	}

	a.ID = uuidOrEmpty(idUUID)
	a.Email = textOrEmpty(emailText)
	a.Role = domain.Role(role)
	a.GoogleID = textOrEmpty(googleText)
	a.GitHubID = textOrEmpty(githubText)
	a.LinkedInID = textOrEmpty(linkedinText)
	a.TwoFactorSecret = textOrEmpty(secretText)
	a.TwoFactorBackupCodes = textArrayOrEmpty(backupCodes)
	a.LastLoginAt = timestamptzPtr(lastLoginTS)

	if len(profileJSON) > 0 {
		if err := json.Unmarshal(profileJSON, &a.Profile); err != nil {
			return domain.AccountWithSecrets{}, fmt.Errorf("decode profile: %w", err)
		}
	}
	if len(questionsJSON) > 0 {
		if err := json.Unmarshal(questionsJSON, &a.SecurityQuestions); err != nil {
			return domain.AccountWithSecrets{}, fmt.Errorf("decode security questions: %w", err)
		}
	}

	return a, nil
}

func providerColumn(provider string) (string, error) {
	switch provider {
	case domain.ProviderGoogle:
		return "google_id", nil
	case domain.ProviderGitHub:
		return "github_id", nil
	case domain.ProviderLinkedIn:
		return "linkedin_id", nil
	default:
		return "", fmt.Errorf("unknown provider %q", provider)
	}
}

func marshalJSONField(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func mapAccountWriteError(err error) error {
	var pgerr *pgconn.PgError
	if errors.As(err, &pgerr) && pgerr.Code == "23505" {
		switch pgerr.ConstraintName {
		case "accounts_username_uq":
			return domain.ErrUsernameTaken
		case "accounts_email_uq":
			return domain.ErrEmailTaken
		case "accounts_google_id_uq", "accounts_github_id_uq", "accounts_linkedin_id_uq":
			return domain.ErrIdentityConflict
		default:
			return fmt.Errorf("unique violation (%s): %w", pgerr.ConstraintName, err)
		}
	}
	return fmt.Errorf("write account: %w", err)
}
