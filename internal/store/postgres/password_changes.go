package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"memberclubserver/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PasswordChangeStore struct {
	pool *pgxpool.Pool
}

func NewPasswordChangeStore(pool *pgxpool.Pool) *PasswordChangeStore {
	return &PasswordChangeStore{pool: pool}
}

const requestColumns = `
	id, account_id, old_password_hash, new_password_hash, status,
	requested_at, reviewed_at, reviewed_by, review_note
`

// CreateRequest inserts a pending request. The partial unique index on
// (account_id) WHERE status = 'pending' rejects a second in-flight request,
// including concurrent submissions.
func (s *PasswordChangeStore) CreateRequest(ctx context.Context, accountID, oldHash, newHash string, at time.Time) (domain.PasswordChangeRequest, error) {
	const q = `
		INSERT INTO password_change_requests (account_id, old_password_hash, new_password_hash, requested_at)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + requestColumns

	req, err := scanRequest(s.pool.QueryRow(ctx, q, accountID, oldHash, newHash, at))
	if err != nil {
		var pgerr *pgconn.PgError
		if errors.As(err, &pgerr) && pgerr.Code == "23505" && pgerr.ConstraintName == "password_change_requests_pending_uq" {
			return domain.PasswordChangeRequest{}, domain.ErrDuplicateRequest
		}
		return domain.PasswordChangeRequest{}, fmt.Errorf("create password change request: %w", err)
	}
	return req, nil
}

func (s *PasswordChangeStore) GetRequest(ctx context.Context, id string) (domain.PasswordChangeRequest, error) {
	const q = `SELECT ` + requestColumns + ` FROM password_change_requests WHERE id = $1`

	req, err := scanRequest(s.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.PasswordChangeRequest{}, domain.ErrNotFound
		}
		return domain.PasswordChangeRequest{}, fmt.Errorf("get password change request: %w", err)
	}
	return req, nil
}

func (s *PasswordChangeStore) ListRequests(ctx context.Context, status domain.RequestStatus) ([]domain.PasswordChangeRequest, error) {
	q := `SELECT ` + requestColumns + ` FROM password_change_requests ORDER BY requested_at ASC`
	args := []any{}
	if status != "" {
		q = `SELECT ` + requestColumns + ` FROM password_change_requests WHERE status = $1 ORDER BY requested_at ASC`
		args = append(args, string(status))
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list password change requests: %w", err)
	}
	defer rows.Close()

	var out []domain.PasswordChangeRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("list password change requests: %w", err)
		}
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list password change requests: %w", err)
	}
	return out, nil
}

// DecideRequest moves a pending request to a terminal state. Approval copies
// the pre-hashed new password onto the account inside the same transaction.
// A request already decided reports ErrAlreadyProcessed without touching the
// account, making double-submitted decisions safe.
func (s *PasswordChangeStore) DecideRequest(ctx context.Context, requestID, reviewerID string, approve bool, note string, at time.Time) (domain.PasswordChangeRequest, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.PasswordChangeRequest{}, fmt.Errorf("decide request: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const lockQ = `SELECT ` + requestColumns + ` FROM password_change_requests WHERE id = $1 FOR UPDATE`
	req, err := scanRequest(tx.QueryRow(ctx, lockQ, requestID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.PasswordChangeRequest{}, domain.ErrNotFound
		}
		return domain.PasswordChangeRequest{}, fmt.Errorf("decide request: lock: %w", err)
	}
	if req.Status != domain.StatusPending {
		return domain.PasswordChangeRequest{}, domain.ErrAlreadyProcessed
	}

	status := domain.StatusRejected
	if approve {
		status = domain.StatusApproved
		const applyQ = `UPDATE accounts SET password_hash = $2, updated_at = now() WHERE id = $1`
		if _, err := tx.Exec(ctx, applyQ, req.AccountID, req.NewPasswordHash); err != nil {
			return domain.PasswordChangeRequest{}, fmt.Errorf("decide request: apply hash: %w", err)
		}
	}

	const stampQ = `
		UPDATE password_change_requests
		SET status = $2, reviewed_by = $3, reviewed_at = $4, review_note = $5
		WHERE id = $1
		RETURNING ` + requestColumns
	decided, err := scanRequest(tx.QueryRow(ctx, stampQ, requestID, string(status), reviewerID, at, nullIfEmpty(note)))
	if err != nil {
		return domain.PasswordChangeRequest{}, fmt.Errorf("decide request: stamp: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.PasswordChangeRequest{}, fmt.Errorf("decide request: commit: %w", err)
	}
	return decided, nil
}

func scanRequest(row pgx.Row) (domain.PasswordChangeRequest, error) {
	var (
		req        domain.PasswordChangeRequest
		idUUID     pgtype.UUID
		acctUUID   pgtype.UUID
		status     string
		reviewedTS pgtype.Timestamptz
		reviewedBy pgtype.UUID
		noteText   pgtype.Text
	)

	err := row.Scan(
		&idUUID,
		&acctUUID,
		&req.OldPasswordHash,
		&req.NewPasswordHash,
		&status,
		&req.RequestedAt,
		&reviewedTS,
		&reviewedBy,
		&noteText,
	)
	if err != nil {
		return domain.PasswordChangeRequest{}, err
	}

	req.ID = uuidOrEmpty(idUUID)
	req.AccountID = uuidOrEmpty(acctUUID)
	req.Status = domain.RequestStatus(status)
	req.ReviewedAt = timestamptzPtr(reviewedTS)
	req.ReviewedBy = uuidOrEmpty(reviewedBy)
	req.ReviewNote = textOrEmpty(noteText)
	return req, nil
}
