package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrPendingApproval    = errors.New("pending_approval")
	ErrInsufficientRole   = errors.New("insufficient_role")
	ErrNotFound           = errors.New("not_found")
	ErrUsernameTaken      = errors.New("username_taken")
	ErrEmailTaken         = errors.New("email_taken")

	ErrConflict         = errors.New("conflict")
	ErrInvalidCode      = errors.New("invalid_code")
	ErrDuplicateRequest = errors.New("duplicate_request")
	ErrAlreadyProcessed = errors.New("already_processed")

	ErrEmailRequired       = errors.New("email_required")
	ErrIdentityConflict    = errors.New("identity_conflict")
	ErrProviderUnavailable = errors.New("provider_unavailable")

	ErrValidation = errors.New("validation")
)

type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func NewValidationError(fields map[string]string) error {
	return &ValidationError{Fields: fields}
}
