package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"memberclubserver/internal/domain"
)

type errorEnvelope struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, errorEnvelope{Error: apiError{Code: code, Message: message}})
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteDomainError(w http.ResponseWriter, err error) {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		WriteJSON(w, http.StatusBadRequest, errorEnvelope{Error: apiError{
			Code:    "validation_error",
			Message: "invalid request",
			Fields:  verr.Fields,
		}})
		return
	}

	switch {
	case errors.Is(err, domain.ErrValidation):
		WriteError(w, http.StatusBadRequest, "validation_error", "invalid request")
	case errors.Is(err, domain.ErrEmailRequired):
		WriteError(w, http.StatusBadRequest, "email_required", "the identity provider supplied no email address")
	case errors.Is(err, domain.ErrUnauthenticated):
		WriteError(w, http.StatusUnauthorized, "unauthenticated", "authentication required")
	case errors.Is(err, domain.ErrInvalidCredentials):
		WriteError(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password")
	case errors.Is(err, domain.ErrInvalidCode):
		WriteError(w, http.StatusUnauthorized, "invalid_code", "invalid verification code")
	case errors.Is(err, domain.ErrPendingApproval):
		WriteError(w, http.StatusForbidden, "pending_approval", "account is awaiting approval")
	case errors.Is(err, domain.ErrInsufficientRole):
		WriteError(w, http.StatusForbidden, "insufficient_role", "insufficient role")
	case errors.Is(err, domain.ErrNotFound):
		WriteError(w, http.StatusNotFound, "not_found", "not found")
	case errors.Is(err, domain.ErrUsernameTaken):
		WriteError(w, http.StatusConflict, "username_taken", "username already taken")
	case errors.Is(err, domain.ErrEmailTaken):
		WriteError(w, http.StatusConflict, "email_taken", "email already registered")
	case errors.Is(err, domain.ErrIdentityConflict):
		WriteError(w, http.StatusConflict, "identity_conflict", "external identity already linked")
	case errors.Is(err, domain.ErrDuplicateRequest):
		WriteError(w, http.StatusConflict, "duplicate_request", "a pending request already exists")
	case errors.Is(err, domain.ErrAlreadyProcessed):
		WriteError(w, http.StatusConflict, "already_processed", "already processed")
	case errors.Is(err, domain.ErrConflict):
		WriteError(w, http.StatusConflict, "conflict", "conflicting state")
	case errors.Is(err, domain.ErrProviderUnavailable):
		WriteError(w, http.StatusBadGateway, "provider_unavailable", "identity provider unavailable")
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
