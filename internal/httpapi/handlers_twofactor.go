package httpapi

import (
	"net/http"
	"strings"

	"memberclubserver/internal/domain"
)

type twoFactorCodeRequest struct {
	Code string `json:"code"`
}

func (a *api) decodeCode(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req twoFactorCodeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return "", false
	}
	if strings.TrimSpace(req.Code) == "" {
		WriteDomainError(w, domain.NewValidationError(map[string]string{"code": "required"}))
		return "", false
	}
	return req.Code, true
}

func (a *api) handleTwoFactorEnroll(w http.ResponseWriter, r *http.Request) {
	acct, _ := CurrentAccount(r.Context())

	enrollment, err := a.twoFactorSvc.Enroll(r.Context(), acct.ID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"secret": enrollment.Secret,
		"uri":    enrollment.URI,
	})
}

// handleTwoFactorVerify completes enrollment. The backup codes in the
// response are the only copy the user will ever see.
func (a *api) handleTwoFactorVerify(w http.ResponseWriter, r *http.Request) {
	acct, _ := CurrentAccount(r.Context())

	code, ok := a.decodeCode(w, r)
	if !ok {
		return
	}

	backupCodes, err := a.twoFactorSvc.VerifyEnroll(r.Context(), acct.ID, code)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"backup_codes": backupCodes})
}

func (a *api) handleTwoFactorDisable(w http.ResponseWriter, r *http.Request) {
	acct, _ := CurrentAccount(r.Context())

	code, ok := a.decodeCode(w, r)
	if !ok {
		return
	}

	if err := a.twoFactorSvc.Disable(r.Context(), acct.ID, code); err != nil {
		WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) handleTwoFactorBackupCodes(w http.ResponseWriter, r *http.Request) {
	acct, _ := CurrentAccount(r.Context())

	code, ok := a.decodeCode(w, r)
	if !ok {
		return
	}

	backupCodes, err := a.twoFactorSvc.RegenerateBackupCodes(r.Context(), acct.ID, code)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"backup_codes": backupCodes})
}

func (a *api) handleTwoFactorTempDisable(w http.ResponseWriter, r *http.Request) {
	acct, _ := CurrentAccount(r.Context())

	code, ok := a.decodeCode(w, r)
	if !ok {
		return
	}

	if err := a.twoFactorSvc.TemporarilyDisable(r.Context(), acct.ID, code); err != nil {
		WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) handleTwoFactorTempEnable(w http.ResponseWriter, r *http.Request) {
	acct, _ := CurrentAccount(r.Context())

	if err := a.twoFactorSvc.TemporarilyEnable(r.Context(), acct.ID); err != nil {
		WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
