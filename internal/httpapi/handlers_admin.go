package httpapi

import (
	"net/http"
	"strings"

	"memberclubserver/internal/domain"
)

func (a *api) handleAdminPendingAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := a.approvalSvc.ListPendingAccounts(r.Context())
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	out := make([]accountResponse, 0, len(accounts))
	for _, acct := range accounts {
		out = append(out, accountSnapshot(acct))
	}
	WriteJSON(w, http.StatusOK, map[string]any{"accounts": out})
}

func (a *api) handleAdminApproveAccount(w http.ResponseWriter, r *http.Request) {
	reviewer, _ := CurrentAccount(r.Context())

	if err := a.approvalSvc.ApproveAccount(r.Context(), r.PathValue("id"), reviewer); err != nil {
		WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) handleAdminRejectAccount(w http.ResponseWriter, r *http.Request) {
	reviewer, _ := CurrentAccount(r.Context())

	if err := a.approvalSvc.RejectAccount(r.Context(), r.PathValue("id"), reviewer); err != nil {
		WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) handleAdminListPasswordRequests(w http.ResponseWriter, r *http.Request) {
	status := domain.RequestStatus(strings.TrimSpace(r.URL.Query().Get("status")))
	switch status {
	case "", domain.StatusPending, domain.StatusApproved, domain.StatusRejected:
	default:
		WriteDomainError(w, domain.NewValidationError(map[string]string{
			"status": "must be pending, approved or rejected",
		}))
		return
	}

	requests, err := a.approvalSvc.ListPasswordChanges(r.Context(), status)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	out := make([]requestResponse, 0, len(requests))
	for _, req := range requests {
		out = append(out, requestSnapshot(req))
	}
	WriteJSON(w, http.StatusOK, map[string]any{"requests": out})
}

type reviewRequest struct {
	Note string `json:"note"`
}

func (a *api) handleAdminApprovePasswordRequest(w http.ResponseWriter, r *http.Request) {
	a.decidePasswordRequest(w, r, true)
}

func (a *api) handleAdminRejectPasswordRequest(w http.ResponseWriter, r *http.Request) {
	a.decidePasswordRequest(w, r, false)
}

func (a *api) decidePasswordRequest(w http.ResponseWriter, r *http.Request, approve bool) {
	reviewer, _ := CurrentAccount(r.Context())

	var req reviewRequest
	if _, err := decodeJSONAllowEmpty(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}

	var (
		pcr domain.PasswordChangeRequest
		err error
	)
	if approve {
		pcr, err = a.approvalSvc.ApprovePasswordChange(r.Context(), r.PathValue("id"), reviewer, req.Note)
	} else {
		pcr, err = a.approvalSvc.RejectPasswordChange(r.Context(), r.PathValue("id"), reviewer, req.Note)
	}
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, requestSnapshot(pcr))
}
