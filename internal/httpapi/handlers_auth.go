package httpapi

import (
	"net/http"
	"strings"

	"memberclubserver/internal/domain"
	"memberclubserver/internal/service"
)

type registerRequest struct {
	Username          string             `json:"username"`
	Email             string             `json:"email"`
	Password          string             `json:"password"`
	SecurityQuestions []securityQuestion `json:"security_questions"`
	Profile           map[string]any     `json:"profile"`
}

type securityQuestion struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

func (a *api) handleAuthRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}

	questions := make([]domain.SecurityQuestion, 0, len(req.SecurityQuestions))
	for _, q := range req.SecurityQuestions {
		questions = append(questions, domain.SecurityQuestion{Question: q.Question, Answer: q.Answer})
	}

	acct, token, err := a.authSvc.Register(r.Context(), service.RegisterParams{
		Username:          req.Username,
		Email:             req.Email,
		Password:          req.Password,
		SecurityQuestions: questions,
		Profile:           req.Profile,
	})
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, loginResponse{Account: accountSnapshot(acct), Token: token})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Account              accountResponse `json:"account"`
	Token                string          `json:"token,omitempty"`
	SecondFactorRequired bool            `json:"second_factor_required,omitempty"`
}

func (a *api) handleAuthLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}

	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		WriteDomainError(w, domain.NewValidationError(map[string]string{
			"email":    "required",
			"password": "required",
		}))
		return
	}

	res, err := a.authSvc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	if res.SecondFactorRequired {
		WriteJSON(w, http.StatusOK, loginResponse{
			Account:              accountSnapshot(res.Account),
			SecondFactorRequired: true,
		})
		return
	}

	WriteJSON(w, http.StatusOK, loginResponse{Account: accountSnapshot(res.Account), Token: res.Token})
}

type loginTwoFactorRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

func (a *api) handleAuthLoginTwoFactor(w http.ResponseWriter, r *http.Request) {
	var req loginTwoFactorRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}

	if strings.TrimSpace(req.Email) == "" || strings.TrimSpace(req.Code) == "" {
		WriteDomainError(w, domain.NewValidationError(map[string]string{
			"email": "required",
			"code":  "required",
		}))
		return
	}

	res, err := a.twoFactorSvc.VerifyLogin(r.Context(), req.Email, req.Code)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, loginResponse{Account: accountSnapshot(res.Account), Token: res.Token})
}

type passwordChangeRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (a *api) handlePasswordChangeSubmit(w http.ResponseWriter, r *http.Request) {
	acct, ok := CurrentAccount(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthenticated)
		return
	}

	var req passwordChangeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}

	pcr, err := a.approvalSvc.SubmitPasswordChange(r.Context(), acct.ID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, requestSnapshot(pcr))
}
