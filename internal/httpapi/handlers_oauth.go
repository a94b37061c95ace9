package httpapi

import (
	"errors"
	"net/http"
	"net/url"

	"memberclubserver/internal/domain"
	"memberclubserver/internal/provider"
)

func (a *api) handleOAuthStart(p provider.Provider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := a.states.Issue()
		http.Redirect(w, r, p.AuthCodeURL(state), http.StatusFound)
	}
}

// handleOAuthCallback lands the browser after the provider redirect. Errors
// here reach a human mid-redirect, so they degrade to a web redirect with a
// coarse error code instead of a JSON body.
func (a *api) handleOAuthCallback(p provider.Provider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		if q.Get("error") != "" {
			a.redirectWebError(w, r, "provider_denied")
			return
		}

		if !a.states.Consume(q.Get("state")) {
			a.redirectWebError(w, r, "invalid_state")
			return
		}

		code := q.Get("code")
		if code == "" {
			a.redirectWebError(w, r, "missing_code")
			return
		}

		res, err := a.federatedSvc.HandleCallback(r.Context(), p, code)
		if err != nil {
			a.logger.Warn("oauth callback failed", "provider", p.Name(), "error", err)
			a.redirectWebError(w, r, callbackErrorCode(err))
			return
		}

		switch {
		case res.PendingApproval:
			a.redirectWeb(w, r, url.Values{"status": {"pending_approval"}})
		case res.SecondFactorRequired:
			a.redirectWeb(w, r, url.Values{
				"status": {"second_factor_required"},
				"email":  {res.Account.Email},
			})
		default:
			a.redirectWeb(w, r, url.Values{"token": {res.Token}})
		}
	}
}

// callbackErrorCode reduces a callback failure to a short code safe to show
// in a browser URL. Anything unexpected collapses to a generic code.
func callbackErrorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrEmailRequired):
		return "email_required"
	case errors.Is(err, domain.ErrIdentityConflict):
		return "identity_conflict"
	case errors.Is(err, domain.ErrInvalidCredentials):
		return "exchange_rejected"
	case errors.Is(err, domain.ErrProviderUnavailable):
		return "provider_unavailable"
	default:
		return "login_failed"
	}
}

func (a *api) redirectWeb(w http.ResponseWriter, r *http.Request, params url.Values) {
	http.Redirect(w, r, a.webURL+"/auth/complete?"+params.Encode(), http.StatusFound)
}

func (a *api) redirectWebError(w http.ResponseWriter, r *http.Request, code string) {
	a.redirectWeb(w, r, url.Values{"error": {code}})
}
