package httpapi

import (
	"context"
	"net/http"
	"strings"

	"memberclubserver/internal/domain"
)

type authCtxKey int

const authAccountKey authCtxKey = iota

// requireAuth resolves the bearer token to a live account record. Role and
// activation are read fresh from the store on every request, so revoking an
// account takes effect immediately regardless of outstanding tokens.
func (a *api) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			WriteDomainError(w, domain.ErrUnauthenticated)
			return
		}

		acct, err := a.authSvc.GetAccountForToken(r.Context(), token)
		if err != nil {
			WriteDomainError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), authAccountKey, acct)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

// requireActive additionally rejects accounts still awaiting approval. The
// token itself stays valid; only the gate answer changes with is_active.
func (a *api) requireActive(next http.HandlerFunc) http.HandlerFunc {
	return a.requireAuth(func(w http.ResponseWriter, r *http.Request) {
		acct, _ := CurrentAccount(r.Context())
		if !acct.IsActive {
			WriteDomainError(w, domain.ErrPendingApproval)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *api) requireReviewer(next http.HandlerFunc) http.HandlerFunc {
	return a.requireActive(func(w http.ResponseWriter, r *http.Request) {
		acct, _ := CurrentAccount(r.Context())
		if !acct.Role.CanReview() {
			WriteDomainError(w, domain.ErrInsufficientRole)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func CurrentAccount(ctx context.Context) (domain.Account, bool) {
	acct, ok := ctx.Value(authAccountKey).(domain.Account)
	return acct, ok
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
