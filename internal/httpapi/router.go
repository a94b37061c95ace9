package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"memberclubserver/internal/provider"
	"memberclubserver/internal/service"
)

type RouterOpts struct {
	Logger *slog.Logger
	IsProd bool

	DBPing func(context.Context) error

	Auth      *service.AuthService
	TwoFactor *service.TwoFactorService
	Federated *service.FederatedService
	Approvals *service.ApprovalService

	// Providers drives route registration: a provider absent here has no
	// /start or /callback routes at all.
	Providers []provider.Provider
	States    *provider.StateStore

	// WebURL is the browser-facing base URL that OAuth callbacks redirect to.
	WebURL string
}

func NewRouter(opts RouterOpts) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	states := opts.States
	if states == nil {
		states = provider.NewStateStore(0)
	}

	api := &api{
		logger:       logger,
		isProd:       opts.IsProd,
		dbPing:       opts.DBPing,
		authSvc:      opts.Auth,
		twoFactorSvc: opts.TwoFactor,
		federatedSvc: opts.Federated,
		approvalSvc:  opts.Approvals,
		states:       states,
		webURL:       strings.TrimRight(opts.WebURL, "/"),
	}

	publicMux := http.NewServeMux()
	apiMux := http.NewServeMux()

	publicMux.HandleFunc("GET /healthz", api.handleHealthz)

	apiMux.HandleFunc("POST /v1/auth/register", api.handleAuthRegister)
	apiMux.HandleFunc("POST /v1/auth/login", api.handleAuthLogin)
	apiMux.HandleFunc("POST /v1/auth/login/2fa", api.handleAuthLoginTwoFactor)
	apiMux.HandleFunc("POST /v1/auth/password-change", api.requireActive(api.handlePasswordChangeSubmit))

	for _, p := range opts.Providers {
		apiMux.HandleFunc("GET /v1/auth/"+p.Name()+"/start", api.handleOAuthStart(p))
		apiMux.HandleFunc("GET /v1/auth/"+p.Name()+"/callback", api.handleOAuthCallback(p))
	}

	apiMux.HandleFunc("GET /v1/users/me", api.requireAuth(api.handleUsersMe))

	apiMux.HandleFunc("POST /v1/2fa/enroll", api.requireActive(api.handleTwoFactorEnroll))
	apiMux.HandleFunc("POST /v1/2fa/verify", api.requireActive(api.handleTwoFactorVerify))
	apiMux.HandleFunc("POST /v1/2fa/disable", api.requireActive(api.handleTwoFactorDisable))
	apiMux.HandleFunc("POST /v1/2fa/backup-codes", api.requireActive(api.handleTwoFactorBackupCodes))
	apiMux.HandleFunc("POST /v1/2fa/temporary-disable", api.requireActive(api.handleTwoFactorTempDisable))
	apiMux.HandleFunc("POST /v1/2fa/temporary-enable", api.requireActive(api.handleTwoFactorTempEnable))

	apiMux.HandleFunc("GET /v1/admin/accounts/pending", api.requireReviewer(api.handleAdminPendingAccounts))
	apiMux.HandleFunc("POST /v1/admin/accounts/{id}/approve", api.requireReviewer(api.handleAdminApproveAccount))
	apiMux.HandleFunc("POST /v1/admin/accounts/{id}/reject", api.requireReviewer(api.handleAdminRejectAccount))
	apiMux.HandleFunc("GET /v1/admin/password-requests", api.requireReviewer(api.handleAdminListPasswordRequests))
	apiMux.HandleFunc("POST /v1/admin/password-requests/{id}/approve", api.requireReviewer(api.handleAdminApprovePasswordRequest))
	apiMux.HandleFunc("POST /v1/admin/password-requests/{id}/reject", api.requireReviewer(api.handleAdminRejectPasswordRequest))

	apiHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h, pattern := apiMux.Handler(r)
		if pattern == "" {
			handleV1NotFound(w, r)
			return
		}
		h.ServeHTTP(w, r)
	})

	root := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/v1/") || r.URL.Path == "/v1" {
			apiHandler.ServeHTTP(w, r)
			return
		}
		publicMux.ServeHTTP(w, r)
	})

	var h http.Handler = root
	h = RequestLogger(logger)(h)
	h = RequestID()(h)
	h = Recoverer(logger, opts.IsProd)(h)
	return h
}

func handleV1NotFound(w http.ResponseWriter, _ *http.Request) {
	WriteError(w, http.StatusNotFound, "not_found", "not found")
}

type api struct {
	logger *slog.Logger
	isProd bool

	dbPing func(context.Context) error

	authSvc      *service.AuthService
	twoFactorSvc *service.TwoFactorService
	federatedSvc *service.FederatedService
	approvalSvc  *service.ApprovalService

	states *provider.StateStore
	webURL string
}

func (a *api) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	if a.dbPing != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 1*time.Second)
		defer cancel()
		if err := a.dbPing(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("db down"))
			return
		}
	}

	_, _ = w.Write([]byte("ok"))
}
