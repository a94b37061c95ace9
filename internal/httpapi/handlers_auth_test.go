package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"memberclubserver/internal/auth"
	"memberclubserver/internal/domain"
	"memberclubserver/internal/service"
)

func TestAuthRegisterReturnsSnapshotAndToken(t *testing.T) {
	store := &stubAccountsStore{
		t: t,
		createAccountFunc: func(_ context.Context, n domain.NewAccount) (domain.Account, error) {
			return domain.Account{
				ID:       "acct-1",
				Username: n.Username,
				Email:    n.Email,
				Role:     n.Role,
				IsActive: n.IsActive,
			}, nil
		},
	}
	router, _ := testRouter(t, store)

	body := `{
		"username": "alice_1",
		"email": "alice@club.example",
		"password": "hunter22",
		"security_questions": [
			{"question": "First pet?", "answer": "rex"},
			{"question": "Birth city?", "answer": "lisbon"}
		]
	}`
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/register", strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, body %s", rr.Code, rr.Body.String())
	}

	var resp struct {
		Account map[string]any `json:"account"`
		Token   string         `json:"token"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("expected a token")
	}
	if resp.Account["is_active"] != false {
		t.Fatalf("is_active: got %v", resp.Account["is_active"])
	}
	for _, forbidden := range []string{"password", "password_hash", "two_factor_secret", "security_questions", "backup_codes"} {
		if _, ok := resp.Account[forbidden]; ok {
			t.Fatalf("account snapshot leaks %q", forbidden)
		}
	}
}

func TestAuthRegisterValidationFields(t *testing.T) {
	router, _ := testRouter(t, &stubAccountsStore{t: t})

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/register",
		strings.NewReader(`{"username": "x", "email": "nope", "password": "123"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d", rr.Code)
	}

	var envelope errorEnvelope
	if err := json.NewDecoder(rr.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Error.Code != "validation_error" {
		t.Fatalf("code: got %q", envelope.Error.Code)
	}
	for _, field := range []string{"username", "email", "password", "security_questions"} {
		if _, ok := envelope.Error.Fields[field]; !ok {
			t.Fatalf("missing field %q in %v", field, envelope.Error.Fields)
		}
	}
}

func TestAuthLoginSecondFactorStep(t *testing.T) {
	hash, err := auth.HashPassword("hunter22")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	store := &stubAccountsStore{
		t: t,
		getAccountByEmailFunc: func(_ context.Context, _ string) (domain.AccountWithSecrets, error) {
			return domain.AccountWithSecrets{
				Account: domain.Account{
					ID:               "acct-1",
					Email:            "alice@club.example",
					IsActive:         true,
					TwoFactorEnabled: true,
				},
				PasswordHash: hash,
			}, nil
		},
	}
	router, _ := testRouter(t, store)

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login",
		strings.NewReader(`{"email": "alice@club.example", "password": "hunter22"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rr.Code, rr.Body.String())
	}

	var resp map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["second_factor_required"] != true {
		t.Fatalf("second_factor_required: got %v", resp["second_factor_required"])
	}
	if _, ok := resp["token"]; ok {
		t.Fatal("no token may be issued before the second factor")
	}
}

func TestAuthLoginWrongPassword(t *testing.T) {
	hash, err := auth.HashPassword("hunter22")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	store := &stubAccountsStore{
		t: t,
		getAccountByEmailFunc: func(_ context.Context, _ string) (domain.AccountWithSecrets, error) {
			return domain.AccountWithSecrets{
				Account:      domain.Account{ID: "acct-1", IsActive: true},
				PasswordHash: hash,
			}, nil
		},
	}
	router, _ := testRouter(t, store)

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login",
		strings.NewReader(`{"email": "alice@club.example", "password": "wrong"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d", rr.Code)
	}
	if code := decodeErrorCode(t, rr); code != "invalid_credentials" {
		t.Fatalf("code: got %q", code)
	}
}

func TestAuthLoginBadJSON(t *testing.T) {
	router, _ := testRouter(t, &stubAccountsStore{t: t})

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", strings.NewReader(`{"email":`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d", rr.Code)
	}
}

func TestPasswordChangeSubmitDuplicate(t *testing.T) {
	hash, err := auth.HashPassword("hunter22")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	acct := domain.AccountWithSecrets{
		Account:      domain.Account{ID: "acct-1", IsActive: true, Role: domain.RoleMember},
		PasswordHash: hash,
	}

	store := &stubAccountsStore{
		t: t,
		getAccountByIDFunc: func(_ context.Context, _ string) (domain.AccountWithSecrets, error) {
			return acct, nil
		},
	}
	requests := &stubRequestsStore{
		t: t,
		createRequestFunc: func(_ context.Context, _, _, _ string, _ time.Time) (domain.PasswordChangeRequest, error) {
			return domain.PasswordChangeRequest{}, domain.ErrDuplicateRequest
		},
	}

	tokens := auth.NewTokenIssuer([]byte("0123456789abcdef0123456789abcdef"), time.Hour)
	router := NewRouter(RouterOpts{
		Auth:      &service.AuthService{Accounts: store, Tokens: tokens},
		Approvals: &service.ApprovalService{Accounts: store, Requests: requests},
	})

	token, err := tokens.Issue("acct-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/password-change",
		strings.NewReader(`{"current_password": "hunter22", "new_password": "new-password"}`))
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("status: got %d, body %s", rr.Code, rr.Body.String())
	}
	if code := decodeErrorCode(t, rr); code != "duplicate_request" {
		t.Fatalf("code: got %q", code)
	}
}

type stubRequestsStore struct {
	t *testing.T

	createRequestFunc func(context.Context, string, string, string, time.Time) (domain.PasswordChangeRequest, error)
	getRequestFunc    func(context.Context, string) (domain.PasswordChangeRequest, error)
	listRequestsFunc  func(context.Context, domain.RequestStatus) ([]domain.PasswordChangeRequest, error)
	decideRequestFunc func(context.Context, string, string, bool, string, time.Time) (domain.PasswordChangeRequest, error)
}

func (s *stubRequestsStore) CreateRequest(ctx context.Context, accountID, oldHash, newHash string, at time.Time) (domain.PasswordChangeRequest, error) {
	if s.createRequestFunc != nil {
		return s.createRequestFunc(ctx, accountID, oldHash, newHash, at)
	}
	s.t.Fatalf("CreateRequest called unexpectedly")
	return domain.PasswordChangeRequest{}, context.Canceled
}

func (s *stubRequestsStore) GetRequest(ctx context.Context, id string) (domain.PasswordChangeRequest, error) {
	if s.getRequestFunc != nil {
		return s.getRequestFunc(ctx, id)
	}
	s.t.Fatalf("GetRequest called unexpectedly")
	return domain.PasswordChangeRequest{}, context.Canceled
}

func (s *stubRequestsStore) ListRequests(ctx context.Context, status domain.RequestStatus) ([]domain.PasswordChangeRequest, error) {
	if s.listRequestsFunc != nil {
		return s.listRequestsFunc(ctx, status)
	}
	s.t.Fatalf("ListRequests called unexpectedly")
	return nil, context.Canceled
}

func (s *stubRequestsStore) DecideRequest(ctx context.Context, requestID, reviewerID string, approve bool, note string, at time.Time) (domain.PasswordChangeRequest, error) {
	if s.decideRequestFunc != nil {
		return s.decideRequestFunc(ctx, requestID, reviewerID, approve, note, at)
	}
	s.t.Fatalf("DecideRequest called unexpectedly")
	return domain.PasswordChangeRequest{}, context.Canceled
}
