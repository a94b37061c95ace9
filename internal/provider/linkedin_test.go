package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"memberclubserver/internal/domain"
)

func testLinkedIn(t *testing.T, authHandler, apiHandler http.HandlerFunc) *LinkedIn {
	t.Helper()
	authSrv := httptest.NewServer(authHandler)
	t.Cleanup(authSrv.Close)
	apiSrv := httptest.NewServer(apiHandler)
	t.Cleanup(apiSrv.Close)

	l := NewLinkedIn("client-id", "client-secret", "https://club.example/v1/auth/linkedin/callback")
	l.authBase = authSrv.URL
	l.apiBase = apiSrv.URL
	return l
}

func TestLinkedInAuthCodeURL(t *testing.T) {
	l := NewLinkedIn("client-id", "client-secret", "https://club.example/cb")

	raw := l.AuthCodeURL("state-1")
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	q := u.Query()
	if q.Get("response_type") != "code" || q.Get("client_id") != "client-id" {
		t.Fatalf("query: %v", q)
	}
	if q.Get("state") != "state-1" {
		t.Fatalf("state: got %q", q.Get("state"))
	}
	if q.Get("scope") != "openid profile email" {
		t.Fatalf("scope: got %q", q.Get("scope"))
	}
}

func TestLinkedInExchange(t *testing.T) {
	auth := func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/accessToken") {
			t.Fatalf("unexpected auth call: %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if r.PostForm.Get("grant_type") != "authorization_code" || r.PostForm.Get("code") != "the-code" {
			t.Fatalf("form: %v", r.PostForm)
		}
		if r.PostForm.Get("client_secret") != "client-secret" {
			t.Fatal("missing client secret")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token": "tok-1", "expires_in": 3600}`))
	}
	api := func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Fatalf("authorization: got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"sub": "li-42", "name": "Alice Jones", "email": "Alice@Club.Example"}`))
	}

	l := testLinkedIn(t, auth, api)
	ident, err := l.Exchange(context.Background(), "the-code")
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}

	if ident.Provider != domain.ProviderLinkedIn || ident.Subject != "li-42" {
		t.Fatalf("identity: %+v", ident)
	}
	if ident.DisplayName != "Alice Jones" {
		t.Fatalf("display name: got %q", ident.DisplayName)
	}
	if len(ident.Emails) != 1 || ident.Emails[0] != "alice@club.example" {
		t.Fatalf("emails: %v", ident.Emails)
	}
}

func TestLinkedInExchangeRejectedCode(t *testing.T) {
	auth := func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": "invalid_grant"}`))
	}
	api := func(http.ResponseWriter, *http.Request) { t.Fatal("userinfo should not be called") }

	l := testLinkedIn(t, auth, api)
	_, err := l.Exchange(context.Background(), "bad-code")
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("got %v", err)
	}
}

func TestLinkedInExchangeServerError(t *testing.T) {
	auth := func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}
	api := func(http.ResponseWriter, *http.Request) { t.Fatal("userinfo should not be called") }

	l := testLinkedIn(t, auth, api)
	_, err := l.Exchange(context.Background(), "the-code")
	if !errors.Is(err, domain.ErrProviderUnavailable) {
		t.Fatalf("got %v", err)
	}
}

func TestLinkedInUserinfoMissingSubject(t *testing.T) {
	auth := func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token": "tok-1"}`))
	}
	api := func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name": "No Subject"}`))
	}

	l := testLinkedIn(t, auth, api)
	_, err := l.Exchange(context.Background(), "the-code")
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("got %v", err)
	}
}

func TestLinkedInExchangeNetworkError(t *testing.T) {
	l := NewLinkedIn("client-id", "client-secret", "https://club.example/cb")
	l.authBase = "http://127.0.0.1:1" // nothing listens here

	_, err := l.Exchange(context.Background(), "the-code")
	if !errors.Is(err, domain.ErrProviderUnavailable) {
		t.Fatalf("got %v", err)
	}
}
