// Package provider normalizes external OAuth identity providers into a
// single exchange contract. Each provider turns an authorization code into
// an Identity; everything after that (lookup, linking, account creation) is
// provider-agnostic.
package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	"memberclubserver/internal/domain"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// Identity is the normalized result of a completed provider exchange.
type Identity struct {
	Provider    string
	Subject     string
	Emails      []string // preferred (primary/verified) first
	Username    string
	DisplayName string
}

type Provider interface {
	Name() string
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (Identity, error)
}

// classifyExchangeError separates retryable transport failures from
// identity failures. Network trouble must surface as ProviderUnavailable so
// the caller can tell the user to retry; a rejected code is not retryable.
func classifyExchangeError(err error) error {
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		return fmt.Errorf("%w: provider rejected the authorization code", domain.ErrInvalidCredentials)
	}

	var uerr *url.Error
	var nerr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.As(err, &uerr) || errors.As(err, &nerr) {
		return fmt.Errorf("%w: %s", domain.ErrProviderUnavailable, "token exchange failed")
	}
	return fmt.Errorf("%w: %s", domain.ErrProviderUnavailable, "token exchange failed")
}

// StateStore holds single-use CSRF state values for in-flight authorization
// redirects. A state is consumed on first use; replays and unknown values
// are rejected.
type StateStore struct {
	mu     sync.Mutex
	ttl    time.Duration
	now    func() time.Time
	states map[string]time.Time
}

func NewStateStore(ttl time.Duration) *StateStore {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &StateStore{
		ttl:    ttl,
		now:    time.Now,
		states: make(map[string]time.Time),
	}
}

func (s *StateStore) Issue() string {
	state := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictLocked()
	s.states[state] = s.now().Add(s.ttl)
	return state
}

func (s *StateStore) Consume(state string) bool {
	if state == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	expiry, ok := s.states[state]
	if !ok {
		return false
	}
	delete(s.states, state)
	return expiry.After(s.now())
}

func (s *StateStore) evictLocked() {
	now := s.now()
	for state, expiry := range s.states {
		if !expiry.After(now) {
			delete(s.states, state)
		}
	}
}
