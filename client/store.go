package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/jrsteele09/go-oidc-gateway/session"
	"github.com/rs/zerolog/log"
)

// Storage keys
const (
	KeyAccessToken = "access_token"
	KeyUser        = "user"
	KeyOAuthState  = "oauth_state"
)

// Authorizer is the part of the gateway API the login flow needs.
type Authorizer interface {
	Login(ctx context.Context) (*LoginResponse, error)
	Callback(ctx context.Context, code string) (*CallbackResponse, error)
}

// Navigator sends the user somewhere: the provider's authorization page or a
// path within the application.
type Navigator interface {
	Navigate(target string) error
}

// NavigatorFunc adapts a function to a Navigator
type NavigatorFunc func(target string) error

func (f NavigatorFunc) Navigate(target string) error { return f(target) }

// AuthStore holds the client side of a session: the gateway token and the
// user it was issued for.
type AuthStore struct {
	persistent Storage
	transient  Storage
	api        Authorizer
	nav        Navigator

	mu      sync.RWMutex
	token   string
	user    *User
	loading bool
}

// NewAuthStore creates a store and rehydrates any saved session. A saved
// token that is expired or cannot be decoded is discarded along with its user.
func NewAuthStore(persistent, transient Storage, api Authorizer, nav Navigator) *AuthStore {
	s := &AuthStore{
		persistent: persistent,
		transient:  transient,
		api:        api,
		nav:        nav,
		loading:    true,
	}
	s.rehydrate()
	return s
}

func (s *AuthStore) rehydrate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { s.loading = false }()

	token, hasToken, err := s.persistent.Get(KeyAccessToken)
	if err != nil {
		log.Warn().Err(err).Msg("failed to read saved session")
		return
	}
	rawUser, hasUser, err := s.persistent.Get(KeyUser)
	if err != nil {
		log.Warn().Err(err).Msg("failed to read saved session")
		return
	}
	if !hasToken || !hasUser || token == "" || rawUser == "" {
		return
	}

	claims, err := session.Decode(token)
	if err != nil {
		log.Warn().Err(err).Msg("discarding undecodable session token")
		s.clear()
		return
	}
	if claims.Expired(session.NowTimeFunc()) {
		log.Info().Msg("saved session expired")
		s.clear()
		return
	}

	var user User
	if err := json.Unmarshal([]byte(rawUser), &user); err != nil {
		log.Warn().Err(err).Msg("discarding unreadable saved user")
		s.clear()
		return
	}
	s.token = token
	s.user = &user
}

// clear drops the saved session. Callers hold s.mu.
func (s *AuthStore) clear() error {
	s.token = ""
	s.user = nil
	return errors.Join(
		s.persistent.Remove(KeyAccessToken),
		s.persistent.Remove(KeyUser),
	)
}

// Login asks the gateway for an authorization URL, remembers the state for
// the callback and navigates to the provider.
func (s *AuthStore) Login(ctx context.Context) error {
	resp, err := s.api.Login(ctx)
	if err != nil {
		return fmt.Errorf("failed to start login: %w", err)
	}
	if err := s.transient.Set(KeyOAuthState, resp.State); err != nil {
		return fmt.Errorf("failed to save login state: %w", err)
	}
	return s.nav.Navigate(resp.AuthURL)
}

// SetAuthData saves a freshly issued session.
func (s *AuthStore) SetAuthData(token string, user User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.user = &user
	return errors.Join(
		s.persistent.Set(KeyAccessToken, token),
		s.persistent.Set(KeyUser, string(data)),
	)
}

// Logout forgets the session locally. The token stays valid until it expires.
func (s *AuthStore) Logout() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clear()
}

func (s *AuthStore) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// User returns a copy of the signed in user, or nil.
func (s *AuthStore) User() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

func (s *AuthStore) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != "" && s.user != nil
}

// Loading reports whether the saved session is still being restored.
func (s *AuthStore) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// savedState returns the state saved by Login
func (s *AuthStore) savedState() (string, bool, error) {
	return s.transient.Get(KeyOAuthState)
}

func (s *AuthStore) clearState() error {
	return s.transient.Remove(KeyOAuthState)
}
