package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	apperrors "github.com/jrsteele09/go-oidc-gateway/internal/errors"
	"github.com/rs/zerolog/log"
)

// CallbackState is a step of the callback flow.
type CallbackState int

const (
	StateValidating CallbackState = iota
	StateExchanging
	StateDone
	StateError
)

func (s CallbackState) String() string {
	switch s {
	case StateValidating:
		return "validating"
	case StateExchanging:
		return "exchanging"
	case StateDone:
		return "done"
	case StateError:
		return "error"
	}
	return fmt.Sprintf("CallbackState(%d)", int(s))
}

// HomePath is where the user lands after the callback, or goes back to after
// a failure.
const HomePath = "/"

const defaultExchangeError = "Failed to exchange authorization code"

// ErrCallbackConsumed is returned when a CallbackHandler is run twice.
var ErrCallbackConsumed = errors.New("callback already handled")

// Outcome is the final state of a callback. Message is the text to show the
// user when State is StateError.
type Outcome struct {
	State     CallbackState
	Message   string
	Err       error
	RetryPath string
}

// CallbackHandler completes a login from the provider redirect query. Each
// handler runs once.
type CallbackHandler struct {
	store *AuthStore
	api   Authorizer
	nav   Navigator

	mu      sync.Mutex
	state   CallbackState
	handled bool
}

func NewCallbackHandler(store *AuthStore, api Authorizer, nav Navigator) *CallbackHandler {
	return &CallbackHandler{store: store, api: api, nav: nav, state: StateValidating}
}

// State returns the current step
func (h *CallbackHandler) State() CallbackState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

func (h *CallbackHandler) setState(s CallbackState) {
	h.mu.Lock()
	h.state = s
	h.mu.Unlock()
}

// Handle validates the redirect query, exchanges the code through the
// gateway and saves the session. The code is never sent when the returned
// state does not match the one saved at login.
func (h *CallbackHandler) Handle(ctx context.Context, query url.Values) Outcome {
	h.mu.Lock()
	if h.handled {
		h.mu.Unlock()
		return Outcome{State: StateError, Message: ErrCallbackConsumed.Error(), Err: ErrCallbackConsumed, RetryPath: HomePath}
	}
	h.handled = true
	h.mu.Unlock()

	if e := query.Get("error"); e != "" {
		return h.fail("Authentication error: "+e, fmt.Errorf("provider returned error %q", e))
	}

	code := query.Get("code")
	if code == "" {
		return h.fail("No authorization code received", apperrors.ErrMissingCode)
	}

	saved, ok, err := h.store.savedState()
	if err != nil {
		return h.fail("Authentication failed", err)
	}
	if !ok || saved == "" || saved != query.Get("state") {
		log.Warn().Str("event", "StateMismatch").Bool("has_saved_state", ok).Msg("callback state rejected")
		return h.fail("Invalid state parameter - possible CSRF attack", apperrors.ErrStateMismatch)
	}
	if err := h.store.clearState(); err != nil {
		log.Warn().Err(err).Msg("failed to clear login state")
	}

	h.setState(StateExchanging)
	resp, err := h.api.Callback(ctx, code)
	if err != nil {
		message := defaultExchangeError
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Message != "" {
			message = apiErr.Message
		}
		return h.fail(message, err)
	}

	if err := h.store.SetAuthData(resp.AccessToken, resp.User); err != nil {
		return h.fail("Authentication failed", err)
	}

	h.setState(StateDone)
	if err := h.nav.Navigate(HomePath); err != nil {
		log.Warn().Err(err).Msg("failed to navigate home")
	}
	return Outcome{State: StateDone}
}

func (h *CallbackHandler) fail(message string, err error) Outcome {
	h.setState(StateError)
	log.Error().Err(err).Str("event", "CallbackFailed").Msg(message)
	return Outcome{State: StateError, Message: message, Err: err, RetryPath: HomePath}
}
