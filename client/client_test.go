package client_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jrsteele09/go-oidc-gateway/client"
	"github.com/jrsteele09/go-oidc-gateway/session"
	"github.com/stretchr/testify/require"
)

// fakeAPI records the calls the login flow makes
type fakeAPI struct {
	login       *client.LoginResponse
	loginErr    error
	callback    *client.CallbackResponse
	callbackErr error

	callbackCodes []string
}

func (f *fakeAPI) Login(ctx context.Context) (*client.LoginResponse, error) {
	return f.login, f.loginErr
}

func (f *fakeAPI) Callback(ctx context.Context, code string) (*client.CallbackResponse, error) {
	f.callbackCodes = append(f.callbackCodes, code)
	return f.callback, f.callbackErr
}

// recordingNavigator remembers every target it was sent to
type recordingNavigator struct {
	targets []string
	err     error
}

func (n *recordingNavigator) Navigate(target string) error {
	n.targets = append(n.targets, target)
	return n.err
}

func mintToken(t *testing.T, id session.Identity) string {
	t.Helper()
	signer, err := session.NewSigner("client-test-secret", 0)
	require.NoError(t, err)
	token, _, err := signer.Mint(id)
	require.NoError(t, err)
	return token
}

var errBoom = errors.New("boom")
