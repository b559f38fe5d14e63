package authorize_test

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/jrsteele09/go-oidc-gateway/authorize"
	"github.com/jrsteele09/go-oidc-gateway/discovery"
	apperrors "github.com/jrsteele09/go-oidc-gateway/internal/errors"
	"github.com/jrsteele09/go-oidc-gateway/internal/oidctest"
	"github.com/stretchr/testify/require"
)

type fakeOIDCConfig struct {
	issuer string
	scopes []string
}

func (f fakeOIDCConfig) GetClientID() string     { return "abc" }
func (f fakeOIDCConfig) GetClientSecret() string { return "secret" }
func (f fakeOIDCConfig) GetIssuer() string       { return f.issuer }
func (f fakeOIDCConfig) GetRedirectURI() string  { return "http://x/callback" }
func (f fakeOIDCConfig) GetScopes() []string {
	if f.scopes == nil {
		return []string{"openid", "profile", "email"}
	}
	return f.scopes
}

func newBuilder(t *testing.T, p *oidctest.Provider) *authorize.Builder {
	t.Helper()
	disco := discovery.New(discovery.WithHTTPClient(p.Client()))
	return authorize.NewBuilder(fakeOIDCConfig{issuer: p.Issuer()}, disco)
}

func TestBuild(t *testing.T) {
	p := oidctest.Start(t)
	req, err := newBuilder(t, p).Build(context.Background())
	require.NoError(t, err)

	endpoint := p.Issuer() + oidctest.PathAuthorize
	require.True(t, strings.HasPrefix(req.AuthURL, endpoint+"?"), req.AuthURL)
	require.Contains(t, req.AuthURL, "redirect_uri=http%3A%2F%2Fx%2Fcallback")

	u, err := url.Parse(req.AuthURL)
	require.NoError(t, err)
	q := u.Query()
	require.Equal(t, "abc", q.Get("client_id"))
	require.Equal(t, "http://x/callback", q.Get("redirect_uri"))
	require.Equal(t, "code", q.Get("response_type"))
	require.Equal(t, "openid profile email", q.Get("scope"))
	require.Equal(t, req.State, q.Get("state"))
	require.Len(t, req.State, 16)
}

func TestBuildFreshStatePerCall(t *testing.T) {
	b := newBuilder(t, oidctest.Start(t))
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		req, err := b.Build(context.Background())
		require.NoError(t, err)
		require.False(t, seen[req.State], "state repeated")
		seen[req.State] = true
	}
}

func TestBuildDiscoveryFailure(t *testing.T) {
	p := oidctest.Start(t)
	p.SetDiscoveryStatus(http.StatusInternalServerError)
	_, err := newBuilder(t, p).Build(context.Background())
	require.ErrorIs(t, err, apperrors.ErrDiscovery)
}

func TestLogoutURL(t *testing.T) {
	t.Run("end session advertised", func(t *testing.T) {
		p := oidctest.Start(t)
		logoutURL, err := newBuilder(t, p).LogoutURL(context.Background())
		require.NoError(t, err)

		u, err := url.Parse(logoutURL)
		require.NoError(t, err)
		require.Equal(t, p.Issuer()+oidctest.PathEndSession, u.Scheme+"://"+u.Host+u.Path)
		require.Equal(t, "http://x", u.Query().Get("post_logout_redirect_uri"))
	})

	t.Run("no end session endpoint", func(t *testing.T) {
		p := oidctest.Start(t)
		p.OmitEndSession()
		logoutURL, err := newBuilder(t, p).LogoutURL(context.Background())
		require.NoError(t, err)
		require.Empty(t, logoutURL)
	})
}

func TestNewState(t *testing.T) {
	state, err := authorize.NewState()
	require.NoError(t, err)
	require.Len(t, state, 16)
	require.NotContains(t, state, "+")
	require.NotContains(t, state, "/")
}
