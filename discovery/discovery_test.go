package discovery_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/jrsteele09/go-oidc-gateway/discovery"
	apperrors "github.com/jrsteele09/go-oidc-gateway/internal/errors"
	"github.com/jrsteele09/go-oidc-gateway/internal/oidctest"
	"github.com/stretchr/testify/require"
)

func TestDiscover(t *testing.T) {
	p := oidctest.Start(t)
	p.SetUserInfo(map[string]any{"sub": "u1"})
	c := discovery.New(discovery.WithHTTPClient(p.Client()))

	doc, err := c.Discover(context.Background(), p.Issuer())
	require.NoError(t, err)
	require.Equal(t, p.Issuer(), doc.Issuer)
	require.Equal(t, p.Issuer()+oidctest.PathAuthorize, doc.AuthorizationEndpoint)
	require.Equal(t, p.Issuer()+oidctest.PathToken, doc.TokenEndpoint)
	require.Equal(t, p.Issuer()+oidctest.PathUserInfo, doc.UserInfoEndpoint)
	require.Equal(t, p.Issuer()+oidctest.PathEndSession, doc.EndSessionEndpoint)
	require.Equal(t, p.Issuer()+oidctest.PathJWKS, doc.JWKSURI)
	require.NotNil(t, doc.Provider())
}

func TestDiscoverOptionalEndpoints(t *testing.T) {
	p := oidctest.Start(t)
	p.OmitEndSession()
	c := discovery.New(discovery.WithHTTPClient(p.Client()))

	doc, err := c.Discover(context.Background(), p.Issuer())
	require.NoError(t, err)
	require.Empty(t, doc.EndSessionEndpoint)
	require.Empty(t, doc.UserInfoEndpoint)
}

func TestDiscoverCachesPerIssuer(t *testing.T) {
	p := oidctest.Start(t)
	c := discovery.New(discovery.WithHTTPClient(p.Client()), discovery.WithTTL(time.Minute))

	now := time.Unix(1_700_000_000, 0)
	orig := discovery.NowTimeFunc
	discovery.NowTimeFunc = func() time.Time { return now }
	t.Cleanup(func() { discovery.NowTimeFunc = orig })

	ctx := context.Background()
	_, err := c.Discover(ctx, p.Issuer())
	require.NoError(t, err)
	_, err = c.Discover(ctx, p.Issuer())
	require.NoError(t, err)
	require.Equal(t, 1, p.Hits(oidctest.PathDiscovery))

	now = now.Add(time.Minute)
	_, err = c.Discover(ctx, p.Issuer())
	require.NoError(t, err)
	require.Equal(t, 2, p.Hits(oidctest.PathDiscovery))

	c.Invalidate(p.Issuer())
	_, err = c.Discover(ctx, p.Issuer())
	require.NoError(t, err)
	require.Equal(t, 3, p.Hits(oidctest.PathDiscovery))
}

func TestDiscoverWithoutCache(t *testing.T) {
	p := oidctest.Start(t)
	c := discovery.New(discovery.WithHTTPClient(p.Client()), discovery.WithTTL(0))

	for i := 0; i < 3; i++ {
		_, err := c.Discover(context.Background(), p.Issuer())
		require.NoError(t, err)
	}
	require.Equal(t, 3, p.Hits(oidctest.PathDiscovery))
}

func TestDiscoverFailures(t *testing.T) {
	t.Run("non-2xx is not cached", func(t *testing.T) {
		p := oidctest.Start(t)
		p.SetDiscoveryStatus(http.StatusServiceUnavailable)
		c := discovery.New(discovery.WithHTTPClient(p.Client()))

		_, err := c.Discover(context.Background(), p.Issuer())
		require.ErrorIs(t, err, apperrors.ErrDiscovery)

		p.SetDiscoveryStatus(0)
		_, err = c.Discover(context.Background(), p.Issuer())
		require.NoError(t, err)
	})

	t.Run("unreachable", func(t *testing.T) {
		c := discovery.New()
		_, err := c.Discover(context.Background(), "http://127.0.0.1:1")
		require.ErrorIs(t, err, apperrors.ErrDiscovery)
	})

	t.Run("issuer mismatch", func(t *testing.T) {
		p := oidctest.Start(t)
		c := discovery.New(discovery.WithHTTPClient(p.Client()))
		_, err := c.Discover(context.Background(), p.Issuer()+"/")
		require.ErrorIs(t, err, apperrors.ErrDiscovery)
	})
}
