package client_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jrsteele09/go-oidc-gateway/client"
	"github.com/jrsteele09/go-oidc-gateway/session"
	"github.com/stretchr/testify/require"
)

func savedSession(t *testing.T, token string, user client.User) *client.MemoryStorage {
	t.Helper()
	s := client.NewMemoryStorage()
	data, err := json.Marshal(user)
	require.NoError(t, err)
	require.NoError(t, s.Set(client.KeyAccessToken, token))
	require.NoError(t, s.Set(client.KeyUser, string(data)))
	return s
}

func TestAuthStoreRehydrate(t *testing.T) {
	user := client.User{Subject: "u1", Email: "a@b.com", Name: "A"}

	t.Run("valid session", func(t *testing.T) {
		token := mintToken(t, session.Identity{Subject: "u1"})
		persistent := savedSession(t, token, user)

		store := client.NewAuthStore(persistent, client.NewMemoryStorage(), &fakeAPI{}, &recordingNavigator{})
		require.False(t, store.Loading())
		require.True(t, store.IsAuthenticated())
		require.Equal(t, token, store.Token())
		require.Equal(t, &user, store.User())
	})

	t.Run("expired session is cleared", func(t *testing.T) {
		session.NowTimeFunc = func() time.Time { return time.Now().Add(-25 * time.Hour) }
		token := mintToken(t, session.Identity{Subject: "u1"})
		session.NowTimeFunc = time.Now
		persistent := savedSession(t, token, user)

		store := client.NewAuthStore(persistent, client.NewMemoryStorage(), &fakeAPI{}, &recordingNavigator{})
		require.False(t, store.Loading())
		require.False(t, store.IsAuthenticated())
		require.Nil(t, store.User())

		_, ok, _ := persistent.Get(client.KeyAccessToken)
		require.False(t, ok)
		_, ok, _ = persistent.Get(client.KeyUser)
		require.False(t, ok)
	})

	t.Run("undecodable token is cleared", func(t *testing.T) {
		persistent := savedSession(t, "not-a-token", user)

		store := client.NewAuthStore(persistent, client.NewMemoryStorage(), &fakeAPI{}, &recordingNavigator{})
		require.False(t, store.IsAuthenticated())
		_, ok, _ := persistent.Get(client.KeyAccessToken)
		require.False(t, ok)
	})

	t.Run("token without user", func(t *testing.T) {
		persistent := client.NewMemoryStorage()
		require.NoError(t, persistent.Set(client.KeyAccessToken, mintToken(t, session.Identity{Subject: "u1"})))

		store := client.NewAuthStore(persistent, client.NewMemoryStorage(), &fakeAPI{}, &recordingNavigator{})
		require.False(t, store.IsAuthenticated())
		require.Empty(t, store.Token())
	})

	t.Run("nothing saved", func(t *testing.T) {
		store := client.NewAuthStore(client.NewMemoryStorage(), client.NewMemoryStorage(), &fakeAPI{}, &recordingNavigator{})
		require.False(t, store.Loading())
		require.False(t, store.IsAuthenticated())
	})
}

func TestAuthStoreLogin(t *testing.T) {
	api := &fakeAPI{login: &client.LoginResponse{AuthURL: "https://id.example.com/auth?state=abc123", State: "abc123"}}
	nav := &recordingNavigator{}
	transient := client.NewMemoryStorage()
	store := client.NewAuthStore(client.NewMemoryStorage(), transient, api, nav)

	require.NoError(t, store.Login(context.Background()))
	require.Equal(t, []string{"https://id.example.com/auth?state=abc123"}, nav.targets)
	state, ok, err := transient.Get(client.KeyOAuthState)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "abc123", state)

	api.loginErr = errBoom
	require.ErrorIs(t, store.Login(context.Background()), errBoom)
	require.Len(t, nav.targets, 1)
}

func TestAuthStoreSetAuthDataAndLogout(t *testing.T) {
	persistent := client.NewMemoryStorage()
	store := client.NewAuthStore(persistent, client.NewMemoryStorage(), &fakeAPI{}, &recordingNavigator{})
	user := client.User{Subject: "u1", Email: "a@b.com", Name: "A"}
	token := mintToken(t, session.Identity{Subject: "u1"})

	require.NoError(t, store.SetAuthData(token, user))
	require.True(t, store.IsAuthenticated())

	// A new store over the same storage picks the session up
	restored := client.NewAuthStore(persistent, client.NewMemoryStorage(), &fakeAPI{}, &recordingNavigator{})
	require.True(t, restored.IsAuthenticated())
	require.Equal(t, &user, restored.User())

	require.NoError(t, store.Logout())
	require.False(t, store.IsAuthenticated())
	require.Empty(t, store.Token())
	_, ok, _ := persistent.Get(client.KeyAccessToken)
	require.False(t, ok)
}
