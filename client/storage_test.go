package client_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jrsteele09/go-oidc-gateway/client"
	"github.com/stretchr/testify/require"
)

func TestStorage(t *testing.T) {
	stores := map[string]func(t *testing.T) client.Storage{
		"memory": func(t *testing.T) client.Storage { return client.NewMemoryStorage() },
		"file": func(t *testing.T) client.Storage {
			return client.NewFileStorage(filepath.Join(t.TempDir(), "nested", "session.json"))
		},
	}

	for name, newStore := range stores {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)

			_, ok, err := s.Get("missing")
			require.NoError(t, err)
			require.False(t, ok)

			require.NoError(t, s.Set("a", "1"))
			require.NoError(t, s.Set("b", "2"))
			v, ok, err := s.Get("a")
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, "1", v)

			require.NoError(t, s.Remove("a"))
			require.NoError(t, s.Remove("a"))
			_, ok, err = s.Get("a")
			require.NoError(t, err)
			require.False(t, ok)

			v, _, err = s.Get("b")
			require.NoError(t, err)
			require.Equal(t, "2", v)
		})
	}
}

func TestFileStoragePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")

	require.NoError(t, client.NewFileStorage(path).Set("access_token", "tok"))

	v, ok, err := client.NewFileStorage(path).Get("access_token")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "tok", v)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFileStorageCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, _, err := client.NewFileStorage(path).Get("access_token")
	require.Error(t, err)
}
