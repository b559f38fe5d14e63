package errors_test

import (
	stderrors "errors"
	"testing"

	apperrors "github.com/jrsteele09/go-oidc-gateway/internal/errors"
	"github.com/stretchr/testify/require"
)

func TestProviderError(t *testing.T) {
	t.Run("with response", func(t *testing.T) {
		err := &apperrors.ProviderError{
			Kind:       apperrors.ErrTokenExchange,
			StatusCode: 400,
			Body:       []byte(`{"error":"invalid_grant"}`),
		}
		require.ErrorIs(t, err, apperrors.ErrTokenExchange)
		require.NotErrorIs(t, err, apperrors.ErrDiscovery)
		require.Contains(t, err.Error(), "invalid_grant")
		require.Contains(t, err.Error(), "400")
	})

	t.Run("network failure", func(t *testing.T) {
		cause := stderrors.New("connection refused")
		err := apperrors.Wrapf(&apperrors.ProviderError{Kind: apperrors.ErrDiscovery, Err: cause}, "discover %s", "issuer")
		require.ErrorIs(t, err, apperrors.ErrDiscovery)
		require.ErrorIs(t, err, cause)

		var pe *apperrors.ProviderError
		require.True(t, apperrors.As(err, &pe))
		require.Zero(t, pe.StatusCode)
	})

	t.Run("wrap nil", func(t *testing.T) {
		require.NoError(t, apperrors.Wrapf(nil, "nothing"))
	})
}
