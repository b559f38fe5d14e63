package session_test

import (
	"strings"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	apperrors "github.com/jrsteele09/go-oidc-gateway/internal/errors"
	"github.com/jrsteele09/go-oidc-gateway/session"
	"github.com/stretchr/testify/require"
)

const secret = "test-signing-secret-1234"

var testIdentity = session.Identity{Subject: "u1", Email: "a@b.com", Name: "A"}

func newSigner(t *testing.T) *session.Signer {
	t.Helper()
	s, err := session.NewSigner(secret, 0)
	require.NoError(t, err)
	return s
}

func freezeTime(t *testing.T, at time.Time) {
	t.Helper()
	orig := session.NowTimeFunc
	session.NowTimeFunc = func() time.Time { return at }
	t.Cleanup(func() { session.NowTimeFunc = orig })
}

func TestNewSigner(t *testing.T) {
	_, err := session.NewSigner("", time.Hour)
	require.Error(t, err)

	s := newSigner(t)
	require.Equal(t, 24*time.Hour, s.TTL())
}

func TestMintAndVerify(t *testing.T) {
	s := newSigner(t)

	raw, minted, err := s.Mint(testIdentity)
	require.NoError(t, err)
	require.NotEmpty(t, minted.ID)

	claims, err := s.Verify(raw)
	require.NoError(t, err)
	require.Equal(t, testIdentity, claims.Identity())
	require.Equal(t, int64(86400), claims.ExpiresAt.Unix()-claims.IssuedAt.Unix())
	require.Equal(t, minted.ID, claims.ID)
}

func TestMintIsUniquePerCall(t *testing.T) {
	s := newSigner(t)
	freezeTime(t, time.Unix(1_700_000_000, 0))

	a, _, err := s.Mint(testIdentity)
	require.NoError(t, err)
	b, _, err := s.Mint(testIdentity)
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestVerifyExpiry(t *testing.T) {
	s := newSigner(t)
	issued := time.Unix(1_700_000_000, 0)
	freezeTime(t, issued)

	raw, _, err := s.Mint(testIdentity)
	require.NoError(t, err)

	session.NowTimeFunc = func() time.Time { return issued.Add(24*time.Hour - time.Second) }
	_, err = s.Verify(raw)
	require.NoError(t, err)

	session.NowTimeFunc = func() time.Time { return issued.Add(24 * time.Hour) }
	_, err = s.Verify(raw)
	require.ErrorIs(t, err, apperrors.ErrInvalidToken)
	require.ErrorIs(t, err, apperrors.ErrTokenExpired)
}

func TestVerifyRejectsTampering(t *testing.T) {
	s := newSigner(t)
	raw, _, err := s.Mint(testIdentity)
	require.NoError(t, err)

	parts := strings.Split(raw, ".")
	require.Len(t, parts, 3)
	payload := parts[1]

	for i := range payload {
		replacement := byte('A')
		if payload[i] == 'A' {
			replacement = 'B'
		}
		mutated := payload[:i] + string(replacement) + payload[i+1:]
		tampered := parts[0] + "." + mutated + "." + parts[2]

		_, err := s.Verify(tampered)
		require.ErrorIs(t, err, apperrors.ErrInvalidToken, "byte %d", i)
		require.NotErrorIs(t, err, apperrors.ErrTokenExpired, "byte %d", i)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	raw, _, err := newSigner(t).Mint(testIdentity)
	require.NoError(t, err)

	other, err := session.NewSigner("another-secret-entirely", 0)
	require.NoError(t, err)
	_, err = other.Verify(raw)
	require.ErrorIs(t, err, apperrors.ErrInvalidToken)
}

func TestVerifyRejectsOtherAlgorithms(t *testing.T) {
	s := newSigner(t)
	claims := jwtlib.MapClaims{
		"sub": "u1",
		"exp": time.Now().Add(time.Hour).Unix(),
	}

	hs512, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS512, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	_, err = s.Verify(hs512)
	require.ErrorIs(t, err, apperrors.ErrInvalidToken)

	none, err := jwtlib.NewWithClaims(jwtlib.SigningMethodNone, claims).SignedString(jwtlib.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = s.Verify(none)
	require.ErrorIs(t, err, apperrors.ErrInvalidToken)
}

func TestVerifyRequiresExpiry(t *testing.T) {
	s := newSigner(t)
	raw, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwtlib.MapClaims{"sub": "u1"}).SignedString([]byte(secret))
	require.NoError(t, err)

	_, err = s.Verify(raw)
	require.ErrorIs(t, err, apperrors.ErrInvalidToken)
}

func TestDecode(t *testing.T) {
	s := newSigner(t)
	issued := time.Unix(1_700_000_000, 0)
	freezeTime(t, issued)

	raw, _, err := s.Mint(testIdentity)
	require.NoError(t, err)

	claims, err := session.Decode(raw)
	require.NoError(t, err)
	require.Equal(t, "u1", claims.Subject)
	require.False(t, claims.Expired(issued))
	require.True(t, claims.Expired(issued.Add(24*time.Hour)))

	_, err = session.Decode("not-a-token")
	require.ErrorIs(t, err, apperrors.ErrInvalidToken)
}
