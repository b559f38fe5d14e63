package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	apperrors "github.com/jrsteele09/go-oidc-gateway/internal/errors"
	"github.com/jrsteele09/go-oidc-gateway/session"
	"github.com/rs/zerolog"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeyUserID stores the authenticated user ID
	ContextKeyUserID ContextKey = "user_id"
	// ContextKeyClaims stores the verified session claims
	ContextKeyClaims ContextKey = "claims"
	// ContextKeyRequestID stores the request correlation ID
	ContextKeyRequestID ContextKey = "request_id"
)

// ClaimsFromContext returns the session claims attached by RequireAuth
func ClaimsFromContext(ctx context.Context) (*session.Claims, bool) {
	claims, ok := ctx.Value(ContextKeyClaims).(*session.Claims)
	return claims, ok && claims != nil
}

// bearerToken returns the token part of an "Authorization: Bearer <token>" header
func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// Authenticate verifies the session token in an Authorization header. A
// missing token matches ErrUnauthenticated, anything else that fails matches
// ErrInvalidToken.
func (s *Server) Authenticate(header string) (*session.Claims, error) {
	token, ok := bearerToken(header)
	if !ok {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrUnauthenticated, apperrors.ErrMissingToken)
	}
	return s.signer.Verify(token)
}

// RequireAuth is middleware that validates a Bearer session token
// Used for API routes that expect the gateway's token in Authorization header
func (s *Server) RequireAuth() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			logger := zerolog.Ctx(r.Context())

			claims, err := s.Authenticate(r.Header.Get("Authorization"))
			switch {
			case apperrors.Is(err, apperrors.ErrUnauthenticated):
				logger.Info().Str("event", "AuthenticationFailed").Str("reason", "MissingToken").Str("path", r.URL.Path).Msg("no access token")
				writeJSONError(w, http.StatusUnauthorized, "Access token required")
				return
			case err != nil:
				reason := "InvalidToken"
				if apperrors.Is(err, apperrors.ErrTokenExpired) {
					reason = "ExpiredToken"
				}
				logger.Info().Err(err).Str("event", "AuthenticationFailed").Str("reason", reason).Str("path", r.URL.Path).Msg("access token rejected")
				writeJSONError(w, http.StatusForbidden, "Invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyClaims, claims)
			ctx = context.WithValue(ctx, ContextKeyUserID, claims.Subject)
			next(w, r.WithContext(ctx))
		}
	}
}
