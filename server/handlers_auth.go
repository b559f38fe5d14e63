package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	apperrors "github.com/jrsteele09/go-oidc-gateway/internal/errors"
	"github.com/jrsteele09/go-oidc-gateway/session"
	"github.com/rs/zerolog"
)

const maxCallbackBody = 1 << 20

// LoginHandler returns the provider authorization URL and the state the
// client must hold until the callback.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := zerolog.Ctx(r.Context())
		logger.Info().Str("event", "LoginAttempt").Str("provider", s.config.GetIssuer()).Msg("login requested")

		req, err := s.authorizer.Build(r.Context())
		if err != nil {
			logger.Error().Err(err).Str("event", "OIDCDiscoveryError").Msg("failed to build authorization URL")
			writeJSONError(w, http.StatusInternalServerError, "Failed to get authorization URL")
			return
		}

		logger.Info().Str("event", "LoginURLGenerated").Msg("authorization URL generated")
		writeJSON(w, http.StatusOK, req)
	}
}

// CallbackHandler exchanges the authorization code for a session token
func (s *Server) CallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := zerolog.Ctx(r.Context())

		var body callbackRequest
		err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCallbackBody)).Decode(&body)
		if err != nil && !errors.Is(err, io.EOF) {
			writeJSONError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		logger.Info().Str("event", "TokenExchangeStarted").Bool("has_code", body.Code != "").Msg("callback received")

		result, err := s.exchanger.Exchange(r.Context(), body.Code)
		switch {
		case apperrors.Is(err, apperrors.ErrMissingCode):
			writeJSONError(w, http.StatusBadRequest, "Authorization code required")
			return
		case err != nil:
			logger.Error().Err(err).Str("event", "LoginFailed").Msg("token exchange failed")
			writeJSON(w, http.StatusInternalServerError, errorResponse{
				Error:   "Failed to exchange authorization code",
				Details: errorDetails(err),
			})
			return
		}

		logger.Info().
			Str("event", "LoginSuccess").
			Str("user_id", result.Identity.Subject).
			Bool("userinfo_fallback", result.UsedFallback).
			Msg("session token issued")

		writeJSON(w, http.StatusOK, callbackResponse{
			AccessToken: result.SessionToken,
			TokenType:   result.TokenType,
			User:        result.Identity,
		})
	}
}

// errorDetails exposes the provider response when there is one: the body as
// JSON when it parses, otherwise as text.
func errorDetails(err error) any {
	var pe *apperrors.ProviderError
	if !apperrors.As(err, &pe) || len(pe.Body) == 0 {
		return err.Error()
	}
	if json.Valid(pe.Body) {
		return json.RawMessage(pe.Body)
	}
	return string(pe.Body)
}

func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			writeJSONError(w, http.StatusUnauthorized, "Access token required")
			return
		}
		writeJSON(w, http.StatusOK, meResponse{User: meUser{
			ID:    claims.Subject,
			Email: claims.Email,
			Name:  claims.Name,
		}})
	}
}

// LogoutHandler always succeeds. The session token is stateless so logging out
// is the client discarding it; the provider logout URL is returned when known.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := zerolog.Ctx(r.Context())

		userID := "unknown"
		if token, ok := bearerToken(r.Header.Get("Authorization")); ok {
			if claims, err := session.Decode(token); err == nil && claims.Subject != "" {
				userID = claims.Subject
			}
		}

		resp := logoutResponse{Message: "Logged out successfully"}
		logoutURL, err := s.authorizer.LogoutURL(r.Context())
		if err != nil {
			logger.Warn().Err(err).Str("event", "LogoutError").Str("user_id", userID).Msg("provider logout URL unavailable")
			writeJSON(w, http.StatusOK, resp)
			return
		}
		resp.LogoutURL = logoutURL

		logger.Info().Str("event", "LogoutSuccess").Str("user_id", userID).Msg("user logged out")
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) ProtectedHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := ClaimsFromContext(r.Context())
		writeJSON(w, http.StatusOK, protectedResponse{
			Message: "This is a protected endpoint",
			User:    claims,
		})
	}
}
