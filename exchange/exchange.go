// Package exchange trades an authorization code for provider tokens, resolves
// the user's identity and mints a gateway session token.
package exchange

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/jrsteele09/go-oidc-gateway/authorize"
	"github.com/jrsteele09/go-oidc-gateway/discovery"
	"github.com/jrsteele09/go-oidc-gateway/internal/config"
	apperrors "github.com/jrsteele09/go-oidc-gateway/internal/errors"
	"github.com/jrsteele09/go-oidc-gateway/session"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

// TokenTypeBearer is the token_type reported for session tokens.
const TokenTypeBearer = "Bearer"

// Discoverer resolves provider metadata for an issuer.
type Discoverer interface {
	Discover(ctx context.Context, issuer string) (*discovery.Document, error)
}

// Minter issues session tokens.
type Minter interface {
	Mint(id session.Identity) (string, *session.Claims, error)
}

// Result is the outcome of a successful exchange.
type Result struct {
	SessionToken string
	TokenType    string
	Identity     session.Identity
	Claims       *session.Claims
	// UsedFallback is set when userinfo failed and the identity came from
	// the id_token payload.
	UsedFallback bool
}

// idTokenClaims are the identity claims read from an id_token payload
type idTokenClaims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	jwtlib.RegisteredClaims
}

type Service struct {
	cfg           config.OIDCConfig
	disco         Discoverer
	minter        Minter
	httpClient    *http.Client
	verifyIDToken bool
}

type Option func(*Service)

// WithHTTPClient sets the client used for the token and userinfo calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(s *Service) { s.httpClient = hc }
}

// WithIDTokenVerification checks the id_token signature, issuer, audience
// and expiry against the provider's JWKS before its claims are used.
func WithIDTokenVerification(enabled bool) Option {
	return func(s *Service) { s.verifyIDToken = enabled }
}

func New(cfg config.OIDCConfig, disco Discoverer, minter Minter, opts ...Option) *Service {
	s := &Service{
		cfg:        cfg,
		disco:      disco,
		minter:     minter,
		httpClient: cleanhttp.DefaultPooledClient(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Exchange redeems code at the provider's token endpoint and mints a session
// token. A token is issued only when discovery, the code exchange and the
// id_token decode all succeed; a failing userinfo call falls back to the
// id_token claims. The code is single use, so nothing here is retried.
func (s *Service) Exchange(ctx context.Context, code string) (*Result, error) {
	if strings.TrimSpace(code) == "" {
		return nil, apperrors.ErrMissingCode
	}
	logger := zerolog.Ctx(ctx)

	doc, err := s.disco.Discover(ctx, s.cfg.GetIssuer())
	if err != nil {
		return nil, fmt.Errorf("[exchange Exchange] %w", err)
	}

	ctx = oidc.ClientContext(ctx, s.httpClient)
	token, err := authorize.OAuth2Config(s.cfg, doc).Exchange(ctx, code)
	if err != nil {
		return nil, tokenExchangeError(err)
	}

	rawIDToken, _ := token.Extra("id_token").(string)
	if rawIDToken == "" {
		return nil, &apperrors.ProviderError{Kind: apperrors.ErrTokenExchange, Err: errors.New("token response has no id_token")}
	}

	idClaims, err := s.identityFromIDToken(ctx, doc, rawIDToken)
	if err != nil {
		return nil, &apperrors.ProviderError{Kind: apperrors.ErrTokenExchange, Err: err}
	}

	identity, err := userInfo(ctx, doc, token)
	usedFallback := err != nil
	if usedFallback {
		logger.Warn().Err(err).Str("event", "UserinfoFallback").Msg("userinfo lookup failed, using id_token claims")
		identity = idClaims
	}
	if identity.Name == "" {
		identity.Name = identity.Email
	}
	if identity.Subject == "" {
		return nil, &apperrors.ProviderError{Kind: apperrors.ErrTokenExchange, Err: errors.New("provider returned no subject")}
	}

	signed, claims, err := s.minter.Mint(identity)
	if err != nil {
		return nil, fmt.Errorf("[exchange Exchange] %w", err)
	}

	return &Result{
		SessionToken: signed,
		TokenType:    TokenTypeBearer,
		Identity:     identity,
		Claims:       claims,
		UsedFallback: usedFallback,
	}, nil
}

// identityFromIDToken reads the id_token payload. The token arrived over the
// authenticated token endpoint call, so its signature is only checked when
// verification is enabled.
func (s *Service) identityFromIDToken(ctx context.Context, doc *discovery.Document, raw string) (session.Identity, error) {
	var c idTokenClaims
	if s.verifyIDToken {
		verified, err := doc.Provider().Verifier(&oidc.Config{ClientID: s.cfg.GetClientID()}).Verify(ctx, raw)
		if err != nil {
			return session.Identity{}, fmt.Errorf("id_token verification failed: %w", err)
		}
		if err := verified.Claims(&c); err != nil {
			return session.Identity{}, fmt.Errorf("failed to read id_token claims: %w", err)
		}
	} else {
		parser := jwtlib.NewParser(jwtlib.WithPaddingAllowed())
		if _, _, err := parser.ParseUnverified(raw, &c); err != nil {
			return session.Identity{}, fmt.Errorf("failed to decode id_token: %w", err)
		}
	}

	return session.Identity{Subject: c.Subject, Email: c.Email, Name: c.Name}, nil
}

// userInfo asks the provider for the authoritative profile
func userInfo(ctx context.Context, doc *discovery.Document, token *oauth2.Token) (session.Identity, error) {
	info, err := doc.Provider().UserInfo(ctx, oauth2.StaticTokenSource(token))
	if err != nil {
		return session.Identity{}, err
	}
	if info.Subject == "" {
		return session.Identity{}, errors.New("userinfo response has no sub")
	}

	var profile struct {
		Name string `json:"name"`
	}
	if err := info.Claims(&profile); err != nil {
		return session.Identity{}, fmt.Errorf("failed to read userinfo claims: %w", err)
	}
	return session.Identity{Subject: info.Subject, Email: info.Email, Name: profile.Name}, nil
}

func tokenExchangeError(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		return &apperrors.ProviderError{
			Kind:       apperrors.ErrTokenExchange,
			StatusCode: re.Response.StatusCode,
			Body:       re.Body,
			Err:        err,
		}
	}
	return &apperrors.ProviderError{Kind: apperrors.ErrTokenExchange, Err: err}
}
