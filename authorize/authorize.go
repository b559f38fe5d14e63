// Package authorize builds the provider authorization redirect and the
// CSRF state value that accompanies it.
package authorize

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"

	"github.com/jrsteele09/go-oidc-gateway/discovery"
	"github.com/jrsteele09/go-oidc-gateway/internal/config"
	"golang.org/x/oauth2"
)

// stateBytes of entropy encode to a 16 character base64url state.
const stateBytes = 12

// Discoverer resolves provider metadata for an issuer.
type Discoverer interface {
	Discover(ctx context.Context, issuer string) (*discovery.Document, error)
}

// Request is an authorization redirect and the state the caller must keep
// until the provider calls back.
type Request struct {
	AuthURL string `json:"authUrl"`
	State   string `json:"state"`
}

type Builder struct {
	cfg   config.OIDCConfig
	disco Discoverer
}

func NewBuilder(cfg config.OIDCConfig, disco Discoverer) *Builder {
	return &Builder{cfg: cfg, disco: disco}
}

// Build discovers the authorization endpoint and returns a redirect URL with
// a fresh state. Nothing is stored server side.
func (b *Builder) Build(ctx context.Context) (*Request, error) {
	doc, err := b.disco.Discover(ctx, b.cfg.GetIssuer())
	if err != nil {
		return nil, fmt.Errorf("[authorize Build] %w", err)
	}

	state, err := NewState()
	if err != nil {
		return nil, err
	}

	return &Request{
		AuthURL: OAuth2Config(b.cfg, doc).AuthCodeURL(state),
		State:   state,
	}, nil
}

// LogoutURL returns the provider end-session URL that sends the user back to
// the application root, or "" when the provider has no end-session endpoint.
func (b *Builder) LogoutURL(ctx context.Context) (string, error) {
	doc, err := b.disco.Discover(ctx, b.cfg.GetIssuer())
	if err != nil {
		return "", fmt.Errorf("[authorize LogoutURL] %w", err)
	}
	if doc.EndSessionEndpoint == "" {
		return "", nil
	}

	u, err := url.Parse(doc.EndSessionEndpoint)
	if err != nil {
		return "", fmt.Errorf("[authorize LogoutURL] invalid end_session_endpoint: %w", err)
	}
	q := u.Query()
	q.Set("post_logout_redirect_uri", strings.Replace(b.cfg.GetRedirectURI(), "/callback", "", 1))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// OAuth2Config describes the client to x/oauth2 using the discovered
// endpoints. Client credentials are sent in the form body.
func OAuth2Config(cfg config.OIDCConfig, doc *discovery.Document) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.GetClientID(),
		ClientSecret: cfg.GetClientSecret(),
		RedirectURL:  cfg.GetRedirectURI(),
		Scopes:       cfg.GetScopes(),
		Endpoint: oauth2.Endpoint{
			AuthURL:   doc.AuthorizationEndpoint,
			TokenURL:  doc.TokenEndpoint,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// NewState returns an unpredictable, URL-safe state value.
func NewState() (string, error) {
	b := make([]byte, stateBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
