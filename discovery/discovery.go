// Package discovery fetches and caches OpenID Connect provider metadata.
package discovery

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/hashicorp/go-cleanhttp"
	apperrors "github.com/jrsteele09/go-oidc-gateway/internal/errors"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// DefaultTTL is how long a discovery document is reused for an issuer.
const DefaultTTL = 5 * time.Minute

// Document holds the provider endpoints used by the gateway.
type Document struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	UserInfoEndpoint      string `json:"userinfo_endpoint"`
	EndSessionEndpoint    string `json:"end_session_endpoint"`
	JWKSURI               string `json:"jwks_uri"`

	provider *oidc.Provider
}

// Provider returns the go-oidc provider built from the document. It is used
// for userinfo lookups and id_token verification.
func (d *Document) Provider() *oidc.Provider {
	return d.provider
}

type cacheEntry struct {
	doc     *Document
	expires time.Time
}

// Client fetches {issuer}/.well-known/openid-configuration.
type Client struct {
	httpClient *http.Client
	ttl        time.Duration

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

type Option func(*Client)

// WithTTL sets how long successful lookups are cached. Zero disables caching.
func WithTTL(ttl time.Duration) Option {
	return func(c *Client) { c.ttl = ttl }
}

// WithHTTPClient replaces the pooled default client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func New(opts ...Option) *Client {
	c := &Client{
		httpClient: cleanhttp.DefaultPooledClient(),
		ttl:        DefaultTTL,
		cache:      make(map[string]cacheEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HTTPClient returns the client used for provider calls
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// Discover returns the provider metadata for issuer. Any failure matches
// errors.ErrDiscovery and is not cached.
func (c *Client) Discover(ctx context.Context, issuer string) (*Document, error) {
	if doc, ok := c.cached(issuer); ok {
		return doc, nil
	}

	// The provider keeps this context for later JWKS fetches, so it must
	// outlive the request that triggered discovery.
	provider, err := oidc.NewProvider(oidc.ClientContext(context.WithoutCancel(ctx), c.httpClient), issuer)
	if err != nil {
		return nil, &apperrors.ProviderError{Kind: apperrors.ErrDiscovery, Err: err}
	}

	doc := &Document{provider: provider}
	if err := provider.Claims(doc); err != nil {
		return nil, &apperrors.ProviderError{Kind: apperrors.ErrDiscovery, Err: err}
	}
	if doc.AuthorizationEndpoint == "" || doc.TokenEndpoint == "" {
		return nil, &apperrors.ProviderError{
			Kind: apperrors.ErrDiscovery,
			Err:  fmt.Errorf("discovery document for %s is missing authorization_endpoint or token_endpoint", issuer),
		}
	}

	if c.ttl > 0 {
		c.mu.Lock()
		c.cache[issuer] = cacheEntry{doc: doc, expires: NowTimeFunc().Add(c.ttl)}
		c.mu.Unlock()
	}
	return doc, nil
}

// Invalidate drops any cached document for issuer.
func (c *Client) Invalidate(issuer string) {
	c.mu.Lock()
	delete(c.cache, issuer)
	c.mu.Unlock()
}

func (c *Client) cached(issuer string) (*Document, bool) {
	c.mu.RLock()
	entry, ok := c.cache[issuer]
	c.mu.RUnlock()
	if !ok || !NowTimeFunc().Before(entry.expires) {
		return nil, false
	}
	return entry.doc, true
}
