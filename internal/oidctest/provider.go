// Package oidctest provides a disposable OIDC provider for tests. It serves
// discovery, token, userinfo, end-session and JWKS endpoints and hands out
// single-use authorization codes.
package oidctest

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const (
	DefaultClientID     = "abc"
	DefaultClientSecret = "client-secret"
	keyID               = "test-key"

	PathDiscovery  = "/.well-known/openid-configuration"
	PathAuthorize  = "/auth"
	PathToken      = "/token"
	PathUserInfo   = "/userinfo"
	PathEndSession = "/logout"
	PathJWKS       = "/jwks"
)

// Provider is a stub OIDC provider backed by httptest.
type Provider struct {
	server *httptest.Server
	key    *rsa.PrivateKey

	mu               sync.Mutex
	clientID         string
	clientSecret     string
	codes            map[string]map[string]any // code -> id_token claims
	accessTokens     map[string]bool
	userInfo         map[string]any
	userInfoStatus   int
	discoveryStatus  int
	omitEndSession   bool
	omitIDToken      bool
	hits             map[string]int
	lastTokenRequest map[string]string
}

// Start creates a Provider that is shut down when the test finishes.
func Start(t testing.TB) *Provider {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	p := &Provider{
		key:          key,
		clientID:     DefaultClientID,
		clientSecret: DefaultClientSecret,
		codes:        make(map[string]map[string]any),
		accessTokens: make(map[string]bool),
		hits:         make(map[string]int),
	}
	p.server = httptest.NewServer(p)
	t.Cleanup(p.server.Close)
	return p
}

// Issuer is the base URL of the provider
func (p *Provider) Issuer() string { return p.server.URL }

// Client returns an HTTP client that talks to the provider
func (p *Provider) Client() *http.Client { return p.server.Client() }

// SetClientCreds changes the credentials the token endpoint accepts
func (p *Provider) SetClientCreds(clientID, clientSecret string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clientID, p.clientSecret = clientID, clientSecret
}

// AddCode registers a single-use authorization code. The claims become the
// id_token payload; iss, aud, iat and exp are filled in when absent.
func (p *Provider) AddCode(code string, claims map[string]any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.codes[code] = claims
}

// SetUserInfo sets the userinfo response body. A nil map disables the
// userinfo endpoint in the discovery document.
func (p *Provider) SetUserInfo(info map[string]any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.userInfo = info
}

// SetUserInfoStatus forces the userinfo endpoint to fail with status
func (p *Provider) SetUserInfoStatus(status int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.userInfoStatus = status
}

// SetDiscoveryStatus forces the discovery endpoint to fail with status
func (p *Provider) SetDiscoveryStatus(status int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.discoveryStatus = status
}

// OmitEndSession leaves end_session_endpoint out of the discovery document
func (p *Provider) OmitEndSession() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.omitEndSession = true
}

// OmitIDToken leaves id_token out of token responses
func (p *Provider) OmitIDToken() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.omitIDToken = true
}

// Hits returns how many requests were served for path
func (p *Provider) Hits(path string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hits[path]
}

// TotalHits returns how many requests the provider served in total
func (p *Provider) TotalHits() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	total := 0
	for _, n := range p.hits {
		total += n
	}
	return total
}

// LastTokenRequest returns the form values of the most recent token request
func (p *Provider) LastTokenRequest() map[string]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastTokenRequest
}

// SignIDToken signs claims with the provider key (RS256)
func (p *Provider) SignIDToken(t testing.TB, claims map[string]any) string {
	t.Helper()
	raw, err := p.signIDToken(claims)
	require.NoError(t, err)
	return raw
}

func (p *Provider) signIDToken(claims map[string]any) (string, error) {
	mc := jwtlib.MapClaims{
		"iss": p.server.URL,
		"aud": p.clientID,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	for k, v := range claims {
		mc[k] = v
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodRS256, mc)
	token.Header["kid"] = keyID
	return token.SignedString(p.key)
}

func (p *Provider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	p.hits[r.URL.Path]++
	p.mu.Unlock()

	switch r.URL.Path {
	case PathDiscovery:
		p.discovery(w)
	case PathToken:
		p.token(w, r)
	case PathUserInfo:
		p.userinfo(w, r)
	case PathJWKS:
		p.jwks(w)
	default:
		http.NotFound(w, r)
	}
}

func (p *Provider) discovery(w http.ResponseWriter) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.discoveryStatus != 0 {
		http.Error(w, "discovery unavailable", p.discoveryStatus)
		return
	}
	base := p.server.URL
	doc := map[string]any{
		"issuer":                                base,
		"authorization_endpoint":                base + PathAuthorize,
		"token_endpoint":                        base + PathToken,
		"jwks_uri":                              base + PathJWKS,
		"response_types_supported":              []string{"code"},
		"subject_types_supported":               []string{"public"},
		"id_token_signing_alg_values_supported": []string{"RS256"},
	}
	if p.userInfo != nil || p.userInfoStatus != 0 {
		doc["userinfo_endpoint"] = base + PathUserInfo
	}
	if !p.omitEndSession {
		doc["end_session_endpoint"] = base + PathEndSession
	}
	writeJSON(w, http.StatusOK, doc)
}

func (p *Provider) token(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, tokenError("invalid_request", err.Error()))
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.lastTokenRequest = map[string]string{}
	for k := range r.PostForm {
		p.lastTokenRequest[k] = r.PostForm.Get(k)
	}

	if r.PostForm.Get("grant_type") != "authorization_code" {
		writeJSON(w, http.StatusBadRequest, tokenError("unsupported_grant_type", "only authorization_code is supported"))
		return
	}
	if r.PostForm.Get("client_id") != p.clientID || r.PostForm.Get("client_secret") != p.clientSecret {
		writeJSON(w, http.StatusUnauthorized, tokenError("invalid_client", "client authentication failed"))
		return
	}

	code := r.PostForm.Get("code")
	claims, ok := p.codes[code]
	if !ok {
		writeJSON(w, http.StatusBadRequest, tokenError("invalid_grant", "authorization code is invalid or has already been used"))
		return
	}
	delete(p.codes, code)

	accessToken := "AT-" + code
	p.accessTokens[accessToken] = true

	resp := map[string]any{
		"access_token": accessToken,
		"token_type":   "Bearer",
		"expires_in":   3600,
	}
	if !p.omitIDToken {
		idToken, err := p.signIDToken(claims)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, tokenError("server_error", err.Error()))
			return
		}
		resp["id_token"] = idToken
	}
	writeJSON(w, http.StatusOK, resp)
}

func (p *Provider) userinfo(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.userInfoStatus != 0 {
		http.Error(w, "userinfo unavailable", p.userInfoStatus)
		return
	}
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") || !p.accessTokens[strings.TrimPrefix(auth, "Bearer ")] {
		writeJSON(w, http.StatusUnauthorized, tokenError("invalid_token", "unknown access token"))
		return
	}
	writeJSON(w, http.StatusOK, p.userInfo)
}

func (p *Provider) jwks(w http.ResponseWriter) {
	pub := p.key.PublicKey
	writeJSON(w, http.StatusOK, map[string]any{
		"keys": []map[string]string{{
			"kty": "RSA",
			"alg": "RS256",
			"use": "sig",
			"kid": keyID,
			"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		}},
	})
}

func tokenError(code, description string) map[string]string {
	return map[string]string{"error": code, "error_description": description}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
