package config

import "strings"

// The OIDC_* names take precedence; the older unprefixed names are still
// honoured so existing deployments keep working.
const (
	clientIDVar     = "OIDC_CLIENT_ID"
	clientSecretVar = "OIDC_CLIENT_SECRET"
	issuerVar       = "OIDC_ISSUER"
	redirectURIVar  = "OIDC_REDIRECT_URI"
	scopeVar        = "OIDC_SCOPE"

	legacyClientIDVar     = "CLIENT_ID"
	legacyClientSecretVar = "CLIENT_SECRET"
	legacyIssuerVar       = "OPENID_PROVIDER"
	legacyRedirectURIVar  = "REDIRECT_URI"

	DefaultScope = "openid profile email"
)

type OIDC struct{}

var _ OIDCConfig = OIDC{}

func (OIDC) GetClientID() string {
	return GetEnvFirst("", clientIDVar, legacyClientIDVar)
}

func (OIDC) GetClientSecret() string {
	return GetEnvFirst("", clientSecretVar, legacyClientSecretVar)
}

// GetIssuer returns the provider base URL exactly as configured; it must match
// the issuer advertised in the discovery document.
func (OIDC) GetIssuer() string {
	return GetEnvFirst("", issuerVar, legacyIssuerVar)
}

func (OIDC) GetRedirectURI() string {
	return GetEnvFirst("", redirectURIVar, legacyRedirectURIVar)
}

func (OIDC) GetScopes() []string {
	return strings.Fields(GetEnv(scopeVar, DefaultScope))
}
