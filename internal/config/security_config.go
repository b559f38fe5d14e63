package config

import "time"

const (
	jwtSecretVar       = "JWT_SECRET"
	sessionTokenTTLVar = "SESSION_TOKEN_TTL"
	discoveryTTLVar    = "OIDC_DISCOVERY_TTL"
	verifyIDTokenVar   = "OIDC_VERIFY_ID_TOKEN"
)

type Security struct{}

var _ SecurityConfig = Security{}

func (Security) GetJWTSecret() string {
	return GetEnv(jwtSecretVar, "")
}

func (Security) GetSessionTokenTTL() time.Duration {
	return GetEnvDuration(sessionTokenTTLVar, 24*time.Hour)
}

func (Security) GetDiscoveryCacheTTL() time.Duration {
	return GetEnvDuration(discoveryTTLVar, 5*time.Minute)
}

// GetVerifyIDTokenSignature enables checking the provider's id_token
// signature against its published JWKS. Off by default.
func (Security) GetVerifyIDTokenSignature() bool {
	return GetEnvBool(verifyIDTokenVar, false)
}
