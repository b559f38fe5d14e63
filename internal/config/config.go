package config

import "time"

type Config interface {
	EnvConfig
	CorsConfig
	OIDCConfig
	SecurityConfig
	RateLimitConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetAppVersion() string
	GetEnv() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type OIDCConfig interface {
	GetClientID() string
	GetClientSecret() string
	GetIssuer() string
	GetRedirectURI() string
	GetScopes() []string
}

type SecurityConfig interface {
	GetJWTSecret() string
	GetSessionTokenTTL() time.Duration
	GetDiscoveryCacheTTL() time.Duration
	GetVerifyIDTokenSignature() bool
}

type RateLimitConfig interface {
	GetAuthRateLimit() RateLimit
}

type mainConfig struct {
	EnvVars
	Cors
	OIDC
	Security
	RateLimits
}

func New() Config {
	return mainConfig{}
}
