package config

import "time"

// RateLimit defines a token bucket: RequestsPerWindow refill over Window,
// with up to Burst requests at once.
type RateLimit struct {
	RequestsPerWindow int
	Window            time.Duration
	Burst             int
}

type RateLimits struct{}

var _ RateLimitConfig = RateLimits{}

// GetAuthRateLimit applies to the login and callback endpoints.
// Override with RATELIMIT_AUTH_REQUESTS, RATELIMIT_AUTH_WINDOW_SEC, RATELIMIT_AUTH_BURST.
func (RateLimits) GetAuthRateLimit() RateLimit {
	return RateLimit{
		RequestsPerWindow: GetEnvInt("RATELIMIT_AUTH_REQUESTS", 30),
		Window:            time.Duration(GetEnvInt("RATELIMIT_AUTH_WINDOW_SEC", 60)) * time.Second,
		Burst:             GetEnvInt("RATELIMIT_AUTH_BURST", 10),
	}
}
