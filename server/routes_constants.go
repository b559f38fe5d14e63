package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	RouteIndex     = "/"
	RouteHealth    = "/health"
	RouteAPIHealth = "/api/health"
	RouteAPIHello  = "/api/hello"

	// Auth Routes
	RouteAuthLogin    = "/api/auth/login"
	RouteAuthCallback = "/api/auth/callback"
	RouteAuthMe       = "/api/auth/me"
	RouteAuthLogout   = "/api/auth/logout"

	// Protected example
	RouteProtected = "/api/protected"
)
