package server

import "net/http"

func (s *Server) initRoutes() {
	s.RegisterRouteHandler("GET "+RouteIndex+"{$}", ChainMiddleware(s.IndexHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteHealth, ChainMiddleware(s.HealthHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteAPIHealth, ChainMiddleware(s.HealthHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteAPIHello, ChainMiddleware(s.HelloHandler(), s.APIMiddleware()...))

	// LOGIN
	authLimit := s.RateLimitMiddleware(s.config.GetAuthRateLimit())
	s.RegisterRouteHandler("GET "+RouteAuthLogin, ChainMiddleware(s.LoginHandler(), s.APIMiddleware(authLimit)...))
	s.RegisterRouteHandler("POST "+RouteAuthCallback, ChainMiddleware(s.CallbackHandler(), s.APIMiddleware(authLimit)...))
	s.RegisterRouteHandler("POST "+RouteAuthLogout, ChainMiddleware(s.LogoutHandler(), s.APIMiddleware()...))

	// Bearer protected
	s.RegisterRouteHandler("GET "+RouteAuthMe, ChainMiddleware(s.MeHandler(), s.APIMiddleware(s.RequireAuth())...))
	s.RegisterRouteHandler("GET "+RouteProtected, ChainMiddleware(s.ProtectedHandler(), s.APIMiddleware(s.RequireAuth())...))

	// CORS preflight for the API routes
	s.RegisterRouteHandler("OPTIONS /api/", ChainMiddleware(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}, s.APIMiddleware()...))
}
