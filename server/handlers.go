package server

import (
	"net/http"
	"time"
)

var endpoints = []endpointInfo{
	{http.MethodGet, RouteHealth, "Service health"},
	{http.MethodGet, RouteAPIHello, "Greeting"},
	{http.MethodGet, RouteAuthLogin, "Start an OIDC login, returns the authorization URL and state"},
	{http.MethodPost, RouteAuthCallback, "Exchange an authorization code for a session token"},
	{http.MethodGet, RouteAuthMe, "Current user (Bearer)"},
	{http.MethodPost, RouteAuthLogout, "End the session, returns the provider logout URL"},
	{http.MethodGet, RouteProtected, "Example protected resource (Bearer)"},
}

// IndexHandler describes the API
func (s *Server) IndexHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, indexResponse{
			Name:      s.config.GetAppName(),
			Version:   s.config.GetAppVersion(),
			Endpoints: endpoints,
		})
	}
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, healthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC(),
			Uptime:    time.Since(s.startedAt).Seconds(),
		})
	}
}

func (s *Server) HelloHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, helloResponse{
			Message:   "Hello from " + s.config.GetAppName() + "!",
			Version:   s.config.GetAppVersion(),
			Timestamp: time.Now().UTC(),
		})
	}
}
