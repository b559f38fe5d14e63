package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/jrsteele09/go-oidc-gateway/session"
)

const contentTypeJSON = "application/json; charset=utf-8"

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Details any    `json:"details,omitempty"`
}

type endpointInfo struct {
	Method      string `json:"method"`
	Path        string `json:"path"`
	Description string `json:"description"`
}

type indexResponse struct {
	Name      string         `json:"name"`
	Version   string         `json:"version"`
	Endpoints []endpointInfo `json:"endpoints"`
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    float64   `json:"uptime"`
}

type helloResponse struct {
	Message   string    `json:"message"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

type callbackRequest struct {
	Code string `json:"code"`
}

type callbackResponse struct {
	AccessToken string           `json:"access_token"`
	TokenType   string           `json:"token_type"`
	User        session.Identity `json:"user"`
}

// meUser is the profile shape returned by /api/auth/me
type meUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type meResponse struct {
	User meUser `json:"user"`
}

type logoutResponse struct {
	Message   string `json:"message"`
	LogoutURL string `json:"logoutUrl,omitempty"`
}

type protectedResponse struct {
	Message string          `json:"message"`
	User    *session.Claims `json:"user"`
}

func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, errorResponse{Error: message})
}
