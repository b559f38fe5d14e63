package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/hashicorp/go-cleanhttp"
)

// API paths served by the gateway
const (
	pathLogin    = "/api/auth/login"
	pathCallback = "/api/auth/callback"
	pathMe       = "/api/auth/me"
	pathLogout   = "/api/auth/logout"
)

// User is the profile kept alongside the session token.
type User struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
}

type LoginResponse struct {
	AuthURL string `json:"authUrl"`
	State   string `json:"state"`
}

type CallbackResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	User        User   `json:"user"`
}

type LogoutResponse struct {
	Message   string `json:"message"`
	LogoutURL string `json:"logoutUrl,omitempty"`
}

// APIError is a non-2xx response from the gateway. Message is the "error"
// field of the body when there is one.
type APIError struct {
	StatusCode int
	Message    string
	Details    json.RawMessage
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("gateway returned %d: %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("gateway returned %d: %s", e.StatusCode, e.Message)
}

// APIClient talks to the gateway's auth endpoints.
type APIClient struct {
	baseURL    string
	httpClient *http.Client
}

type APIOption func(*APIClient)

func WithHTTPClient(hc *http.Client) APIOption {
	return func(c *APIClient) { c.httpClient = hc }
}

func NewAPIClient(baseURL string, opts ...APIOption) *APIClient {
	c := &APIClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: cleanhttp.DefaultPooledClient(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Login starts a login attempt
func (c *APIClient) Login(ctx context.Context) (*LoginResponse, error) {
	var resp LoginResponse
	if err := c.do(ctx, http.MethodGet, pathLogin, "", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Callback trades an authorization code for a session token
func (c *APIClient) Callback(ctx context.Context, code string) (*CallbackResponse, error) {
	var resp CallbackResponse
	if err := c.do(ctx, http.MethodPost, pathCallback, "", map[string]string{"code": code}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *APIClient) Me(ctx context.Context, token string) (*User, error) {
	var resp struct {
		User struct {
			ID    string `json:"id"`
			Email string `json:"email"`
			Name  string `json:"name"`
		} `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, pathMe, token, nil, &resp); err != nil {
		return nil, err
	}
	return &User{Subject: resp.User.ID, Email: resp.User.Email, Name: resp.User.Name}, nil
}

// Logout tells the gateway the session is over. The token is optional.
func (c *APIClient) Logout(ctx context.Context, token string) (*LogoutResponse, error) {
	var resp LogoutResponse
	if err := c.do(ctx, http.MethodPost, pathLogout, token, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *APIClient) do(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		apiErr := &APIError{StatusCode: res.StatusCode}
		var errBody struct {
			Error   string          `json:"error"`
			Details json.RawMessage `json:"details"`
		}
		if json.Unmarshal(data, &errBody) == nil {
			apiErr.Message = errBody.Error
			apiErr.Details = errBody.Details
		}
		return apiErr
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s %s: invalid response: %w", method, path, err)
	}
	return nil
}
