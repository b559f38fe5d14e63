package server

import (
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/jrsteele09/go-oidc-gateway/authorize"
	"github.com/jrsteele09/go-oidc-gateway/discovery"
	"github.com/jrsteele09/go-oidc-gateway/exchange"
	"github.com/jrsteele09/go-oidc-gateway/internal/config"
	"github.com/jrsteele09/go-oidc-gateway/session"
)

type Server struct {
	env        string // Environment (e.g., "DEV", "PROD")
	mux        *http.ServeMux
	routes     []string
	config     config.Config
	startedAt  time.Time
	httpClient *http.Client

	discovery  *discovery.Client
	authorizer *authorize.Builder
	exchanger  *exchange.Service
	signer     *session.Signer
}

type Option func(*Server)

// WithHTTPClient sets the client used for all calls to the OIDC provider
func WithHTTPClient(hc *http.Client) Option {
	return func(s *Server) { s.httpClient = hc }
}

func New(cfg config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		env:        cfg.GetEnv(),
		mux:        http.NewServeMux(),
		config:     cfg,
		startedAt:  time.Now(),
		httpClient: cleanhttp.DefaultPooledClient(),
	}
	for _, opt := range opts {
		opt(s)
	}

	signer, err := session.NewSigner(cfg.GetJWTSecret(), cfg.GetSessionTokenTTL())
	if err != nil {
		return nil, fmt.Errorf("[Server New] failed to create session signer: %w", err)
	}
	s.signer = signer
	s.discovery = discovery.New(
		discovery.WithHTTPClient(s.httpClient),
		discovery.WithTTL(cfg.GetDiscoveryCacheTTL()),
	)
	s.authorizer = authorize.NewBuilder(cfg, s.discovery)
	s.exchanger = exchange.New(cfg, s.discovery, signer,
		exchange.WithHTTPClient(s.httpClient),
		exchange.WithIDTokenVerification(cfg.GetVerifyIDTokenSignature()),
	)

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != config.EnvDevelopment {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	log.Printf("[%-19s] %s\n", displayMethod, path)
}
