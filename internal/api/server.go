package api

import (
	"context"
	"net"
	"net/http"
	"strconv"

	"github.com/stamon-dev/stamon/internal/metrics"
	"github.com/stamon-dev/stamon/internal/state"
	"github.com/stamon-dev/stamon/internal/ws"
)

// ServerConfig carries the server's wiring.
type ServerConfig struct {
	ListenAddress   string
	Port            int
	AssetsPath      string
	APIMaxBodyBytes int64

	Auth     *Authenticator
	Services *state.ServiceRepo
	Logs     *state.LogRepo
	Users    *state.UserRepo
	Config   *state.ConfigRepo
	Hub      *ws.Hub
}

// Server wraps the HTTP server and mux for the stamon API.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
}

// NewServer creates a new API server wired with all routes.
func NewServer(cfg ServerConfig) *Server {
	mux := http.NewServeMux()

	// Public (no session required).
	mux.Handle("GET /healthz", HandleHealthz())
	mux.Handle("GET /metrics", metrics.Handler())
	mux.Handle("POST /api/v1/users/login", HandleLogin(cfg.Users, cfg.Auth))
	// Open only until the first account exists; the handler gates itself.
	mux.Handle("POST /api/v1/users/register", HandleRegister(cfg.Users, cfg.Auth))

	// Authenticated routes.
	authed := http.NewServeMux()
	authed.Handle("GET /api/v1/users/me", HandleMe(cfg.Users))

	authed.Handle("GET /api/v1/services", HandleListServices(cfg.Services))
	authed.Handle("GET /api/v1/services/{id}", HandleGetService(cfg.Services))
	authed.Handle("GET /api/v1/services/{id}/logs", HandleListServiceLogs(cfg.Services, cfg.Logs))
	authed.Handle("GET /api/v1/logs", HandleListLogs(cfg.Logs))
	authed.Handle("GET /api/v1/incidents", HandleListIncidents(cfg.Logs))
	authed.Handle("GET /api/v1/stats", HandleStats(cfg.Services))
	authed.Handle("GET /api/v1/config", HandleListConfigCategory(cfg.Config))
	authed.Handle("GET /api/v1/config/{name}", HandleGetConfig(cfg.Config))

	// Mutations require the admin role.
	authed.Handle("POST /api/v1/services", RequireAdmin(HandleCreateService(cfg.Services)))
	authed.Handle("PUT /api/v1/services/{id}", RequireAdmin(HandleUpdateService(cfg.Services)))
	authed.Handle("DELETE /api/v1/services/{id}", RequireAdmin(HandleDeleteService(cfg.Services)))
	authed.Handle("PUT /api/v1/config/{name}", RequireAdmin(HandleSetConfig(cfg.Config)))

	limitedAuthed := RequestBodyLimitMiddleware(cfg.APIMaxBodyBytes, authed)
	mux.Handle("/api/", AuthMiddleware(cfg.Auth, limitedAuthed))

	if cfg.Hub != nil {
		mux.Handle("GET /ws", AuthMiddleware(cfg.Auth, cfg.Hub))
	}
	registerAssets(mux, cfg.AssetsPath)

	srv := &http.Server{
		Addr:    net.JoinHostPort(cfg.ListenAddress, strconv.Itoa(cfg.Port)),
		Handler: mux,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
	}
}

// ListenAndServe starts the HTTP server. It blocks until the server stops.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the underlying http.Handler for testing.
func (s *Server) Handler() http.Handler {
	return s.mux
}
