package httpserver

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"credauth/backend/internal/config"
	authusecase "credauth/backend/internal/usecase/auth"
)

// Pinger reports whether a backing store is reachable. *pgxpool.Pool satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server wraps the HTTP server lifecycle.
type Server struct {
	httpServer  *http.Server
	router      *http.ServeMux
	authService *authusecase.Service
	metrics     *Metrics
	database    Pinger
	logger      *slog.Logger
	addr        string
	startedAt   time.Time
}

// NewServer constructs a new Server with configured dependencies. A nil
// metrics disables the /metrics endpoint and a nil database skips the
// database check in /health.
func NewServer(cfg config.Config, authService *authusecase.Service, metrics *Metrics, database Pinger, logger *slog.Logger) *Server {
	mux := http.NewServeMux()
	addr := cfg.HTTPPort
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}
	if logger == nil {
		logger = slog.Default()
	}

	handler := withRequestID(withLogging(withCORS(metrics.instrument(mux), cfg.AllowedOrigins), logger))

	srv := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      handler,
			ReadTimeout:  time.Duration(cfg.ReadTimeoutSec) * time.Second,
			WriteTimeout: time.Duration(cfg.WriteTimeoutSec) * time.Second,
			IdleTimeout:  time.Duration(cfg.IdleTimeoutSec) * time.Second,
		},
		router:      mux,
		authService: authService,
		metrics:     metrics,
		database:    database,
		logger:      logger,
		addr:        addr,
		startedAt:   time.Now(),
	}
	srv.registerRoutes()
	return srv
}

// Start bootstraps the HTTP server on the configured address.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the fully wrapped root handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Addr returns the configured network address for the HTTP server.
func (s *Server) Addr() string {
	return s.addr
}
