// Package api implements `tonk serve`'s HTTP dev server: it serves a
// loaded bundle's VFS over plain HTTP through the host bridge's
// fetch-translation logic (§4.6) and upgrades /_sync to a WebSocket
// relay endpoint other TonkCore instances can connect against.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/tonk-labs/tonk/internal/adapters/hostbridge"
	"github.com/tonk-labs/tonk/internal/api/handlers"
	"github.com/tonk-labs/tonk/internal/api/middleware"
	"github.com/tonk-labs/tonk/internal/core/usecases"
)

// ServerConfig holds configuration for the dev server.
type ServerConfig struct {
	Address      string
	Port         int
	APIKey       string // optional bearer token required on every route but /health and /_sync
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns a default server configuration.
func DefaultConfig() ServerConfig {
	return ServerConfig{
		Address:      "127.0.0.1",
		Port:         8080,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // streaming WS connections on /_sync must not be write-deadlined
	}
}

// Server is the HTTP dev server for a single loaded bundle.
type Server struct {
	config     ServerConfig
	bridge     *hostbridge.Bridge
	logger     usecases.Logger
	httpServer *http.Server
}

// NewServer creates a dev server bound to an already-initialized
// bridge (its bundle must already be loaded via loadBundle/init).
func NewServer(config ServerConfig, bridge *hostbridge.Bridge, logger usecases.Logger) *Server {
	return &Server{config: config, bridge: bridge, logger: logger}
}

// Start runs the HTTP server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()

	h := handlers.NewHandlers(s.bridge)
	relay := handlers.NewRelay(s.logger)

	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /api/v1/manifest", h.Manifest)
	mux.HandleFunc("/_sync", relay.ServeHTTP)
	mux.HandleFunc("/", h.Fetch)

	var handler http.Handler = mux
	if s.config.APIKey != "" {
		handler = middleware.Auth(s.config.APIKey)(handler)
	}
	handler = middleware.Logger(handler)
	handler = middleware.CORS(handler)
	handler = middleware.Recovery(handler)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.config.Address, s.config.Port),
		Handler:      handler,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		return s.Shutdown()
	case err := <-errChan:
		return err
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}
