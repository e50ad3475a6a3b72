// Package server owns the HTTP listener: routing, middleware and lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ternarybob/colligo/internal/app"
)

// Server wraps the HTTP server with the application's routes and middleware
type Server struct {
	app    *app.App
	router *http.ServeMux
	server *http.Server
}

// New builds the server for the given application
func New(application *app.App) *Server {
	s := &Server{
		app:    application,
		router: http.NewServeMux(),
	}

	s.setupRoutes()

	var handler http.Handler = s.router
	handler = corsMiddleware(handler)
	handler = loggingMiddleware(application.Logger, handler)
	handler = recoveryMiddleware(application.Logger, handler)

	addr := fmt.Sprintf("%s:%d", application.Config.Server.Host, application.Config.Server.Port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start begins serving requests. Blocks until the server stops.
func (s *Server) Start() error {
	s.app.Logger.Info().
		Str("addr", s.server.Addr).
		Msg("HTTP server listening")

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server, waiting for in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	s.app.Logger.Info().Msg("Stopping HTTP server")
	return s.server.Shutdown(ctx)
}
