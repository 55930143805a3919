// Package api exposes the conversational agent over HTTP.
//
// Endpoints:
//
//	POST /api/chat  - one conversational turn
//	GET  /healthz   - liveness probe
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	orchestratorx "github.com/pchaya/aftercare/agent/agents/orchestrator"
)

const (
	DefaultAddr = "127.0.0.1:8080"

	ShutdownTimeout   = 10 * time.Second
	ReadHeaderTimeout = 10 * time.Second
	ReadTimeout       = 30 * time.Second
	WriteTimeout      = 60 * time.Second
	IdleTimeout       = 120 * time.Second
)

type Config struct {
	Addr string `envconfig:"ADDR" split_words:"true" default:"127.0.0.1:8080"`
}

// Server is the HTTP front for the orchestrator.
type Server struct {
	mux          *http.ServeMux
	orchestrator *orchestratorx.Orchestrator
	log          zerolog.Logger
}

func NewServer(orchestrator *orchestratorx.Orchestrator, log zerolog.Logger) *Server {
	s := &Server{
		mux:          http.NewServeMux(),
		orchestrator: orchestrator,
		log:          log,
	}
	s.mux.HandleFunc("POST /api/chat", s.handleChat)
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	return s
}

// Handler returns the mux with recovery and request logging applied.
func (s *Server) Handler() http.Handler {
	return s.recoveryMiddleware(s.loggingMiddleware(s.mux))
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.log.Info().Msg("http server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
