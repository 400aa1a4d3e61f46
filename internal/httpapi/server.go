// Package httpapi exposes registered models over a JSON HTTP API:
// collection queries driven by URL parameters, item lookup, and the full
// mutation lifecycle including set-based bulk operations.
package httpapi

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/relstack-labs/relstore/internal/record"
)

// Server serves the record API over HTTP.
type Server struct {
	access *record.Access
	addr   string
	logger *slog.Logger
}

// Config holds configuration for the API server.
type Config struct {
	Access *record.Access
	Addr   string
	Logger *slog.Logger
}

// NewServer creates a new API server instance.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Server{
		access: cfg.Access,
		addr:   cfg.Addr,
		logger: logger,
	}
}

// Router builds the chi router with all model routes mounted.
func (s *Server) Router() chi.Router {
	r := chi.NewMux()
	r.Use(
		middleware.Recoverer,
		middleware.Compress(5),
	)

	h := newHandlers(s.access, s.logger)
	r.Route("/{model}", func(r chi.Router) {
		r.Get("/", h.Collection)
		r.Post("/", h.CreateItem)
		r.Patch("/", h.BulkUpdate)
		r.Delete("/", h.BulkDelete)
		r.Route("/{pk}", func(r chi.Router) {
			r.Get("/", h.Item)
			r.Patch("/", h.UpdateItem)
			r.Delete("/", h.DeleteItem)
		})
	})
	return r
}

// Serve starts the API server and blocks until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("starting API server", "addr", s.addr)

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    s.addr,
		Handler: s.Router(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down API server...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}
