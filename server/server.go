// Package server exposes the looper over HTTP so it can be driven from a
// browser, a script or another process.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"ambient-looper/sequencer"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Looper is the part of sequencer.Manager the server drives
type Looper interface {
	Snapshot() sequencer.State
	SetTransport(ctx context.Context, p sequencer.TransportPatch) (sequencer.Transport, error)
	TogglePlay(ctx context.Context) (bool, error)
	UpdateTrack(id int, p sequencer.TrackPatch) (sequencer.Track, error)
	ToggleStep(id, idx int) (bool, error)
	Feedback() (sequencer.FeedbackMessage, bool)
}

// noticeSource is implemented by loopers that publish parameter changes
type noticeSource interface {
	Notices() <-chan sequencer.Notice
}

// Config holds server configuration
type Config struct {
	Addr string
}

// Server is the HTTP server
type Server struct {
	config Config
	router *chi.Mux
	logger *slog.Logger
	looper Looper
}

// New creates a new server. A nil logger logs text to stderr.
func New(cfg Config, looper Looper, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	s := &Server{
		config: cfg,
		router: chi.NewRouter(),
		logger: logger,
		looper: looper,
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	r := s.router

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/state", s.handleState)
	r.Get("/feedback", s.handleFeedback)

	r.Route("/transport", func(r chi.Router) {
		r.Patch("/", s.handleTransport)
		r.Post("/toggle", s.handleTogglePlay)
	})
	r.Route("/tracks/{id}", func(r chi.Router) {
		r.Get("/", s.handleTrack)
		r.Patch("/", s.handleUpdateTrack)
		r.Post("/steps/{step}/toggle", s.handleToggleStep)
	})
}

// Handler returns the router, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.config.Addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if src, ok := s.looper.(noticeSource); ok {
		go s.logNotices(ctx, src.Notices())
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", slog.String("addr", s.config.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("cannot listen on %s: %w", s.config.Addr, err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("shutdown error", slog.Any("error", err))
		return err
	}
	return nil
}

// logNotices drains ns into the log until ctx is done or ns is closed
func (s *Server) logNotices(ctx context.Context, ns <-chan sequencer.Notice) {
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-ns:
			if !ok {
				return
			}
			s.logger.Info("change", slog.String("label", n.Label), slog.String("value", n.Value))
		}
	}
}
