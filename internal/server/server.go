// Package server exposes the pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/spigell/job-curator/internal/jobs"
	"github.com/spigell/job-curator/internal/logger"
	"github.com/spigell/job-curator/internal/orchestrator"
)

const gracefulShutdownTimeout = 10 * time.Second

// Automator runs the pipeline once.
type Automator interface {
	Automate(ctx context.Context, req orchestrator.AutomateRequest) (*orchestrator.Result, error)
}

// Reviewer scores the stored resume against a pasted job description and revises it.
type Reviewer interface {
	ScoreDescription(ctx context.Context, req orchestrator.ReviewRequest) (*orchestrator.Review, error)
	ReviseResume(ctx context.Context, req orchestrator.ReviewRequest) (*orchestrator.Review, error)
}

type Deps struct {
	Automator Automator
	Reviewer  Reviewer
	Store     jobs.Store
	Metrics   http.Handler
	Logger    *zap.Logger
}

type Server struct {
	automator Automator
	reviewer  Reviewer
	store     jobs.Store
	metrics   http.Handler
	logger    *zap.Logger

	// runSlot holds one token while a run is in progress.
	runSlot chan struct{}
}

func New(deps Deps) *Server {
	return &Server{
		automator: deps.Automator,
		reviewer:  deps.Reviewer,
		store:     deps.Store,
		metrics:   deps.Metrics,
		logger:    logger.Component(deps.Logger, "server"),
		runSlot:   make(chan struct{}, 1),
	}
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(s.requestLogger)
	router.Use(middleware.Recoverer)

	router.Get("/healthz", s.health)
	if s.metrics != nil {
		router.Handle("/metrics", s.metrics)
	}

	router.Route("/api", func(r chi.Router) {
		r.Post("/automate", s.automate)
		r.Get("/jobs", s.rankedJobs)
		r.Get("/curated_resume", s.curatedResume)
		if s.reviewer != nil {
			r.Post("/score", s.scoreDescription)
			r.Post("/curate", s.reviseResume)
		}
	})

	return router
}

// Run serves on listen until ctx is cancelled.
func (s *Server) Run(ctx context.Context, listen string) error {
	listener, err := net.Listen("tcp", listen)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
		defer cancel()

		httpServer.SetKeepAlivesEnabled(false)
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("graceful shutdown failed", zap.Error(err))
		}
		s.logger.Info("server terminated")
	}()

	s.logger.Info("serving", zap.String("listen", listener.Addr().String()))
	if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(started)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
