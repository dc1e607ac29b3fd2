package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"framestage/internal/api"
	"framestage/internal/config"
)

type Server struct {
	cfg        *config.Config
	logger     zerolog.Logger
	httpServer *http.Server
	router     *chi.Mux
	handler    *api.Handler
}

func New(cfg *config.Config, logger zerolog.Logger, handler *api.Handler) *Server {
	s := &Server{
		cfg:     cfg,
		logger:  logger,
		handler: handler,
	}

	s.router = chi.NewRouter()
	s.setupMiddleware()
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(CORSMiddleware)
	s.router.Use(LoggingMiddleware(s.logger))
}

func (s *Server) setupRoutes() {
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handler.Health)

		// Capture driver surface
		r.Get("/frame", s.handler.GetFrame)
		r.Post("/frame", s.handler.SetFrame)

		// Interactive playback
		r.Post("/playback/play", s.handler.Play)
		r.Post("/playback/pause", s.handler.Pause)
		r.Post("/playback/step", s.handler.Step)
		r.Post("/playback/jump", s.handler.Jump)
		r.Post("/playback/rendered", s.handler.ReportRendered)

		// Clip registry and timeline layout
		r.Get("/clips", s.handler.GetClips)
		r.Post("/clips", s.handler.EnterClip)
		r.Post("/clips/serial", s.handler.EnterSerial)
		r.Delete("/clips/{id}", s.handler.ExitClip)
		r.Post("/clips/{id}/hidden", s.handler.SetHidden)

		// Audio segments
		r.Get("/segments", s.handler.GetSegments)
		r.Post("/segments", s.handler.RegisterSegment)
		r.Delete("/segments/{id}", s.handler.DeregisterSegment)

		// Media sources
		r.Post("/sources/invalidate", s.handler.InvalidateSource)

		// Render readiness
		r.Get("/ready", s.handler.Ready)
		r.Get("/ready/pending", s.handler.Pending)
		r.Post("/ready/{category}/start", s.handler.StartPending)
		r.Post("/ready/finish", s.handler.FinishPending)

		// Capture jobs
		r.Get("/capture/jobs", s.handler.ListJobs)
		r.Post("/capture/jobs", s.handler.StartJob)
		r.Post("/capture/jobs/{id}/finish", s.handler.FinishJob)
		r.Get("/capture/jobs/{id}/manifest", s.handler.GetJobManifest)
	})
}

func (s *Server) Start() error {
	s.logger.Info().
		Str("addr", s.httpServer.Addr).
		Msg("starting server")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	return s.httpServer.Shutdown(shutdownCtx)
}
