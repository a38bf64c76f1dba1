package ops

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/edvin/subsync/internal/runner"
)

// SyncTrigger is the runner surface the ops server needs.
type SyncTrigger interface {
	Run(ctx context.Context) (*runner.Report, error)
	Running() bool
	LastReport() *runner.Report
}

// Server exposes the operational endpoints: health, metrics, a manual sync
// trigger and the last run report. It carries no business logic.
type Server struct {
	router  chi.Router
	logger  zerolog.Logger
	trigger SyncTrigger
}

func NewServer(logger zerolog.Logger, trigger SyncTrigger) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		logger:  logger.With().Str("component", "ops").Logger(),
		trigger: trigger,
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)

	s.router.Handle("/metrics", promhttp.Handler())
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/readyz", s.handleReadyz)

	s.router.Route("/internal/v1", func(r chi.Router) {
		r.Post("/sync", s.handleSync)
		r.Get("/runs/last", s.handleLastRun)
	})

	return s
}

func (s *Server) Handler() http.Handler { return s.router }

// Start serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("ops server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleSync kicks off a run in the background. The sheet admits one run at
// a time, so a busy runner answers 409 instead of queueing.
func (s *Server) handleSync(w http.ResponseWriter, _ *http.Request) {
	if s.trigger.Running() {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "run in progress"})
		return
	}

	go func() {
		if _, err := s.trigger.Run(context.Background()); err != nil {
			s.logger.Error().Err(err).Msg("triggered run failed")
		}
	}()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) handleLastRun(w http.ResponseWriter, _ *http.Request) {
	report := s.trigger.LastReport()
	if report == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no completed runs"})
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
