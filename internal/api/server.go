// Package api serves the REST surface and the websocket event stream.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/sigreer/astrogod/internal/detect"
	"github.com/sigreer/astrogod/internal/drivers"
	"github.com/sigreer/astrogod/internal/events"
	"github.com/sigreer/astrogod/internal/logger"
	"github.com/sigreer/astrogod/internal/monitor"
	"github.com/sigreer/astrogod/internal/supervisor"
)

type Server struct {
	monitor Monitor
	orch    Orchestrator
	kb      KnowledgeBase
	drivers DriverDirectory
	buses   []*events.Bus
	log     zerolog.Logger

	router chi.Router
}

// New builds the router. Events published on any of buses are streamed to
// websocket clients.
func New(m Monitor, o Orchestrator, kb KnowledgeBase, d DriverDirectory, buses []*events.Bus, log zerolog.Logger) *Server {
	s := &Server{
		monitor: m,
		orch:    o,
		kb:      kb,
		drivers: d,
		buses:   buses,
		log:     logger.WithComponent(log, "api"),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/devices", s.handleDevices)
		r.Post("/devices/{id}/setup", s.handleSetupDevice)
		r.Post("/devices/{id}/restart", s.handleRestartDevice)

		r.Get("/status", s.handleStatuses)
		r.Get("/status/summary", s.handleSummary)
		r.Post("/scan", s.handleScan)
		r.Post("/setup", s.handleAutoSetup)

		r.Get("/server", s.handleServer)
		r.Post("/server/restart", s.handleServerRestart)
		r.Post("/server/drivers/{name}", s.handleAddDriver)
		r.Delete("/server/drivers/{name}", s.handleRemoveDriver)

		r.Get("/drivers", s.handleDrivers)
		r.Get("/orchestrator", s.handleOrchestrator)
		r.Get("/knowledge/stats", s.handleKnowledgeStats)
		r.Get("/events", s.handleEvents)
	})

	s.router = r
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx ends, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("api listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

// statusFor maps core errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, detect.ErrDeviceNotFound), errors.Is(err, drivers.ErrDriverNotFound):
		return http.StatusNotFound
	case errors.Is(err, monitor.ErrSetupInProgress), errors.Is(err, supervisor.ErrRestartInProgress):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
