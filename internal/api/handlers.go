package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleDevices(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.monitor.Devices())
}

func (s *Server) handleStatuses(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.monitor.Statuses())
}

func (s *Server) handleSummary(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.monitor.Summary())
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	sts, err := s.monitor.ScanNow(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sts)
}

func (s *Server) handleAutoSetup(w http.ResponseWriter, r *http.Request) {
	sum, err := s.monitor.PerformAutoSetup(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleSetupDevice(w http.ResponseWriter, r *http.Request) {
	s.deviceAction(w, r, s.monitor.SetupSingleDevice)
}

func (s *Server) handleRestartDevice(w http.ResponseWriter, r *http.Request) {
	s.deviceAction(w, r, s.monitor.RestartDevice)
}

func (s *Server) deviceAction(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id string) error) {
	id, err := url.PathUnescape(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if err := fn(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	for _, st := range s.monitor.Statuses() {
		if st.ID == id {
			writeJSON(w, http.StatusOK, st)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleServer(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.orch.Status().Server)
}

func (s *Server) handleServerRestart(w http.ResponseWriter, r *http.Request) {
	if err := s.orch.ForceIndiRestart(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.orch.Status().Server)
}

func (s *Server) handleAddDriver(w http.ResponseWriter, r *http.Request) {
	if err := s.orch.AddDriver(r.Context(), chi.URLParam(r, "name")); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.orch.Status().Server)
}

func (s *Server) handleRemoveDriver(w http.ResponseWriter, r *http.Request) {
	if err := s.orch.RemoveDriver(r.Context(), chi.URLParam(r, "name")); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.orch.Status().Server)
}

type driverListing struct {
	Installed []string `json:"installed"`
	Running   []string `json:"running"`
}

func (s *Server) handleDrivers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, driverListing{
		Installed: s.drivers.ListInstalled(),
		Running:   s.drivers.ListRunning(),
	})
}

func (s *Server) handleOrchestrator(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.orch.Status())
}

func (s *Server) handleKnowledgeStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.kb.Stats())
}
