package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dagucloud/crashguard/internal/cmn/logger/tag"
	"github.com/dagucloud/crashguard/internal/persis/filereport"
	"github.com/dagucloud/crashguard/internal/report"
)

// reportSummary is one entry of the report listing.
type reportSummary struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"`
	Summary   string    `json:"summary"`
	TopFrame  string    `json:"top_frame,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.renderJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleListReports(w http.ResponseWriter, _ *http.Request) {
	ids, err := s.store.IDs()
	if err != nil {
		s.renderError(w, err)
		return
	}
	summaries := make([]reportSummary, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		data, err := s.store.Read(ids[i])
		if err != nil {
			continue
		}
		r, err := report.Decode(data)
		if err != nil {
			s.logger.Warn("Skipping unreadable report", tag.ReportID(ids[i]), tag.Error(err))
			continue
		}
		summaries = append(summaries, reportSummary{
			ID:        report.FormatID(ids[i]),
			Timestamp: r.Timestamp,
			Type:      r.Type,
			Summary:   r.Summary(),
			TopFrame:  r.TopFrame(),
		})
	}
	s.renderJSON(w, http.StatusOK, summaries)
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	id, err := report.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		s.renderJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	data, err := s.store.Read(id)
	if err != nil {
		s.renderError(w, err)
		return
	}
	s.renderRaw(w, data)
}

func (s *Server) handleGetRecrash(w http.ResponseWriter, r *http.Request) {
	id, err := report.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		s.renderJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	data, err := s.store.ReadRecrash(id)
	if err != nil {
		s.renderError(w, err)
		return
	}
	s.renderRaw(w, data)
}

func (s *Server) handleDeleteReport(w http.ResponseWriter, r *http.Request) {
	id, err := report.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		s.renderJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if err := s.store.Delete(id); err != nil {
		s.renderError(w, err)
		return
	}
	s.logger.Info("Report deleted", tag.ReportID(id))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) renderError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, filereport.ErrReportNotFound):
		status = http.StatusNotFound
	case errors.Is(err, filereport.ErrInvalidReportID):
		status = http.StatusBadRequest
	default:
		s.logger.Error("Request failed", tag.Error(err))
	}
	s.renderJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) renderJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("Failed to write response", tag.Error(err))
	}
}

func (s *Server) renderRaw(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.logger.Warn("Failed to write response", tag.Error(err))
	}
}
