package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/autopeer-io/roverpilot/internal/autonomy/core"
	"github.com/autopeer-io/roverpilot/internal/autonomy/gateway"
	"github.com/autopeer-io/roverpilot/internal/autonomy/report"
	"github.com/autopeer-io/roverpilot/pkg/log"
)

// currentID addresses the running mission in cancel requests.
const currentID = "current"

const maxRequestBytes = 1 << 20

// SubmitResponse answers POST /v1/missions.
type SubmitResponse struct {
	ID    string `json:"id,omitempty"`
	Error string `json:"error,omitempty"`
}

// FeedbackResponse answers GET /v1/missions/{id}/feedback.
type FeedbackResponse struct {
	Feedback []core.Feedback `json:"feedback"`
	Next     int             `json:"next"`
	Done     bool            `json:"done"`
}

// ReportResponse answers GET /v1/missions/{id}/report.
type ReportResponse struct {
	URL string `json:"url"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) submit(w http.ResponseWriter, r *http.Request) {
	var req gateway.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, SubmitResponse{Error: "decode request: " + err.Error()})
		return
	}

	id, err := s.missions.Submit(req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, SubmitResponse{ID: id})
	case errors.Is(err, core.ErrMissionInProgress):
		writeJSON(w, http.StatusConflict, SubmitResponse{Error: err.Error()})
	case errors.Is(err, core.ErrInvalidRequest):
		// An empty request is still recorded under id.
		writeJSON(w, http.StatusBadRequest, SubmitResponse{ID: id, Error: err.Error()})
	default:
		writeJSON(w, http.StatusServiceUnavailable, SubmitResponse{Error: err.Error()})
	}
}

func (s *Server) current(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.missions.Current()
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no mission is running"})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	snap, err := s.missions.Get(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) feedback(w http.ResponseWriter, r *http.Request) {
	since := 0
	if v := r.URL.Query().Get("since"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "since must be a non-negative integer"})
			return
		}
		since = n
	}

	lines, done, err := s.missions.Feedback(mux.Vars(r)["id"], since)
	if err != nil {
		writeError(w, err)
		return
	}
	if lines == nil {
		lines = []core.Feedback{}
	}
	writeJSON(w, http.StatusOK, FeedbackResponse{Feedback: lines, Next: since + len(lines), Done: done})
}

func (s *Server) cancel(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == currentID {
		id = ""
	}
	if err := s.missions.Cancel(id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) report(w http.ResponseWriter, r *http.Request) {
	snap, err := s.missions.Get(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	if snap.Finished == nil {
		writeJSON(w, http.StatusConflict, errorResponse{Error: "mission is still running"})
		return
	}

	url, err := s.reports.PresignedURL(r.Context(), snap.ID, *snap.Finished, reportURLExpiry)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ReportResponse{URL: url})
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, gateway.ErrMissionNotFound), errors.Is(err, report.ErrDisabled):
		status = http.StatusNotFound
	case errors.Is(err, core.ErrInvalidRequest):
		status = http.StatusBadRequest
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug("Failed to write response", "error", err.Error())
	}
}
