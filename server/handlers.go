package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"ambient-looper/debug"
	"ambient-looper/sequencer"

	"github.com/go-chi/chi/v5"
)

const maxBodySize = 64 * 1024

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// handleState returns the whole looper state
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.looper.Snapshot())
}

// handleFeedback returns the current notice, or 204 once it has expired
func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	fb, ok := s.looper.Feedback()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.writeJSON(w, http.StatusOK, fb)
}

func (s *Server) handleTransport(w http.ResponseWriter, r *http.Request) {
	var p sequencer.TransportPatch
	if !s.decode(w, r, &p) {
		return
	}
	t, err := s.looper.SetTransport(r.Context(), p)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleTogglePlay(w http.ResponseWriter, r *http.Request) {
	if _, err := s.looper.TogglePlay(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.looper.Snapshot().Transport)
}

func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	id, ok := s.trackID(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, s.looper.Snapshot().Tracks[id])
}

func (s *Server) handleUpdateTrack(w http.ResponseWriter, r *http.Request) {
	id, ok := s.trackID(w, r)
	if !ok {
		return
	}
	var p sequencer.TrackPatch
	if !s.decode(w, r, &p) {
		return
	}
	t, err := s.looper.UpdateTrack(id, p)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleToggleStep(w http.ResponseWriter, r *http.Request) {
	id, ok := s.trackID(w, r)
	if !ok {
		return
	}
	step, err := strconv.Atoi(chi.URLParam(r, "step"))
	if err != nil {
		s.writeError(w, fmt.Errorf("step %q: %w", chi.URLParam(r, "step"), sequencer.ErrStepOutOfRange))
		return
	}
	on, err := s.looper.ToggleStep(id, step)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"track": id, "step": step, "on": on})
}

// trackID parses and range-checks the {id} URL parameter
func (s *Server) trackID(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.Atoi(raw)
	if err != nil || id < 0 || id >= sequencer.NumTracks {
		s.writeError(w, fmt.Errorf("track %q: %w", raw, sequencer.ErrUnknownTrack))
		return 0, false
	}
	return id, true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON: " + err.Error()})
		return false
	}
	return true
}

type errorBody struct {
	Error string `json:"error"`
}

// writeError maps looper errors onto status codes
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, sequencer.ErrUnknownTrack), errors.Is(err, sequencer.ErrStepOutOfRange):
		status = http.StatusNotFound
	case errors.Is(err, sequencer.ErrManagerClosed):
		status = http.StatusServiceUnavailable
	default:
		s.logger.Error("request failed", slog.Any("error", err))
	}
	debug.Log("server", "%d: %v", status, err)
	s.writeJSON(w, status, errorBody{Error: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", slog.Any("error", err))
	}
}
