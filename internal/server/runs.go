package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ayusman/handglow/internal/store"
)

// RunsHandler serves the session journal.
type RunsHandler struct {
	store *store.Store
}

// NewRunsHandler creates a new RunsHandler.
func NewRunsHandler(s *store.Store) *RunsHandler {
	return &RunsHandler{store: s}
}

type runResponse struct {
	ID        string          `json:"id"`
	StartedAt time.Time       `json:"started_at"`
	StoppedAt *time.Time      `json:"stopped_at,omitempty"`
	Events    []eventResponse `json:"events,omitempty"`
}

type eventResponse struct {
	Kind    string    `json:"kind"`
	Message string    `json:"message,omitempty"`
	At      time.Time `json:"at"`
}

// ServeHTTP routes /api/runs and /api/runs/{id}.
func (h *RunsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/runs")
	id = strings.Trim(id, "/")

	if id == "" {
		h.list(w, r)
		return
	}
	h.get(w, id)
}

func (h *RunsHandler) list(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	runs, err := h.store.Runs().List(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}

	response := make([]runResponse, 0, len(runs))
	for _, run := range runs {
		response = append(response, runResponse{ID: run.ID, StartedAt: run.StartedAt, StoppedAt: run.StoppedAt})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"runs": response})
}

func (h *RunsHandler) get(w http.ResponseWriter, id string) {
	run, err := h.store.Runs().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get run")
		return
	}

	events, err := h.store.Events().ListByRun(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}

	resp := runResponse{ID: run.ID, StartedAt: run.StartedAt, StoppedAt: run.StoppedAt}
	for _, e := range events {
		resp.Events = append(resp.Events, eventResponse{Kind: e.Kind, Message: e.Message, At: e.At})
	}

	writeJSON(w, http.StatusOK, resp)
}
