package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ayusman/handglow/internal/render"
	"github.com/ayusman/handglow/internal/session"
)

type sessionResponse struct {
	State    session.State   `json:"state"`
	Message  string          `json:"message,omitempty"`
	Hint     string          `json:"hint"`
	Hands    int             `json:"hands"`
	Frame    uint64          `json:"frame"`
	Viewport render.Viewport `json:"viewport"`
}

type viewportRequest struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (s *Server) snapshot() sessionResponse {
	sess := s.config.Session
	status := sess.Status()
	_, seq := sess.Frame()

	resp := sessionResponse{
		State:    status.State,
		Message:  status.Message,
		Hint:     sess.Hint(),
		Frame:    seq,
		Viewport: sess.Viewport(),
	}
	if res := sess.LastResult(); res != nil {
		resp.Hands = len(res.Hands)
	}
	return resp
}

// handleSession handles GET /api/session.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.snapshot())
}

// handleStart handles POST /api/session/start. The request is the user's
// permission grant; failures are reported and may be retried.
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := s.config.Session.StartCamera(); err != nil {
		status := http.StatusServiceUnavailable
		var initErr *session.InitializationError
		if errors.As(err, &initErr) {
			status = http.StatusInternalServerError
		}
		s.log.WithError(err).Warn("start camera")
		writeError(w, status, s.config.Session.Status().Message)
		return
	}

	writeJSON(w, http.StatusOK, s.snapshot())
}

// handleStop handles POST /api/session/stop.
func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.config.Session.StopCamera()
	writeJSON(w, http.StatusOK, s.snapshot())
}

// handleViewport handles POST /api/session/viewport, sent when the client
// canvas is resized.
func (s *Server) handleViewport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req viewportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if !s.config.Session.SetViewport(render.Viewport{Width: req.Width, Height: req.Height}) {
		writeError(w, http.StatusBadRequest, "width and height must be positive")
		return
	}

	writeJSON(w, http.StatusOK, s.snapshot())
}
