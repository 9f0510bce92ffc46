// Package server exposes a handglow session over HTTP.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/ayusman/handglow/internal/detector"
	"github.com/ayusman/handglow/internal/logging"
	"github.com/ayusman/handglow/internal/render"
	"github.com/ayusman/handglow/internal/session"
	"github.com/ayusman/handglow/internal/store"
	"github.com/sirupsen/logrus"
)

// Session is the part of session.Controller the server drives.
type Session interface {
	Status() session.Status
	Hint() string
	LastResult() *detector.Result
	Frame() ([]byte, uint64)
	StartCamera() error
	StopCamera()
	Viewport() render.Viewport
	SetViewport(vp render.Viewport) bool
}

// Config holds the server configuration.
type Config struct {
	StaticDir string
	Session   Session
	Store     *store.Store
	Log       logrus.FieldLogger

	// FrameInterval is how often stream and landmark clients are polled.
	// Defaults to 66ms (~15 FPS).
	FrameInterval time.Duration
}

// Server represents the HTTP server for handglow.
type Server struct {
	config    Config
	log       logrus.FieldLogger
	mux       *http.ServeMux
	start     time.Time
	landmarks *LandmarksHandler
	http      *http.Server
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	if config.Log == nil {
		config.Log = logging.Discard()
	}
	if config.FrameInterval <= 0 {
		config.FrameInterval = 66 * time.Millisecond
	}

	s := &Server{
		config: config,
		log:    config.Log.WithField("component", "server"),
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.Session != nil {
		s.mux.HandleFunc("/api/session", s.handleSession)
		s.mux.HandleFunc("/api/session/start", s.handleStart)
		s.mux.HandleFunc("/api/session/stop", s.handleStop)
		s.mux.HandleFunc("/api/session/viewport", s.handleViewport)
		s.mux.Handle("/api/stream", NewStreamHandler(s.config.Session, s.config.FrameInterval))

		s.landmarks = NewLandmarksHandler(s.config.Session, s.config.FrameInterval, s.log)
		s.mux.Handle("/api/landmarks", s.landmarks)
	}

	if s.config.Store != nil {
		runs := NewRunsHandler(s.config.Store)
		s.mux.Handle("/api/runs", runs)
		s.mux.Handle("/api/runs/", runs)
	}

	// Serve static files if StaticDir is configured
	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	})
}

// ListenAndServe starts the HTTP server on the given address. It returns
// http.ErrServerClosed after Shutdown.
func (s *Server) ListenAndServe(addr string) error {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.log.WithField("addr", addr).Info("listening")
	return s.http.ListenAndServe()
}

// Shutdown stops the landmark broadcaster and gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.landmarks != nil {
		s.landmarks.Close()
	}
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
