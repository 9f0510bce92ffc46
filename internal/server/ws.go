package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/ayusman/handglow/internal/detector"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

const writeWait = time.Second

// ResultSource provides the latest detection result.
type ResultSource interface {
	LastResult() *detector.Result
	Hint() string
}

// landmarksMessage is one detection result as sent to clients.
type landmarksMessage struct {
	Hands     []detector.Hand `json:"hands"`
	Width     int             `json:"width"`
	Height    int             `json:"height"`
	Timestamp int64           `json:"timestamp"`
	Hint      string          `json:"hint"`
}

// LandmarksHandler sends the latest detection result to WebSocket clients on
// every poll, at most one message per interval (about 15 FPS by default).
// Results that arrive between polls are skipped.
type LandmarksHandler struct {
	results  ResultSource
	interval time.Duration
	log      logrus.FieldLogger
	clients  map[*websocket.Conn]bool
	mu       sync.RWMutex
	stopCh   chan struct{}
	once     sync.Once
}

// NewLandmarksHandler creates a LandmarksHandler and starts its broadcaster.
func NewLandmarksHandler(results ResultSource, interval time.Duration, log logrus.FieldLogger) *LandmarksHandler {
	h := &LandmarksHandler{
		results:  results,
		interval: interval,
		log:      log,
		clients:  make(map[*websocket.Conn]bool),
		stopCh:   make(chan struct{}),
	}
	go h.broadcast()
	return h
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *LandmarksHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Debug("websocket upgrade")
		return
	}
	defer conn.Close()

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
	}()

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// Clients returns the number of connected clients.
func (h *LandmarksHandler) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close stops the broadcaster.
func (h *LandmarksHandler) Close() {
	h.once.Do(func() { close(h.stopCh) })
}

// broadcast sends the latest result to all clients when it is newer than the
// one sent on the previous tick.
func (h *LandmarksHandler) broadcast() {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	var last time.Time
	for {
		select {
		case <-h.stopCh:
			return
		case <-ticker.C:
		}

		if h.Clients() == 0 {
			continue
		}

		res := h.results.LastResult()
		if res == nil || !res.Timestamp.After(last) {
			continue
		}
		last = res.Timestamp

		msg, err := json.Marshal(landmarksMessage{
			Hands:     res.Hands,
			Width:     res.Width,
			Height:    res.Height,
			Timestamp: res.Timestamp.UnixMilli(),
			Hint:      h.results.Hint(),
		})
		if err != nil {
			h.log.WithError(err).Warn("encode landmarks")
			continue
		}

		h.mu.RLock()
		for conn := range h.clients {
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.log.WithError(err).Debug("write landmarks")
			}
		}
		h.mu.RUnlock()
	}
}
