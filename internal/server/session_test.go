package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ayusman/handglow/internal/capture"
	"github.com/ayusman/handglow/internal/detector"
	"github.com/ayusman/handglow/internal/render"
	"github.com/ayusman/handglow/internal/session"
)

// fakeSession is a scripted Session.
type fakeSession struct {
	mu       sync.Mutex
	status   session.Status
	hint     string
	result   *detector.Result
	frame    []byte
	seq      uint64
	startErr error
	starts   int
	stops    int
	viewport render.Viewport
}

func (f *fakeSession) Status() session.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeSession) Hint() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hint
}

func (f *fakeSession) LastResult() *detector.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.result
}

func (f *fakeSession) Frame() ([]byte, uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.frame, f.seq
}

func (f *fakeSession) StartCamera() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	if f.startErr != nil {
		f.status = session.Status{State: session.Error, Message: "Camera access was denied."}
		return f.startErr
	}
	f.status = session.Status{State: session.Streaming}
	return nil
}

func (f *fakeSession) StopCamera() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	f.status = session.Status{State: session.Initialized}
}

func (f *fakeSession) Viewport() render.Viewport {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.viewport
}

func (f *fakeSession) SetViewport(vp render.Viewport) bool {
	if !vp.Valid() {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.viewport = vp
	return true
}

func decodeSession(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return body
}

func TestServer_SessionStatus(t *testing.T) {
	fake := &fakeSession{
		status:   session.Status{State: session.Streaming},
		result:   &detector.Result{Hands: []detector.Hand{detector.OpenPalm(), detector.ThumbsUp()}},
		seq:      7,
		viewport: render.Viewport{Width: 800, Height: 600},
	}
	s := New(Config{Session: fake})

	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	body := decodeSession(t, rec)
	if body["state"] != "streaming" {
		t.Errorf("state = %v, want streaming", body["state"])
	}
	if body["hands"] != float64(2) {
		t.Errorf("hands = %v, want 2", body["hands"])
	}
	if body["frame"] != float64(7) {
		t.Errorf("frame = %v, want 7", body["frame"])
	}
	vp, _ := body["viewport"].(map[string]interface{})
	if vp["width"] != float64(800) {
		t.Errorf("viewport = %v", body["viewport"])
	}
}

func TestServer_SessionStart(t *testing.T) {
	t.Run("starts the camera", func(t *testing.T) {
		fake := &fakeSession{}
		s := New(Config{Session: fake})

		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/session/start", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
		if fake.starts != 1 {
			t.Errorf("StartCamera called %d times, want 1", fake.starts)
		}
		if body := decodeSession(t, rec); body["state"] != "streaming" {
			t.Errorf("state = %v, want streaming", body["state"])
		}
	})

	t.Run("reports camera failure", func(t *testing.T) {
		fake := &fakeSession{startErr: &session.CameraError{Err: capture.ErrPermissionDenied}}
		s := New(Config{Session: fake})

		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/session/start", nil))

		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("expected status %d, got %d", http.StatusServiceUnavailable, rec.Code)
		}
		body := decodeSession(t, rec)
		if body["error"] != "Camera access was denied." {
			t.Errorf("error = %v", body["error"])
		}
	})

	t.Run("reports initialization failure", func(t *testing.T) {
		fake := &fakeSession{startErr: &session.InitializationError{Err: errors.New("no model")}}
		s := New(Config{Session: fake})

		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/session/start", nil))

		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, rec.Code)
		}
	})

	t.Run("only allows POST", func(t *testing.T) {
		s := New(Config{Session: &fakeSession{}})

		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/session/start", nil))

		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
		}
	})
}

func TestServer_SessionStop(t *testing.T) {
	fake := &fakeSession{status: session.Status{State: session.Streaming}}
	s := New(Config{Session: fake})

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/session/stop", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if fake.stops != 1 {
		t.Errorf("StopCamera called %d times, want 1", fake.stops)
	}
	if body := decodeSession(t, rec); body["state"] != "initialized" {
		t.Errorf("state = %v, want initialized", body["state"])
	}
}

func TestServer_SessionViewport(t *testing.T) {
	fake := &fakeSession{}
	s := New(Config{Session: fake})

	tests := []struct {
		name string
		body string
		want int
	}{
		{"valid", `{"width": 640, "height": 480}`, http.StatusOK},
		{"zero size", `{"width": 0, "height": 480}`, http.StatusBadRequest},
		{"invalid JSON", `{`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/session/viewport", bytes.NewBufferString(tt.body))
			rec := httptest.NewRecorder()
			s.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("expected status %d, got %d", tt.want, rec.Code)
			}
		})
	}

	if fake.viewport != (render.Viewport{Width: 640, Height: 480}) {
		t.Errorf("viewport = %+v", fake.viewport)
	}
}

func TestStreamHandler(t *testing.T) {
	fake := &fakeSession{frame: []byte{0xFF, 0xD8, 0xFF, 0xD9}, seq: 1}
	h := NewStreamHandler(fake, 5*time.Millisecond)

	ts := httptest.NewServer(h)
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL)
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "multipart/x-mixed-replace") {
		t.Fatalf("Content-Type = %q", ct)
	}

	buf := make([]byte, 128)
	n, err := resp.Body.Read(buf)
	if err != nil {
		t.Fatalf("read error = %v", err)
	}
	part := string(buf[:n])
	if !strings.Contains(part, "--frame") || !strings.Contains(part, "Content-Length: 4") {
		t.Errorf("unexpected part %q", part)
	}
}
