package e2e

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ayusman/handglow/internal/capture"
	"github.com/ayusman/handglow/internal/detector"
	"github.com/ayusman/handglow/internal/render"
	"github.com/ayusman/handglow/internal/server"
	"github.com/ayusman/handglow/internal/session"
	"github.com/ayusman/handglow/internal/store"
	"gocv.io/x/gocv"
)

type sessionBody struct {
	State   string `json:"state"`
	Message string `json:"message"`
	Hint    string `json:"hint"`
	Hands   int    `json:"hands"`
	Frame   uint64 `json:"frame"`
	Error   string `json:"error"`
}

func do(t *testing.T, client *http.Client, method, url string) sessionBody {
	t.Helper()

	req, _ := http.NewRequest(method, url, nil)
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s error = %v", method, url, err)
	}
	defer resp.Body.Close()

	var body sessionBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("%s %s decode error = %v", method, url, err)
	}
	return body
}

func TestE2E_CompleteWorkflow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	tmpDir := t.TempDir()
	s, err := store.New(filepath.Join(tmpDir, "data.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	frame := gocv.NewMatWithSize(720, 1280, gocv.MatTypeCV8UC3)
	defer frame.Close()
	camera := capture.NewMockCamera([]*gocv.Mat{&frame}, true)

	mockDetector := detector.NewMockDetector()

	var (
		mu        sync.Mutex
		requested []int
	)
	ctrl := session.New(session.Options{
		Detectors: func(detector.Config) (detector.Detector, error) { return mockDetector, nil },
		Cameras: func(w, h int) capture.Camera {
			mu.Lock()
			requested = []int{w, h}
			mu.Unlock()
			return camera
		},
		Renderer: render.New(render.Options{Mirror: true}),
		Viewport: render.Viewport{Width: 320, Height: 180},
		Sink:     store.NewJournal(s),
	})
	defer ctrl.Close()

	srv := server.New(server.Config{Session: ctrl, Store: s, FrameInterval: 10 * time.Millisecond})
	ts := httptest.NewServer(srv)
	defer ts.Close()
	defer srv.Shutdown(t.Context())

	client := ts.Client()

	t.Run("BeforeStart", func(t *testing.T) {
		body := do(t, client, http.MethodGet, ts.URL+"/api/session")
		if body.State != "uninitialized" || body.Hint != session.HintInitializing {
			t.Errorf("unexpected session %+v", body)
		}

		body = do(t, client, http.MethodPost, ts.URL+"/api/session/stop")
		if body.State != "uninitialized" {
			t.Errorf("stop before start changed state to %s", body.State)
		}
	})

	t.Run("PermissionDenied", func(t *testing.T) {
		camera.FailOpen(fmt.Errorf("%w: /dev/video0", capture.ErrPermissionDenied))
		defer camera.FailOpen(nil)

		body := do(t, client, http.MethodPost, ts.URL+"/api/session/start")
		if body.Error == "" {
			t.Fatal("expected an error banner")
		}

		body = do(t, client, http.MethodGet, ts.URL+"/api/session")
		if body.State != "error" || body.Message == "" {
			t.Errorf("unexpected session %+v", body)
		}
	})

	t.Run("StreamWithoutHands", func(t *testing.T) {
		body := do(t, client, http.MethodPost, ts.URL+"/api/session/start")
		if body.State != "streaming" || body.Message != "" {
			t.Fatalf("unexpected session %+v", body)
		}
		mu.Lock()
		if len(requested) != 2 || requested[0] != 1280 || requested[1] != 720 {
			t.Errorf("camera requested at %v, want 1280x720", requested)
		}
		mu.Unlock()

		deadline := time.Now().Add(3 * time.Second)
		for time.Now().Before(deadline) {
			body = do(t, client, http.MethodGet, ts.URL+"/api/session")
			if body.Frame > 0 {
				break
			}
			time.Sleep(20 * time.Millisecond)
		}
		if body.Frame == 0 {
			t.Fatal("no frame rendered")
		}
		if body.Hands != 0 || body.Hint != session.HintNoHand {
			t.Errorf("unexpected session %+v", body)
		}
	})

	t.Run("StreamWithHands", func(t *testing.T) {
		mockDetector.SetHands([]detector.Hand{detector.OpenPalm(), detector.ThumbsUp()})

		deadline := time.Now().Add(3 * time.Second)
		var body sessionBody
		for time.Now().Before(deadline) {
			body = do(t, client, http.MethodGet, ts.URL+"/api/session")
			if body.Hands == 2 {
				break
			}
			time.Sleep(20 * time.Millisecond)
		}
		if body.Hands != 2 || body.Hint != "" {
			t.Errorf("unexpected session %+v", body)
		}
	})

	t.Run("MJPEG", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/api/stream")
		if err != nil {
			t.Fatalf("GET /api/stream error = %v", err)
		}
		defer resp.Body.Close()

		r := bufio.NewReader(resp.Body)
		boundary, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read boundary error = %v", err)
		}
		if strings.TrimSpace(boundary) != "--frame" {
			t.Errorf("boundary = %q", boundary)
		}
		contentType, _ := r.ReadString('\n')
		if strings.TrimSpace(contentType) != "Content-Type: image/jpeg" {
			t.Errorf("part header = %q", contentType)
		}
	})

	t.Run("Stop", func(t *testing.T) {
		body := do(t, client, http.MethodPost, ts.URL+"/api/session/stop")
		if body.State != "initialized" || body.Hands != 0 {
			t.Errorf("unexpected session %+v", body)
		}
		if camera.IsOpen() {
			t.Error("camera should be released")
		}
	})

	t.Run("Journal", func(t *testing.T) {
		runs, err := s.Runs().List(0)
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(runs) != 1 || runs[0].Active() {
			t.Fatalf("expected one finished run, got %d", len(runs))
		}

		events, err := s.Events().Recent(0)
		if err != nil {
			t.Fatalf("Recent() error = %v", err)
		}
		var kinds []string
		for i := len(events) - 1; i >= 0; i-- {
			kinds = append(kinds, events[i].Kind)
		}
		want := []string{"initialized", "error", "streaming", "initialized"}
		if strings.Join(kinds, ",") != strings.Join(want, ",") {
			t.Errorf("events = %v, want %v", kinds, want)
		}
	})
}
