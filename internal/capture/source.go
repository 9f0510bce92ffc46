package capture

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// ErrSourceRunning is returned by Start when the source is already delivering frames.
var ErrSourceRunning = errors.New("capture source already running")

// Source drives a Camera and notifies a callback once per captured frame.
// The callback receives no arguments; it re-reads the frame with Current.
// Frames are delivered from a single goroutine, so callbacks never overlap.
type Source struct {
	camera Camera
	log    logrus.FieldLogger

	mu      sync.Mutex
	current *gocv.Mat
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewSource creates a Source for camera. A nil logger discards output.
func NewSource(camera Camera, log logrus.FieldLogger) *Source {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Source{camera: camera, log: log}
}

// Start opens the camera and begins delivering frames to onFrame.
// Open errors are returned unchanged so callers can match the capture sentinels.
func (s *Source) Start(onFrame func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopCh != nil {
		return ErrSourceRunning
	}

	if err := s.camera.Open(); err != nil {
		return err
	}

	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	go s.run(onFrame, s.stopCh, s.doneCh)

	w, h := s.camera.Size()
	s.log.WithFields(logrus.Fields{"width": w, "height": h, "fps": s.camera.FPS()}).Info("capture started")
	return nil
}

// run reads frames at the camera's frame rate until stopCh closes.
func (s *Source) run(onFrame func(), stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	fps := s.camera.FPS()
	if fps <= 0 {
		fps = DefaultFPS
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
		}

		frame, err := s.camera.ReadFrame()
		if err != nil {
			s.log.WithError(err).Debug("read frame")
			continue
		}

		s.mu.Lock()
		if s.current != nil {
			s.current.Close()
		}
		s.current = frame
		s.mu.Unlock()

		// Stop may have been requested while reading; the callback is detached then.
		select {
		case <-stopCh:
			return
		default:
		}

		if onFrame != nil {
			onFrame()
		}
	}
}

// Current returns a copy of the newest frame, or nil before the first frame.
// The caller owns the returned Mat and must close it.
func (s *Source) Current() *gocv.Mat {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil || s.current.Empty() {
		return nil
	}
	clone := s.current.Clone()
	return &clone
}

// Running reports whether the capture loop is active.
func (s *Source) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopCh != nil
}

// Stop detaches the callback, waits for the capture loop to exit and releases
// the device. It is safe to call more than once and before Start, but must
// not be called from inside the frame callback.
func (s *Source) Stop() error {
	s.mu.Lock()
	stopCh, doneCh := s.stopCh, s.doneCh
	s.stopCh, s.doneCh = nil, nil
	s.mu.Unlock()

	if stopCh == nil {
		return nil
	}

	close(stopCh)
	<-doneCh

	s.mu.Lock()
	if s.current != nil {
		s.current.Close()
		s.current = nil
	}
	s.mu.Unlock()

	err := s.camera.Close()
	s.log.Info("capture stopped")
	return err
}
