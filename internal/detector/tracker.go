package detector

import (
	"errors"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// ErrEmptyFrame is returned by Send when there is no frame to process.
var ErrEmptyFrame = errors.New("empty frame")

// Tracker turns a synchronous Detector into the callback-driven boundary the
// session subscribes to. Each successful Send produces exactly one callback,
// delivered on the caller's goroutine in call order.
type Tracker struct {
	detector Detector
	mu       sync.Mutex
	onResult func(Result)
	now      func() time.Time
}

// NewTracker wraps d.
func NewTracker(d Detector) *Tracker {
	return &Tracker{
		detector: d,
		now:      time.Now,
	}
}

// OnResults registers the result callback, replacing any previous one.
// A nil fn detaches delivery.
func (t *Tracker) OnResults(fn func(Result)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onResult = fn
}

// Send runs detection on frame and delivers the result to the registered
// callback. Detection errors are returned and no callback is made.
func (t *Tracker) Send(frame *gocv.Mat) error {
	if frame == nil || frame.Empty() {
		return ErrEmptyFrame
	}

	// Detection runs outside the lock so OnResults(nil) never waits on a frame.
	hands, err := t.detector.Detect(frame)
	if err != nil {
		return err
	}
	if hands == nil {
		hands = []Hand{}
	}

	result := Result{
		Hands:     hands,
		Width:     frame.Cols(),
		Height:    frame.Rows(),
		Timestamp: t.now(),
	}

	t.mu.Lock()
	fn := t.onResult
	t.mu.Unlock()

	if fn != nil {
		fn(result)
	}
	return nil
}

// Close closes the wrapped detector.
func (t *Tracker) Close() error {
	t.OnResults(nil)
	return t.detector.Close()
}
