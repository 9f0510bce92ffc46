package session

import (
	"bytes"
	"errors"
	"sync"
	"time"

	"github.com/ayusman/handglow/internal/capture"
	"github.com/ayusman/handglow/internal/detector"
	"github.com/ayusman/handglow/internal/logging"
	"github.com/ayusman/handglow/internal/render"
	"github.com/gogpu/gg"
	"github.com/sirupsen/logrus"
)

// DefaultJPEGQuality is used for encoded canvas frames.
const DefaultJPEGQuality = 80

// MaxDetectFailures is how many consecutive detection errors end the stream
// and put the session into Error.
const MaxDetectFailures = 10

// DetectorFactory builds the hand detector during Initialize.
type DetectorFactory func(cfg detector.Config) (detector.Detector, error)

// CameraFactory builds a camera for the requested capture resolution.
type CameraFactory func(width, height int) capture.Camera

// EventSink records status transitions. Implementations must not block.
type EventSink interface {
	Record(state, message string, at time.Time) error
}

// Options configures a Controller.
type Options struct {
	Detectors DetectorFactory
	Cameras   CameraFactory
	Renderer  *render.Renderer

	// Viewport is the canvas size. Defaults to the capture size.
	Viewport render.Viewport

	// CaptureWidth and CaptureHeight are requested from the camera.
	// Default 1280x720.
	CaptureWidth  int
	CaptureHeight int

	JPEGQuality int
	Sink        EventSink
	Log         logrus.FieldLogger
}

// Controller sequences detector and camera startup and owns every handle
// involved in the capture, detect and render loop.
type Controller struct {
	opts Options
	log  logrus.FieldLogger

	// op serializes lifecycle calls. It is held across source shutdown, so
	// the frame path must never take it.
	op sync.Mutex

	mu       sync.RWMutex
	state    State
	message  string
	changed  time.Time
	detector detector.Detector
	tracker  *detector.Tracker
	source   *capture.Source
	failures int
	// stale is a source detached after repeated detection errors and
	// waiting to be stopped off the capture goroutine.
	stale    *capture.Source
	canvas   *gg.Context
	viewport render.Viewport
	last     *detector.Result
	frame    []byte
	seq      uint64

	subMu   sync.Mutex
	subs    map[int]chan Status
	nextSub int
}

// New creates a Controller in the Uninitialized state.
func New(opts Options) *Controller {
	if opts.CaptureWidth <= 0 || opts.CaptureHeight <= 0 {
		opts.CaptureWidth, opts.CaptureHeight = capture.DefaultWidth, capture.DefaultHeight
	}
	if !opts.Viewport.Valid() {
		opts.Viewport = render.Viewport{Width: opts.CaptureWidth, Height: opts.CaptureHeight}
	}
	if opts.JPEGQuality <= 0 || opts.JPEGQuality > 100 {
		opts.JPEGQuality = DefaultJPEGQuality
	}
	if opts.Renderer == nil {
		opts.Renderer = render.New(render.Options{Mirror: true})
	}
	if opts.Log == nil {
		opts.Log = logging.Discard()
	}

	return &Controller{
		opts:     opts,
		log:      opts.Log.WithField("component", "session"),
		state:    Uninitialized,
		changed:  time.Now(),
		viewport: opts.Viewport,
		subs:     make(map[int]chan Status),
	}
}

// Initialize builds the detector and attaches the renderer to its results.
// It returns nil when already initialized.
func (c *Controller) Initialize() error {
	c.op.Lock()
	defer c.op.Unlock()
	return c.initialize()
}

func (c *Controller) initialize() error {
	c.mu.RLock()
	ready := c.tracker != nil
	c.mu.RUnlock()
	if ready {
		return nil
	}

	if c.opts.Detectors == nil {
		err := &InitializationError{Err: errNoDetectorFactory}
		c.fail(err)
		return err
	}

	d, err := c.opts.Detectors(detector.DefaultConfig())
	if err != nil {
		initErr := &InitializationError{Err: err}
		c.fail(initErr)
		return initErr
	}
	if s, ok := d.(detector.Starter); ok {
		if err := s.Start(); err != nil {
			d.Close()
			initErr := &InitializationError{Err: err}
			c.fail(initErr)
			return initErr
		}
	}

	tracker := detector.NewTracker(d)
	tracker.OnResults(c.handleResult)

	c.mu.Lock()
	c.detector = d
	c.tracker = tracker
	if c.canvas == nil {
		c.canvas = render.NewCanvas(c.viewport)
	}
	c.mu.Unlock()

	c.log.Info("detector initialized")
	c.transition(Initialized, "")
	return nil
}

// StartCamera initializes if needed, then opens the camera and begins
// streaming. It is a no-op while already streaming.
func (c *Controller) StartCamera() error {
	c.op.Lock()
	defer c.op.Unlock()

	if err := c.initialize(); err != nil {
		return err
	}

	c.mu.RLock()
	streaming := c.source != nil
	c.mu.RUnlock()
	if streaming {
		return nil
	}

	if c.opts.Cameras == nil {
		err := &CameraError{Err: capture.ErrDeviceUnavailable}
		c.fail(err)
		return err
	}

	camera := c.opts.Cameras(c.opts.CaptureWidth, c.opts.CaptureHeight)
	source := capture.NewSource(camera, c.opts.Log)

	// The source is published before Start so the first frame is accepted.
	c.mu.Lock()
	c.source = source
	c.failures = 0
	c.last = nil
	c.mu.Unlock()

	if err := source.Start(func() { c.deliver(source) }); err != nil {
		c.mu.Lock()
		c.source = nil
		c.mu.Unlock()

		camErr := &CameraError{Err: err}
		c.fail(camErr)
		return camErr
	}

	c.transition(Streaming, "")
	return nil
}

// StopCamera stops and releases the camera and clears the last result and
// rendered frame. It does nothing when the camera was never started.
func (c *Controller) StopCamera() {
	c.op.Lock()
	defer c.op.Unlock()
	c.stopCamera()
}

func (c *Controller) stopCamera() {
	c.mu.Lock()
	source, stale := c.source, c.stale
	c.source, c.stale = nil, nil
	c.last = nil
	c.frame = nil
	wasStreaming := c.state == Streaming
	c.mu.Unlock()

	if source == nil && stale == nil {
		return
	}

	for _, s := range []*capture.Source{source, stale} {
		if s == nil {
			continue
		}
		if err := s.Stop(); err != nil {
			c.log.WithError(err).Warn("stop capture")
		}
	}

	if wasStreaming {
		c.transition(Initialized, "")
	}
}

// Close stops the camera and releases the detector and canvas. Subscribers
// are disconnected.
func (c *Controller) Close() error {
	c.op.Lock()
	defer c.op.Unlock()

	c.stopCamera()

	c.mu.Lock()
	tracker := c.tracker
	canvas := c.canvas
	c.tracker, c.detector, c.canvas = nil, nil, nil
	c.frame = nil
	c.mu.Unlock()

	var err error
	if tracker != nil {
		err = tracker.Close()
	}
	if canvas != nil {
		canvas.Close()
	}

	c.subMu.Lock()
	for id, ch := range c.subs {
		close(ch)
		delete(c.subs, id)
	}
	c.subMu.Unlock()

	return err
}

// deliver runs on the capture goroutine for each new frame.
func (c *Controller) deliver(source *capture.Source) {
	if !c.accepting(source) {
		return
	}

	frame := source.Current()
	if frame == nil {
		return
	}
	defer frame.Close()

	c.mu.RLock()
	tracker := c.tracker
	c.mu.RUnlock()
	if tracker == nil {
		return
	}

	err := tracker.Send(frame)
	if errors.Is(err, detector.ErrEmptyFrame) {
		return
	}
	if !c.countFailure(source, err) {
		if err != nil {
			c.log.WithError(err).Debug("detect")
		}
		return
	}

	// Source.Stop must not run on the capture goroutine.
	go c.abandon(source, &DetectionError{Err: err})
}

// countFailure tracks consecutive detection errors for source. It detaches
// source and reports true once MaxDetectFailures is reached.
func (c *Controller) countFailure(source *capture.Source, err error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.source != source {
		return false
	}
	if err == nil {
		c.failures = 0
		return false
	}
	c.failures++
	if c.failures < MaxDetectFailures {
		return false
	}
	c.source = nil
	c.stale = source
	c.failures = 0
	c.last = nil
	c.frame = nil
	return true
}

// abandon stops a source detached by countFailure and moves to Error, unless
// a lifecycle call has already dealt with it.
func (c *Controller) abandon(source *capture.Source, err error) {
	c.op.Lock()
	defer c.op.Unlock()

	c.mu.Lock()
	if c.stale != source {
		c.mu.Unlock()
		return
	}
	c.stale = nil
	c.mu.Unlock()

	if stopErr := source.Stop(); stopErr != nil {
		c.log.WithError(stopErr).Warn("stop capture")
	}
	c.fail(err)
}

// accepting reports whether source is still the active source.
func (c *Controller) accepting(source *capture.Source) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.source == source && source != nil
}

// handleResult renders one detection result. Results arriving after the
// camera stopped are dropped.
func (c *Controller) handleResult(result detector.Result) {
	c.mu.RLock()
	active := c.source != nil
	canvas := c.canvas
	vp := c.viewport
	c.mu.RUnlock()
	if !active {
		return
	}

	var encoded []byte
	if canvas != nil && c.opts.Renderer.Render(canvas, &result, vp) {
		var buf bytes.Buffer
		if err := canvas.EncodeJPEG(&buf, c.opts.JPEGQuality); err != nil {
			c.log.WithError(err).Debug("encode frame")
		} else {
			encoded = buf.Bytes()
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.source == nil {
		return
	}
	c.last = &result
	if encoded != nil {
		c.frame = encoded
		c.seq++
	}
}

// SetViewport changes the canvas size used for subsequent frames.
func (c *Controller) SetViewport(vp render.Viewport) bool {
	if !vp.Valid() {
		return false
	}
	c.mu.Lock()
	c.viewport = vp
	c.mu.Unlock()
	return true
}

// Viewport returns the current canvas size.
func (c *Controller) Viewport() render.Viewport {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.viewport
}

// Status returns the current state.
func (c *Controller) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Status{State: c.state, Message: c.message, At: c.changed}
}

// Hint returns the placeholder text for the current state.
func (c *Controller) Hint() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	hands := 0
	if c.last != nil {
		hands = len(c.last.Hands)
	}
	return hint(c.state, c.last != nil, hands)
}

// LastResult returns the most recent detection result, or nil when none has
// arrived since the camera started.
func (c *Controller) LastResult() *detector.Result {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.last == nil {
		return nil
	}
	r := *c.last
	r.Hands = append([]detector.Hand(nil), c.last.Hands...)
	return &r
}

// Frame returns the latest rendered frame as JPEG and its sequence number.
// The sequence increases by one for every rendered frame.
func (c *Controller) Frame() ([]byte, uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.frame, c.seq
}

// Subscribe returns a channel of status changes and a function that cancels
// the subscription. Slow subscribers miss updates rather than block.
func (c *Controller) Subscribe() (<-chan Status, func()) {
	ch := make(chan Status, 8)

	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	c.subMu.Unlock()

	return ch, func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		if sub, ok := c.subs[id]; ok {
			close(sub)
			delete(c.subs, id)
		}
	}
}

func (c *Controller) fail(err error) {
	c.log.WithError(err).Warn("session failed")
	c.transition(Error, userMessage(err))
}

func (c *Controller) transition(state State, message string) {
	c.mu.Lock()
	if c.state == state && c.message == message {
		c.mu.Unlock()
		return
	}
	prev := c.state
	c.state = state
	c.message = message
	c.changed = time.Now()
	status := Status{State: state, Message: message, At: c.changed}
	c.mu.Unlock()

	c.log.WithFields(logrus.Fields{"from": prev, "to": state}).Info("state changed")

	if c.opts.Sink != nil {
		if err := c.opts.Sink.Record(state.String(), message, status.At); err != nil {
			c.log.WithError(err).Warn("record event")
		}
	}

	c.subMu.Lock()
	for _, ch := range c.subs {
		select {
		case ch <- status:
		default:
		}
	}
	c.subMu.Unlock()
}
