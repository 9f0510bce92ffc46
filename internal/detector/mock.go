package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu     sync.Mutex
	hands  []Hand
	err    error
	calls  int
	closed bool

	startErr error
	starts   int
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetHands sets the hands that will be returned by Detect.
func (m *MockDetector) SetHands(hands []Hand) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hands = hands
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetStartError sets the error that will be returned by Start.
func (m *MockDetector) SetStartError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startErr = err
}

// Start records the call and returns the configured start error.
func (m *MockDetector) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.starts++
	return m.startErr
}

// Starts returns how many times Start has been invoked.
func (m *MockDetector) Starts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.starts
}

// Detect returns the pre-configured hands or error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]Hand, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.hands, nil
}

// Calls returns how many times Detect has been invoked.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Close marks the detector closed.
func (m *MockDetector) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (m *MockDetector) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func handFromPoints(handedness Handedness, score float64, pts [NumLandmarks][3]float64) Hand {
	h := Hand{Handedness: handedness, Score: score}
	for i, p := range pts {
		h.Landmarks[i] = &Landmark{X: p[0], Y: p[1], Z: p[2]}
	}
	return h
}

// OpenPalm returns a right hand with all fingers extended upward.
func OpenPalm() Hand {
	return handFromPoints(Right, 0.95, [NumLandmarks][3]float64{
		Wrist: {0.5, 0.8, 0.0},

		ThumbCMC: {0.55, 0.75, -0.02},
		ThumbMCP: {0.62, 0.70, -0.03},
		ThumbIP:  {0.68, 0.65, -0.03},
		ThumbTip: {0.73, 0.60, -0.04},

		IndexMCP: {0.55, 0.68, -0.01},
		IndexPIP: {0.57, 0.55, -0.02},
		IndexDIP: {0.58, 0.45, -0.03},
		IndexTip: {0.58, 0.35, -0.04},

		MiddleMCP: {0.50, 0.66, -0.01},
		MiddlePIP: {0.50, 0.52, -0.02},
		MiddleDIP: {0.50, 0.40, -0.03},
		MiddleTip: {0.50, 0.28, -0.04},

		RingMCP: {0.45, 0.68, -0.01},
		RingPIP: {0.43, 0.55, -0.02},
		RingDIP: {0.42, 0.45, -0.03},
		RingTip: {0.42, 0.35, -0.04},

		PinkyMCP: {0.40, 0.70, -0.01},
		PinkyPIP: {0.37, 0.60, -0.02},
		PinkyDIP: {0.35, 0.50, -0.03},
		PinkyTip: {0.34, 0.42, -0.04},
	})
}

// ThumbsUp returns a right hand with the thumb extended and the other
// fingers curled.
func ThumbsUp() Hand {
	return handFromPoints(Right, 0.92, [NumLandmarks][3]float64{
		Wrist: {0.5, 0.8, 0.0},

		ThumbCMC: {0.55, 0.75, 0.0},
		ThumbMCP: {0.58, 0.65, 0.0},
		ThumbIP:  {0.58, 0.50, 0.0},
		ThumbTip: {0.58, 0.35, 0.0},

		IndexMCP: {0.55, 0.70, -0.02},
		IndexPIP: {0.55, 0.68, -0.05},
		IndexDIP: {0.52, 0.70, -0.04},
		IndexTip: {0.50, 0.72, -0.02},

		MiddleMCP: {0.50, 0.68, -0.02},
		MiddlePIP: {0.50, 0.66, -0.05},
		MiddleDIP: {0.47, 0.68, -0.04},
		MiddleTip: {0.45, 0.70, -0.02},

		RingMCP: {0.45, 0.70, -0.02},
		RingPIP: {0.45, 0.68, -0.05},
		RingDIP: {0.42, 0.70, -0.04},
		RingTip: {0.40, 0.72, -0.02},

		PinkyMCP: {0.40, 0.72, -0.02},
		PinkyPIP: {0.40, 0.70, -0.05},
		PinkyDIP: {0.37, 0.72, -0.04},
		PinkyTip: {0.35, 0.74, -0.02},
	})
}
