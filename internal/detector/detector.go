package detector

import (
	"fmt"

	"gocv.io/x/gocv"
)

// Detector defines the interface for hand detection implementations.
type Detector interface {
	// Detect analyzes a video frame and returns detected hands.
	// Returns an empty slice if no hands are detected.
	Detect(frame *gocv.Mat) ([]Hand, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Starter is implemented by detectors with a warm-up step, such as loading a
// model in a child process. Start must be called before the first Detect.
type Starter interface {
	Start() error
}

// Config holds configuration options for hand detection.
type Config struct {
	// MaxHands is the maximum number of hands to track.
	MaxHands int

	// ModelComplexity selects the landmark model tier (0 = lite, 1 = full).
	ModelComplexity int

	// MinDetectionConfidence is the minimum palm detection confidence (0.0-1.0).
	MinDetectionConfidence float64

	// MinTrackingConfidence is the minimum landmark tracking confidence (0.0-1.0).
	MinTrackingConfidence float64
}

// DefaultConfig returns the fixed configuration the session uses.
func DefaultConfig() Config {
	return Config{
		MaxHands:               2,
		ModelComplexity:        1,
		MinDetectionConfidence: 0.5,
		MinTrackingConfidence:  0.5,
	}
}

// Validate reports whether every knob is within the range the detector accepts.
func (c Config) Validate() error {
	if c.MaxHands < 1 {
		return fmt.Errorf("max hands must be at least 1, got %d", c.MaxHands)
	}
	if c.ModelComplexity < 0 || c.ModelComplexity > 1 {
		return fmt.Errorf("model complexity must be 0 or 1, got %d", c.ModelComplexity)
	}
	if c.MinDetectionConfidence < 0 || c.MinDetectionConfidence > 1 {
		return fmt.Errorf("min detection confidence must be in [0,1], got %v", c.MinDetectionConfidence)
	}
	if c.MinTrackingConfidence < 0 || c.MinTrackingConfidence > 1 {
		return fmt.Errorf("min tracking confidence must be in [0,1], got %v", c.MinTrackingConfidence)
	}
	return nil
}
