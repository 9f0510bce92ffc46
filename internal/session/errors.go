package session

import (
	"errors"
	"fmt"

	"github.com/ayusman/handglow/internal/capture"
)

var errNoDetectorFactory = errors.New("no detector configured")

// InitializationError reports that the hand detector could not be built.
type InitializationError struct {
	Err error
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("initialize detector: %v", e.Err)
}

func (e *InitializationError) Unwrap() error { return e.Err }

// CameraError reports that the camera could not be started.
type CameraError struct {
	Err error
}

func (e *CameraError) Error() string {
	return fmt.Sprintf("start camera: %v", e.Err)
}

func (e *CameraError) Unwrap() error { return e.Err }

// DetectionError reports that hand detection kept failing while streaming.
type DetectionError struct {
	Err error
}

func (e *DetectionError) Error() string {
	return fmt.Sprintf("detect hands: %v", e.Err)
}

func (e *DetectionError) Unwrap() error { return e.Err }

// userMessage converts a lifecycle failure into banner text.
func userMessage(err error) string {
	var (
		initErr *InitializationError
		camErr  *CameraError
		detErr  *DetectionError
	)
	switch {
	case errors.As(err, &initErr):
		return "Hand tracking could not be loaded: " + initErr.Err.Error()
	case errors.Is(err, capture.ErrPermissionDenied):
		return "Camera access was denied. Allow camera access and try again."
	case errors.Is(err, capture.ErrDeviceUnavailable):
		return "No camera is available. Connect a camera and try again."
	case errors.As(err, &camErr):
		return "Could not start the camera: " + camErr.Err.Error()
	case errors.As(err, &detErr):
		return "Hand tracking stopped: " + detErr.Err.Error()
	default:
		return err.Error()
	}
}
