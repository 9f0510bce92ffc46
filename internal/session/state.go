// Package session owns the detector, camera and renderer for one handglow
// process and exposes their lifecycle as a small state machine.
package session

import "time"

// State is the session lifecycle state.
type State int

const (
	Uninitialized State = iota
	Initialized
	Streaming
	Error
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initialized:
		return "initialized"
	case Streaming:
		return "streaming"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalText lets State appear as a string in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Status is a snapshot of the session state. Message is set only in Error.
type Status struct {
	State   State     `json:"state"`
	Message string    `json:"message,omitempty"`
	At      time.Time `json:"at"`
}

// Placeholder texts shown over the canvas.
const (
	HintInitializing       = "Loading hand tracking..."
	HintAwaitingPermission = "Allow camera access to start tracking."
	HintAwaitingStream     = "Waiting for the camera stream..."
	HintNoHand             = "Show your hand to the camera."
)

// hint maps a state and the latest result to the placeholder text. An empty
// string means hands are on screen and no overlay is needed.
func hint(state State, hasResult bool, hands int) string {
	switch state {
	case Uninitialized:
		return HintInitializing
	case Initialized, Error:
		return HintAwaitingPermission
	}
	if !hasResult {
		return HintAwaitingStream
	}
	if hands == 0 {
		return HintNoHand
	}
	return ""
}
