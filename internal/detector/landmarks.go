// Package detector provides the hand landmark types and the boundary to the
// external hand detector.
package detector

import "time"

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// Connection is a skeletal edge between two landmark indices.
type Connection struct {
	From int
	To   int
}

// Connections is the fixed 20-edge hand skeleton: the five finger chains
// (middle and ring hang off the previous knuckle) plus the wrist-to-pinky-base
// edge that closes the palm.
var Connections = [...]Connection{
	{Wrist, ThumbCMC}, {ThumbCMC, ThumbMCP}, {ThumbMCP, ThumbIP}, {ThumbIP, ThumbTip},
	{Wrist, IndexMCP}, {IndexMCP, IndexPIP}, {IndexPIP, IndexDIP}, {IndexDIP, IndexTip},
	{IndexMCP, MiddleMCP}, {MiddleMCP, MiddlePIP}, {MiddlePIP, MiddleDIP}, {MiddleDIP, MiddleTip},
	{MiddleMCP, RingMCP}, {RingMCP, RingPIP}, {RingPIP, RingDIP}, {RingDIP, RingTip},
	{PinkyMCP, PinkyPIP}, {PinkyPIP, PinkyDIP}, {PinkyDIP, PinkyTip},
	{Wrist, PinkyMCP},
}

// Landmark is a normalized image-relative point. X and Y are in [0,1], Z is
// depth relative to the wrist (smaller is closer to the camera).
type Landmark struct {
	X          float64  `json:"x"`
	Y          float64  `json:"y"`
	Z          float64  `json:"z"`
	Visibility *float64 `json:"visibility,omitempty"`
}

// VisibilityOr returns the landmark visibility, or def when the detector did
// not report one.
func (l Landmark) VisibilityOr(def float64) float64 {
	if l.Visibility == nil {
		return def
	}
	return *l.Visibility
}

// Handedness is the detector's left/right classification.
type Handedness string

const (
	Left    Handedness = "Left"
	Right   Handedness = "Right"
	Unknown Handedness = "Unknown"
)

// ParseHandedness maps a detector label onto a Handedness.
func ParseHandedness(label string) Handedness {
	switch Handedness(label) {
	case Left, Right:
		return Handedness(label)
	default:
		return Unknown
	}
}

// Hand is one detected hand. A nil entry in Landmarks means the detector did
// not populate that index for this frame.
type Hand struct {
	Landmarks  [NumLandmarks]*Landmark `json:"landmarks"`
	Handedness Handedness              `json:"handedness"`
	Score      float64                 `json:"score"`
}

// At returns the landmark at index i and whether it is present.
func (h *Hand) At(i int) (Landmark, bool) {
	if h == nil || i < 0 || i >= NumLandmarks || h.Landmarks[i] == nil {
		return Landmark{}, false
	}
	return *h.Landmarks[i], true
}

// Present returns the number of populated landmarks.
func (h *Hand) Present() int {
	n := 0
	for _, lm := range h.Landmarks {
		if lm != nil {
			n++
		}
	}
	return n
}

// Result is the output of a single detector invocation. Width and Height are
// the intrinsic size of the frame the hands were detected in.
type Result struct {
	Hands     []Hand    `json:"hands"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	Timestamp time.Time `json:"timestamp"`
}
