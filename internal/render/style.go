package render

import (
	"math"
	"time"

	"github.com/ayusman/handglow/internal/detector"
	"github.com/gogpu/gg"
)

// Visual constants. Everything animated is derived from these and the frame
// timestamp; nothing accumulates between frames.
const (
	HandHueSpacing  = 120.0 // degrees between consecutive hands
	HueSpeed        = 30.0  // degrees per second
	LandmarkHueStep = 17.0  // degrees between consecutive landmark indices
	LandmarkHueRate = 45.0  // extra degrees per second for landmark discs

	BaseRadius     = 8.0
	MinDepthScale  = 0.5
	MaxDepthScale  = 2.0
	DepthGain      = 4.0
	LabelThreshold = 10.0 // minimum disc radius, in pixels, that carries an index label
	LabelFontSize  = 10.0

	ConnectionWidth = 3.0
	GlowRadius      = 2.5 // halo radius as a multiple of the disc radius
	StrokeGlow      = 12.0
)

var (
	backgroundInner = gg.Hex("#1a1a2e")
	backgroundOuter = gg.Hex("#05050a")
)

// Seconds converts t into fractional seconds used by the animation functions.
func Seconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

func wrapHue(h float64) float64 {
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	return h
}

// HandHue is the base hue for the hand at handIndex at time t (seconds).
func HandHue(handIndex int, t float64) float64 {
	return wrapHue(float64(handIndex)*HandHueSpacing + t*HueSpeed)
}

// LandmarkHue offsets a hand's base hue for one landmark.
func LandmarkHue(base float64, index int, t float64) float64 {
	return wrapHue(base + float64(index)*LandmarkHueStep + t*LandmarkHueRate)
}

// LandmarkRadius returns the disc radius for lm. Points closer to the camera
// (more negative Z) grow, low-visibility points shrink.
func LandmarkRadius(lm detector.Landmark) float64 {
	depth := clamp(1-lm.Z*DepthGain, MinDepthScale, MaxDepthScale)
	visibility := clamp(lm.VisibilityOr(1), 0, 1)
	return BaseRadius * depth * (0.5 + 0.5*visibility)
}

// Labeled reports whether a disc of radius r is large enough for a label.
func Labeled(r float64) bool {
	return r > LabelThreshold
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func withAlpha(c gg.RGBA, a float64) gg.RGBA {
	c.A = a
	return c
}
