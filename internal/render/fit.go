package render

// FitMode selects how a video frame is scaled into the canvas.
type FitMode int

const (
	// Contain keeps the whole frame visible and letterboxes the other axis.
	Contain FitMode = iota
	// Cover fills the canvas along the height for wide video, cropping the
	// overflowing sides.
	Cover
)

func (m FitMode) String() string {
	switch m {
	case Contain:
		return "contain"
	case Cover:
		return "cover"
	default:
		return "unknown"
	}
}

// FitTransform maps normalized [0,1] frame coordinates into canvas pixels.
// ScaleX and ScaleY are the scaled frame width and height; the offsets center
// the scaled frame in the canvas.
type FitTransform struct {
	ScaleX  float64
	ScaleY  float64
	OffsetX float64
	OffsetY float64
}

// Apply maps a normalized point into canvas space.
func (f FitTransform) Apply(x, y float64) (float64, float64) {
	return f.OffsetX + x*f.ScaleX, f.OffsetY + y*f.ScaleY
}

// Fit computes the aspect-preserving transform for a video of videoW x videoH
// drawn into a canvas of canvasW x canvasH. It returns false when any
// dimension is not positive.
//
// Aspect ratios are compared with a strict greater-than, so when they are
// exactly equal Contain takes the height-fit branch and Cover the width-fit
// branch. Both produce the same transform in that case.
func Fit(mode FitMode, videoW, videoH, canvasW, canvasH float64) (FitTransform, bool) {
	if videoW <= 0 || videoH <= 0 || canvasW <= 0 || canvasH <= 0 {
		return FitTransform{}, false
	}

	videoAspect := videoW / videoH
	canvasAspect := canvasW / canvasH

	fitWidth := videoAspect > canvasAspect
	if mode == Cover {
		fitWidth = !fitWidth
	}

	var scaledW, scaledH float64
	if fitWidth {
		scaledW = canvasW
		scaledH = canvasW / videoAspect
	} else {
		scaledH = canvasH
		scaledW = canvasH * videoAspect
	}

	return FitTransform{
		ScaleX:  scaledW,
		ScaleY:  scaledH,
		OffsetX: (canvasW - scaledW) / 2,
		OffsetY: (canvasH - scaledH) / 2,
	}, true
}
