package render

import (
	"math"
	"strconv"
	"time"

	"github.com/ayusman/handglow/internal/detector"
	"github.com/gogpu/gg"
	"github.com/gogpu/gg/text"
)

// Options configures a Renderer.
type Options struct {
	// Fit selects the aspect-fit mode. Defaults to Contain.
	Fit FitMode

	// Mirror flips the output horizontally for a selfie view.
	Mirror bool

	// Clock supplies the animation time. Defaults to time.Now.
	Clock func() time.Time

	// Font labels landmark indices. Labels are skipped when nil.
	Font text.Face
}

// Renderer paints detection results. It holds no per-frame state and never
// retains the canvas it is given.
type Renderer struct {
	opts Options
}

// New creates a Renderer.
func New(opts Options) *Renderer {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Renderer{opts: opts}
}

// glow is the halo applied to strokes. It is reset between hands so one
// hand's glow never bleeds into the next.
type glow struct {
	color gg.RGBA
	blur  float64
}

// frame is the per-call drawing state.
type frame struct {
	canvas Canvas
	fit    FitTransform
	width  float64
	mirror bool
	t      float64
	glow   glow

	// err is the first fill or stroke failure.
	err error
}

// Render resizes canvas to vp and paints result onto it. It returns false,
// without drawing anything, when the canvas, viewport or frame size is
// unavailable, and false when the canvas fails to fill the background or any
// landmark path.
func (r *Renderer) Render(canvas Canvas, result *detector.Result, vp Viewport) bool {
	if canvas == nil || result == nil || !vp.Valid() {
		return false
	}

	fit, ok := Fit(r.opts.Fit,
		float64(result.Width), float64(result.Height),
		float64(vp.Width), float64(vp.Height))
	if !ok {
		return false
	}

	if err := canvas.Resize(vp.Width, vp.Height); err != nil {
		return false
	}

	f := &frame{
		canvas: canvas,
		fit:    fit,
		width:  float64(vp.Width),
		mirror: r.opts.Mirror,
		t:      Seconds(r.opts.Clock()),
	}

	if err := f.background(float64(vp.Width), float64(vp.Height)); err != nil {
		return false
	}

	if r.opts.Font != nil {
		canvas.SetFont(r.opts.Font)
	}

	for i := range result.Hands {
		hand := &result.Hands[i]
		hue := HandHue(i, f.t)

		f.connections(hand, hue)
		f.landmarks(hand, hue, r.opts.Font != nil)
		f.resetGlow()
	}

	return f.err == nil
}

func (f *frame) background(w, h float64) error {
	radius := math.Hypot(w, h) / 2
	bg := gg.NewRadialGradientBrush(w/2, h/2, 0, radius).
		AddColorStop(0, backgroundInner).
		AddColorStop(1, backgroundOuter)

	f.canvas.SetFillBrush(bg)
	f.canvas.DrawRectangle(0, 0, w, h)
	return f.canvas.Fill()
}

func (f *frame) check(err error) {
	if err != nil && f.err == nil {
		f.err = err
	}
}

func (f *frame) point(lm detector.Landmark) (float64, float64) {
	x, y := f.fit.Apply(lm.X, lm.Y)
	if f.mirror {
		x = f.width - x
	}
	return x, y
}

func (f *frame) setGlow(c gg.RGBA, blur float64) {
	f.glow = glow{color: c, blur: blur}
}

func (f *frame) resetGlow() {
	f.glow = glow{}
}

// strokeLine draws a line with the current glow as widening translucent
// passes underneath a solid core.
func (f *frame) strokeLine(x1, y1, x2, y2 float64, c gg.RGBA, width float64) {
	f.canvas.SetLineCap(gg.LineCapRound)

	if f.glow.blur > 0 {
		for _, pass := range [...]struct{ spread, alpha float64 }{{1, 0.15}, {0.5, 0.3}} {
			f.canvas.SetStrokeBrush(gg.Solid(withAlpha(f.glow.color, pass.alpha)))
			f.canvas.SetLineWidth(width + f.glow.blur*pass.spread)
			f.canvas.DrawLine(x1, y1, x2, y2)
			f.check(f.canvas.Stroke())
		}
	}

	f.canvas.SetStrokeBrush(gg.Solid(c))
	f.canvas.SetLineWidth(width)
	f.canvas.DrawLine(x1, y1, x2, y2)
	f.check(f.canvas.Stroke())
}

func (f *frame) connections(hand *detector.Hand, hue float64) {
	c := gg.HSL(hue, 1, 0.6)
	f.setGlow(c, StrokeGlow)

	for _, conn := range detector.Connections {
		a, okA := hand.At(conn.From)
		b, okB := hand.At(conn.To)
		if !okA || !okB {
			continue
		}
		x1, y1 := f.point(a)
		x2, y2 := f.point(b)
		f.strokeLine(x1, y1, x2, y2, withAlpha(c, 0.85), ConnectionWidth)
	}
}

func (f *frame) landmarks(hand *detector.Hand, base float64, labels bool) {
	for i := 0; i < detector.NumLandmarks; i++ {
		lm, ok := hand.At(i)
		if !ok {
			continue
		}

		x, y := f.point(lm)
		radius := LandmarkRadius(lm)
		c := gg.HSL(LandmarkHue(base, i, f.t), 1, 0.6)

		halo := gg.NewRadialGradientBrush(x, y, 0, radius*GlowRadius).
			AddColorStop(0, withAlpha(c, 0.6)).
			AddColorStop(1, withAlpha(c, 0))
		f.canvas.SetFillBrush(halo)
		f.canvas.DrawCircle(x, y, radius*GlowRadius)
		f.check(f.canvas.Fill())

		core := gg.NewRadialGradientBrush(x, y, 0, radius).
			AddColorStop(0, gg.White).
			AddColorStop(0.4, c).
			AddColorStop(1, withAlpha(c, 0.7))
		f.canvas.SetFillBrush(core)
		f.canvas.DrawCircle(x, y, radius)
		f.check(f.canvas.Fill())

		if labels && Labeled(radius) {
			f.canvas.SetColor(gg.White.Color())
			f.canvas.DrawStringAnchored(strconv.Itoa(i), x, y, 0.5, 0.5)
		}
	}
}
