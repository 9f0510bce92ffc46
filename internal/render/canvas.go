// Package render paints detected hands onto a 2D canvas as glowing, animated
// skeletons.
package render

import (
	"image/color"

	"github.com/gogpu/gg"
	"github.com/gogpu/gg/text"
	"golang.org/x/image/font/gofont/goregular"
)

// Canvas is the drawing surface the renderer paints on. *gg.Context
// satisfies it.
type Canvas interface {
	Width() int
	Height() int
	Resize(width, height int) error

	SetFillBrush(b gg.Brush)
	SetStrokeBrush(b gg.Brush)
	SetColor(c color.Color)
	SetLineWidth(width float64)
	SetLineCap(lineCap gg.LineCap)
	SetFont(face text.Face)

	DrawRectangle(x, y, w, h float64)
	DrawCircle(x, y, r float64)
	DrawLine(x1, y1, x2, y2 float64)
	DrawStringAnchored(s string, x, y, ax, ay float64)
	Fill() error
	Stroke() error
}

var _ Canvas = (*gg.Context)(nil)

// Viewport is the size the canvas backing store should have.
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Valid reports whether both dimensions are positive.
func (v Viewport) Valid() bool {
	return v.Width > 0 && v.Height > 0
}

// NewCanvas allocates a software canvas of the given viewport size.
func NewCanvas(vp Viewport) *gg.Context {
	return gg.NewContext(vp.Width, vp.Height)
}

// LabelFont returns the Go Regular face used for landmark indices.
func LabelFont(size float64) (text.Face, error) {
	source, err := text.NewFontSource(goregular.TTF)
	if err != nil {
		return nil, err
	}
	return source.Face(size), nil
}
