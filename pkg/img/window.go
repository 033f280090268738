package img

import (
	"image/color"

	"github.com/jpfielding/dicomimg.go/pkg/lut"
)

// RenderParams carries caller overrides for rendering. Nil fields fall back
// to the presentation state or the image.
type RenderParams struct {
	Window   *float64
	Level    *float64
	LevelMin *float64
	LevelMax *float64
	Shape    lut.Shape // zero means unset

	PixelPadding            *bool // default true
	InverseLUT              bool
	FillOutsideLUTRange     bool
	AllowWindowLevelOnColor bool

	PresentationState *PresentationState

	// OverlayActivationMask selects overlay groups 6000-601E by bit; 0
	// draws none
	OverlayActivationMask int
	OverlayColor          color.Color
}

// Ptr returns a pointer to v, for the optional RenderParams fields
func Ptr[T any](v T) *T { return &v }

// WindowLevelParameters is the resolved windowing of one rendering
type WindowLevelParameters struct {
	Window   float64
	Level    float64
	LevelMin float64
	LevelMax float64
	Shape    lut.Shape

	PixelPadding            bool
	InverseLUT              bool
	FillOutsideLUTRange     bool
	AllowWindowLevelOnColor bool

	PresentationState *PresentationState
}

// NewWindowLevelParameters resolves window, level and shape: an explicit
// parameter first, then the default preset of the presentation state and
// image, then the full dynamic range. LevelMin and LevelMax always cover the
// pixel value range.
func NewWindowLevelParameters(a *Adapter, p *RenderParams) *WindowLevelParameters {
	if p == nil {
		p = &RenderParams{}
	}
	w := &WindowLevelParameters{
		PixelPadding:            p.PixelPadding == nil || *p.PixelPadding,
		InverseLUT:              p.InverseLUT,
		FillOutsideLUTRange:     p.FillOutsideLUTRange,
		AllowWindowLevelOnColor: p.AllowWindowLevelOnColor,
		PresentationState:       p.PresentationState,
	}
	pr := w.PresentationState
	if p.Window != nil {
		w.Window = *p.Window
	} else {
		w.Window = a.DefaultWindow(w.PixelPadding, pr)
	}
	if p.Level != nil {
		w.Level = *p.Level
	} else {
		w.Level = a.DefaultLevel(w.PixelPadding, pr)
	}
	if !p.Shape.IsZero() {
		w.Shape = p.Shape
	} else {
		w.Shape = a.DefaultShape(w.PixelPadding, pr)
	}

	levelMin, levelMax := w.Level-w.Window/2, w.Level+w.Window/2
	if p.LevelMin != nil {
		levelMin = *p.LevelMin
	}
	if p.LevelMax != nil {
		levelMax = *p.LevelMax
	}
	w.LevelMin = min(levelMin, a.MinValue(w.PixelPadding, pr))
	w.LevelMax = max(levelMax, a.MaxValue(w.PixelPadding, pr))
	return w
}
