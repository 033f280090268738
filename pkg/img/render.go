package img

import (
	"image"
	"image/color"
	"math"
	"slices"

	"github.com/anthonynsimon/bild/clone"
	"github.com/anthonynsimon/bild/parallel"
	"github.com/jpfielding/dicomimg.go/pkg/errs"
	"github.com/jpfielding/dicomimg.go/pkg/lut"
)

// Render maps one frame to display values. Monochrome images go through
// the modality LUT, the VOI LUT and the presentation LUT into an
// *image.Gray; color images are returned as *image.RGBA, windowed only when
// AllowWindowLevelOnColor is set. Floating point and 32 bit samples are
// scaled linearly by the window.
//
// Embedded overlays are cleared from the samples before windowing. When
// OverlayActivationMask selects overlays, they are painted in OverlayColor
// and the result is an *image.RGBA. Overlay errors are returned with the
// rendered image.
func Render(s *Samples, desc *Descriptor, frame int, params *RenderParams) (image.Image, error) {
	if s == nil || desc == nil {
		return nil, errs.Precondition("render", "missing samples or descriptor")
	}
	if s.Width*s.Height*s.Channels != s.Len() || s.Len() == 0 {
		return nil, errs.Precondition("render", "%dx%dx%d samples do not match %d values", s.Width, s.Height, s.Channels, s.Len())
	}
	if params == nil {
		params = &RenderParams{}
	}

	desc = desc.clone()
	var embedded []OverlayData
	if !s.IsFloat() && len(desc.EmbeddedOverlays) > 0 {
		s = &Samples{Width: s.Width, Height: s.Height, Channels: s.Channels, Ints: slices.Clone(s.Ints)}
		for _, e := range desc.EmbeddedOverlays {
			if params.OverlayActivationMask&(1<<(e.Group>>17)) == 0 {
				continue
			}
			embedded = append(embedded, OverlayData{
				Group:            e.Group,
				Rows:             s.Height,
				Columns:          s.Width,
				ImageFrameOrigin: frame + 1,
				FramesInOverlay:  1,
				Origin:           []int{1, 1},
				Data:             ExtractEmbeddedOverlay(s.Ints, s.Height, s.Width, e.BitPosition),
			})
		}
		RemoveEmbeddedOverlays(desc, s.Ints)
	}

	a := NewAdapter(s, desc)
	p := NewWindowLevelParameters(a, params)
	var out image.Image
	if s.IsFloat() || desc.BitsAllocated > 16 {
		out = renderRescaled(s, p)
	} else {
		out = renderLUT(a, p)
	}

	if params.OverlayActivationMask == 0 {
		return out, nil
	}
	overlays := embedded
	for _, o := range desc.Overlays {
		if params.OverlayActivationMask&(1<<(o.Group>>17)) != 0 {
			overlays = append(overlays, o)
		}
	}
	if pr := params.PresentationState; pr != nil {
		overlays = append(overlays, pr.OverlayData(params.OverlayActivationMask)...)
	}
	if len(overlays) == 0 {
		return out, nil
	}
	mask, err := OverlayMask(frame, s.Height, s.Width, overlays...)
	c := params.OverlayColor
	if c == nil {
		c = color.White
	}
	rgba := clone.AsRGBA(out)
	PaintOverlay(rgba, mask, c)
	return rgba, err
}

// renderRescaled maps [level-window/2, level+window/2] linearly onto 0-255
func renderRescaled(s *Samples, p *WindowLevelParameters) *image.Gray {
	low := p.Level - p.Window/2
	high := p.Level + p.Window/2
	span := high - low
	if span < 1 && !s.IsFloat() {
		span = 1
	}
	if span <= 0 {
		span = math.SmallestNonzeroFloat32
	}
	slope := 255 / span
	intercept := 255 - slope*high

	out := image.NewGray(image.Rect(0, 0, s.Width, s.Height))
	parallel.Line(s.Height, func(start, end int) {
		for y := start; y < end; y++ {
			row := out.Pix[y*out.Stride:]
			for x := range s.Width {
				v := s.Value((y*s.Width + x) * s.Channels)
				row[x] = uint8(max(0, min(255, math.Round(v*slope+intercept))))
			}
		}
	})
	return out
}

// renderLUT runs integer samples through the LUT chain
func renderLUT(a *Adapter, p *WindowLevelParameters) image.Image {
	s, desc := a.samples, a.desc
	modality := a.ModalityLookup(p.PixelPadding, p.InverseLUT, p.PresentationState)
	if !desc.Photometric.IsMonochrome() &&
		(!p.AllowWindowLevelOnColor || (p.Window == 255 && p.Level == 127.5)) {
		return renderColor(s, desc, modality, a.bitsStored)
	}

	voi := a.VOILookup(p)
	var prLUT *lut.Table
	if pr := p.PresentationState; pr != nil {
		prLUT, _ = pr.LUT()
	}
	display := func(v int32) uint8 {
		x := int(v)
		if modality != nil {
			x = int(modality.Clamped(x))
		}
		if voi != nil {
			x = int(voi.Clamped(x))
		}
		if prLUT != nil {
			if x = int(prLUT.Clamped(x)); prLUT.Bits() == 16 {
				x >>= 8
			}
		}
		return uint8(clampInt(x, 0, 255))
	}

	rect := image.Rect(0, 0, s.Width, s.Height)
	if s.Channels == 1 {
		out := image.NewGray(rect)
		parallel.Line(s.Height, func(start, end int) {
			for y := start; y < end; y++ {
				row := out.Pix[y*out.Stride:]
				for x := range s.Width {
					row[x] = display(s.Ints[y*s.Width+x])
				}
			}
		})
		return out
	}
	out := image.NewRGBA(rect)
	parallel.Line(s.Height, func(start, end int) {
		for y := start; y < end; y++ {
			for x := range s.Width {
				i := (y*s.Width + x) * s.Channels
				out.SetRGBA(x, y, color.RGBA{
					R: display(s.Ints[i]),
					G: display(s.Ints[i+min(1, s.Channels-1)]),
					B: display(s.Ints[i+min(2, s.Channels-1)]),
					A: 0xFF,
				})
			}
		}
	})
	return out
}

// renderColor converts color samples without windowing. Palette images go
// through their palette; other samples are narrowed to 8 bits.
func renderColor(s *Samples, desc *Descriptor, modality *lut.Table, bitsStored int) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, s.Width, s.Height))
	shift := max(0, bitsStored-8)
	narrow := func(v int32) uint8 {
		x := int(v)
		if modality != nil {
			x = int(modality.Clamped(x))
		}
		return uint8(clampInt(x>>shift, 0, 255))
	}
	palette := desc.Palette()
	ybr := desc.Photometric == YBRFull
	parallel.Line(s.Height, func(start, end int) {
		for y := start; y < end; y++ {
			for x := range s.Width {
				i := (y*s.Width + x) * s.Channels
				switch {
				case palette != nil:
					out.SetRGBA(x, y, palette.At(int(s.Ints[i])))
				case s.Channels < 3:
					g := narrow(s.Ints[i])
					out.SetRGBA(x, y, color.RGBA{R: g, G: g, B: g, A: 0xFF})
				case ybr:
					r, g, b := color.YCbCrToRGB(narrow(s.Ints[i]), narrow(s.Ints[i+1]), narrow(s.Ints[i+2]))
					out.SetRGBA(x, y, color.RGBA{R: r, G: g, B: b, A: 0xFF})
				default:
					out.SetRGBA(x, y, color.RGBA{R: narrow(s.Ints[i]), G: narrow(s.Ints[i+1]), B: narrow(s.Ints[i+2]), A: 0xFF})
				}
			}
		}
	})
	return out
}
