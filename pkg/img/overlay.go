package img

import (
	"errors"
	"image"
	"image/color"
	"log/slog"

	"github.com/jpfielding/dicomimg.go/pkg/dicom"
	"github.com/jpfielding/dicomimg.go/pkg/dicom/tag"
	"github.com/jpfielding/dicomimg.go/pkg/errs"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/draw"
)

// overlay repeating groups 6000-601E
const overlayGroups = 16

// EmbeddedOverlay is an overlay plane kept in unused bits of the samples
type EmbeddedOverlay struct {
	Group       tag.Tag `json:"group"` // offset added to the 60xx tags
	BitPosition int     `json:"bitPosition"`
}

// EmbeddedOverlays lists the overlay groups of set whose plane lives inside
// the pixel samples. Planes positioned below BitsStored are ignored.
func EmbeddedOverlays(set *dicom.AttributeSet) []EmbeddedOverlay {
	bitsAllocated := set.GetIntOr(tag.BitsAllocated, 8)
	bitsStored := set.GetIntOr(tag.BitsStored, bitsAllocated)
	var out []EmbeddedOverlay
	for i := range overlayGroups {
		g := tag.OverlayGroup(i)
		if set.GetIntOr(tag.OverlayBitsAllocated|g, 1) == 1 {
			continue
		}
		pos := set.GetIntOr(tag.OverlayBitPosition|g, 0)
		if pos < bitsStored {
			slog.Info("ignore embedded overlay below bits stored", "overlay", i+1, "bit", pos, "bitsStored", bitsStored)
			continue
		}
		out = append(out, EmbeddedOverlay{Group: g, BitPosition: pos})
	}
	return out
}

// ExtractEmbeddedOverlay packs bit bitPosition of the first rows*cols
// samples into a 1 bit per pixel plane, least significant bit first, padded
// to an even number of bytes
func ExtractEmbeddedOverlay(samples []int32, rows, cols, bitPosition int) []byte {
	n := min(rows*cols, len(samples))
	out := make([]byte, (((rows*cols+7)>>3)+1)&^1)
	mask := int32(1) << bitPosition
	for i := range n {
		if samples[i]&mask != 0 {
			out[i>>3] |= 1 << (i & 7)
		}
	}
	return out
}

// RemoveEmbeddedOverlays clears every bit outside the stored bits of an
// image carrying embedded overlays and adapts the modality LUT to the
// shifted values. It reports whether samples were changed.
func RemoveEmbeddedOverlays(desc *Descriptor, samples []int32) bool {
	if desc.BitsStored >= desc.BitsAllocated || desc.BitsAllocated > 16 || len(desc.EmbeddedOverlays) == 0 {
		return false
	}
	highBit := desc.HighBit
	if highBit >= desc.BitsAllocated {
		highBit = desc.BitsStored - 1
	}
	high := highBit + 1
	mask := int32(1)<<high - 1
	if high > desc.BitsStored {
		mask -= int32(1)<<(high-desc.BitsStored) - 1
	}
	for i := range samples {
		samples[i] &= mask
	}
	if high > desc.BitsStored {
		desc.ModalityLUT().AdaptForOverlayMask(highBit, desc.BitsStored)
	}
	return true
}

// OverlayData is a bitmap overlay stored in Overlay Data (60xx,3000)
type OverlayData struct {
	Group            tag.Tag `json:"group"`
	Rows             int     `json:"rows"`
	Columns          int     `json:"columns"`
	ImageFrameOrigin int     `json:"imageFrameOrigin"`
	FramesInOverlay  int     `json:"framesInOverlay"`
	Origin           []int   `json:"origin"` // row, column; 1 based
	Data             []byte  `json:"-"`
}

// OverlayDataOf returns the overlays of set whose group bit is set in
// activationMask
func OverlayDataOf(set *dicom.AttributeSet, activationMask int) []OverlayData {
	return overlayData(set, activationMask, false)
}

// PresentationOverlayData returns the overlays of a presentation state that
// are assigned to a graphic layer by Overlay Activation Layer
func PresentationOverlayData(pr *dicom.AttributeSet, activationMask int) []OverlayData {
	return overlayData(pr, activationMask, true)
}

func overlayData(set *dicom.AttributeSet, activationMask int, layered bool) []OverlayData {
	var out []OverlayData
	for i := range overlayGroups {
		g := tag.OverlayGroup(i)
		if activationMask&(1<<i) == 0 {
			continue
		}
		if layered && !set.Contains(tag.OverlayActivationLayer|g) {
			continue
		}
		data, ok := set.GetBytes(tag.OverlayData | g)
		if !ok {
			continue
		}
		origin := set.GetInts(tag.OverlayOrigin | g)
		if origin == nil {
			origin = []int{1, 1}
		}
		out = append(out, OverlayData{
			Group:            g,
			Rows:             set.GetIntOr(tag.OverlayRows|g, 0),
			Columns:          set.GetIntOr(tag.OverlayColumns|g, 0),
			ImageFrameOrigin: set.GetIntOr(tag.ImageFrameOrigin|g, 1),
			FramesInOverlay:  set.GetIntOr(tag.NumberOfFramesInOverlay|g, 1),
			Origin:           origin,
			Data:             data,
		})
	}
	return out
}

// ActiveOverlayGroups lists the groups in activationMask that carry t,
// e.g. OverlayRows for an image or OverlayActivationLayer for a
// presentation state
func ActiveOverlayGroups(set *dicom.AttributeSet, t tag.Tag, activationMask int) []tag.Tag {
	var out []tag.Tag
	for i := range overlayGroups {
		g := tag.OverlayGroup(i)
		if activationMask&(1<<i) != 0 && set.Contains(t|g) {
			out = append(out, g)
		}
	}
	return out
}

// AppliesTo reports whether the overlay covers frame (0 based)
func (o *OverlayData) AppliesTo(frame int) bool {
	idx := frame + 1 - o.ImageFrameOrigin
	return idx >= 0 && idx < o.FramesInOverlay
}

func (o *OverlayData) validate() error {
	switch {
	case o.Data == nil:
		return errs.Format("overlay", "%v missing overlay data", tag.OverlayData|o.Group)
	case o.Rows <= 0:
		return errs.Format("overlay", "%v overlay rows %d", tag.OverlayRows|o.Group, o.Rows)
	case o.Columns <= 0:
		return errs.Format("overlay", "%v overlay columns %d", tag.OverlayColumns|o.Group, o.Columns)
	case len(o.Origin) != 2:
		return errs.Format("overlay", "%v overlay origin %v", tag.OverlayOrigin|o.Group, o.Origin)
	}
	return nil
}

// blit sets the mask pixels of the overlay plane for frame
func (o *OverlayData) blit(frame int, mask *image.Alpha) {
	idx := frame + 1 - o.ImageFrameOrigin
	y0, x0 := o.Origin[0]-1, o.Origin[1]-1
	n := o.Rows * o.Columns
	off := n * idx
	end := min((off+n+7)>>3, len(o.Data))
	for i := off >> 3; i < end; i++ {
		bits := o.Data[i]
		for j := 0; bits>>j != 0; j++ {
			if bits&(1<<j) == 0 {
				continue
			}
			k := i<<3 + j - off
			if k < 0 || k >= n {
				continue
			}
			x, y := x0+k%o.Columns, y0+k/o.Columns
			if (image.Point{x, y}).In(mask.Rect) {
				mask.SetAlpha(x, y, color.Alpha{A: 0xFF})
			}
		}
	}
}

// OverlayMask composes the overlays applying to frame (0 based) into a
// rows x cols mask. Overlays that do not cover the frame are skipped. An
// unusable overlay is reported in the joined error; the others are still
// drawn.
func OverlayMask(frame, rows, cols int, overlays ...OverlayData) (*image.Alpha, error) {
	mask := image.NewAlpha(image.Rect(0, 0, cols, rows))
	var errList []error
	for i := range overlays {
		o := &overlays[i]
		if !o.AppliesTo(frame) {
			continue
		}
		if err := o.validate(); err != nil {
			errList = append(errList, err)
			continue
		}
		o.blit(frame, mask)
	}
	return mask, errors.Join(errList...)
}

// PaintOverlay paints c over dst wherever mask is set
func PaintOverlay(dst draw.Image, mask *image.Alpha, c color.Color) {
	draw.DrawMask(dst, dst.Bounds(), image.NewUniform(c), image.Point{}, mask, mask.Rect.Min, draw.Over)
}

// ParseOverlayColor reads a #rrggbb color
func ParseOverlayColor(s string) (color.RGBA, error) {
	c, err := colorful.Hex(s)
	if err != nil {
		return color.RGBA{}, errs.Format("overlay color", "%q: %w", s, err)
	}
	r, g, b := c.Clamped().RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 0xFF}, nil
}

// GrayOverlayColor maps a Recommended Display Grayscale Value (0-65535) to
// an opaque gray
func GrayOverlayColor(v int) color.Gray16 {
	return color.Gray16{Y: uint16(clampInt(v, 0, 0xFFFF))}
}

// RecommendedDisplayGrayscaleValue finds the graphic layer an overlay group
// of a presentation state is activated on and returns its recommended
// grayscale value, or -1 when the layer has none
func RecommendedDisplayGrayscaleValue(pr *dicom.AttributeSet, group tag.Tag) (int, error) {
	at := tag.OverlayActivationLayer | group
	layer, ok := pr.GetString(at)
	if !ok {
		return -1, errs.Precondition("overlay layer", "missing %v overlay activation layer", at)
	}
	layers, ok := pr.Get(tag.GraphicLayerSequence)
	if !ok {
		return -1, errs.Precondition("overlay layer", "missing %v graphic layer sequence", tag.GraphicLayerSequence)
	}
	for _, item := range layers.Items() {
		if name, _ := item.GetString(tag.GraphicLayer); name == layer {
			return item.GetIntOr(tag.GraphicLayerRecommendedDisplayGrayscaleValue, -1), nil
		}
	}
	return -1, errs.Precondition("overlay layer", "no graphic layer %q", layer)
}

func clampInt(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
