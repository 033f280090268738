package img

import (
	"log/slog"
	"math"
	"math/bits"
	"slices"
	"sync"

	"github.com/jpfielding/dicomimg.go/pkg/dicom/tag"
	"github.com/jpfielding/dicomimg.go/pkg/lut"
	"github.com/jpfielding/dicomimg.go/pkg/util"
)

// Adapter binds decoded samples to their descriptor and derives the value
// range, presets and LUTs of the image. Modality tables are cached per
// adapter, keyed by every parameter that shapes them.
type Adapter struct {
	desc       *Descriptor
	samples    *Samples
	bitsStored int
	minVal     float64
	maxVal     float64

	mu      sync.Mutex
	luts    map[string]*lut.Table
	presets map[presetKey][]Preset
}

type presetKey struct {
	padding bool
	pr      *PresentationState
}

// lutParameters identifies a modality table
type lutParameters struct {
	Intercept      float64
	Slope          float64
	PixelPadding   bool
	PaddingValue   *int
	PaddingLimit   *int
	BitsStored     int
	Signed         bool
	OutputSigned   bool
	BitsOutput     int
	InversePadding bool
	Table          string
}

// NewAdapter scans the samples for their value range. Padding values of
// monochrome images are left out of the range; when all samples are equal
// the maximum is raised by one. Bits Stored is widened to Bits Allocated
// when values fall outside the stored range.
func NewAdapter(s *Samples, desc *Descriptor) *Adapter {
	a := &Adapter{
		desc:       desc,
		samples:    s,
		bitsStored: desc.BitsStored,
		luts:       map[string]*lut.Table{},
		presets:    map[presetKey][]Preset{},
	}
	a.findMinMax()
	return a
}

func (a *Adapter) findMinMax() {
	byteData := a.desc.BitsAllocated <= 8 && !a.samples.IsFloat()
	monochrome := a.desc.Photometric.IsMonochrome()
	found := false
	if lo, hi, ok := a.desc.PaddingRange(); ok && monochrome {
		if byteData {
			a.minVal, a.maxVal, found = 0, 255, true
		} else {
			a.minVal, a.maxVal, found = a.scan(func(v float64) bool {
				return v < float64(lo) || v > float64(hi)
			})
		}
	}
	if !found {
		if byteData && !monochrome {
			a.minVal, a.maxVal = 0, 255
		} else {
			a.minVal, a.maxVal, _ = a.scan(nil)
		}
	}
	if a.minVal == a.maxVal {
		a.maxVal++
	}

	if a.bitsStored < a.desc.BitsAllocated && a.bitsStored > 0 {
		lo, hi := storedRange(a.bitsStored, a.desc.Signed())
		if a.minVal < float64(lo) || a.maxVal > float64(hi) {
			slog.Debug("pixel values exceed bits stored, using bits allocated",
				"bitsStored", a.bitsStored, "bitsAllocated", a.desc.BitsAllocated, "min", a.minVal, "max", a.maxVal)
			a.bitsStored = a.desc.BitsAllocated
		}
	}
}

// scan returns the extent of the samples accepted by keep
func (a *Adapter) scan(keep func(float64) bool) (lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for i := range a.samples.Len() {
		v := a.samples.Value(i)
		if math.IsNaN(v) || (keep != nil && !keep(v)) {
			continue
		}
		lo, hi, ok = min(lo, v), max(hi, v), true
	}
	if !ok {
		return 0, 0, false
	}
	return lo, hi, true
}

func storedRange(bitsStored int, signed bool) (lo, hi int) {
	if signed {
		return -(1 << (bitsStored - 1)), 1<<(bitsStored-1) - 1
	}
	return 0, 1<<bitsStored - 1
}

// Descriptor returns the image descriptor
func (a *Adapter) Descriptor() *Descriptor { return a.desc }

// Samples returns the adapted frame
func (a *Adapter) Samples() *Samples { return a.samples }

// BitsStored returns Bits Stored, possibly widened
func (a *Adapter) BitsStored() int { return a.bitsStored }

// RawMinMax returns the stored value range
func (a *Adapter) RawMinMax() (lo, hi float64) { return a.minVal, a.maxVal }

// MinAllocatedValue is the smallest value Bits Allocated can hold in the
// modality domain
func (a *Adapter) MinAllocatedValue(pixelPadding bool, pr *PresentationState) int {
	lo, _ := storedRange(min(a.desc.BitsAllocated, 32), a.ModalityLUTOutSigned(pixelPadding, pr))
	return lo
}

// MaxAllocatedValue is the largest value Bits Allocated can hold in the
// modality domain
func (a *Adapter) MaxAllocatedValue(pixelPadding bool, pr *PresentationState) int {
	_, hi := storedRange(min(a.desc.BitsAllocated, 32), a.ModalityLUTOutSigned(pixelPadding, pr))
	return hi
}

// ModalityLUTOutSigned reports whether modality values can be negative
func (a *Adapter) ModalityLUTOutSigned(pixelPadding bool, pr *PresentationState) bool {
	return a.MinValue(pixelPadding, pr) < 0 || a.desc.Signed()
}

// MinValue is the smallest modality value of the image
func (a *Adapter) MinValue(pixelPadding bool, pr *PresentationState) float64 {
	lo, hi := a.realRange(pixelPadding, pr)
	return min(lo, hi)
}

// MaxValue is the largest modality value of the image
func (a *Adapter) MaxValue(pixelPadding bool, pr *PresentationState) float64 {
	lo, hi := a.realRange(pixelPadding, pr)
	return max(lo, hi)
}

// realRange maps both ends, which swap under a negative slope
func (a *Adapter) realRange(pixelPadding bool, pr *PresentationState) (float64, float64) {
	return a.PixelToRealValue(a.minVal, pixelPadding, pr), a.PixelToRealValue(a.maxVal, pixelPadding, pr)
}

// RescaleIntercept prefers the presentation state over the image; 0 when
// neither has one
func (a *Adapter) RescaleIntercept(pr *PresentationState) float64 {
	if pr != nil {
		if v, ok := pr.ModalityLUT().Intercept(); ok {
			return v
		}
	}
	if v, ok := a.desc.ModalityLUT().Intercept(); ok {
		return v
	}
	return 0
}

// RescaleSlope prefers the presentation state over the image; 1 when
// neither has one
func (a *Adapter) RescaleSlope(pr *PresentationState) float64 {
	if pr != nil {
		if v, ok := pr.ModalityLUT().Slope(); ok {
			return v
		}
	}
	if v, ok := a.desc.ModalityLUT().Slope(); ok {
		return v
	}
	return 1
}

// FullDynamicWidth is the width of the modality value range
func (a *Adapter) FullDynamicWidth(pixelPadding bool, pr *PresentationState) float64 {
	return a.MaxValue(pixelPadding, pr) - a.MinValue(pixelPadding, pr)
}

// FullDynamicCenter is the middle of the modality value range
func (a *Adapter) FullDynamicCenter(pixelPadding bool, pr *PresentationState) float64 {
	lo, hi := a.MinValue(pixelPadding, pr), a.MaxValue(pixelPadding, pr)
	return lo + (hi-lo)/2
}

// Presets returns the cached preset list, see Presets
func (a *Adapter) Presets(pixelPadding bool, pr *PresentationState) []Preset {
	key := presetKey{pixelPadding, pr}
	a.mu.Lock()
	p, ok := a.presets[key]
	a.mu.Unlock()
	if ok {
		return p
	}
	p = Presets(a, pixelPadding, pr)
	a.mu.Lock()
	a.presets[key] = p
	a.mu.Unlock()
	return p
}

// DefaultPreset is the first preset
func (a *Adapter) DefaultPreset(pixelPadding bool, pr *PresentationState) (Preset, bool) {
	if p := a.Presets(pixelPadding, pr); len(p) > 0 {
		return p[0], true
	}
	return Preset{}, false
}

func (a *Adapter) DefaultShape(pixelPadding bool, pr *PresentationState) lut.Shape {
	if p, ok := a.DefaultPreset(pixelPadding, pr); ok {
		return p.Shape
	}
	return lut.Linear
}

func (a *Adapter) DefaultWindow(pixelPadding bool, pr *PresentationState) float64 {
	if p, ok := a.DefaultPreset(pixelPadding, pr); ok {
		return p.Window
	}
	return a.FullDynamicWidth(pixelPadding, pr)
}

func (a *Adapter) DefaultLevel(pixelPadding bool, pr *PresentationState) float64 {
	if p, ok := a.DefaultPreset(pixelPadding, pr); ok {
		return p.Level
	}
	return a.FullDynamicCenter(pixelPadding, pr)
}

// PixelToRealValue maps a stored value through the modality table. Values
// the table does not cover are returned unchanged.
func (a *Adapter) PixelToRealValue(v float64, pixelPadding bool, pr *PresentationState) float64 {
	if t := a.ModalityLookup(pixelPadding, false, pr); t != nil {
		if x := int(v); t.Contains(x) {
			return float64(t.Lookup(x))
		}
	}
	return v
}

// Inverse reports whether minimum values display as white: by the
// Presentation LUT Shape of the presentation state or the image, else by
// MONOCHROME1
func (a *Adapter) Inverse(pr *PresentationState) bool {
	shape := ""
	if pr != nil {
		shape = pr.AttributeSet().GetStringOr(tag.PresentationLUTShape, "")
	}
	if shape == "" {
		shape = a.desc.PresentationLUTShape
	}
	if shape != "" {
		return shape == "INVERSE"
	}
	return a.desc.Photometric == Monochrome1
}

// ModalityLookup returns the table mapping stored values to modality
// values, or nil when values are used as stored. An explicit modality LUT
// (from the presentation state first) is used when it covers the stored
// range; otherwise a rescale ramp is built. Padding values of monochrome
// images take the table minimum, or its maximum when the display is
// inverted.
func (a *Adapter) ModalityLookup(pixelPadding, inverseLUT bool, pr *PresentationState) *lut.Table {
	if a.samples.IsFloat() {
		return nil
	}
	var prTable *lut.Table
	if pr != nil {
		prTable, _ = pr.ModalityLUT().LUT()
	}
	table := prTable
	if table == nil {
		table, _ = a.desc.ModalityLUT().LUT()
	}
	if table != nil {
		switch {
		case pixelPadding && a.desc.PixelPaddingValue != nil:
			slog.Debug("cannot apply modality lut sequence and pixel padding")
		case a.minVal >= float64(table.MinIn()) && a.maxVal <= float64(table.MaxIn()):
			return table
		case prTable == nil:
			slog.Debug("pixel values do not match the modality lut sequence, using rescale")
			table = nil
		}
	}

	inverse := a.Inverse(pr)
	if pixelPadding {
		inverse = inverse != inverseLUT
	}
	params, ok := a.lutParameters(pixelPadding, table, inverse, pr)
	if !ok {
		return nil
	}
	key := util.HashUUID(params)

	a.mu.Lock()
	defer a.mu.Unlock()
	if t, ok := a.luts[key]; ok {
		return t
	}
	var t *lut.Table
	if table != nil {
		t = lut.NewTable(slices.Clone(table.Entries()), table.Offset(), table.Bits(), table.Signed())
	} else {
		t = lut.NewRescaleRamp(lut.RescaleParams{
			Intercept:    params.Intercept,
			Slope:        params.Slope,
			BitsStored:   params.BitsStored,
			Signed:       params.Signed,
			OutputSigned: params.OutputSigned,
			BitsOutput:   params.BitsOutput,
		}.FullRange())
	}
	if a.desc.Photometric.IsMonochrome() && params.PixelPadding {
		lut.ApplyPixelPadding(t, params.PaddingValue, params.PaddingLimit, params.InversePadding)
	}
	a.luts[key] = t
	return t
}

// lutParameters is false when no modality table is needed
func (a *Adapter) lutParameters(pixelPadding bool, table *lut.Table, inversePadding bool, pr *PresentationState) (lutParameters, bool) {
	intercept := a.RescaleIntercept(pr)
	slope := a.RescaleSlope(pr)
	padding := a.desc.PixelPaddingValue
	if a.bitsStored > 16 || (slope == 1 && intercept == 0 && padding == nil) {
		return lutParameters{}, false
	}
	p := lutParameters{
		Intercept:      intercept,
		Slope:          slope,
		PixelPadding:   pixelPadding,
		PaddingValue:   padding,
		PaddingLimit:   a.desc.PixelPaddingRangeLimit,
		BitsStored:     a.bitsStored,
		Signed:         a.desc.Signed(),
		InversePadding: inversePadding,
	}
	if table == nil {
		lo := a.minVal*slope + intercept
		hi := a.maxVal*slope + intercept
		// wide enough for the range and for both ends, so offset ranges
		// are not clipped
		span := max(math.Abs(hi-lo), math.Abs(lo), math.Abs(hi))
		p.BitsOutput = bits.Len(uint(math.Round(span)))
		p.OutputSigned = min(lo, hi) < 0 || p.Signed
		if p.OutputSigned && p.BitsOutput <= 8 {
			// room for negative values of 8 bit images
			p.BitsOutput = 9
		}
	} else {
		p.BitsOutput = table.Bits()
		p.Table = table.Hash()
	}
	return p, true
}

// VOILookup builds the 8 bit window table for p, or nil without a shape.
// The table spans the allocated range when values outside the window must
// be filled or padding is present, otherwise the level range.
func (a *Adapter) VOILookup(p *WindowLevelParameters) *lut.Table {
	if p.Shape.IsZero() || a.desc.BitsAllocated > 16 {
		return nil
	}
	pr := p.PresentationState
	var lo, hi int
	if p.FillOutsideLUTRange || (a.desc.PixelPaddingValue != nil && a.desc.Photometric.IsMonochrome()) {
		lo, hi = a.MinAllocatedValue(p.PixelPadding, pr), a.MaxAllocatedValue(p.PixelPadding, pr)
	} else {
		lo, hi = int(p.LevelMin), int(p.LevelMax)
	}
	return lut.NewVOI(p.Shape, p.Window, p.Level, lo, hi, 8, false, a.Inverse(pr) != p.InverseLUT)
}
