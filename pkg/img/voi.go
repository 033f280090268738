package img

import (
	"log/slog"
	"slices"

	"github.com/jpfielding/dicomimg.go/pkg/dicom"
	"github.com/jpfielding/dicomimg.go/pkg/dicom/tag"
	"github.com/jpfielding/dicomimg.go/pkg/lut"
)

// VOILUT holds the window center/width pairs and VOI LUT tables of an image
// or presentation state
type VOILUT struct {
	centers         []float64
	widths          []float64
	explanations    []string
	function        string
	luts            []*lut.Table
	lutExplanations []string
}

// NewVOILUT reads the VOI LUT module of set. For MR, XA, XRF and PT the
// windows are mapped back into the stored value domain when a rescale is
// present. Tables that cannot be decoded are left nil, or returned as an
// error when strict.
func NewVOILUT(set *dicom.AttributeSet, opts Options) (*VOILUT, error) {
	v := &VOILUT{}
	if set.Contains(tag.WindowCenter) && set.Contains(tag.WindowWidth) {
		v.centers = slices.Clone(set.GetFloats(tag.WindowCenter))
		v.widths = slices.Clone(set.GetFloats(tag.WindowWidth))
		v.function, _ = set.GetString(tag.VOILUTFunction)
		v.explanations = set.GetStrings(tag.WindowCenterWidthExplanation)
		if rescaleSuppressed(ModalityOf(set)) {
			v.unscale(set)
		}
	}

	var err error
	if seq, ok := set.Get(tag.VOILUTSequence); ok {
		for _, item := range seq.Items() {
			v.lutExplanations = append(v.lutExplanations, item.GetStringOr(tag.LUTExplanation, ""))
			t, terr := lutFromItem(item, opts)
			if terr != nil {
				err = terr
				t = nil
			}
			v.luts = append(v.luts, t)
		}
	}

	switch {
	case len(v.centers) == 0 && len(v.widths) > 0:
		slog.Debug("voi window center is required if window width is present")
	case len(v.centers) > 0 && len(v.widths) == 0:
		slog.Debug("voi window width is required if window center is present")
	case len(v.centers) != len(v.widths):
		slog.Debug("voi window center and width have different number of values",
			"centers", len(v.centers), "widths", len(v.widths))
	}
	return v, err
}

// unscale inverts the rescale on every center/width pair
func (v *VOILUT) unscale(set *dicom.AttributeSet) {
	sa, sok := set.Lookup(tag.RescaleSlope)
	ia, iok := set.Lookup(tag.RescaleIntercept)
	if !sok || !iok {
		return
	}
	slope, sok := sa.FloatValue(0)
	intercept, iok := ia.FloatValue(0)
	if !sok || !iok || slope == 0 || len(v.centers) != len(v.widths) {
		return
	}
	for i := range v.centers {
		v.widths[i] /= slope
		v.centers[i] = (v.centers[i] - intercept) / slope
	}
}

// Centers returns the Window Center values
func (v *VOILUT) Centers() []float64 { return v.centers }

// Widths returns the Window Width values
func (v *VOILUT) Widths() []float64 { return v.widths }

// Explanations returns Window Center & Width Explanation values
func (v *VOILUT) Explanations() []string { return v.explanations }

// Function returns VOI LUT Function
func (v *VOILUT) Function() (string, bool) { return v.function, v.function != "" }

// LUTs returns one table per VOI LUT Sequence item, nil where the item has
// no usable table
func (v *VOILUT) LUTs() []*lut.Table { return v.luts }

// LUTExplanations returns one LUT Explanation per item, "" when absent
func (v *VOILUT) LUTExplanations() []string { return v.lutExplanations }

// HasWindows reports whether at least one center/width pair exists
func (v *VOILUT) HasWindows() bool { return len(v.centers) > 0 && len(v.widths) > 0 }

// Windows returns the complete center/width pairs
func (v *VOILUT) Windows() (centers, widths []float64) {
	n := min(len(v.centers), len(v.widths))
	return slices.Clone(v.centers[:n]), slices.Clone(v.widths[:n])
}
