// Package img resolves the pixel value transformations of an image: the
// modality LUT, VOI LUT and windowing, presentation states, overlays and the
// rendering of a decoded frame to 8 bit display values.
package img

import (
	"log/slog"
	"strings"

	"github.com/jpfielding/dicomimg.go/pkg/dicom"
	"github.com/jpfielding/dicomimg.go/pkg/dicom/tag"
	"github.com/jpfielding/dicomimg.go/pkg/lut"
)

// Options tunes how LUT modules are decoded
type Options struct {
	// Strict rejects LUT Data that disagrees with its LUT Descriptor
	Strict bool
}

// ModalityLUT maps stored values to the modality domain, either by rescale
// slope/intercept or by an explicit table
type ModalityLUT struct {
	slope          *float64
	intercept      *float64
	rescaleType    *string
	lutType        *string
	lutExplanation *string
	table          *lut.Table
}

// modalities whose stored values are used unscaled
func rescaleSuppressed(modality string) bool {
	switch modality {
	case "MR", "XA", "XRF", "PT":
		return true
	}
	return false
}

// ModalityOf returns Modality from set or the nearest enclosing set
func ModalityOf(set *dicom.AttributeSet) string {
	if a, ok := set.Lookup(tag.Modality); ok {
		v, _ := a.StringValue(0)
		return v
	}
	return ""
}

// NewModalityLUT reads the Modality LUT module of set. A table that cannot
// be decoded is skipped, or returned as an error when strict; the module is
// returned either way.
func NewModalityLUT(set *dicom.AttributeSet, opts Options) (*ModalityLUT, error) {
	m := &ModalityLUT{}
	modality := ModalityOf(set)

	intercept, iok := set.GetFloat(tag.RescaleIntercept)
	slope, sok := set.GetFloat(tag.RescaleSlope)
	if iok && sok && !rescaleSuppressed(modality) {
		m.slope, m.intercept = &slope, &intercept
		if rt, ok := set.GetString(tag.RescaleType); ok {
			m.rescaleType = &rt
		}
	}

	var err error
	if item, ok := set.GetItem(tag.ModalityLUTSequence, 0); ok && m.acceptsTable(set, item, modality) {
		if lt, ok := item.GetString(tag.ModalityLUTType); ok {
			m.lutType = &lt
		}
		if expl, ok := item.GetString(tag.LUTExplanation); ok {
			m.lutExplanation = &expl
		}
		if m.table, err = lutFromItem(item, opts); err != nil {
			m.table = nil
		}
	}

	if m.intercept != nil && m.table != nil {
		slog.Warn("modality lut sequence and rescale slope/intercept both present, using the lut",
			"modality", modality)
	}
	return m, err
}

func (m *ModalityLUT) acceptsTable(set, item *dicom.AttributeSet, modality string) bool {
	if !item.Contains(tag.ModalityLUTType) || !item.Contains(tag.LUTDescriptor) || !item.Contains(tag.LUTData) {
		return false
	}
	if modality == "XA" || modality == "XRF" {
		pir, _ := set.GetString(tag.PixelIntensityRelationship)
		if strings.EqualFold(pir, "LOG") || strings.EqualFold(pir, "DISP") {
			slog.Debug("modality lut ignored for pixel intensity relationship", "modality", modality, "relationship", pir)
			return false
		}
	}
	return true
}

// lutFromItem decodes LUT Descriptor and LUT Data of a LUT item
func lutFromItem(item *dicom.AttributeSet, opts Options) (*lut.Table, error) {
	da, ok := item.Get(tag.LUTDescriptor)
	if !ok {
		slog.Debug("missing lut descriptor")
		return nil, nil
	}
	desc, err := lut.ParseDescriptor(da.Ints(), false)
	if err != nil {
		if opts.Strict {
			return nil, err
		}
		slog.Debug("skipping lut", "error", err)
		return nil, nil
	}
	data, ok := item.GetBytes(tag.LUTData)
	if !ok {
		slog.Debug("missing lut data")
		return nil, nil
	}
	return lut.NewFromData(desc, data, opts.Strict)
}

func optional[T any](p *T) (T, bool) {
	if p == nil {
		var zero T
		return zero, false
	}
	return *p, true
}

// Slope returns Rescale Slope unless it is absent or suppressed
func (m *ModalityLUT) Slope() (float64, bool) { return optional(m.slope) }

// Intercept returns Rescale Intercept unless it is absent or suppressed
func (m *ModalityLUT) Intercept() (float64, bool) { return optional(m.intercept) }

func (m *ModalityLUT) RescaleType() (string, bool) { return optional(m.rescaleType) }

func (m *ModalityLUT) LUTType() (string, bool) { return optional(m.lutType) }

func (m *ModalityLUT) LUTExplanation() (string, bool) { return optional(m.lutExplanation) }

// LUT returns the explicit modality table
func (m *ModalityLUT) LUT() (*lut.Table, bool) { return m.table, m.table != nil }

// AdaptForOverlayMask rescales the module after the bits between bitsStored
// and highBit were masked away. The slope is divided by 2^(highBit+1-bitsStored);
// intercept and rescale type default to 0 and "US" when no slope was present.
func (m *ModalityLUT) AdaptForOverlayMask(highBit, bitsStored int) {
	shift := highBit + 1 - bitsStored
	if shift <= 0 {
		return
	}
	slope := 1.0
	if m.slope == nil {
		if m.intercept == nil {
			zero := 0.0
			m.intercept = &zero
		}
		if m.rescaleType == nil {
			us := "US"
			m.rescaleType = &us
		}
	} else {
		slope = *m.slope
	}
	slope /= float64(int(1) << shift)
	m.slope = &slope
}
