package img

import (
	"errors"

	"github.com/jpfielding/dicomimg.go/pkg/dicom"
	"github.com/jpfielding/dicomimg.go/pkg/dicom/tag"
	"github.com/jpfielding/dicomimg.go/pkg/errs"
)

// Descriptor is the geometry and pixel module of an image with its modality
// and VOI LUT modules and overlays
type Descriptor struct {
	Rows                 int         `json:"rows"`
	Columns              int         `json:"columns"`
	Samples              int         `json:"samples"`
	Photometric          Photometric `json:"photometric"`
	BitsAllocated        int         `json:"bitsAllocated"`
	BitsStored           int         `json:"bitsStored"`
	HighBit              int         `json:"highBit"`
	PixelRepresentation  int         `json:"pixelRepresentation"`
	PlanarConfiguration  int         `json:"planarConfiguration"`
	Frames               int         `json:"frames"`
	SOPClassUID          string      `json:"sopClassUID,omitempty"`
	BodyPartExamined     string      `json:"bodyPartExamined,omitempty"`
	StationName          string      `json:"stationName,omitempty"`
	Modality             string      `json:"modality,omitempty"`
	PresentationLUTShape string      `json:"presentationLUTShape,omitempty"`

	PixelPaddingValue      *int `json:"pixelPaddingValue,omitempty"`
	PixelPaddingRangeLimit *int `json:"pixelPaddingRangeLimit,omitempty"`

	EmbeddedOverlays []EmbeddedOverlay `json:"embeddedOverlays,omitempty"`
	Overlays         []OverlayData     `json:"overlays,omitempty"`

	modalityLUT *ModalityLUT
	voiLUT      *VOILUT
	palette     *Palette
}

// NewDescriptor reads the image description of set. LUT decoding errors are
// joined into the returned error; the descriptor is usable regardless.
func NewDescriptor(set *dicom.AttributeSet, opts Options) (*Descriptor, error) {
	var errList []error
	d := &Descriptor{
		Rows:                 set.GetIntOr(tag.Rows, 0),
		Columns:              set.GetIntOr(tag.Columns, 0),
		Samples:              set.GetIntOr(tag.SamplesPerPixel, 0),
		Photometric:          Monochrome2,
		BitsAllocated:        set.GetIntOr(tag.BitsAllocated, 8),
		PixelRepresentation:  set.GetIntOr(tag.PixelRepresentation, 0),
		PlanarConfiguration:  set.GetIntOr(tag.PlanarConfiguration, 0),
		Frames:               set.GetIntOr(tag.NumberOfFrames, 1),
		SOPClassUID:          set.GetStringOr(tag.SOPClassUID, ""),
		BodyPartExamined:     set.GetStringOr(tag.BodyPartExamined, ""),
		StationName:          set.GetStringOr(tag.StationName, ""),
		Modality:             set.GetStringOr(tag.Modality, ""),
		PresentationLUTShape: set.GetStringOr(tag.PresentationLUTShape, ""),
		EmbeddedOverlays:     EmbeddedOverlays(set),
		Overlays:             OverlayDataOf(set, 0xFFFF),
	}
	d.BitsStored = set.GetIntOr(tag.BitsStored, d.BitsAllocated)
	d.HighBit = set.GetIntOr(tag.HighBit, d.BitsStored-1)
	if pi, ok := set.GetString(tag.PhotometricInterpretation); ok {
		if d.Photometric, ok = ParsePhotometric(pi); !ok {
			errList = append(errList, errs.Format("image descriptor", "unknown photometric interpretation %q", pi))
		}
	}
	if v, ok := set.GetInt(tag.PixelPaddingValue); ok {
		d.PixelPaddingValue = &v
	}
	if v, ok := set.GetInt(tag.PixelPaddingRangeLimit); ok {
		d.PixelPaddingRangeLimit = &v
	}

	var err error
	if d.modalityLUT, err = NewModalityLUT(set, opts); err != nil {
		errList = append(errList, err)
	}
	if d.voiLUT, err = NewVOILUT(set, opts); err != nil {
		errList = append(errList, err)
	}
	if d.Photometric == PaletteColor {
		if d.palette, err = NewPalette(set); err != nil {
			errList = append(errList, err)
		}
	}
	return d, errors.Join(errList...)
}

// ModalityLUT returns the modality LUT module of the image
func (d *Descriptor) ModalityLUT() *ModalityLUT {
	if d.modalityLUT == nil {
		d.modalityLUT = &ModalityLUT{}
	}
	return d.modalityLUT
}

// VOILUT returns the VOI LUT module of the image
func (d *Descriptor) VOILUT() *VOILUT {
	if d.voiLUT == nil {
		d.voiLUT = &VOILUT{}
	}
	return d.voiLUT
}

// Palette returns the palette of a PALETTE COLOR image
func (d *Descriptor) Palette() *Palette { return d.palette }

// clone copies the descriptor with its own modality LUT module, so that
// adapting it leaves d untouched
func (d *Descriptor) clone() *Descriptor {
	c := *d
	m := *d.ModalityLUT()
	c.modalityLUT = &m
	return &c
}

// FrameLength returns the bytes of one native frame
func (d *Descriptor) FrameLength() int {
	return d.Photometric.FrameLength(d.Columns, d.Rows, d.Samples, d.BitsAllocated)
}

// FrameCount returns Number of Frames
func (d *Descriptor) FrameCount() int { return d.Frames }

// FrameShape returns the sample layout of one frame
func (d *Descriptor) FrameShape() (rows, columns, samples, bitsAllocated int) {
	return d.Rows, d.Columns, d.Samples, d.BitsAllocated
}

// Length returns the bytes of all native frames
func (d *Descriptor) Length() int { return d.FrameLength() * d.Frames }

// Signed reports a signed Pixel Representation
func (d *Descriptor) Signed() bool { return d.PixelRepresentation != 0 }

// Banded reports color planes stored one after the other
func (d *Descriptor) Banded() bool { return d.PlanarConfiguration != 0 }

func (d *Descriptor) Multiframe() bool { return d.Frames > 1 }

// MultiframeWithEmbeddedOverlays is true for multiframe images that keep
// overlay planes in the samples
func (d *Descriptor) MultiframeWithEmbeddedOverlays() bool {
	return len(d.EmbeddedOverlays) > 0 && d.Frames > 1
}

// FloatPixelData reports samples that are decoded as floating point: 32 bit
// samples (except RTDOSE) and 64 bit samples
func (d *Descriptor) FloatPixelData() bool {
	return (d.BitsAllocated == 32 && d.Modality != "RTDOSE") || d.BitsAllocated == 64
}

// PaddingRange returns the padding interval in ascending order
func (d *Descriptor) PaddingRange() (lo, hi int, ok bool) {
	if d.PixelPaddingValue == nil {
		return 0, 0, false
	}
	lo, hi = *d.PixelPaddingValue, *d.PixelPaddingValue
	if d.PixelPaddingRangeLimit != nil {
		lo, hi = min(lo, *d.PixelPaddingRangeLimit), max(lo, *d.PixelPaddingRangeLimit)
	}
	return lo, hi, true
}
