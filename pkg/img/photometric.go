package img

import (
	"strings"

	"github.com/jpfielding/dicomimg.go/pkg/dicom/transfer"
)

// Photometric is the Photometric Interpretation (0028,0004) of pixel data
type Photometric int

const (
	Monochrome2 Photometric = iota
	Monochrome1
	PaletteColor
	RGB
	YBRFull
	YBRFull422
	YBRICT
	YBRPartial420
	YBRPartial422
	YBRRCT
)

type photometricInfo struct {
	name       string
	monochrome bool
	inverse    bool
	ybr        bool
	subsampled bool
}

var photometrics = [...]photometricInfo{
	Monochrome2:   {name: "MONOCHROME2", monochrome: true},
	Monochrome1:   {name: "MONOCHROME1", monochrome: true, inverse: true},
	PaletteColor:  {name: "PALETTE COLOR"},
	RGB:           {name: "RGB"},
	YBRFull:       {name: "YBR_FULL", ybr: true},
	YBRFull422:    {name: "YBR_FULL_422", ybr: true, subsampled: true},
	YBRICT:        {name: "YBR_ICT", ybr: true},
	YBRPartial420: {name: "YBR_PARTIAL_420", ybr: true, subsampled: true},
	YBRPartial422: {name: "YBR_PARTIAL_422", ybr: true, subsampled: true},
	YBRRCT:        {name: "YBR_RCT", ybr: true},
}

// ParsePhotometric matches the defined term, ignoring surrounding padding
func ParsePhotometric(s string) (Photometric, bool) {
	s = strings.TrimSpace(s)
	for p, info := range photometrics {
		if info.name == s {
			return Photometric(p), true
		}
	}
	return Monochrome2, false
}

func (p Photometric) info() photometricInfo {
	if p < 0 || int(p) >= len(photometrics) {
		return photometrics[Monochrome2]
	}
	return photometrics[p]
}

func (p Photometric) String() string { return p.info().name }

// IsMonochrome is true for MONOCHROME1 and MONOCHROME2
func (p Photometric) IsMonochrome() bool { return p.info().monochrome }

// IsInverse is true when the minimum sample displays as white
func (p Photometric) IsInverse() bool { return p.info().inverse }

func (p Photometric) IsYBR() bool { return p.info().ybr }

// IsSubsampled is true when chroma is sampled at half resolution
func (p Photometric) IsSubsampled() bool { return p.info().subsampled }

// ForTransferSyntax returns the interpretation RGB pixel data takes once
// compressed with ts. Other interpretations are unchanged.
func (p Photometric) ForTransferSyntax(ts transfer.Syntax) Photometric {
	if p != RGB {
		return p
	}
	switch ts {
	case transfer.JPEGBaseline, transfer.JPEGExtended:
		return YBRFull422
	case transfer.JPEG2000Lossless:
		return YBRRCT
	case transfer.JPEG2000:
		return YBRICT
	}
	return p
}

// FrameLength returns the bytes of one uncompressed frame
func (p Photometric) FrameLength(width, height, samples, bitsAllocated int) int {
	switch p {
	case YBRFull422, YBRPartial422:
		return width * height * 2
	case YBRPartial420:
		return width * height * 3 / 2
	}
	return width * height * samples * bitsAllocated / 8
}

func (p Photometric) MarshalText() ([]byte, error) { return []byte(p.String()), nil }
