package img

import (
	"encoding/binary"
	"image/color"

	"github.com/jpfielding/dicomimg.go/pkg/dicom"
	"github.com/jpfielding/dicomimg.go/pkg/dicom/tag"
	"github.com/jpfielding/dicomimg.go/pkg/errs"
	"github.com/jpfielding/dicomimg.go/pkg/lut"
)

// Palette is a PALETTE COLOR lookup, one byte per entry and channel
type Palette struct {
	Offset  int
	R, G, B []byte
}

var paletteTags = [3]struct{ desc, data, segmented tag.Tag }{
	{tag.RedPaletteColorLookupTableDescriptor, tag.RedPaletteColorLookupTableData, tag.SegmentedRedPaletteColorLookupTableData},
	{tag.GreenPaletteColorLookupTableDescriptor, tag.GreenPaletteColorLookupTableData, tag.SegmentedGreenPaletteColorLookupTableData},
	{tag.BluePaletteColorLookupTableDescriptor, tag.BluePaletteColorLookupTableData, tag.SegmentedBluePaletteColorLookupTableData},
}

// NewPalette reads the red, green and blue palette tables of set, plain or
// segmented
func NewPalette(set *dicom.AttributeSet) (*Palette, error) {
	var channels [3][]byte
	var offset int
	for i, t := range paletteTags {
		da, ok := set.Get(t.desc)
		if !ok {
			return nil, errs.Format("palette", "missing %v", t.desc)
		}
		desc, err := lut.ParseDescriptor(da.Ints(), true)
		if err != nil {
			return nil, err
		}
		data, _ := set.GetBytes(t.data)
		var segm []uint16
		if data == nil {
			if b, ok := set.GetBytes(t.segmented); ok {
				segm = make([]uint16, len(b)/2)
				for j := range segm {
					segm[j] = binary.LittleEndian.Uint16(b[j*2:])
				}
			}
		}
		if channels[i], err = lut.PaletteData(desc, data, segm); err != nil {
			return nil, err
		}
		offset = desc.Offset
	}
	return &Palette{Offset: offset, R: channels[0], G: channels[1], B: channels[2]}, nil
}

func paletteIndex(v, offset, n int) int {
	return clampInt(v-offset, 0, n-1)
}

// At returns the color of sample value v; values outside the table take
// the first or last entry
func (p *Palette) At(v int) color.RGBA {
	c := color.RGBA{A: 0xFF}
	if len(p.R) > 0 {
		c.R = p.R[paletteIndex(v, p.Offset, len(p.R))]
	}
	if len(p.G) > 0 {
		c.G = p.G[paletteIndex(v, p.Offset, len(p.G))]
	}
	if len(p.B) > 0 {
		c.B = p.B[paletteIndex(v, p.Offset, len(p.B))]
	}
	return c
}
