package lut

import (
	"encoding/binary"
	"log/slog"

	"github.com/jpfielding/dicomimg.go/pkg/errs"
)

// Descriptor is the decoded LUT Descriptor: entry count, first mapped input
// value and bits per entry
type Descriptor struct {
	NumEntries int `json:"numEntries"`
	Offset     int `json:"offset"`
	Bits       int `json:"bits"`
}

// ParseDescriptor decodes the three descriptor values. An entry count of 0
// means 65536 and the offset is read as a signed 16 bit value. Strict
// descriptors (palette color) only allow 8 or 16 bits.
func ParseDescriptor(values []int64, strict bool) (Descriptor, error) {
	if len(values) != 3 {
		return Descriptor{}, errs.Format("lut descriptor", "illegal number of values: %d", len(values))
	}
	if values[0] < 0 {
		return Descriptor{}, errs.Format("lut descriptor", "illegal entry count %d", values[0])
	}
	d := Descriptor{NumEntries: int(values[0]), Offset: int(int16(values[1])), Bits: int(values[2])}
	if d.NumEntries == 0 {
		d.NumEntries = 0x10000
	}
	switch {
	case d.Bits < 1 || d.Bits > 16:
		return d, errs.Format("lut descriptor", "illegal bits per entry %d", d.Bits)
	case strict && d.Bits != 8 && d.Bits != 16:
		return d, errs.Format("lut descriptor", "bits per entry must be 8 or 16, got %d", d.Bits)
	}
	return d, nil
}

// NewFromData builds the table described by desc from LUT Data bytes in
// little endian order. A data length that disagrees with the descriptor is
// logged, or rejected when strict.
func NewFromData(desc Descriptor, data []byte, strict bool) (*Table, error) {
	n := desc.NumEntries
	var (
		t       *Table
		dataLen int
	)
	switch {
	case desc.Bits <= 8:
		if n <= 256 && len(data) == n<<1 {
			// 8 bit entries padded to 16 bits allocated
			b := make([]byte, n)
			for i := range b {
				b[i] = data[i<<1]
			}
			t = FromBytes(b, desc.Offset)
		} else {
			t = FromBytes(data, desc.Offset)
		}
		dataLen = t.Len()
	case desc.Bits <= 16:
		dataLen = len(data) >> 1
		words := make([]uint16, min(n, dataLen))
		for i := range words {
			words[i] = binary.LittleEndian.Uint16(data[i<<1:])
		}
		if n <= 256 {
			// 8 bit entries stored with 16 bits allocated
			maxIn := (1 << desc.Bits) - 1
			b := make([]byte, len(words))
			for i, w := range words {
				b[i] = byte(int(w) * (n - 1) / maxIn)
			}
			t = FromBytes(b, desc.Offset)
		} else {
			t = FromWords(words, desc.Offset, false)
		}
	default:
		return nil, errs.Format("lut data", "illegal bits per entry %d", desc.Bits)
	}

	if dataLen != n {
		if strict {
			return nil, errs.Format("lut data", "%d entries mismatch %d in lut descriptor", dataLen, n)
		}
		slog.Debug("lut data length mismatch", "entries", dataLen, "descriptor", n)
	}
	if dataLen > 1<<desc.Bits {
		slog.Debug("illegal lut data length for bits per entry", "entries", dataLen, "bits", desc.Bits)
	}
	return t, nil
}

// PaletteData returns one byte per entry for a palette color channel, from
// plain LUT data or, when data is nil, from segmented data
func PaletteData(desc Descriptor, data []byte, segmented []uint16) ([]byte, error) {
	n := desc.NumEntries
	if data == nil {
		switch {
		case segmented == nil:
			return nil, errs.Format("palette", "missing lut data")
		case desc.Bits == 8:
			return nil, errs.Format("palette", "segmented lut data with 8 bits per entry")
		}
		return InflateSegmented(segmented, n)
	}
	if desc.Bits == 16 || len(data) != n {
		if len(data) != n<<1 {
			return nil, errs.Format("palette", "%d bytes of lut data mismatch %d entries in lut descriptor", len(data), n)
		}
		// high byte of 16 bit entries, low byte of padded 8 bit entries
		hilo := 1
		if desc.Bits == 8 {
			hilo = 0
		}
		out := make([]byte, n)
		for i := range out {
			out[i] = data[(i<<1)|hilo]
		}
		return out, nil
	}
	return data, nil
}
