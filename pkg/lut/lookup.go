// Package lut holds the lookup table primitives of the pixel pipeline:
// tables, windowing shapes, segmented LUT inflation, LUT descriptor
// decoding, VOI table generation and the modality rescale ramp.
//
// Everything here is pure and re-entrant. Tables are built fresh by every
// constructor and are not modified after they are handed out, with the one
// exception of ApplyPixelPadding on a table the caller just created.
package lut

import (
	"math"

	"github.com/jpfielding/dicomimg.go/pkg/errs"
	"github.com/jpfielding/dicomimg.go/pkg/util"
	"golang.org/x/exp/constraints"
)

// Table maps input samples [offset, offset+len) onto 8 or 16 bit entries
type Table struct {
	offset int
	bits   int
	signed bool
	data   []int32
}

// NewTable wraps entries; bits is 8 or 16 and signed tells how the entries
// are interpreted
func NewTable(entries []int32, offset, bits int, signed bool) *Table {
	if bits != 8 && bits != 16 {
		errs.Panic("new table", "unsupported entry width %d", bits)
	}
	return &Table{offset: offset, bits: bits, signed: signed, data: entries}
}

// FromBytes builds an unsigned 8 bit table
func FromBytes(b []byte, offset int) *Table {
	data := make([]int32, len(b))
	for i, v := range b {
		data[i] = int32(v)
	}
	return &Table{offset: offset, bits: 8, data: data}
}

// FromWords builds a 16 bit table, reading the words as int16 when signed
func FromWords(w []uint16, offset int, signed bool) *Table {
	data := make([]int32, len(w))
	for i, v := range w {
		if signed {
			data[i] = int32(int16(v))
		} else {
			data[i] = int32(v)
		}
	}
	return &Table{offset: offset, bits: 16, signed: signed, data: data}
}

// Offset is the input value mapped to entry 0
func (t *Table) Offset() int { return t.offset }

// Len returns the number of entries
func (t *Table) Len() int { return len(t.data) }

// Bits returns the entry width, 8 or 16
func (t *Table) Bits() int { return t.bits }

// Signed reports whether entries are signed
func (t *Table) Signed() bool { return t.signed }

// MinIn is the smallest input the table maps
func (t *Table) MinIn() int { return t.offset }

// MaxIn is the largest input the table maps
func (t *Table) MaxIn() int { return t.offset + len(t.data) - 1 }

// Contains reports whether x is inside the input range
func (t *Table) Contains(x int) bool {
	return x >= t.offset && x-t.offset < len(t.data)
}

// Lookup returns the entry for x. Looking up a value outside the input range
// is a caller error and panics; check with Contains or use Clamped.
func (t *Table) Lookup(x int) int32 {
	if !t.Contains(x) {
		errs.Panic("lookup", "input %d outside [%d,%d]", x, t.MinIn(), t.MaxIn())
	}
	return t.data[x-t.offset]
}

// Clamped returns the entry for x clamped into the input range
func (t *Table) Clamped(x int) int32 {
	if len(t.data) == 0 {
		return 0
	}
	return t.data[clamp(x-t.offset, 0, len(t.data)-1)]
}

// Value returns entry i
func (t *Table) Value(i int) int32 { return t.data[i] }

// Entries exposes the entries; callers must not modify them
func (t *Table) Entries() []int32 { return t.data }

// MinMax returns the smallest and largest entry
func (t *Table) MinMax() (lo, hi int32) {
	if len(t.data) == 0 {
		return 0, 0
	}
	lo, hi = math.MaxInt32, math.MinInt32
	for _, v := range t.data {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	return lo, hi
}

// Unsigned returns entry i masked to the entry width
func (t *Table) Unsigned(i int) int32 {
	if t.bits == 8 {
		return t.data[i] & 0xFF
	}
	return t.data[i] & 0xFFFF
}

// OutputRange returns the range the entries can take given width and sign
func (t *Table) OutputRange() (lo, hi int32) {
	return outputRange(t.bits, t.signed)
}

// Hash identifies the table contents
func (t *Table) Hash() string {
	return util.HashUUID(struct {
		Offset int
		Bits   int
		Signed bool
		Data   []int32
	}{t.offset, t.bits, t.signed, t.data})
}

func outputRange(bits int, signed bool) (lo, hi int32) {
	size := int32(1)<<bits - 1
	if signed {
		hi = int32(1)<<(bits-1) - 1
		return -(hi + 1), hi
	}
	return 0, size
}

func clamp[T constraints.Integer | constraints.Float](v, lo, hi T) T {
	switch {
	case v < lo:
		return lo
	case v > hi:
		return hi
	}
	return v
}
