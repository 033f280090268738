package lut

import (
	"math"
)

// RescaleParams describes the modality rescale ramp
type RescaleParams struct {
	Intercept    float64
	Slope        float64
	MinValue     int // smallest input to map, clipped to the stored range
	MaxValue     int
	BitsStored   int
	Signed       bool // input samples are signed
	Inverse      bool
	OutputSigned bool
	BitsOutput   int
}

// FullRange maps every input the stored bits allow
func (p RescaleParams) FullRange() RescaleParams {
	p.MinValue, p.MaxValue = math.MinInt32, math.MaxInt32
	return p
}

// NewRescaleRamp tabulates round(x*slope+intercept) over the input range,
// clamped to the output range and optionally inverted
func NewRescaleRamp(p RescaleParams) *Table {
	stored := clamp(p.BitsStored, 1, 16)
	bits := 16
	if p.BitsOutput <= 8 {
		bits = 8
	}
	minOut, maxOut := outputRange(bits, p.OutputSigned)

	minIn, maxIn := 0, (1<<stored)-1
	if p.Signed {
		minIn, maxIn = -(1 << (stored - 1)), (1<<(stored-1))-1
	}
	minIn = max(minIn, min(p.MinValue, p.MaxValue))
	maxIn = min(maxIn, max(p.MinValue, p.MaxValue))
	if maxIn < minIn {
		return NewTable(nil, minIn, bits, p.OutputSigned)
	}

	out := make([]int32, maxIn-minIn+1)
	for i := range out {
		v := int32(clamp(math.Round(float64(i+minIn)*p.Slope+p.Intercept), float64(minOut), float64(maxOut)))
		if p.Inverse {
			v = maxOut + minOut - v
		}
		out[i] = v
	}
	return NewTable(out, minIn, bits, p.OutputSigned)
}

// ApplyPixelPadding overwrites the entries for the padding range
// [paddingMin, paddingMax] (either order) with the value mapped by the first
// entry, or by the last one when inverse. 8 bit tables use 0 or 255. Padding
// outside the table is ignored. The table is modified in place.
func ApplyPixelPadding(t *Table, paddingMin, paddingMax *int, inverse bool) {
	if t == nil || paddingMin == nil || t.Len() == 0 {
		return
	}
	lo, hi := *paddingMin, *paddingMin
	if paddingMax != nil {
		lo, hi = min(*paddingMin, *paddingMax), max(*paddingMin, *paddingMax)
	}
	start := lo - t.offset
	count := hi - lo + 1
	if start >= t.Len() {
		return
	}
	if start < 0 {
		count += start
		if count < 1 {
			return
		}
		start = 0
	}
	end := min(start+count, t.Len())

	var fill int32
	switch {
	case t.bits == 8 && inverse:
		fill = 255
	case t.bits == 8:
		fill = 0
	case inverse:
		fill = t.data[len(t.data)-1]
	default:
		fill = t.data[0]
	}
	for i := start; i < end; i++ {
		t.data[i] = fill
	}
}
