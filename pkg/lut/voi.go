package lut

import (
	"math"
)

// NewVOI builds the window/level table for inputs between minValue and
// maxValue. The output is 8 bits wide for bitsStored <= 8 and 16 bits
// otherwise, signed when signed is set. A window below 1 is raised to 1.
// It returns nil for a zero shape.
func NewVOI(shape Shape, window, level float64, minValue, maxValue, bitsStored int, signed, inverse bool) *Table {
	if shape.IsZero() {
		return nil
	}
	stored := clamp(bitsStored, 1, 16)
	win := max(window, 1)
	bits := 16
	if stored <= 8 {
		bits = 8
	}
	minOut, maxOut := outputRange(bits, signed)
	minIn, maxIn := min(minValue, maxValue), max(minValue, maxValue)

	w := voiWriter{
		out:     make([]int32, maxIn-minIn+1),
		minIn:   minIn,
		minOut:  float64(minOut),
		maxOut:  float64(maxOut),
		inverse: inverse,
	}
	switch shape.Function() {
	case FuncLinear:
		w.linear(win, level)
	case FuncSigmoid:
		w.sigmoid(win, level, false)
	case FuncSigmoidNorm:
		w.sigmoid(win, level, true)
	case FuncLog:
		w.logarithmic(win, level)
	case FuncLogInv:
		w.exponential(win, level)
	default:
		w.table(win, level, shape.Table())
	}
	return NewTable(w.out, minIn, bits, signed)
}

type voiWriter struct {
	out            []int32
	minIn          int
	minOut, maxOut float64
	inverse        bool
}

// set clamps v to the output range and flips it when inverse
func (w *voiWriter) set(i int, v float64) {
	v = clamp(v, w.minOut, w.maxOut)
	if w.inverse {
		v = w.maxOut + w.minOut - v
	}
	w.out[i] = int32(v)
}

func (w *voiWriter) x(i int) float64 { return float64(i + w.minIn) }

func (w *voiWriter) linear(window, level float64) {
	slope := (w.maxOut - w.minOut) / window
	intercept := w.maxOut - slope*(level+window/2)
	for i := range w.out {
		w.set(i, math.Trunc(w.x(i)*slope+intercept))
	}
}

// sigmoid uses the factor -20 of the standard (-4 once scaled)
func (w *voiWriter) sigmoid(width, center float64, normalize bool) {
	const nFactor = -20.0
	outRange := w.maxOut - w.minOut
	curve := func(x float64) float64 {
		return outRange / (1 + math.Exp((2*nFactor/10)*(x-center)/width))
	}
	w.normalized(width, center, normalize, curve)
}

func (w *voiWriter) exponential(width, center float64) {
	const nFactor = 20.0
	outRange := w.maxOut - w.minOut
	curve := func(x float64) float64 {
		return outRange * math.Exp((nFactor/10)*(x-center)/width)
	}
	w.normalized(width, center, true, curve)
}

func (w *voiWriter) logarithmic(width, center float64) {
	const nFactor = 20.0
	outRange := w.maxOut - w.minOut
	curve := func(x float64) float64 {
		return outRange * math.Log((nFactor/10)*(1+(x-center)/width))
	}
	w.normalized(width, center, true, curve)
}

// normalized writes curve, rescaled so its values at center±width/2 span
// the output range when normalize is set
func (w *voiWriter) normalized(width, center float64, normalize bool, curve func(float64) float64) {
	low, ratio := 0.0, 1.0
	if normalize {
		low = w.minOut + curve(center-width/2)
		high := w.minOut + curve(center+width/2)
		ratio = (w.maxOut - w.minOut) / math.Abs(high-low)
	}
	for i := range w.out {
		v := curve(w.x(i))
		if normalize {
			v = (v - low) * ratio
		}
		if math.IsNaN(v) {
			// log of a non positive argument, below the curve
			v = math.Inf(-1)
		}
		w.set(i, math.Round(v+w.minOut))
	}
}

// table indexes the shape table over the window, interpolating between
// neighbouring entries, then scales the entry range to the output range
func (w *voiWriter) table(width, center float64, t *Table) {
	if t == nil || t.Len() == 0 {
		return
	}
	lowLevel := center - width/2
	highLevel := center + width/2
	maxIdx := t.Len() - 1

	lo, hi := int32(math.MaxInt32), int32(math.MinInt32)
	for i := range t.Len() {
		v := t.Unsigned(i)
		lo = min(lo, v)
		hi = max(hi, v)
	}
	lookupRange := math.Abs(float64(hi - lo))
	if lookupRange == 0 {
		lookupRange = 1
	}
	widthRatio := float64(maxIdx) / width
	outRatio := (w.maxOut - w.minOut) / lookupRange

	for i := range w.out {
		x := w.x(i)
		var idx float64
		switch {
		case x <= lowLevel:
			idx = 0
		case x > highLevel:
			idx = float64(maxIdx)
		default:
			idx = (x - lowLevel) * widthRatio
		}
		down := max(0, int(math.Floor(idx)))
		up := min(maxIdx, int(math.Ceil(idx)))
		vd, vu := float64(t.Unsigned(down)), float64(t.Unsigned(up))
		v := vd
		if up != down {
			v = math.Round(vd + (idx-float64(down))*(vu-vd)/float64(up-down))
		}
		w.set(i, math.Round(v*outRatio))
	}
}
