package lut

import (
	"log/slog"
	"math"

	"github.com/jpfielding/dicomimg.go/pkg/errs"
)

// segment op codes
const (
	opDiscrete = 0
	opLinear   = 1
	opIndirect = 2
)

// InflateSegmented expands segmented LUT data (PS3.3 C.7.9.2) into
// numEntries bytes. Each written value keeps its high byte only.
func InflateSegmented(segm []uint16, numEntries int) ([]byte, error) {
	f := &inflater{segm: segm, data: make([]byte, numEntries)}
	if _, err := f.inflate(-1, 0); err != nil {
		return nil, err
	}
	if f.writePos < numEntries {
		slog.Debug("segmented lut shorter than descriptor", "entries", f.writePos, "expected", numEntries)
	}
	return f.data, nil
}

type inflater struct {
	segm     []uint16
	data     []byte
	readPos  int
	writePos int
}

// inflate reads segs segments, or until the input is exhausted when segs < 0
func (f *inflater) inflate(segs, y0 int) (int, error) {
	nested := segs >= 0
	for {
		if nested {
			if segs == 0 {
				return y0, nil
			}
			segs--
		} else if f.readPos >= len(f.segm) {
			return y0, nil
		}
		at := f.readPos
		op, err := f.read()
		if err != nil {
			return y0, err
		}
		n, err := f.read()
		if err != nil {
			return y0, err
		}
		switch op {
		case opDiscrete:
			y0, err = f.discrete(n)
		case opLinear:
			if f.writePos == 0 {
				return y0, errs.Format("segmented lut", "linear segment at %d cannot be the first segment", at)
			}
			var y1 int
			if y1, err = f.read(); err == nil {
				y0, err = f.linear(n, y0, y1)
			}
		case opIndirect:
			if nested {
				return y0, errs.Format("segmented lut", "nested indirect segment at %d", at)
			}
			y0, err = f.indirect(n, y0)
		default:
			return y0, errs.Format("segmented lut", "illegal op code %d at %d", op, at)
		}
		if err != nil {
			return y0, err
		}
	}
}

func (f *inflater) read() (int, error) {
	if f.readPos >= len(f.segm) {
		return 0, errs.Format("segmented lut", "running out of data at %d", f.readPos)
	}
	v := int(f.segm[f.readPos])
	f.readPos++
	return v, nil
}

func (f *inflater) write(y int) error {
	if f.writePos >= len(f.data) {
		return errs.Format("segmented lut", "inflated entries exceed %d from lut descriptor", len(f.data))
	}
	f.data[f.writePos] = byte(y >> 8)
	f.writePos++
	return nil
}

func (f *inflater) discrete(n int) (int, error) {
	y := 0
	for range n {
		v, err := f.read()
		if err != nil {
			return y, err
		}
		if err := f.write(v); err != nil {
			return y, err
		}
		y = v
	}
	return y, nil
}

func (f *inflater) linear(n, y0, y1 int) (int, error) {
	dy := float64(y1 - y0)
	for j := 1; j <= n; j++ {
		if err := f.write(int(math.Round(float64(y0) + dy*float64(j)/float64(n)))); err != nil {
			return y0, err
		}
	}
	return y1, nil
}

// indirect replays n segments found at a word offset (low word first) and
// resumes reading after the offset; the write position carries over
func (f *inflater) indirect(n, y0 int) (int, error) {
	lo, err := f.read()
	if err != nil {
		return y0, err
	}
	hi, err := f.read()
	if err != nil {
		return y0, err
	}
	resume := f.readPos
	f.readPos = lo | hi<<16
	y, err := f.inflate(n, y0)
	f.readPos = resume
	return y, err
}
