package img

import (
	"encoding/binary"
	"math"

	"github.com/jpfielding/dicomimg.go/pkg/errs"
)

// Samples is one decoded frame, channels interleaved. Integer data fills
// Ints and floating point data fills Floats.
type Samples struct {
	Width    int
	Height   int
	Channels int
	Ints     []int32
	Floats   []float64
}

// IsFloat reports floating point samples
func (s *Samples) IsFloat() bool { return s.Floats != nil }

// Len returns the number of samples
func (s *Samples) Len() int {
	if s.Floats != nil {
		return len(s.Floats)
	}
	return len(s.Ints)
}

// Value returns sample i as a float
func (s *Samples) Value(i int) float64 {
	if s.Floats != nil {
		return s.Floats[i]
	}
	return float64(s.Ints[i])
}

// DecodeSamples reads one native frame laid out as desc describes. Signed
// samples are sign extended from the allocated width, banded color planes
// are interleaved.
func DecodeSamples(frame []byte, desc *Descriptor, order binary.ByteOrder) (*Samples, error) {
	if desc.Photometric.IsSubsampled() {
		return nil, errs.Format("samples", "native %v pixel data is not supported", desc.Photometric)
	}
	channels := max(desc.Samples, 1)
	n := desc.Rows * desc.Columns * channels
	size := desc.BitsAllocated / 8
	if desc.BitsAllocated%8 != 0 || size == 0 || size > 8 {
		return nil, errs.Format("samples", "unsupported bits allocated %d", desc.BitsAllocated)
	}
	if len(frame) < n*size {
		return nil, errs.Format("samples", "frame holds %d bytes, need %d", len(frame), n*size)
	}
	s := &Samples{Width: desc.Columns, Height: desc.Rows, Channels: channels}

	if desc.FloatPixelData() {
		s.Floats = make([]float64, n)
		for i := range s.Floats {
			if size == 4 {
				s.Floats[i] = float64(math.Float32frombits(order.Uint32(frame[i*4:])))
			} else {
				s.Floats[i] = math.Float64frombits(order.Uint64(frame[i*8:]))
			}
		}
	} else {
		signed := desc.Signed()
		s.Ints = make([]int32, n)
		for i := range s.Ints {
			var v int32
			switch size {
			case 1:
				if v = int32(frame[i]); signed {
					v = int32(int8(frame[i]))
				}
			case 2:
				u := order.Uint16(frame[i*2:])
				if v = int32(u); signed {
					v = int32(int16(u))
				}
			case 4:
				v = int32(order.Uint32(frame[i*4:]))
			default:
				return nil, errs.Format("samples", "unsupported integer sample size %d", size)
			}
			s.Ints[i] = v
		}
	}
	if channels > 1 && desc.Banded() {
		s.interleave()
	}
	return s, nil
}

// interleave converts plane by plane storage to pixel by pixel storage
func (s *Samples) interleave() {
	plane := s.Width * s.Height
	if s.Ints != nil {
		out := make([]int32, len(s.Ints))
		for c := range s.Channels {
			for i := range plane {
				out[i*s.Channels+c] = s.Ints[c*plane+i]
			}
		}
		s.Ints = out
		return
	}
	out := make([]float64, len(s.Floats))
	for c := range s.Channels {
		for i := range plane {
			out[i*s.Channels+c] = s.Floats[c*plane+i]
		}
	}
	s.Floats = out
}
