// Package frames addresses the frames of a pixel data attribute: byte ranges
// of native data, or the fragments of encapsulated data that make up each
// frame.
package frames

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/jpfielding/dicomimg.go/pkg/compress/rle"
	"github.com/jpfielding/dicomimg.go/pkg/dicom"
	"github.com/jpfielding/dicomimg.go/pkg/dicom/transfer"
	"github.com/jpfielding/dicomimg.go/pkg/errs"
)

var (
	// ErrFrameMismatch is returned when fragments cannot be matched to the
	// declared frames
	ErrFrameMismatch = errors.New("cannot match all the fragments to all the frames")
	// ErrNoDecoder is returned for transfer syntaxes without a registered
	// decoder
	ErrNoDecoder = errors.New("no decoder for transfer syntax")
)

// Geometry is the frame layout of an image
type Geometry interface {
	FrameLength() int
	FrameCount() int
	FrameShape() (rows, columns, samples, bitsAllocated int)
}

// Range is one piece of a frame. Native frames have Fragment -1 and an
// Offset that is the stream position of the frame, or its position within
// the value when the attribute was built in memory. Encapsulated frames name
// the fragment and its stream position (-1 in memory).
type Range struct {
	Fragment int   `json:"fragment"`
	Offset   int64 `json:"offset"`
	Length   int64 `json:"length"`
}

// Locator maps frame indexes to ranges of one pixel data attribute. The
// fragment boundary scan is remembered by the attribute, so locators over
// the same pixel data share it.
type Locator struct {
	attr   *dicom.Attribute
	geom   Geometry
	syntax transfer.Syntax
}

// NewLocator addresses the frames of attr
func NewLocator(attr *dicom.Attribute, geom Geometry, syntax transfer.Syntax) (*Locator, error) {
	if attr == nil || geom == nil {
		return nil, errs.Precondition("locator", "missing pixel data or geometry")
	}
	if geom.FrameLength() <= 0 {
		return nil, errs.Format("locator", "empty frame geometry")
	}
	return &Locator{attr: attr, geom: geom, syntax: syntax}, nil
}

// Frames returns the declared frame count, at least 1
func (l *Locator) Frames() int { return max(l.geom.FrameCount(), 1) }

// Syntax returns the transfer syntax of the pixel data
func (l *Locator) Syntax() transfer.Syntax { return l.syntax }

// Locate returns the ranges that make up frame f
func (l *Locator) Locate(f int) ([]Range, error) {
	frames := l.Frames()
	if f < 0 || f >= frames {
		return nil, errs.Precondition("locate", "frame %d outside [0,%d)", f, frames)
	}
	frags := l.attr.Fragments()
	if !l.attr.IsEncapsulated() {
		// geometry rather than the value length, which is unreliable for
		// multi-frame float data
		length := int64(l.geom.FrameLength())
		off := int64(f) * length
		if base := l.attr.ValueOffset(); base >= 0 {
			off += base
		}
		return []Range{{Fragment: -1, Offset: off, Length: length}}, nil
	}
	n := len(frags)
	if n < 2 {
		return nil, errs.Format("locate", "frame %d: no fragments after the offset table", f)
	}
	switch {
	case frames >= n-1:
		if f+1 >= n {
			return nil, errs.Format("locate", "frame %d of %d fragments: %w", f, n-1, ErrFrameMismatch)
		}
		return fragmentRanges(frags, f+1, f+2), nil
	case frames == 1:
		return fragmentRanges(frags, 1, n), nil
	}
	starts := l.attr.FrameStarts(l.scanBoundaries)
	if len(starts) != frames {
		return nil, errs.Format("locate", "frame %d: %d frame starts in %d fragments for %d frames: %w",
			f, len(starts), n-1, frames, ErrFrameMismatch)
	}
	end := n
	if f+1 < len(starts) {
		end = starts[f+1]
	}
	return fragmentRanges(frags, starts[f], end), nil
}

func fragmentRanges(frags []dicom.Fragment, start, end int) []Range {
	out := make([]Range, 0, end-start)
	for i := start; i < end; i++ {
		out = append(out, Range{Fragment: i, Offset: frags[i].Offset, Length: frags[i].Length})
	}
	return out
}

// scanBoundaries returns the fragments that start a new codestream
func (l *Locator) scanBoundaries(attr *dicom.Attribute) []int {
	var starts []int
	j2k := l.syntax.IsJPEG2000()
	for i := 1; i < len(attr.Fragments()); i++ {
		r, err := attr.FragmentReader(i)
		if err != nil {
			slog.Warn("failed to scan fragment", "fragment", i, "error", err)
			continue
		}
		if (j2k && isJPEG2000Start(r)) || (!j2k && isJPEGStart(r)) {
			starts = append(starts, i)
		}
	}
	slog.Debug("scanned fragments", "syntax", l.syntax.Name(), "fragments", len(attr.Fragments())-1, "frames", len(starts))
	return starts
}

var j2kSignature = []byte{0, 0, 0, 12, 'j', 'P', ' ', ' ', 0x0D, 0x0A, 0x87, 0x0A}

// isJPEG2000Start matches an SOC marker or the JP2 signature box
func isJPEG2000Start(r io.ReaderAt) bool {
	var b [12]byte
	n, _ := r.ReadAt(b[:], 0)
	if n >= 2 && b[0] == 0xFF && b[1] == 0x4F {
		return true
	}
	return n == len(b) && bytes.Equal(b[:], j2kSignature)
}

// isJPEGStart matches the SOI marker of JPEG and JPEG-LS streams
func isJPEGStart(r io.ReaderAt) bool {
	var b [2]byte
	n, _ := r.ReadAt(b[:], 0)
	return n == 2 && b[0] == 0xFF && b[1] == 0xD8
}

// ReadFrame returns the bytes of frame f: native data in little endian
// order, or the concatenated fragments of an encapsulated frame
func (l *Locator) ReadFrame(f int) ([]byte, error) {
	ranges, err := l.Locate(f)
	if err != nil {
		return nil, err
	}
	if !l.attr.IsEncapsulated() {
		length := int64(l.geom.FrameLength())
		return l.attr.ValueRange(int64(f)*length, length)
	}
	var buf bytes.Buffer
	for _, r := range ranges {
		b, err := l.attr.FragmentBytes(r.Fragment)
		if err != nil {
			return nil, err
		}
		buf.Write(b)
	}
	return buf.Bytes(), nil
}

// DecodeFrame returns frame f as native little endian samples, decoding
// encapsulated frames with the decoder registered for the syntax
func (l *Locator) DecodeFrame(f int) ([]byte, error) {
	data, err := l.ReadFrame(f)
	if err != nil || !l.attr.IsEncapsulated() {
		return data, err
	}
	dec, ok := DecoderFor(l.syntax)
	if !ok {
		return nil, fmt.Errorf("frame %d: %w: %s", f, ErrNoDecoder, l.syntax.Name())
	}
	rows, columns, samples, bitsAllocated := l.geom.FrameShape()
	out, err := dec(data, rows, columns, samples, bitsAllocated)
	if err != nil {
		return nil, errs.Format("decode frame", "frame %d: %w", f, err)
	}
	return out, nil
}

// Decoder expands one encapsulated frame to native little endian samples
type Decoder func(data []byte, rows, columns, samples, bitsAllocated int) ([]byte, error)

var (
	decodersMu sync.RWMutex
	decoders   = map[transfer.Syntax]Decoder{
		transfer.RLELossless: func(data []byte, rows, columns, samples, bitsAllocated int) ([]byte, error) {
			return rle.Decode(data, columns, rows, samples, bitsAllocated)
		},
	}
)

// Register installs the decoder for a transfer syntax, replacing any other
func Register(s transfer.Syntax, d Decoder) {
	decodersMu.Lock()
	defer decodersMu.Unlock()
	decoders[s] = d
}

// DecoderFor returns the decoder registered for s
func DecoderFor(s transfer.Syntax) (Decoder, bool) {
	decodersMu.RLock()
	defer decodersMu.RUnlock()
	d, ok := decoders[s]
	return d, ok
}
