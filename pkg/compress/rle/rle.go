// Package rle implements the DICOM RLE Lossless frame codec
// Reference: DICOM PS3.5 Annex G
package rle

import (
	"encoding/binary"
	"fmt"
	"io"
)

const (
	headerSize  = 64
	maxSegments = 15
)

// Decode expands one RLE frame to native pixel data: samples interleaved per
// pixel, multi-byte samples little endian
func Decode(frame []byte, columns, rows, samples, bitsAllocated int) ([]byte, error) {
	if len(frame) < headerSize {
		return nil, fmt.Errorf("rle: frame of %d bytes is shorter than its header", len(frame))
	}
	bytesPerSample := (bitsAllocated + 7) / 8
	pixels := columns * rows
	want := samples * bytesPerSample
	n := int(binary.LittleEndian.Uint32(frame))
	if n != want || n > maxSegments {
		return nil, fmt.Errorf("rle: %d segments, expected %d", n, want)
	}
	offsets := make([]int, n+1)
	for i := range n {
		offsets[i] = int(binary.LittleEndian.Uint32(frame[4+i*4:]))
	}
	offsets[n] = len(frame)

	out := make([]byte, pixels*want)
	for seg := range n {
		start, end := offsets[seg], offsets[seg+1]
		if start < headerSize || start > end || end > len(frame) {
			return nil, fmt.Errorf("rle: segment %d at [%d,%d) outside frame of %d bytes", seg, start, end, len(frame))
		}
		plane, err := decodePackBits(frame[start:end], pixels)
		if err != nil {
			return nil, fmt.Errorf("rle: segment %d: %w", seg, err)
		}
		if len(plane) < pixels {
			return nil, fmt.Errorf("rle: segment %d holds %d of %d bytes", seg, len(plane), pixels)
		}
		// segments run most significant byte first
		s, k := seg/bytesPerSample, seg%bytesPerSample
		pos := s*bytesPerSample + bytesPerSample - 1 - k
		for p := range pixels {
			out[p*want+pos] = plane[p]
		}
	}
	return out, nil
}

// Encode compresses one frame of native pixel data laid out as Decode
// returns it
func Encode(w io.Writer, data []byte, columns, rows, samples, bitsAllocated int) error {
	bytesPerSample := (bitsAllocated + 7) / 8
	pixels := columns * rows
	n := samples * bytesPerSample
	if n > maxSegments {
		return fmt.Errorf("rle: %d segments exceed %d", n, maxSegments)
	}
	if len(data) < pixels*n {
		return fmt.Errorf("rle: %d bytes for %d pixels of %d bytes", len(data), pixels, n)
	}

	segments := make([][]byte, n)
	plane := make([]byte, pixels)
	for seg := range n {
		s, k := seg/bytesPerSample, seg%bytesPerSample
		pos := s*bytesPerSample + bytesPerSample - 1 - k
		for p := range pixels {
			plane[p] = data[p*n+pos]
		}
		enc := encodePackBits(plane)
		if len(enc)%2 == 1 {
			// segments are padded to even length
			enc = append(enc, 0x80)
		}
		segments[seg] = enc
	}

	header := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(header, uint32(n))
	off := headerSize
	for i, s := range segments {
		binary.LittleEndian.PutUint32(header[4+i*4:], uint32(off))
		off += len(s)
	}
	if _, err := w.Write(header); err != nil {
		return err
	}
	for _, s := range segments {
		if _, err := w.Write(s); err != nil {
			return err
		}
	}
	return nil
}
