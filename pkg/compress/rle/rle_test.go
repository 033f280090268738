package rle

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRLE_RoundTrip(t *testing.T) {
	width, height := 100, 100
	tests := []struct {
		name          string
		samples       int
		bitsAllocated int
		pixel         func(x, y, s int) []byte
	}{
		{"Gray8", 1, 8, func(x, y, _ int) []byte {
			// runs on the left, a gradient on the right
			if x < 50 {
				return []byte{byte(y)}
			}
			return []byte{byte(x)}
		}},
		{"Gray16", 1, 16, func(x, y, _ int) []byte {
			return binary.LittleEndian.AppendUint16(nil, uint16(y)<<8|uint16(x))
		}},
		{"RGB", 3, 8, func(x, y, s int) []byte {
			return []byte{byte(x*s + y)}
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var native []byte
			for y := range height {
				for x := range width {
					for s := range tc.samples {
						native = append(native, tc.pixel(x, y, s)...)
					}
				}
			}

			var buf bytes.Buffer
			require.NoError(t, Encode(&buf, native, width, height, tc.samples, tc.bitsAllocated))
			compressed := buf.Bytes()
			assert.Equal(t, uint32(tc.samples*tc.bitsAllocated/8), binary.LittleEndian.Uint32(compressed))
			t.Logf("compressed size: %d / %d", len(compressed), len(native))

			decoded, err := Decode(compressed, width, height, tc.samples, tc.bitsAllocated)
			require.NoError(t, err)
			assert.Equal(t, native, decoded)
		})
	}
}

// TestDecode_SegmentOrder places the first segment in the high byte.
func TestDecode_SegmentOrder(t *testing.T) {
	frame := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(frame, 2)
	binary.LittleEndian.PutUint32(frame[4:], headerSize)
	binary.LittleEndian.PutUint32(frame[8:], headerSize+2)
	// two replicate runs of two pixels each
	frame = append(frame, 0xFF, 0x12, 0xFF, 0x34)

	out, err := Decode(frame, 2, 1, 1, 16)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x34, 0x12, 0x34, 0x12}, out)
}

func TestDecode_Errors(t *testing.T) {
	_, err := Decode(make([]byte, 10), 1, 1, 1, 8)
	assert.ErrorContains(t, err, "header")

	frame := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(frame, 2)
	_, err = Decode(frame, 1, 1, 1, 8)
	assert.ErrorContains(t, err, "segments")

	binary.LittleEndian.PutUint32(frame, 1)
	binary.LittleEndian.PutUint32(frame[4:], 8)
	_, err = Decode(frame, 1, 1, 1, 8)
	assert.ErrorContains(t, err, "outside frame")

	// a short segment
	binary.LittleEndian.PutUint32(frame[4:], headerSize)
	frame = append(frame, 0x00, 0x07)
	_, err = Decode(frame, 2, 1, 1, 8)
	assert.ErrorContains(t, err, "holds 1 of 2")
}

func TestEncode_Errors(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, Encode(&buf, make([]byte, 3), 2, 1, 1, 16))
	assert.Error(t, Encode(&buf, make([]byte, 64), 1, 1, 16, 8))
}
