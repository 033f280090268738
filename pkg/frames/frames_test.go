package frames

import (
	"bytes"
	"errors"
	"testing"

	"github.com/jpfielding/dicomimg.go/pkg/compress/rle"
	"github.com/jpfielding/dicomimg.go/pkg/dicom"
	"github.com/jpfielding/dicomimg.go/pkg/dicom/tag"
	"github.com/jpfielding/dicomimg.go/pkg/dicom/transfer"
	"github.com/jpfielding/dicomimg.go/pkg/dicom/vr"
	"github.com/jpfielding/dicomimg.go/pkg/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// geometry is a single channel 8 bit layout
type geometry struct {
	rows, columns, frames int
}

func (g geometry) FrameLength() int { return g.rows * g.columns }
func (g geometry) FrameCount() int  { return g.frames }
func (g geometry) FrameShape() (int, int, int, int) {
	return g.rows, g.columns, 1, 8
}

var (
	soi = []byte{0xFF, 0xD8, 0xFF, 0xC0}
	soc = []byte{0xFF, 0x4F, 0xFF, 0x51}
	jp2 = []byte{0, 0, 0, 12, 'j', 'P', ' ', ' ', 0x0D, 0x0A, 0x87, 0x0A, 0, 0}
)

// encapsulated builds pixel data from an empty offset table and frags
func encapsulated(frags ...[]byte) *dicom.Attribute {
	list := []dicom.Fragment{dicom.NewFragment(nil)}
	for _, f := range frags {
		list = append(list, dicom.NewFragment(f))
	}
	return dicom.NewSet().SetFragments(tag.PixelData, list...)
}

func fragments(rs []Range) []int {
	var out []int
	for _, r := range rs {
		out = append(out, r.Fragment)
	}
	return out
}

// ============================================================================
// Native
// ============================================================================

// TestLocate_Native offsets each frame by the geometry.
func TestLocate_Native(t *testing.T) {
	attr := dicom.NewSet().SetBytes(tag.PixelData, vr.OB, []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12})
	l, err := NewLocator(attr, geometry{rows: 2, columns: 2, frames: 3}, transfer.ExplicitVRLittleEndian)
	require.NoError(t, err)

	rs, err := l.Locate(2)
	require.NoError(t, err)
	assert.Equal(t, []Range{{Fragment: -1, Offset: 8, Length: 4}}, rs)

	b, err := l.ReadFrame(1)
	require.NoError(t, err)
	assert.Equal(t, []byte{5, 6, 7, 8}, b)

	b, err = l.DecodeFrame(0)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, b)

	_, err = l.Locate(3)
	assert.True(t, errs.IsPrecondition(err))
	_, err = l.Locate(-1)
	assert.True(t, errs.IsPrecondition(err))
}

// TestLocate_NativeParsed reports stream positions of parsed values.
func TestLocate_NativeParsed(t *testing.T) {
	ds := dicom.MustSet(dicom.WithValue(tag.PixelData, vr.OB, []byte{1, 2, 3, 4, 5, 6, 7, 8}))
	var buf bytes.Buffer
	_, err := dicom.Write(&buf, ds, dicom.ExplicitVRLittleEndian)
	require.NoError(t, err)
	got, err := dicom.ParseDataset(bytes.NewReader(buf.Bytes()), 0, int64(buf.Len()), dicom.ExplicitVRLittleEndian,
		dicom.WithDeferThreshold(4))
	require.NoError(t, err)
	attr, ok := got.Get(tag.PixelData)
	require.True(t, ok)

	l, err := NewLocator(attr, geometry{rows: 2, columns: 2, frames: 2}, transfer.ExplicitVRLittleEndian)
	require.NoError(t, err)
	rs, err := l.Locate(1)
	require.NoError(t, err)
	assert.Equal(t, attr.ValueOffset()+4, rs[0].Offset)

	b, err := l.ReadFrame(1)
	require.NoError(t, err)
	assert.Equal(t, []byte{5, 6, 7, 8}, b)
}

func TestNewLocator_Errors(t *testing.T) {
	_, err := NewLocator(nil, geometry{rows: 1, columns: 1, frames: 1}, "")
	assert.True(t, errs.IsPrecondition(err))
	_, err = NewLocator(encapsulated(soi), geometry{frames: 1}, transfer.JPEGBaseline)
	assert.True(t, errs.IsFormat(err))
}

// ============================================================================
// Encapsulated
// ============================================================================

func TestLocate_Encapsulated(t *testing.T) {
	tests := []struct {
		name   string
		attr   *dicom.Attribute
		frames int
		frame  int
		want   []int
	}{
		{"SingleFragment", encapsulated(soi), 1, 0, []int{1}},
		{"FragmentPerFrame", encapsulated(soi, soi, soi), 3, 2, []int{3}},
		{"SingleFrameManyFragments", encapsulated(soi, []byte{1}, []byte{2}), 1, 0, []int{1, 2, 3}},
		{"ScannedFirst", encapsulated(soi, []byte{1}, soi, []byte{2}, soi, []byte{3}, soi, []byte{4}, soi, []byte{5}, []byte{6}), 5, 0, []int{1, 2}},
		{"ScannedMiddle", encapsulated(soi, []byte{1}, soi, []byte{2}, soi, []byte{3}, soi, []byte{4}, soi, []byte{5}, []byte{6}), 5, 1, []int{3, 4}},
		{"ScannedLast", encapsulated(soi, []byte{1}, soi, []byte{2}, soi, []byte{3}, soi, []byte{4}, soi, []byte{5}, []byte{6}), 5, 4, []int{9, 10, 11}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			l, err := NewLocator(tc.attr, geometry{rows: 1, columns: 1, frames: tc.frames}, transfer.JPEGBaseline)
			require.NoError(t, err)
			rs, err := l.Locate(tc.frame)
			require.NoError(t, err)
			assert.Equal(t, tc.want, fragments(rs))
			for _, r := range rs {
				assert.Equal(t, int64(-1), r.Offset)
			}
		})
	}
}

// TestLocate_JPEG2000 finds codestreams and JP2 files.
func TestLocate_JPEG2000(t *testing.T) {
	attr := encapsulated(soc, []byte{1}, jp2, soi)
	l, err := NewLocator(attr, geometry{rows: 1, columns: 1, frames: 2}, transfer.JPEG2000Lossless)
	require.NoError(t, err)
	rs, err := l.Locate(0)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, fragments(rs))
	rs, err = l.Locate(1)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 4}, fragments(rs))

	b, err := l.ReadFrame(0)
	require.NoError(t, err)
	assert.Equal(t, append(append([]byte{}, soc...), 1), b)
}

// TestLocate_SharedScan reuses the boundaries found by another locator over
// the same pixel data.
func TestLocate_SharedScan(t *testing.T) {
	attr := encapsulated(soi, []byte{1}, soi, []byte{2}, soi)
	geom := geometry{rows: 1, columns: 1, frames: 3}
	first, err := NewLocator(attr, geom, transfer.JPEGBaseline)
	require.NoError(t, err)
	_, err = first.Locate(0)
	require.NoError(t, err)

	starts := attr.FrameStarts(func(*dicom.Attribute) []int {
		t.Fatal("fragments scanned twice")
		return nil
	})
	assert.Equal(t, []int{1, 3, 5}, starts)

	second, err := NewLocator(attr, geom, transfer.JPEGBaseline)
	require.NoError(t, err)
	got, err := second.Locate(1)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 3, got[0].Fragment)
	assert.Equal(t, 4, got[1].Fragment)
}

// TestLocate_Mismatch fails only the frames that cannot be addressed.
func TestLocate_Mismatch(t *testing.T) {
	l, err := NewLocator(encapsulated(soi, []byte{1}, []byte{2}, soi), geometry{rows: 1, columns: 1, frames: 3}, transfer.JPEGBaseline)
	require.NoError(t, err)
	_, err = l.Locate(0)
	assert.True(t, errs.IsFormat(err))
	assert.ErrorIs(t, err, ErrFrameMismatch)

	// more frames than fragments
	l, err = NewLocator(encapsulated(soi, soi), geometry{rows: 1, columns: 1, frames: 3}, transfer.JPEGBaseline)
	require.NoError(t, err)
	_, err = l.Locate(1)
	assert.NoError(t, err)
	_, err = l.Locate(2)
	assert.ErrorIs(t, err, ErrFrameMismatch)

	l, err = NewLocator(encapsulated(), geometry{rows: 1, columns: 1, frames: 1}, transfer.JPEGBaseline)
	require.NoError(t, err)
	_, err = l.Locate(0)
	assert.True(t, errs.IsFormat(err))
}

// ============================================================================
// Decoding
// ============================================================================

// TestDecodeFrame_RLE decodes with the built in RLE decoder.
func TestDecodeFrame_RLE(t *testing.T) {
	native := []byte{7, 7, 7, 9}
	var buf bytes.Buffer
	require.NoError(t, rle.Encode(&buf, native, 2, 2, 1, 8))

	l, err := NewLocator(encapsulated(buf.Bytes()), geometry{rows: 2, columns: 2, frames: 1}, transfer.RLELossless)
	require.NoError(t, err)
	out, err := l.DecodeFrame(0)
	require.NoError(t, err)
	assert.Equal(t, native, out)
}

// TestDecodeFrame_Registry reports syntaxes without a decoder and uses
// registered ones.
func TestDecodeFrame_Registry(t *testing.T) {
	l, err := NewLocator(encapsulated(soi), geometry{rows: 1, columns: 1, frames: 1}, transfer.JPEGLSLossless)
	require.NoError(t, err)
	_, err = l.DecodeFrame(0)
	assert.ErrorIs(t, err, ErrNoDecoder)

	Register(transfer.JPEGLSLossless, func(data []byte, rows, columns, samples, bitsAllocated int) ([]byte, error) {
		if len(data) != len(soi) {
			return nil, errors.New("bad stream")
		}
		return make([]byte, rows*columns*samples), nil
	})
	t.Cleanup(func() {
		decodersMu.Lock()
		delete(decoders, transfer.JPEGLSLossless)
		decodersMu.Unlock()
	})
	out, err := l.DecodeFrame(0)
	require.NoError(t, err)
	assert.Equal(t, []byte{0}, out)

	l, err = NewLocator(encapsulated(soi, []byte{1}), geometry{rows: 1, columns: 1, frames: 1}, transfer.JPEGLSLossless)
	require.NoError(t, err)
	_, err = l.DecodeFrame(0)
	assert.True(t, errs.IsFormat(err))
}
