package img

import (
	"image"
	"image/color"
	"testing"

	"github.com/jpfielding/dicomimg.go/pkg/dicom"
	"github.com/jpfielding/dicomimg.go/pkg/dicom/tag"
	"github.com/jpfielding/dicomimg.go/pkg/dicom/vr"
	"github.com/jpfielding/dicomimg.go/pkg/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Embedded overlays
// ============================================================================

// TestEmbeddedOverlays lists planes above Bits Stored only.
func TestEmbeddedOverlays(t *testing.T) {
	set := grayImage("CT", 2, 2, 16, 12, false)
	set.SetInts(tag.OverlayBitsAllocated|tag.OverlayGroup(0), vr.US, 16)
	set.SetInts(tag.OverlayBitPosition|tag.OverlayGroup(0), vr.US, 15)
	set.SetInts(tag.OverlayBitsAllocated|tag.OverlayGroup(1), vr.US, 16)
	set.SetInts(tag.OverlayBitPosition|tag.OverlayGroup(1), vr.US, 4)
	set.SetInts(tag.OverlayBitsAllocated|tag.OverlayGroup(2), vr.US, 1)

	got := EmbeddedOverlays(set)
	assert.Equal(t, []EmbeddedOverlay{{Group: tag.OverlayGroup(0), BitPosition: 15}}, got)
}

// TestExtractEmbeddedOverlay packs one bit per sample, LSB first, to an even
// byte count.
func TestExtractEmbeddedOverlay(t *testing.T) {
	samples := make([]int32, 9)
	samples[0] = 1 << 2
	samples[8] = 1<<2 | 1
	samples[4] = 1

	out := ExtractEmbeddedOverlay(samples, 3, 3, 2)
	assert.Equal(t, []byte{0x01, 0x01}, out)

	out = ExtractEmbeddedOverlay(make([]int32, 16), 4, 4, 2)
	assert.Len(t, out, 2)
	out = ExtractEmbeddedOverlay(make([]int32, 17), 1, 17, 2)
	assert.Len(t, out, 4)
}

// TestRemoveEmbeddedOverlays masks bits outside the stored bits and rescales.
func TestRemoveEmbeddedOverlays(t *testing.T) {
	desc := &Descriptor{
		BitsAllocated:    16,
		BitsStored:       12,
		HighBit:          13,
		EmbeddedOverlays: []EmbeddedOverlay{{Group: tag.OverlayGroup(0), BitPosition: 15}},
	}
	samples := []int32{0xFFFF, 0x8004}
	require.True(t, RemoveEmbeddedOverlays(desc, samples))
	assert.Equal(t, []int32{0x3FFC, 0x0004}, samples)
	slope, ok := desc.ModalityLUT().Slope()
	require.True(t, ok)
	assert.Equal(t, 0.25, slope)

	desc = &Descriptor{BitsAllocated: 16, BitsStored: 16, HighBit: 15, EmbeddedOverlays: desc.EmbeddedOverlays}
	samples = []int32{0xFFFF}
	assert.False(t, RemoveEmbeddedOverlays(desc, samples))
	assert.Equal(t, []int32{0xFFFF}, samples)
}

// TestRemoveEmbeddedOverlays_HighBitOutOfRange falls back to BitsStored-1
// when High Bit does not fit in Bits Allocated.
func TestRemoveEmbeddedOverlays_HighBitOutOfRange(t *testing.T) {
	desc := &Descriptor{
		BitsAllocated:    16,
		BitsStored:       12,
		HighBit:          16,
		EmbeddedOverlays: []EmbeddedOverlay{{Group: tag.OverlayGroup(0), BitPosition: 15}},
	}
	samples := []int32{0xFFFF, 0x8004}
	require.True(t, RemoveEmbeddedOverlays(desc, samples))
	assert.Equal(t, []int32{0x0FFF, 0x0004}, samples)
	_, ok := desc.ModalityLUT().Slope()
	assert.False(t, ok)
}

// ============================================================================
// Bitmap overlays
// ============================================================================

func overlayImage() *dicom.AttributeSet {
	set := grayImage("CT", 4, 4, 16, 12, false)
	g := tag.OverlayGroup(1)
	set.SetInts(tag.OverlayRows|g, vr.US, 2)
	set.SetInts(tag.OverlayColumns|g, vr.US, 2)
	set.SetInts(tag.OverlayOrigin|g, vr.SS, 2, 2)
	set.SetString(tag.OverlayType|g, vr.CS, "G")
	set.SetBytes(tag.OverlayData|g, vr.OW, []byte{0b1001, 0})
	return set
}

// TestOverlayDataOf reads the overlay groups selected by the mask.
func TestOverlayDataOf(t *testing.T) {
	set := overlayImage()
	got := OverlayDataOf(set, 0xFFFF)
	require.Len(t, got, 1)
	o := got[0]
	assert.Equal(t, tag.OverlayGroup(1), o.Group)
	assert.Equal(t, 2, o.Rows)
	assert.Equal(t, 2, o.Columns)
	assert.Equal(t, []int{2, 2}, o.Origin)
	assert.Equal(t, 1, o.ImageFrameOrigin)
	assert.Equal(t, 1, o.FramesInOverlay)

	assert.Empty(t, OverlayDataOf(set, 0b01))
	assert.Equal(t, []tag.Tag{tag.OverlayGroup(1)}, ActiveOverlayGroups(set, tag.OverlayRows, 0xFFFF))
}

// TestOverlayMask blits the plane at its origin.
func TestOverlayMask(t *testing.T) {
	overlays := OverlayDataOf(overlayImage(), 0xFFFF)
	mask, err := OverlayMask(0, 4, 4, overlays...)
	require.NoError(t, err)

	var set []image.Point
	for y := range 4 {
		for x := range 4 {
			if mask.AlphaAt(x, y).A != 0 {
				set = append(set, image.Pt(x, y))
			}
		}
	}
	assert.Equal(t, []image.Point{image.Pt(1, 1), image.Pt(2, 2)}, set)
}

// TestOverlayMask_Invalid reports a broken overlay and draws the others.
func TestOverlayMask_Invalid(t *testing.T) {
	good := OverlayDataOf(overlayImage(), 0xFFFF)[0]
	bad := OverlayData{Group: tag.OverlayGroup(2), Rows: 0, Columns: 2, ImageFrameOrigin: 1, FramesInOverlay: 1, Origin: []int{1, 1}, Data: []byte{1}}

	mask, err := OverlayMask(0, 4, 4, bad, good)
	assert.True(t, errs.IsFormat(err))
	assert.Equal(t, uint8(0xFF), mask.AlphaAt(1, 1).A)
}

// TestOverlayData_AppliesTo honors Image Frame Origin and the frame count.
func TestOverlayData_AppliesTo(t *testing.T) {
	o := OverlayData{ImageFrameOrigin: 2, FramesInOverlay: 2}
	tests := []struct {
		frame int
		want  bool
	}{
		{0, false},
		{1, true},
		{2, true},
		{3, false},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, o.AppliesTo(tc.frame), "frame %d", tc.frame)
	}
}

// TestOverlayMask_MultiFrame picks the plane of the requested frame.
func TestOverlayMask_MultiFrame(t *testing.T) {
	o := OverlayData{
		Group:            tag.OverlayGroup(0),
		Rows:             2,
		Columns:          2,
		ImageFrameOrigin: 1,
		FramesInOverlay:  2,
		Origin:           []int{1, 1},
		// frame 0 sets pixel 0, frame 1 sets pixel 3
		Data: []byte{0b1000_0001, 0},
	}
	mask, err := OverlayMask(1, 2, 2, o)
	require.NoError(t, err)
	assert.Equal(t, uint8(0), mask.AlphaAt(0, 0).A)
	assert.Equal(t, uint8(0xFF), mask.AlphaAt(1, 1).A)
}

// TestPaintOverlay paints the color under the mask only.
func TestPaintOverlay(t *testing.T) {
	dst := image.NewRGBA(image.Rect(0, 0, 2, 1))
	mask := image.NewAlpha(dst.Rect)
	mask.SetAlpha(1, 0, color.Alpha{A: 0xFF})
	PaintOverlay(dst, mask, color.RGBA{R: 0xFF, A: 0xFF})
	assert.Equal(t, color.RGBA{}, dst.RGBAAt(0, 0))
	assert.Equal(t, color.RGBA{R: 0xFF, A: 0xFF}, dst.RGBAAt(1, 0))
}

func TestParseOverlayColor(t *testing.T) {
	c, err := ParseOverlayColor("#00ff80")
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{G: 0xFF, B: 0x80, A: 0xFF}, c)

	_, err = ParseOverlayColor("green")
	assert.True(t, errs.IsFormat(err))

	assert.Equal(t, color.Gray16{Y: 0xFFFF}, GrayOverlayColor(70000))
}

// ============================================================================
// Presentation states
// ============================================================================

func presentationState() *dicom.AttributeSet {
	pr := dicom.NewSet()
	pr.SetString(tag.SOPClassUID, vr.UI, GrayscaleSoftcopyPresentationStateStorage)
	g := tag.OverlayGroup(0)
	pr.SetInts(tag.OverlayRows|g, vr.US, 2)
	pr.SetInts(tag.OverlayColumns|g, vr.US, 2)
	pr.SetBytes(tag.OverlayData|g, vr.OW, []byte{0b0110, 0})
	pr.SetString(tag.OverlayActivationLayer|g, vr.CS, "ANNOTATION")
	layer := dicom.NewSet()
	layer.SetString(tag.GraphicLayer, vr.CS, "ANNOTATION")
	layer.SetInts(tag.GraphicLayerRecommendedDisplayGrayscaleValue, vr.US, 0xC000)
	pr.NewSequence(tag.GraphicLayerSequence).AddItem(layer)
	return pr
}

// TestNewPresentationState checks the SOP class and reads the overlays.
func TestNewPresentationState(t *testing.T) {
	_, err := NewPresentationState(dicom.NewSet(), Options{})
	assert.True(t, errs.IsPrecondition(err))
	_, err = NewPresentationState(nil, Options{})
	assert.True(t, errs.IsPrecondition(err))

	set := presentationState()
	set.SetString(tag.PresentationLUTShape, vr.CS, "INVERSE")
	pr, err := NewPresentationState(set, Options{})
	require.NoError(t, err)
	assert.Equal(t, "INVERSE", pr.ShapeMode())
	assert.True(t, pr.HasOverlay())
	assert.Equal(t, []tag.Tag{tag.OverlayGroup(0)}, pr.ActiveOverlayGroups())
	require.Len(t, pr.OverlayData(0xFFFF), 1)
	assert.Empty(t, pr.OverlayData(0b10))
	_, ok := pr.LUT()
	assert.False(t, ok)
}

// TestNewPresentationState_LUT reads the Presentation LUT Sequence.
func TestNewPresentationState_LUT(t *testing.T) {
	set := presentationState()
	entries := make([]uint16, 4096)
	for i := range entries {
		entries[i] = uint16(i * 16)
	}
	set.NewSequence(tag.PresentationLUTSequence).AddItem(lutItem(0, entries...))

	pr, err := NewPresentationState(set, Options{})
	require.NoError(t, err)
	assert.Equal(t, "IDENTITY", pr.ShapeMode())
	tbl, ok := pr.LUT()
	require.True(t, ok)
	assert.Equal(t, 16, tbl.Bits())
	assert.Equal(t, int32(4095*16), tbl.Lookup(4095))
}

// TestPresentationOverlayData requires an activation layer.
func TestPresentationOverlayData(t *testing.T) {
	set := presentationState()
	set.Remove(tag.OverlayActivationLayer | tag.OverlayGroup(0))
	assert.Empty(t, PresentationOverlayData(set, 0xFFFF))
}

// TestRecommendedDisplayGrayscaleValue resolves the graphic layer of an
// overlay group.
func TestRecommendedDisplayGrayscaleValue(t *testing.T) {
	set := presentationState()
	v, err := RecommendedDisplayGrayscaleValue(set, tag.OverlayGroup(0))
	require.NoError(t, err)
	assert.Equal(t, 0xC000, v)

	_, err = RecommendedDisplayGrayscaleValue(set, tag.OverlayGroup(1))
	assert.True(t, errs.IsPrecondition(err))

	set.SetString(tag.OverlayActivationLayer|tag.OverlayGroup(0), vr.CS, "OTHER")
	_, err = RecommendedDisplayGrayscaleValue(set, tag.OverlayGroup(0))
	assert.True(t, errs.IsPrecondition(err))
}
