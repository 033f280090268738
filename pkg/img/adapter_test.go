package img

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/jpfielding/dicomimg.go/pkg/dicom/tag"
	"github.com/jpfielding/dicomimg.go/pkg/dicom/vr"
	"github.com/jpfielding/dicomimg.go/pkg/errs"
	"github.com/jpfielding/dicomimg.go/pkg/lut"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gray(width, height int, values ...int32) *Samples {
	return &Samples{Width: width, Height: height, Channels: 1, Ints: values}
}

// ============================================================================
// Value range and modality lookup
// ============================================================================

// TestAdapter_RescaledCT builds a rescale ramp and reports modality values.
func TestAdapter_RescaledCT(t *testing.T) {
	set := withRescale(grayImage("CT", 2, 2, 16, 12, false), 1, -1024)
	desc, err := NewDescriptor(set, Options{})
	require.NoError(t, err)
	a := NewAdapter(gray(2, 2, 0, 100, 200, 4095), desc)

	lo, hi := a.RawMinMax()
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, 4095.0, hi)

	tbl := a.ModalityLookup(true, false, nil)
	require.NotNil(t, tbl)
	assert.Equal(t, 16, tbl.Bits())
	assert.Equal(t, int32(-1024), tbl.Lookup(0))
	assert.Equal(t, int32(3071), tbl.Lookup(4095))
	assert.Same(t, tbl, a.ModalityLookup(true, false, nil))

	assert.Equal(t, -1024.0, a.MinValue(true, nil))
	assert.Equal(t, 3071.0, a.MaxValue(true, nil))
	assert.Equal(t, 4095.0, a.FullDynamicWidth(true, nil))
	assert.Equal(t, 1023.5, a.FullDynamicCenter(true, nil))
	assert.True(t, a.ModalityLUTOutSigned(true, nil))
	assert.Equal(t, -32768, a.MinAllocatedValue(true, nil))
	assert.Equal(t, 32767, a.MaxAllocatedValue(true, nil))
}

// TestAdapter_MRIgnoresRescale uses stored values for MR.
func TestAdapter_MRIgnoresRescale(t *testing.T) {
	set := withRescale(grayImage("MR", 1, 2, 16, 12, false), 2, 100)
	desc, err := NewDescriptor(set, Options{})
	require.NoError(t, err)
	a := NewAdapter(gray(2, 1, 10, 20), desc)
	assert.Nil(t, a.ModalityLookup(true, false, nil))
	assert.Equal(t, 10.0, a.MinValue(true, nil))
	assert.Equal(t, 1.0, a.RescaleSlope(nil))
	assert.Equal(t, 0.0, a.RescaleIntercept(nil))
}

// TestAdapter_Padding leaves padding values out of the range and maps them
// to the table minimum.
func TestAdapter_Padding(t *testing.T) {
	set := grayImage("CT", 2, 2, 16, 16, false)
	set.SetInts(tag.PixelPaddingValue, vr.US, 5)
	desc, err := NewDescriptor(set, Options{})
	require.NoError(t, err)
	a := NewAdapter(gray(2, 2, 5, 5, 1000, 1100), desc)

	lo, hi := a.RawMinMax()
	assert.Equal(t, 1000.0, lo)
	assert.Equal(t, 1100.0, hi)

	tbl := a.ModalityLookup(true, false, nil)
	require.NotNil(t, tbl)
	assert.Equal(t, int32(1000), tbl.Lookup(1000))
	assert.Equal(t, int32(1100), tbl.Lookup(1100))
	assert.Equal(t, int32(0), tbl.Lookup(5))
	assert.Equal(t, int32(6), tbl.Lookup(6))

	tbl = a.ModalityLookup(false, false, nil)
	require.NotNil(t, tbl)
	assert.Equal(t, int32(5), tbl.Lookup(5))
}

// TestAdapter_WidensBitsStored falls back to Bits Allocated for values
// outside the stored range, and widens a flat range by one.
func TestAdapter_WidensBitsStored(t *testing.T) {
	desc, err := NewDescriptor(grayImage("CT", 1, 2, 16, 8, false), Options{})
	require.NoError(t, err)
	a := NewAdapter(gray(2, 1, 5, 300), desc)
	assert.Equal(t, 16, a.BitsStored())

	a = NewAdapter(gray(2, 1, 7, 7), desc)
	assert.Equal(t, 8, a.BitsStored())
	lo, hi := a.RawMinMax()
	assert.Equal(t, 7.0, lo)
	assert.Equal(t, 8.0, hi)
}

// TestAdapter_SequenceTable uses a covering modality table as is and drops
// one that misses stored values.
func TestAdapter_SequenceTable(t *testing.T) {
	entries := make([]uint16, 300)
	for i := range entries {
		entries[i] = uint16(i * 10)
	}
	item := lutItem(0, entries...)
	item.SetString(tag.ModalityLUTType, vr.LO, "HU")
	set := grayImage("CT", 1, 2, 16, 12, false)
	set.NewSequence(tag.ModalityLUTSequence).AddItem(item)
	desc, err := NewDescriptor(set, Options{})
	require.NoError(t, err)

	a := NewAdapter(gray(2, 1, 10, 200), desc)
	tbl := a.ModalityLookup(false, false, nil)
	require.NotNil(t, tbl)
	assert.Equal(t, int32(100), tbl.Lookup(10))
	assert.Equal(t, 2000.0, a.MaxValue(false, nil))

	a = NewAdapter(gray(2, 1, 10, 1000), desc)
	assert.Nil(t, a.ModalityLookup(false, false, nil))
}

// TestAdapter_Inverse prefers Presentation LUT Shape over MONOCHROME1.
func TestAdapter_Inverse(t *testing.T) {
	set := grayImage("CR", 1, 1, 8, 8, false)
	set.SetString(tag.PhotometricInterpretation, vr.CS, "MONOCHROME1")
	desc, err := NewDescriptor(set, Options{})
	require.NoError(t, err)
	a := NewAdapter(gray(1, 1, 3), desc)
	assert.True(t, a.Inverse(nil))

	prSet := presentationState()
	prSet.SetString(tag.PresentationLUTShape, vr.CS, "IDENTITY")
	pr, err := NewPresentationState(prSet, Options{})
	require.NoError(t, err)
	assert.False(t, a.Inverse(pr))
}

// TestAdapter_VOILookup builds an 8 bit table over the level range.
func TestAdapter_VOILookup(t *testing.T) {
	desc, err := NewDescriptor(grayImage("CT", 1, 2, 8, 8, false), Options{})
	require.NoError(t, err)
	a := NewAdapter(gray(2, 1, 0, 255), desc)

	p := NewWindowLevelParameters(a, &RenderParams{Window: Ptr(100.0), Level: Ptr(50.0)})
	assert.Equal(t, 0.0, p.LevelMin)
	assert.Equal(t, 255.0, p.LevelMax)
	tbl := a.VOILookup(p)
	require.NotNil(t, tbl)
	assert.Equal(t, 8, tbl.Bits())
	assert.Equal(t, 0, tbl.MinIn())
	assert.Equal(t, 255, tbl.MaxIn())
	assert.Equal(t, int32(0), tbl.Lookup(0))
	assert.Equal(t, int32(255), tbl.Lookup(200))

	p.Shape = lut.Shape{}
	assert.Nil(t, a.VOILookup(p))
}

// ============================================================================
// Window parameters and presets
// ============================================================================

// TestNewWindowLevelParameters_Defaults falls back to the default preset.
func TestNewWindowLevelParameters_Defaults(t *testing.T) {
	set := grayImage("CT", 1, 2, 16, 12, false)
	set.SetFloats(tag.WindowCenter, vr.DS, 40)
	set.SetFloats(tag.WindowWidth, vr.DS, 400)
	desc, err := NewDescriptor(set, Options{})
	require.NoError(t, err)
	a := NewAdapter(gray(2, 1, 0, 4095), desc)

	p := NewWindowLevelParameters(a, nil)
	assert.Equal(t, 400.0, p.Window)
	assert.Equal(t, 40.0, p.Level)
	assert.Equal(t, lut.FuncLinear, p.Shape.Function())
	assert.True(t, p.PixelPadding)
	assert.Equal(t, -160.0, p.LevelMin)
	assert.Equal(t, 4095.0, p.LevelMax)

	p = NewWindowLevelParameters(a, &RenderParams{Shape: lut.Sigmoid, PixelPadding: Ptr(false)})
	assert.Equal(t, lut.FuncSigmoid, p.Shape.Function())
	assert.False(t, p.PixelPadding)
}

// TestAdapter_DefaultWindowModalityRange defaults to the full range of
// modality values, not stored values.
func TestAdapter_DefaultWindowModalityRange(t *testing.T) {
	set := withRescale(grayImage("CT", 1, 2, 16, 12, false), 2, -1024)
	desc, err := NewDescriptor(set, Options{})
	require.NoError(t, err)
	a := NewAdapter(gray(2, 1, 0, 1000), desc)

	assert.Equal(t, 2000.0, a.DefaultWindow(true, nil))
	assert.Equal(t, -24.0, a.DefaultLevel(true, nil))
	assert.Equal(t, a.FullDynamicWidth(true, nil), a.DefaultWindow(true, nil))
	assert.Equal(t, a.FullDynamicCenter(true, nil), a.DefaultLevel(true, nil))
}

// TestPresets lists image windows, the full range and modality presets.
func TestPresets(t *testing.T) {
	set := grayImage("CT", 1, 2, 16, 12, false)
	set.SetFloats(tag.WindowCenter, vr.DS, 40, 40, 300)
	set.SetFloats(tag.WindowWidth, vr.DS, 400, 400, 1500)
	set.SetString(tag.WindowCenterWidthExplanation, vr.LO, "SOFT", "SOFT", "")
	set.SetString(tag.VOILUTFunction, vr.CS, "SIGMOID")
	desc, err := NewDescriptor(set, Options{})
	require.NoError(t, err)
	a := NewAdapter(gray(2, 1, 0, 4095), desc)

	presets := a.Presets(true, nil)
	var names []string
	for _, p := range presets {
		names = append(names, p.Name)
	}
	require.GreaterOrEqual(t, len(names), 3)
	// the repeated window is dropped and does not advance the counter
	assert.Equal(t, []string{"SOFT [DICOM]", "Default 2 [DICOM]", "Auto Level [Image]"}, names[:3])
	assert.Equal(t, lut.FuncSigmoid, presets[0].Shape.Function())
	assert.Equal(t, "SIGMOID [DICOM]", presets[0].Shape.String())
	assert.Equal(t, 4095.0, presets[2].Window)
	assert.Contains(t, names, "Lung")

	def, ok := a.DefaultPreset(true, nil)
	require.True(t, ok)
	assert.Equal(t, 40.0, def.Level)
	assert.Equal(t, -160.0, def.MinBox())
	assert.Equal(t, 240.0, def.MaxBox())
}

// TestPresets_EightBit leaves out modality presets for 8 bit images.
func TestPresets_EightBit(t *testing.T) {
	desc, err := NewDescriptor(grayImage("CT", 1, 2, 8, 8, false), Options{})
	require.NoError(t, err)
	a := NewAdapter(gray(2, 1, 0, 255), desc)
	presets := a.Presets(true, nil)
	require.Len(t, presets, 1)
	assert.Equal(t, "Auto Level [Image]", presets[0].Name)
	assert.Equal(t, lut.FuncLinear, presets[0].Shape.Function())
}

// TestPresets_VOITable adds one preset per VOI LUT table.
func TestPresets_VOITable(t *testing.T) {
	entries := make([]uint16, 300)
	for i := range entries {
		entries[i] = uint16(i * 200)
	}
	set := grayImage("CT", 1, 2, 16, 12, false)
	set.NewSequence(tag.VOILUTSequence).AddItem(lutItem(100, entries...))
	desc, err := NewDescriptor(set, Options{})
	require.NoError(t, err)
	a := NewAdapter(gray(2, 1, 0, 4095), desc)

	presets := a.Presets(true, nil)
	require.GreaterOrEqual(t, len(presets), 2)
	p := presets[0]
	assert.Equal(t, "VOI LUT 0 [DICOM]", p.Name)
	assert.True(t, p.Shape.IsTable())
	assert.Equal(t, 299.0, p.Window)
	assert.Equal(t, 249.5, p.Level)

	b, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"name":"VOI LUT 0 [DICOM]"`)
}

// TestLoadPresets replaces presets by name and rejects bad input.
func TestLoadPresets(t *testing.T) {
	err := LoadPresets(strings.NewReader(`
qa:
  - name: Flat
    window: 10
    level: 5
  - name: Curve
    window: 20
    level: 5
    shape: SIGMOID
  - name: Broken
    window: 0
`))
	require.NoError(t, err)
	err = LoadPresets(strings.NewReader(`
QA:
  - name: Flat
    window: 30
    level: 15
    shape: NOPE
`))
	require.NoError(t, err)

	got := ModalityPresets("qa")
	require.Len(t, got, 2)
	assert.Equal(t, "Flat", got[0].Name)
	assert.Equal(t, 30.0, got[0].Window)
	assert.Equal(t, lut.FuncLinear, got[0].Shape.Function())
	assert.Equal(t, lut.FuncSigmoid, got[1].Shape.Function())

	err = LoadPresets(strings.NewReader("qa: [unclosed"))
	assert.True(t, errs.IsFormat(err))
}
