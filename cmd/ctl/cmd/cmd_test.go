package cmd

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/jpfielding/dicomimg.go/pkg/compress/rle"
	"github.com/jpfielding/dicomimg.go/pkg/dicom"
	"github.com/jpfielding/dicomimg.go/pkg/dicom/tag"
	"github.com/jpfielding/dicomimg.go/pkg/dicom/transfer"
	"github.com/jpfielding/dicomimg.go/pkg/dicom/vr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeCT writes a two frame 2x2 CT in RLE Lossless
func writeCT(t *testing.T) string {
	t.Helper()
	ds := dicom.NewSet()
	ds.SetString(tag.SOPClassUID, vr.UI, "1.2.840.10008.5.1.4.1.1.2")
	ds.SetString(tag.SOPInstanceUID, vr.UI, "1.2.3.4")
	ds.SetString(tag.Modality, vr.CS, "CT")
	ds.SetString(tag.PhotometricInterpretation, vr.CS, "MONOCHROME2")
	ds.SetInts(tag.Rows, vr.US, 2)
	ds.SetInts(tag.Columns, vr.US, 2)
	ds.SetInts(tag.SamplesPerPixel, vr.US, 1)
	ds.SetInts(tag.BitsAllocated, vr.US, 16)
	ds.SetInts(tag.BitsStored, vr.US, 12)
	ds.SetInts(tag.HighBit, vr.US, 11)
	ds.SetInts(tag.PixelRepresentation, vr.US, 0)
	ds.SetString(tag.NumberOfFrames, vr.IS, "2")
	ds.SetFloats(tag.RescaleSlope, vr.DS, 1)
	ds.SetFloats(tag.RescaleIntercept, vr.DS, -1024)
	ds.SetFloats(tag.WindowCenter, vr.DS, 40)
	ds.SetFloats(tag.WindowWidth, vr.DS, 400)

	frags := []dicom.Fragment{dicom.NewFragment(nil)}
	for _, values := range [][]uint16{{0, 1064, 1064, 4095}, {4095, 0, 0, 4095}} {
		native := make([]byte, 0, 8)
		for _, v := range values {
			native = binary.LittleEndian.AppendUint16(native, v)
		}
		var buf bytes.Buffer
		require.NoError(t, rle.Encode(&buf, native, 2, 2, 1, 16))
		frags = append(frags, dicom.NewFragment(buf.Bytes()))
	}
	ds.SetFragments(tag.PixelData, frags...)

	meta, err := dicom.FileMetaFor(ds, string(transfer.RLELossless))
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "ct.dcm")
	_, err = dicom.WriteFile(path, meta, ds)
	require.NoError(t, err)
	return path
}

func run(t *testing.T, args ...string) string {
	t.Helper()
	root := NewRoot(context.Background(), "abc123")
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	require.NoError(t, root.Execute())
	return out.String()
}

// ============================================================================
// Commands
// ============================================================================

func TestVersion(t *testing.T) {
	assert.Equal(t, "abc123\n", run(t, "version"))
}

// TestDump_Filter keeps the attributes matching the glob.
func TestDump_Filter(t *testing.T) {
	path := writeCT(t)
	out := run(t, "dump", "--file", path, "--format", "text", "--filter", "Window*")
	assert.Contains(t, out, "(0028,1050)")
	assert.Contains(t, out, "(0028,1051)")
	assert.NotContains(t, out, "(0028,0010)")

	out = run(t, "dump", path, "--format", "json", "--filter", "(0028,0010)")
	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Contains(t, got, "00280010")
	assert.NotContains(t, got, "00280011")
}

// TestFrames reports one fragment per frame.
func TestFrames(t *testing.T) {
	out := run(t, "frames", "--file", writeCT(t))
	var report struct {
		Encapsulated bool `json:"encapsulated"`
		FrameLength  int  `json:"frameLength"`
		Frames       []struct {
			Frame  int `json:"frame"`
			Ranges []struct {
				Fragment int `json:"fragment"`
			} `json:"ranges"`
		} `json:"frames"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.True(t, report.Encapsulated)
	assert.Equal(t, 8, report.FrameLength)
	require.Len(t, report.Frames, 2)
	assert.Equal(t, 2, report.Frames[1].Ranges[0].Fragment)
}

// TestFrames_Dump writes the decoded frame.
func TestFrames_Dump(t *testing.T) {
	out := filepath.Join(t.TempDir(), "frame.bin")
	run(t, "frames", "--file", writeCT(t), "--dump-frame", "1", "--out", out)
	b, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0x0F, 0, 0, 0, 0, 0xFF, 0x0F}, b)
}

func TestPresets(t *testing.T) {
	out := run(t, "presets", "--file", writeCT(t), "--format", "json")
	var presets []struct {
		Name   string  `json:"name"`
		Window float64 `json:"window"`
		Level  float64 `json:"level"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &presets))
	require.NotEmpty(t, presets)
	assert.Equal(t, 400.0, presets[0].Window)
	assert.Equal(t, 40.0, presets[0].Level)
}

// TestRender windows the second frame and resizes it.
func TestRender(t *testing.T) {
	out := filepath.Join(t.TempDir(), "ct.png")
	run(t, "render", "--file", writeCT(t), "--frame", "1", "--out", out, "--width", "4")

	fh, err := os.Open(out)
	require.NoError(t, err)
	defer fh.Close()
	m, err := png.Decode(fh)
	require.NoError(t, err)
	assert.Equal(t, 4, m.Bounds().Dx())
	assert.Equal(t, 4, m.Bounds().Dy())
}

func TestRender_BadShape(t *testing.T) {
	root := NewRoot(context.Background(), "")
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"render", "--file", writeCT(t), "--shape", "cubic"})
	assert.ErrorContains(t, root.Execute(), "unknown shape")
}
