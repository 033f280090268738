package dicom

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/jpfielding/dicomimg.go/pkg/dicom/charset"
	"github.com/jpfielding/dicomimg.go/pkg/dicom/tag"
	"github.com/jpfielding/dicomimg.go/pkg/dicom/vr"
)

// codec converts between encoded bytes, caller supplied Go values and the
// canonical stored form of one vr.Kind:
//
//	text, DS, IS  []string
//	int           []int64
//	float         []float64
//	binary        []byte (little endian)
type codec struct {
	decode func(v vr.VR, raw []byte, order binary.ByteOrder, cs *charset.Set) any
	encode func(v vr.VR, value any, order binary.ByteOrder, cs *charset.Set) ([]byte, error)
	accept func(v vr.VR, value any) (any, error)
}

var codecs = map[vr.Kind]codec{
	vr.KindText:       {decode: decodeText, encode: encodeText, accept: acceptText},
	vr.KindSingleText: {decode: decodeText, encode: encodeText, accept: acceptText},
	vr.KindDecimal:    {decode: decodeText, encode: encodeText, accept: acceptDecimal},
	vr.KindIntString:  {decode: decodeText, encode: encodeText, accept: acceptIntString},
	vr.KindInt:        {decode: decodeInts, encode: encodeInts, accept: acceptInts},
	vr.KindFloat:      {decode: decodeFloats, encode: encodeFloats, accept: acceptFloats},
	vr.KindBinary:     {decode: decodeBinary, encode: encodeBinary, accept: acceptBinary},
}

func codecFor(v vr.VR) (codec, bool) {
	c, ok := codecs[v.Kind()]
	return c, ok
}

func decodeText(v vr.VR, raw []byte, _ binary.ByteOrder, cs *charset.Set) any {
	if len(raw) == 0 {
		return []string(nil)
	}
	var s string
	if v.UsesCharset() {
		s = cs.Decode(raw)
	} else {
		s = string(raw)
	}
	if v.Kind() == vr.KindSingleText {
		return []string{strings.TrimRight(s, " \x00")}
	}
	parts := strings.Split(s, `\`)
	for i, p := range parts {
		parts[i] = strings.Trim(p, " \x00")
	}
	return parts
}

func encodeText(v vr.VR, value any, _ binary.ByteOrder, cs *charset.Set) ([]byte, error) {
	ss, _ := value.([]string)
	s := strings.Join(ss, `\`)
	if v.UsesCharset() && cs != nil {
		return cs.Encode(s)
	}
	return []byte(s), nil
}

func acceptText(v vr.VR, value any) (any, error) {
	switch x := value.(type) {
	case nil:
		return []string(nil), nil
	case string:
		if v.Kind() == vr.KindSingleText {
			return []string{x}, nil
		}
		return strings.Split(x, `\`), nil
	case []string:
		return append([]string(nil), x...), nil
	}
	return nil, fmt.Errorf("%s does not accept %T", v, value)
}

func acceptDecimal(v vr.VR, value any) (any, error) {
	if fs, ok := toFloat64s(value); ok {
		out := make([]string, len(fs))
		for i, f := range fs {
			out[i] = formatDS(f)
		}
		return out, nil
	}
	return acceptText(v, value)
}

func acceptIntString(v vr.VR, value any) (any, error) {
	if is, ok := toInt64s(value); ok {
		out := make([]string, len(is))
		for i, n := range is {
			out[i] = strconv.FormatInt(n, 10)
		}
		return out, nil
	}
	return acceptText(v, value)
}

// formatDS renders f in at most 16 characters
func formatDS(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	for p := 15; len(s) > 16 && p > 0; p-- {
		s = strconv.FormatFloat(f, 'g', p, 64)
	}
	return s
}

func decodeInts(v vr.VR, raw []byte, order binary.ByteOrder, _ *charset.Set) any {
	size := v.ValueSize()
	n := len(raw) / size
	out := make([]int64, n)
	for i := range n {
		b := raw[i*size:]
		switch v {
		case vr.US:
			out[i] = int64(order.Uint16(b))
		case vr.SS:
			out[i] = int64(int16(order.Uint16(b)))
		case vr.UL:
			out[i] = int64(order.Uint32(b))
		case vr.SL:
			out[i] = int64(int32(order.Uint32(b)))
		case vr.AT:
			out[i] = int64(tag.New(order.Uint16(b), order.Uint16(b[2:])))
		}
	}
	return out
}

func encodeInts(v vr.VR, value any, order binary.ByteOrder, _ *charset.Set) ([]byte, error) {
	is, _ := value.([]int64)
	size := v.ValueSize()
	out := make([]byte, len(is)*size)
	for i, n := range is {
		b := out[i*size:]
		switch v {
		case vr.US, vr.SS:
			order.PutUint16(b, uint16(n))
		case vr.UL, vr.SL:
			order.PutUint32(b, uint32(n))
		case vr.AT:
			t := tag.Tag(n)
			order.PutUint16(b, t.Group())
			order.PutUint16(b[2:], t.Element())
		}
	}
	return out, nil
}

func acceptInts(v vr.VR, value any) (any, error) {
	if value == nil {
		return []int64(nil), nil
	}
	if is, ok := toInt64s(value); ok {
		return is, nil
	}
	return nil, fmt.Errorf("%s does not accept %T", v, value)
}

func decodeFloats(v vr.VR, raw []byte, order binary.ByteOrder, _ *charset.Set) any {
	size := v.ValueSize()
	n := len(raw) / size
	out := make([]float64, n)
	for i := range n {
		b := raw[i*size:]
		if v == vr.FL {
			out[i] = float64(math.Float32frombits(order.Uint32(b)))
		} else {
			out[i] = math.Float64frombits(order.Uint64(b))
		}
	}
	return out
}

func encodeFloats(v vr.VR, value any, order binary.ByteOrder, _ *charset.Set) ([]byte, error) {
	fs, _ := value.([]float64)
	size := v.ValueSize()
	out := make([]byte, len(fs)*size)
	for i, f := range fs {
		b := out[i*size:]
		if v == vr.FL {
			order.PutUint32(b, math.Float32bits(float32(f)))
		} else {
			order.PutUint64(b, math.Float64bits(f))
		}
	}
	return out, nil
}

func acceptFloats(v vr.VR, value any) (any, error) {
	if value == nil {
		return []float64(nil), nil
	}
	if fs, ok := toFloat64s(value); ok {
		return fs, nil
	}
	return nil, fmt.Errorf("%s does not accept %T", v, value)
}

func decodeBinary(v vr.VR, raw []byte, order binary.ByteOrder, _ *charset.Set) any {
	out := append([]byte(nil), raw...)
	if order == binary.BigEndian {
		swapWords(out, v.ValueSize())
	}
	return out
}

func encodeBinary(v vr.VR, value any, order binary.ByteOrder, _ *charset.Set) ([]byte, error) {
	b, _ := value.([]byte)
	if order != binary.BigEndian {
		return b, nil
	}
	out := append([]byte(nil), b...)
	swapWords(out, v.ValueSize())
	return out, nil
}

func acceptBinary(v vr.VR, value any) (any, error) {
	switch x := value.(type) {
	case nil:
		return []byte(nil), nil
	case []byte:
		return x, nil
	case []uint16:
		out := make([]byte, len(x)*2)
		for i, w := range x {
			binary.LittleEndian.PutUint16(out[i*2:], w)
		}
		return out, nil
	case []int16:
		out := make([]byte, len(x)*2)
		for i, w := range x {
			binary.LittleEndian.PutUint16(out[i*2:], uint16(w))
		}
		return out, nil
	case []uint32:
		out := make([]byte, len(x)*4)
		for i, w := range x {
			binary.LittleEndian.PutUint32(out[i*4:], w)
		}
		return out, nil
	case []float32:
		out := make([]byte, len(x)*4)
		for i, f := range x {
			binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(f))
		}
		return out, nil
	case []float64:
		out := make([]byte, len(x)*8)
		for i, f := range x {
			binary.LittleEndian.PutUint64(out[i*8:], math.Float64bits(f))
		}
		return out, nil
	}
	return nil, fmt.Errorf("%s does not accept %T", v, value)
}

// swapWords reverses the byte order of each size-byte word in place
func swapWords(b []byte, size int) {
	if size < 2 {
		return
	}
	for i := 0; i+size <= len(b); i += size {
		w := b[i : i+size]
		for l, r := 0, size-1; l < r; l, r = l+1, r-1 {
			w[l], w[r] = w[r], w[l]
		}
	}
}

func toInt64s(value any) ([]int64, bool) {
	switch x := value.(type) {
	case int:
		return []int64{int64(x)}, true
	case int64:
		return []int64{x}, true
	case int32:
		return []int64{int64(x)}, true
	case uint16:
		return []int64{int64(x)}, true
	case uint32:
		return []int64{int64(x)}, true
	case tag.Tag:
		return []int64{int64(x)}, true
	case []int:
		return convert(x, func(n int) int64 { return int64(n) }), true
	case []int64:
		return append([]int64(nil), x...), true
	case []int32:
		return convert(x, func(n int32) int64 { return int64(n) }), true
	case []int16:
		return convert(x, func(n int16) int64 { return int64(n) }), true
	case []uint16:
		return convert(x, func(n uint16) int64 { return int64(n) }), true
	case []uint32:
		return convert(x, func(n uint32) int64 { return int64(n) }), true
	case []tag.Tag:
		return convert(x, func(n tag.Tag) int64 { return int64(n) }), true
	}
	return nil, false
}

func toFloat64s(value any) ([]float64, bool) {
	switch x := value.(type) {
	case float64:
		return []float64{x}, true
	case float32:
		return []float64{float64(x)}, true
	case []float64:
		return append([]float64(nil), x...), true
	case []float32:
		return convert(x, func(f float32) float64 { return float64(f) }), true
	}
	if is, ok := toInt64s(value); ok {
		return convert(is, func(n int64) float64 { return float64(n) }), true
	}
	return nil, false
}

func convert[S, D any](in []S, fn func(S) D) []D {
	out := make([]D, len(in))
	for i, v := range in {
		out[i] = fn(v)
	}
	return out
}
