package dicom

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"sync"
	"weak"

	"github.com/jpfielding/dicomimg.go/pkg/dicom/charset"
	"github.com/jpfielding/dicomimg.go/pkg/dicom/tag"
	"github.com/jpfielding/dicomimg.go/pkg/dicom/vr"
	"github.com/jpfielding/dicomimg.go/pkg/errs"
)

const undefinedLength = 0xFFFFFFFF

// Attribute is one (tag, VR, value) triple. Tag and VR never change after
// construction; replacing a value means adding a new Attribute to the set.
type Attribute struct {
	tag tag.Tag
	vr  vr.VR

	mu        sync.Mutex
	raw       []byte // encoded, not yet decoded
	bigEndian bool
	value     any // canonical decoded value
	decoded   bool

	items     []*AttributeSet
	fragments []Fragment
	bulk      *BulkData
	deferred  *span
	source    io.ReaderAt
	offset    int64 // stream position of the value, -1 when built in memory
	undefined bool  // read with undefined length

	startsMu sync.Mutex
	starts   []int // fragments that begin a frame, nil until scanned

	owner weak.Pointer[AttributeSet]
}

// span is a value range left in the backing source
type span struct {
	pos, length int64
}

// NewAttribute builds an attribute through the codec of v's Kind.
// Sequences are built with AttributeSet.NewSequence.
func NewAttribute(t tag.Tag, v vr.VR, value any) (*Attribute, error) {
	c, ok := codecFor(v)
	if !ok {
		return nil, errs.Precondition("new attribute", "%v: VR %q cannot hold a value", t, v)
	}
	canon, err := c.accept(v, value)
	if err != nil {
		return nil, errs.Precondition("new attribute", "%v: %w", t, err)
	}
	return &Attribute{tag: t, vr: v, value: canon, decoded: true, offset: -1}, nil
}

// Tag returns the attribute key
func (a *Attribute) Tag() tag.Tag { return a.tag }

// VR returns the value representation
func (a *Attribute) VR() vr.VR { return a.vr }

// ValueOffset returns the position of the value in the source stream, or -1
func (a *Attribute) ValueOffset() int64 { return a.offset }

// UndefinedLength reports whether the value was encoded with undefined length
func (a *Attribute) UndefinedLength() bool { return a.undefined }

// Owner returns the set holding this attribute, if it is still reachable
func (a *Attribute) Owner() *AttributeSet { return a.owner.Value() }

func (a *Attribute) charset() *charset.Set {
	if s := a.owner.Value(); s != nil {
		return s.CharacterSet()
	}
	return charset.Default
}

func (a *Attribute) order() binary.ByteOrder {
	if a.bigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// decodedValue returns the canonical value, decoding (and loading a
// deferred range) on first use
func (a *Attribute) decodedValue() any {
	var cs *charset.Set
	if a.vr.UsesCharset() {
		cs = a.charset()
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.decoded {
		return a.value
	}
	raw := a.raw
	if a.deferred != nil {
		var err error
		if raw, err = a.load(); err != nil {
			slog.Error("failed to load deferred value", "tag", a.tag, "error", err)
			return nil
		}
	}
	if c, ok := codecFor(a.vr); ok {
		a.value = c.decode(a.vr, raw, a.order(), cs)
	}
	a.decoded = true
	a.raw = nil
	a.deferred = nil
	return a.value
}

func (a *Attribute) load() ([]byte, error) {
	if a.source == nil {
		if a.bulk != nil {
			return LoadFileBulkData(*a.bulk)
		}
		return nil, errs.Precondition("load", "%v: deferred value without source", a.tag)
	}
	buf := make([]byte, a.deferred.length)
	if _, err := a.source.ReadAt(buf, a.deferred.pos); err != nil && err != io.EOF {
		return nil, errs.Format("load", "%v at %d: %w", a.tag, a.deferred.pos, err)
	}
	return buf, nil
}

// IsDeferred reports whether the value is still in the source stream
func (a *Attribute) IsDeferred() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.deferred != nil
}

// PurgeEncodedValue decodes the value and releases the encoded bytes
func (a *Attribute) PurgeEncodedValue() {
	a.decodedValue()
}

// Len returns the value multiplicity (items for sequences, fragments for
// encapsulated data, bytes for binary values)
func (a *Attribute) Len() int {
	switch {
	case a.vr == vr.SQ:
		return len(a.items)
	case a.fragments != nil:
		return len(a.fragments)
	}
	switch v := a.decodedValue().(type) {
	case []string:
		return len(v)
	case []int64:
		return len(v)
	case []float64:
		return len(v)
	case []byte:
		return len(v)
	}
	return 0
}

// IsEmpty returns true when the attribute carries no value
func (a *Attribute) IsEmpty() bool {
	return a.Len() == 0 && a.bulk == nil
}

// Strings returns the values as text
func (a *Attribute) Strings() []string {
	switch v := a.decodedValue().(type) {
	case []string:
		return v
	case []int64:
		return convert(v, func(n int64) string { return strconv.FormatInt(n, 10) })
	case []float64:
		return convert(v, func(f float64) string { return strconv.FormatFloat(f, 'g', -1, 64) })
	}
	return nil
}

// StringValue returns value i as text
func (a *Attribute) StringValue(i int) (string, bool) {
	ss := a.Strings()
	if i < 0 || i >= len(ss) {
		return "", false
	}
	return ss[i], true
}

// Ints returns the values as integers. Integer strings are parsed; a value
// that fails to parse makes the whole attribute unreadable as integers.
func (a *Attribute) Ints() []int64 {
	switch v := a.decodedValue().(type) {
	case []int64:
		return v
	case []float64:
		return convert(v, func(f float64) int64 { return int64(f) })
	case []string:
		out := make([]int64, 0, len(v))
		for _, s := range v {
			if s == "" {
				continue
			}
			n, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				f, ferr := strconv.ParseFloat(s, 64)
				if ferr != nil {
					slog.Debug("invalid integer value", "tag", a.tag, "value", s)
					return nil
				}
				n = int64(f)
			}
			out = append(out, n)
		}
		return out
	}
	return nil
}

// IntValue returns value i as an integer
func (a *Attribute) IntValue(i int) (int64, bool) {
	is := a.Ints()
	if i < 0 || i >= len(is) {
		return 0, false
	}
	return is[i], true
}

// Floats returns the values as floats, parsing decimal strings
func (a *Attribute) Floats() []float64 {
	switch v := a.decodedValue().(type) {
	case []float64:
		return v
	case []int64:
		return convert(v, func(n int64) float64 { return float64(n) })
	case []string:
		out := make([]float64, 0, len(v))
		for _, s := range v {
			if s == "" {
				continue
			}
			f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil || math.IsNaN(f) {
				slog.Debug("invalid decimal value", "tag", a.tag, "value", s)
				return nil
			}
			out = append(out, f)
		}
		return out
	}
	return nil
}

// FloatValue returns value i as a float
func (a *Attribute) FloatValue(i int) (float64, bool) {
	fs := a.Floats()
	if i < 0 || i >= len(fs) {
		return 0, false
	}
	return fs[i], true
}

// Bytes returns the value in little endian encoding. Numeric VRs are
// encoded on the fly so US LUT data and OW LUT data read the same way.
func (a *Attribute) Bytes() []byte {
	v := a.decodedValue()
	if b, ok := v.([]byte); ok {
		return b
	}
	c, ok := codecFor(a.vr)
	if !ok {
		return nil
	}
	b, err := c.encode(a.vr, v, binary.LittleEndian, a.charset())
	if err != nil {
		return nil
	}
	return b
}

// Items returns the items of a sequence
func (a *Attribute) Items() []*AttributeSet { return a.items }

// Item returns item i of a sequence
func (a *Attribute) Item(i int) (*AttributeSet, bool) {
	if i < 0 || i >= len(a.items) {
		return nil, false
	}
	return a.items[i], true
}

// BulkData returns the bulk data reference standing in for the value
func (a *Attribute) BulkData() (BulkData, bool) {
	if a.bulk == nil {
		return BulkData{}, false
	}
	return *a.bulk, true
}

// encodedValue returns the value bytes in the given order, unpadded
func (a *Attribute) encodedValue(order binary.ByteOrder, cs *charset.Set, loader BulkDataLoader) ([]byte, error) {
	if a.bulk != nil && a.IsDeferred() && loader != nil {
		return loader(*a.bulk)
	}
	c, ok := codecFor(a.vr)
	if !ok {
		return nil, errs.Precondition("encode", "%v: VR %q has no value codec", a.tag, a.vr)
	}
	return c.encode(a.vr, a.decodedValue(), order, cs)
}

// String renders a one line summary: (GGGG,EEEE) VR Keyword: value
func (a *Attribute) String() string {
	name := a.tag.Keyword()
	if name != "" {
		name = " " + name
	}
	return fmt.Sprintf("%s %s%s: %s", a.tag, a.vr, name, a.valueSummary())
}

func (a *Attribute) valueSummary() string {
	switch {
	case a.vr == vr.SQ:
		return fmt.Sprintf("Sequence (%d items)", len(a.items))
	case a.fragments != nil:
		return fmt.Sprintf("Encapsulated (%d fragments)", len(a.fragments))
	case a.bulk != nil && a.IsDeferred():
		return "BulkData " + a.bulk.URI
	case a.IsDeferred():
		return fmt.Sprintf("Deferred (%d bytes at %d)", a.deferred.length, a.deferred.pos)
	}
	switch v := a.decodedValue().(type) {
	case []byte:
		if len(v) > 20 {
			return fmt.Sprintf("Binary Data (%d bytes)", len(v))
		}
		return fmt.Sprintf("%v", v)
	case []int64:
		if len(v) > 10 {
			return fmt.Sprintf("Array of %d values", len(v))
		}
		return fmt.Sprintf("%v", v)
	case []float64:
		if len(v) > 10 {
			return fmt.Sprintf("Array of %d values", len(v))
		}
		return fmt.Sprintf("%v", v)
	case []string:
		return strings.Join(v, `\`)
	}
	return ""
}

// fragmentSource returns a reader over fragment i
func (a *Attribute) fragmentSource(i int) (*io.SectionReader, error) {
	if i < 0 || i >= len(a.fragments) {
		return nil, errs.Precondition("fragment", "%v: index %d outside [0,%d)", a.tag, i, len(a.fragments))
	}
	f := a.fragments[i]
	if f.Offset < 0 {
		return io.NewSectionReader(bytes.NewReader(f.data), 0, int64(len(f.data))), nil
	}
	if a.source == nil {
		return nil, errs.Precondition("fragment", "%v: fragment %d has no source", a.tag, i)
	}
	return io.NewSectionReader(a.source, f.Offset, f.Length), nil
}
