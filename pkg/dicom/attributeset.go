package dicom

import (
	"iter"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"weak"

	"github.com/jpfielding/dicomimg.go/pkg/dicom/charset"
	"github.com/jpfielding/dicomimg.go/pkg/dicom/tag"
	"github.com/jpfielding/dicomimg.go/pkg/dicom/vr"
	"github.com/jpfielding/dicomimg.go/pkg/errs"
)

// AttributeSet is a collection of attributes kept in strictly increasing
// unsigned tag order. Sets read from a stream may be populated lazily: the
// byte range is parsed on first observation, exactly once.
//
// Concurrent readers are safe once a set is populated. Mutation requires a
// single writer.
type AttributeSet struct {
	attrs   []*Attribute
	charset *charset.Set
	parent  weak.Pointer[Attribute] // containing sequence attribute
	creator atomic.Pointer[creatorEntry]

	lazy      *lazySource
	populated atomic.Bool
	popMu     sync.Mutex
	err       error
}

// lazySource is the unparsed byte range backing a set
type lazySource struct {
	p      *parser
	pos    int64
	length int64
	enc    Encoding
}

// NewSet returns an empty, populated set
func NewSet() *AttributeSet {
	return &AttributeSet{}
}

// Populate parses the backing range of a lazily read set. It is safe to call
// concurrently and any number of times; parsing happens once. On failure
// the attributes read before the error are kept and the error is retained.
func (s *AttributeSet) Populate() error {
	if s.lazy == nil {
		return nil
	}
	if s.populated.Load() {
		return s.err
	}
	s.popMu.Lock()
	defer s.popMu.Unlock()
	if !s.populated.Load() {
		s.materialize()
	}
	return s.err
}

// materialize must only run under popMu; a second run is a bug
func (s *AttributeSet) materialize() {
	if s.populated.Load() {
		errs.Panic("populate", "attribute set materialized twice")
	}
	l := s.lazy
	if _, err := l.p.readSet(s, l.pos, l.pos+l.length, l.enc, false); err != nil {
		s.err = err
		slog.Error("failed to populate attribute set", "pos", l.pos, "length", l.length, "error", err)
	}
	s.populated.Store(true)
}

func (s *AttributeSet) ensure() {
	if s.lazy != nil && !s.populated.Load() {
		_ = s.Populate()
	}
}

// IsLazy reports whether the set is backed by a not yet parsed range
func (s *AttributeSet) IsLazy() bool {
	return s.lazy != nil && !s.populated.Load()
}

// Err returns the error recorded while populating, if any
func (s *AttributeSet) Err() error {
	s.ensure()
	return s.err
}

func (s *AttributeSet) search(t tag.Tag) (int, bool) {
	return slices.BinarySearchFunc(s.attrs, t, func(a *Attribute, t tag.Tag) int {
		switch {
		case a.tag < t:
			return -1
		case a.tag > t:
			return 1
		}
		return 0
	})
}

// Get returns the attribute for t
func (s *AttributeSet) Get(t tag.Tag) (*Attribute, bool) {
	s.ensure()
	i, ok := s.search(t)
	if !ok {
		return nil, false
	}
	return s.attrs[i], true
}

// Contains reports whether t is present
func (s *AttributeSet) Contains(t tag.Tag) bool {
	_, ok := s.Get(t)
	return ok
}

// ContainsValue reports whether t is present with a non empty value
func (s *AttributeSet) ContainsValue(t tag.Tag) bool {
	a, ok := s.Get(t)
	return ok && !a.IsEmpty()
}

// Add inserts a, replacing and returning any attribute with the same tag.
// A private creator slot only accepts an LO value.
func (s *AttributeSet) Add(a *Attribute) *Attribute {
	if a.tag.IsPrivateCreator() && a.vr != vr.LO {
		errs.Panic("add", "%v: private creator must be LO, got %s", a.tag, a.vr)
	}
	s.ensure()
	return s.add(a)
}

// add skips population so the parser can fill a set it is populating
func (s *AttributeSet) add(a *Attribute) *Attribute {
	a.owner = weak.Make(s)
	if a.tag == tag.SpecificCharacterSet {
		s.charset = charset.Parse(a.Strings()...)
	}
	if a.tag.IsPrivateCreator() {
		s.creator.Store(nil)
	}
	n := len(s.attrs)
	if n == 0 || a.tag > s.attrs[n-1].tag {
		s.attrs = append(s.attrs, a)
		return nil
	}
	i, found := s.search(a.tag)
	if found {
		old := s.attrs[i]
		s.attrs[i] = a
		return old
	}
	s.attrs = slices.Insert(s.attrs, i, a)
	return nil
}

// Set builds an attribute from value and adds it
func (s *AttributeSet) Set(t tag.Tag, v vr.VR, value any) (*Attribute, error) {
	a, err := NewAttribute(t, v, value)
	if err != nil {
		return nil, err
	}
	s.Add(a)
	return a, nil
}

// SetString sets a text value
func (s *AttributeSet) SetString(t tag.Tag, v vr.VR, values ...string) *Attribute {
	a := &Attribute{tag: t, vr: v, value: values, decoded: true, offset: -1}
	s.Add(a)
	return a
}

// SetInts sets integer values (US, SS, UL, SL, AT, IS)
func (s *AttributeSet) SetInts(t tag.Tag, v vr.VR, values ...int) *Attribute {
	a, err := s.Set(t, v, values)
	if err != nil {
		errs.Panic("set ints", "%v", err)
	}
	return a
}

// SetFloats sets float values (FL, FD, DS)
func (s *AttributeSet) SetFloats(t tag.Tag, v vr.VR, values ...float64) *Attribute {
	a, err := s.Set(t, v, values)
	if err != nil {
		errs.Panic("set floats", "%v", err)
	}
	return a
}

// SetBytes sets a binary value given in little endian order
func (s *AttributeSet) SetBytes(t tag.Tag, v vr.VR, b []byte) *Attribute {
	a := &Attribute{tag: t, vr: v, value: b, decoded: true, offset: -1}
	s.Add(a)
	return a
}

// SetNull sets an attribute with an empty value
func (s *AttributeSet) SetNull(t tag.Tag, v vr.VR) *Attribute {
	a := &Attribute{tag: t, vr: v, decoded: true, offset: -1}
	s.Add(a)
	return a
}

// Remove deletes and returns the attribute for t
func (s *AttributeSet) Remove(t tag.Tag) *Attribute {
	s.ensure()
	i, ok := s.search(t)
	if !ok {
		return nil
	}
	old := s.attrs[i]
	s.attrs = slices.Delete(s.attrs, i, i+1)
	if t == tag.SpecificCharacterSet {
		s.charset = nil
	}
	if t.IsPrivateCreator() {
		s.creator.Store(nil)
	}
	return old
}

// Len returns the number of attributes
func (s *AttributeSet) Len() int {
	s.ensure()
	return len(s.attrs)
}

// IsEmpty returns true when the set has no attributes
func (s *AttributeSet) IsEmpty() bool { return s.Len() == 0 }

// All iterates the attributes in tag order
func (s *AttributeSet) All() iter.Seq[*Attribute] {
	s.ensure()
	return func(yield func(*Attribute) bool) {
		for _, a := range s.attrs {
			if !yield(a) {
				return
			}
		}
	}
}

// Range iterates the attributes with tags in [from, to]
func (s *AttributeSet) Range(from, to tag.Tag) iter.Seq[*Attribute] {
	s.ensure()
	return func(yield func(*Attribute) bool) {
		i, _ := s.search(from)
		for ; i < len(s.attrs) && s.attrs[i].tag <= to; i++ {
			if !yield(s.attrs[i]) {
				return
			}
		}
	}
}

// Tags returns the tags in order
func (s *AttributeSet) Tags() []tag.Tag {
	s.ensure()
	out := make([]tag.Tag, len(s.attrs))
	for i, a := range s.attrs {
		out[i] = a.tag
	}
	return out
}

// CharacterSet returns the effective Specific Character Set, inherited from
// enclosing sets when the set has none of its own
func (s *AttributeSet) CharacterSet() *charset.Set {
	if s.charset != nil {
		return s.charset
	}
	if p := s.Parent(); p != nil {
		return p.CharacterSet()
	}
	return charset.Default
}

// ParentAttribute returns the sequence attribute holding this item
func (s *AttributeSet) ParentAttribute() *Attribute {
	return s.parent.Value()
}

// Parent returns the set that contains the sequence holding this item
func (s *AttributeSet) Parent() *AttributeSet {
	if a := s.parent.Value(); a != nil {
		return a.owner.Value()
	}
	return nil
}

// NestingLevel is 0 for a root set and grows by one per enclosing sequence
func (s *AttributeSet) NestingLevel() int {
	n := 0
	for p := s.Parent(); p != nil; p = p.Parent() {
		n++
	}
	return n
}

// GetString returns value 0 of t as text
func (s *AttributeSet) GetString(t tag.Tag) (string, bool) {
	if a, ok := s.Get(t); ok {
		return a.StringValue(0)
	}
	return "", false
}

// GetStringOr returns value 0 of t or def
func (s *AttributeSet) GetStringOr(t tag.Tag, def string) string {
	if v, ok := s.GetString(t); ok {
		return v
	}
	return def
}

// GetStrings returns all values of t as text
func (s *AttributeSet) GetStrings(t tag.Tag) []string {
	if a, ok := s.Get(t); ok {
		return a.Strings()
	}
	return nil
}

// GetInt returns value 0 of t as an integer
func (s *AttributeSet) GetInt(t tag.Tag) (int, bool) {
	if a, ok := s.Get(t); ok {
		v, ok := a.IntValue(0)
		return int(v), ok
	}
	return 0, false
}

// GetIntOr returns value 0 of t or def
func (s *AttributeSet) GetIntOr(t tag.Tag, def int) int {
	if v, ok := s.GetInt(t); ok {
		return v
	}
	return def
}

// GetInts returns all values of t as integers
func (s *AttributeSet) GetInts(t tag.Tag) []int {
	if a, ok := s.Get(t); ok {
		return convert(a.Ints(), func(n int64) int { return int(n) })
	}
	return nil
}

// GetFloat returns value 0 of t as a float
func (s *AttributeSet) GetFloat(t tag.Tag) (float64, bool) {
	if a, ok := s.Get(t); ok {
		return a.FloatValue(0)
	}
	return 0, false
}

// GetFloatOr returns value 0 of t or def
func (s *AttributeSet) GetFloatOr(t tag.Tag, def float64) float64 {
	if v, ok := s.GetFloat(t); ok {
		return v
	}
	return def
}

// GetFloats returns all values of t as floats
func (s *AttributeSet) GetFloats(t tag.Tag) []float64 {
	if a, ok := s.Get(t); ok {
		return a.Floats()
	}
	return nil
}

// GetBytes returns the little endian value bytes of t
func (s *AttributeSet) GetBytes(t tag.Tag) ([]byte, bool) {
	if a, ok := s.Get(t); ok {
		b := a.Bytes()
		return b, b != nil
	}
	return nil, false
}

// GetItem returns item i of sequence t
func (s *AttributeSet) GetItem(t tag.Tag, i int) (*AttributeSet, bool) {
	if a, ok := s.Get(t); ok {
		return a.Item(i)
	}
	return nil, false
}

// Lookup walks up the enclosing sets until one holds t
func (s *AttributeSet) Lookup(t tag.Tag) (*Attribute, bool) {
	for p := s; p != nil; p = p.Parent() {
		if a, ok := p.Get(t); ok {
			return a, true
		}
	}
	return nil, false
}
