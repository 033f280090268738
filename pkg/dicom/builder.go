package dicom

import (
	"github.com/jpfielding/dicomimg.go/pkg/dicom/tag"
	"github.com/jpfielding/dicomimg.go/pkg/dicom/vr"
)

// SetOption configures an AttributeSet during construction
type SetOption func(*AttributeSet) error

// NewAttributeSet creates a set with the given options
func NewAttributeSet(opts ...SetOption) (*AttributeSet, error) {
	s := NewSet()
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// WithValue adds one attribute with an explicit VR
func WithValue(t tag.Tag, v vr.VR, value any) SetOption {
	return func(s *AttributeSet) error {
		_, err := s.Set(t, v, value)
		return err
	}
}

// WithDictionaryValue adds one attribute using the dictionary VR of t
func WithDictionaryValue(t tag.Tag, value any) SetOption {
	return WithValue(t, tag.VROf(t), value)
}

// WithSequence adds a sequence holding items
func WithSequence(t tag.Tag, items ...*AttributeSet) SetOption {
	return func(s *AttributeSet) error {
		sq := s.NewSequence(t)
		for _, item := range items {
			sq.AddItem(item)
		}
		return nil
	}
}

// WithPrivate adds t inside the block reserved by creator
func WithPrivate(creator string, t tag.Tag, v vr.VR, value any) SetOption {
	return func(s *AttributeSet) error {
		_, err := s.SetPrivate(creator, t, v, value)
		return err
	}
}

// WithFragments adds encapsulated pixel data; the first fragment is the
// offset table
func WithFragments(t tag.Tag, frags ...Fragment) SetOption {
	return func(s *AttributeSet) error {
		s.SetFragments(t, frags...)
		return nil
	}
}

// MustSet panics on error; for fixtures and tests
func MustSet(opts ...SetOption) *AttributeSet {
	s, err := NewAttributeSet(opts...)
	if err != nil {
		panic(err)
	}
	return s
}
