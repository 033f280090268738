package dicom

import (
	"weak"

	"github.com/jpfielding/dicomimg.go/pkg/dicom/tag"
	"github.com/jpfielding/dicomimg.go/pkg/dicom/vr"
	"github.com/jpfielding/dicomimg.go/pkg/errs"
)

// NewSequence adds an empty SQ attribute for t and returns it
func (s *AttributeSet) NewSequence(t tag.Tag) *Attribute {
	a := &Attribute{tag: t, vr: vr.SQ, items: []*AttributeSet{}, decoded: true, offset: -1}
	s.Add(a)
	return a
}

// AddItem appends item to the sequence. An item belongs to at most one
// sequence; adding it to a second one panics.
func (a *Attribute) AddItem(item *AttributeSet) {
	if a.vr != vr.SQ {
		errs.Panic("add item", "%v: %s is not a sequence", a.tag, a.vr)
	}
	if p := item.parent.Value(); p != nil && p != a {
		errs.Panic("add item", "%v: item already belongs to %v", a.tag, p.tag)
	}
	a.appendItem(item)
}

func (a *Attribute) appendItem(item *AttributeSet) {
	item.parent = weak.Make(a)
	a.items = append(a.items, item)
}

// NewItem appends and returns an empty item
func (a *Attribute) NewItem() *AttributeSet {
	item := NewSet()
	a.AddItem(item)
	return item
}

// RemoveItem detaches item i from the sequence
func (a *Attribute) RemoveItem(i int) *AttributeSet {
	if i < 0 || i >= len(a.items) {
		return nil
	}
	item := a.items[i]
	a.items = append(a.items[:i:i], a.items[i+1:]...)
	item.parent = weak.Pointer[Attribute]{}
	return item
}
