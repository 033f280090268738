package dicom

import (
	"github.com/jpfielding/dicomimg.go/pkg/dicom/tag"
	"github.com/jpfielding/dicomimg.go/pkg/dicom/vr"
	"github.com/jpfielding/dicomimg.go/pkg/errs"
)

// creatorEntry remembers the last resolved private creator slot
type creatorEntry struct {
	tag   tag.Tag
	value string
}

// creatorTag finds the (gggg,00xx) slot holding creator. With reserve it
// claims the slot after the highest one in use, starting at (gggg,0010).
func (s *AttributeSet) creatorTag(creator string, group uint16, reserve bool) (tag.Tag, bool, error) {
	if !tag.New(group, 0x0010).IsPrivate() {
		return 0, false, errs.Precondition("private creator", "group %04X is not private", group)
	}
	if e := s.creator.Load(); e != nil && e.value == creator && e.tag.Group() == group {
		return e.tag, true, nil
	}
	s.ensure()
	block := uint32(group) << 16
	last := tag.New(group, 0x000F)
	i, _ := s.search(tag.New(group, 0x0010))
	for ; i < len(s.attrs) && uint32(s.attrs[i].tag)&0xFFFFFF00 == block; i++ {
		a := s.attrs[i]
		last = a.tag
		if v, ok := a.StringValue(0); ok && v == creator {
			s.creator.Store(&creatorEntry{tag: a.tag, value: creator})
			return a.tag, true, nil
		}
	}
	if !reserve {
		return 0, false, nil
	}
	if last.Element() >= 0x00FF {
		return 0, false, errs.Precondition("private creator", "no free creator slot in group %04X for %q", group, creator)
	}
	ct := last + 1
	s.add(&Attribute{tag: ct, vr: vr.LO, value: []string{creator}, decoded: true, offset: -1})
	s.creator.Store(&creatorEntry{tag: ct, value: creator})
	return ct, true, nil
}

// PrivateCreatorTag returns the slot registered for creator in group
func (s *AttributeSet) PrivateCreatorTag(creator string, group uint16) (tag.Tag, bool) {
	t, ok, err := s.creatorTag(creator, group, false)
	return t, ok && err == nil
}

// ReservePrivate returns the slot for creator in group, claiming one if needed
func (s *AttributeSet) ReservePrivate(creator string, group uint16) (tag.Tag, error) {
	t, _, err := s.creatorTag(creator, group, true)
	return t, err
}

// GetPrivate resolves t inside the block reserved by creator. An empty
// creator or a public group reads t as is.
func (s *AttributeSet) GetPrivate(creator string, t tag.Tag) (*Attribute, bool) {
	if creator == "" || !t.IsPrivate() {
		return s.Get(t)
	}
	ct, ok, err := s.creatorTag(creator, t.Group(), false)
	if err != nil || !ok {
		return nil, false
	}
	return s.Get(tag.ToPrivate(ct, t))
}

// SetPrivate stores value at t inside the block of creator, reserving it.
// Public tags are stored as is.
func (s *AttributeSet) SetPrivate(creator string, t tag.Tag, v vr.VR, value any) (*Attribute, error) {
	if creator == "" || !t.IsPrivate() {
		return s.Set(t, v, value)
	}
	ct, _, err := s.creatorTag(creator, t.Group(), true)
	if err != nil {
		return nil, err
	}
	return s.Set(tag.ToPrivate(ct, t), v, value)
}

// PrivateCreatorOf returns the creator that owns the block of private tag t
func (s *AttributeSet) PrivateCreatorOf(t tag.Tag) (string, bool) {
	if !t.IsPrivate() || t.Element() < 0x1000 {
		return "", false
	}
	return s.GetString(tag.CreatorOf(t))
}
