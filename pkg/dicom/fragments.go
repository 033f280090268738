package dicom

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/jpfielding/dicomimg.go/pkg/dicom/tag"
	"github.com/jpfielding/dicomimg.go/pkg/dicom/vr"
	"github.com/jpfielding/dicomimg.go/pkg/errs"
	"github.com/jpfielding/dicomimg.go/pkg/util"
)

// Fragment is one item of encapsulated pixel data. Parsed fragments are a
// byte range in the source; fragments built in memory carry their bytes.
// Fragment 0 is the Basic Offset Table.
type Fragment struct {
	Offset int64 `json:"offset"`
	Length int64 `json:"length"`
	data   []byte
}

// NewFragment wraps in-memory bytes as a fragment
func NewFragment(data []byte) Fragment {
	return Fragment{Offset: -1, Length: int64(len(data)), data: data}
}

// Fragments returns the encapsulated items, nil for native values
func (a *Attribute) Fragments() []Fragment { return a.fragments }

// IsEncapsulated reports whether the value is a fragment list
func (a *Attribute) IsEncapsulated() bool { return a.fragments != nil }

// FragmentBytes reads fragment i
func (a *Attribute) FragmentBytes(i int) ([]byte, error) {
	sr, err := a.fragmentSource(i)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, sr.Size())
	if _, err := io.ReadFull(sr, buf); err != nil {
		return nil, errs.Format("fragment", "%v[%d]: %w", a.tag, i, err)
	}
	return buf, nil
}

// FragmentReader returns a reader positioned at the start of fragment i
func (a *Attribute) FragmentReader(i int) (*io.SectionReader, error) {
	return a.fragmentSource(i)
}

// FrameStarts returns the indexes of the fragments that begin a frame. scan
// runs on the first call only; every later caller gets the same result.
func (a *Attribute) FrameStarts(scan func(*Attribute) []int) []int {
	a.startsMu.Lock()
	defer a.startsMu.Unlock()
	if a.starts == nil {
		a.starts = scan(a)
		if a.starts == nil {
			a.starts = []int{}
		}
	}
	return a.starts
}

// ValueRange returns length bytes at off within a native value, in little
// endian order. A deferred value is read from its source without loading
// the rest of it.
func (a *Attribute) ValueRange(off, length int64) ([]byte, error) {
	if off < 0 || length < 0 {
		return nil, errs.Precondition("value range", "%v: invalid range %d+%d", a.tag, off, length)
	}
	if a.IsEncapsulated() {
		return nil, errs.Precondition("value range", "%v: value is encapsulated", a.tag)
	}
	a.mu.Lock()
	d, src := a.deferred, a.source
	a.mu.Unlock()
	if d != nil && src != nil {
		if off+length > d.length {
			return nil, errs.Format("value range", "%v: %d+%d beyond %d bytes", a.tag, off, length, d.length)
		}
		buf := make([]byte, length)
		if _, err := src.ReadAt(buf, d.pos+off); err != nil && err != io.EOF {
			return nil, errs.Format("value range", "%v at %d: %w", a.tag, d.pos+off, err)
		}
		if a.bigEndian {
			swapWords(buf, a.vr.ValueSize())
		}
		return buf, nil
	}
	b := a.Bytes()
	if off+length > int64(len(b)) {
		return nil, errs.Format("value range", "%v: %d+%d beyond %d bytes", a.tag, off, length, len(b))
	}
	return b[off : off+length : off+length], nil
}

// SetFragments stores an encapsulated value (OB) built from in-memory
// fragments; frags[0] is the offset table and may be empty
func (s *AttributeSet) SetFragments(t tag.Tag, frags ...Fragment) *Attribute {
	a := &Attribute{tag: t, vr: vr.OB, fragments: append([]Fragment{}, frags...), decoded: true, offset: -1, undefined: true}
	s.Add(a)
	return a
}

// BulkData references a value kept outside the attribute set
type BulkData struct {
	URI  string `json:"uri"`
	UUID string `json:"uuid,omitempty"`
}

// NewBulkData references length bytes at offset in the resource at uri
func NewBulkData(uri string, offset, length int64) BulkData {
	u := fmt.Sprintf("%s#offset=%d&length=%d", uri, offset, length)
	return BulkData{URI: u, UUID: util.HashUUID(u)}
}

// Range splits the URI into the resource path and the byte range
func (b BulkData) Range() (path string, offset, length int64, err error) {
	base, frag, _ := strings.Cut(b.URI, "#")
	u, err := url.Parse(base)
	if err != nil {
		return "", 0, 0, errs.Format("bulk data", "invalid uri %q: %w", b.URI, err)
	}
	path = base
	if u.Scheme == "file" {
		path = u.Path
	}
	length = -1
	q, err := url.ParseQuery(frag)
	if err != nil {
		return "", 0, 0, errs.Format("bulk data", "invalid range %q: %w", frag, err)
	}
	if v := q.Get("offset"); v != "" {
		if offset, err = strconv.ParseInt(v, 10, 64); err != nil {
			return "", 0, 0, errs.Format("bulk data", "invalid offset %q: %w", v, err)
		}
	}
	if v := q.Get("length"); v != "" {
		if length, err = strconv.ParseInt(v, 10, 64); err != nil {
			return "", 0, 0, errs.Format("bulk data", "invalid length %q: %w", v, err)
		}
	}
	return path, offset, length, nil
}

// BulkDataLoader resolves a bulk data reference to the encoded bytes
type BulkDataLoader func(BulkData) ([]byte, error)

// LoadFileBulkData is the default loader for file paths and file:// URIs
func LoadFileBulkData(b BulkData) ([]byte, error) {
	path, offset, length, err := b.Range()
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open bulk data: %w", err)
	}
	defer f.Close()
	if length < 0 {
		st, err := f.Stat()
		if err != nil {
			return nil, err
		}
		length = st.Size() - offset
	}
	buf := make([]byte, length)
	if _, err := f.ReadAt(buf, offset); err != nil && err != io.EOF {
		return nil, errs.Format("bulk data", "%s: %w", b.URI, err)
	}
	return buf, nil
}

// SetBulkData stores a reference in place of the value of t
func (s *AttributeSet) SetBulkData(t tag.Tag, v vr.VR, b BulkData) *Attribute {
	a := &Attribute{tag: t, vr: v, bulk: &b, deferred: &span{}, offset: -1}
	s.Add(a)
	return a
}
