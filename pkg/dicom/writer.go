package dicom

import (
	"bytes"
	"compress/flate"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/jpfielding/dicomimg.go/pkg/dicom/charset"
	"github.com/jpfielding/dicomimg.go/pkg/dicom/tag"
	"github.com/jpfielding/dicomimg.go/pkg/dicom/transfer"
	"github.com/jpfielding/dicomimg.go/pkg/dicom/vr"
	"github.com/jpfielding/dicomimg.go/pkg/errs"
)

// WriteOption configures encoding
type WriteOption func(*writeConfig)

type writeConfig struct {
	undefinedSeq  bool
	undefinedItem bool
	loader        BulkDataLoader
}

func defaultWriteConfig() writeConfig {
	return writeConfig{undefinedSeq: true, loader: LoadFileBulkData}
}

// WithUndefinedSequenceLength writes sequences with a delimiter (default)
// instead of a computed length
func WithUndefinedSequenceLength(undefined bool) WriteOption {
	return func(c *writeConfig) { c.undefinedSeq = undefined }
}

// WithUndefinedItemLength writes items with an item delimiter
func WithUndefinedItemLength(undefined bool) WriteOption {
	return func(c *writeConfig) { c.undefinedItem = undefined }
}

// WithBulkDataLoader resolves bulk data references while writing
func WithBulkDataLoader(l BulkDataLoader) WriteOption {
	return func(c *writeConfig) { c.loader = l }
}

// CountingWriter tracks bytes written through it
type CountingWriter struct {
	Count  atomic.Int64
	Writer io.Writer
}

func (cw *CountingWriter) Write(p []byte) (int, error) {
	n, err := cw.Writer.Write(p)
	cw.Count.Add(int64(n))
	return n, err
}

// WriteFile writes a Part 10 file: preamble, DICM, file meta and data set
// in the transfer syntax named by the meta group
func WriteFile(path string, meta, ds *AttributeSet, opts ...WriteOption) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return WriteFileTo(f, meta, ds, opts...)
}

// WriteFileTo is WriteFile for an arbitrary writer
func WriteFileTo(w io.Writer, meta, ds *AttributeSet, opts ...WriteOption) (int64, error) {
	cw := &CountingWriter{Writer: w}
	if _, err := cw.Write(make([]byte, 128)); err != nil {
		return cw.Count.Load(), err
	}
	if _, err := cw.Write([]byte("DICM")); err != nil {
		return cw.Count.Load(), err
	}

	e := newEncoder(opts)
	// group length covers the meta group without itself
	var body bytes.Buffer
	for a := range meta.All() {
		if a.tag == tag.FileMetaInformationGroupLength {
			continue
		}
		if err := e.writeAttribute(&body, a, ExplicitVRLittleEndian, meta.CharacterSet()); err != nil {
			return cw.Count.Load(), err
		}
	}
	gl, _ := NewAttribute(tag.FileMetaInformationGroupLength, vr.UL, uint32(body.Len()))
	if err := e.writeAttribute(cw, gl, ExplicitVRLittleEndian, charset.Default); err != nil {
		return cw.Count.Load(), err
	}
	if _, err := cw.Write(body.Bytes()); err != nil {
		return cw.Count.Load(), err
	}

	ts := transfer.FromUID(meta.GetStringOr(tag.TransferSyntaxUID, string(transfer.ExplicitVRLittleEndian)))
	if ts.IsDeflated() {
		fw, err := flate.NewWriter(cw, flate.DefaultCompression)
		if err != nil {
			return cw.Count.Load(), err
		}
		if err := e.writeSet(fw, ds, ExplicitVRLittleEndian); err != nil {
			return cw.Count.Load(), err
		}
		err = fw.Close()
		return cw.Count.Load(), err
	}
	err := e.writeSet(cw, ds, EncodingOf(ts))
	return cw.Count.Load(), err
}

// Write encodes a bare data set
func Write(w io.Writer, ds *AttributeSet, enc Encoding, opts ...WriteOption) (int64, error) {
	cw := &CountingWriter{Writer: w}
	err := newEncoder(opts).writeSet(cw, ds, enc)
	return cw.Count.Load(), err
}

type encoder struct {
	cfg writeConfig
}

func newEncoder(opts []WriteOption) *encoder {
	cfg := defaultWriteConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &encoder{cfg: cfg}
}

func (e *encoder) writeSet(w io.Writer, s *AttributeSet, enc Encoding) error {
	cs := s.CharacterSet()
	for a := range s.All() {
		if err := e.writeAttribute(w, a, enc, cs); err != nil {
			return fmt.Errorf("failed to write element %v: %w", a.tag, err)
		}
	}
	return nil
}

func (e *encoder) writeAttribute(w io.Writer, a *Attribute, enc Encoding, cs *charset.Set) error {
	switch {
	case a.vr == vr.SQ:
		return e.writeSequence(w, a, enc)
	case a.fragments != nil:
		return e.writeFragments(w, a, enc)
	}
	val, err := a.encodedValue(enc.order(), cs, e.cfg.loader)
	if err != nil {
		return err
	}
	if len(val)%2 == 1 {
		val = append(val[:len(val):len(val)], a.vr.PaddingByte())
	}
	if err := writeHeader(w, a.tag, a.vr, uint32(len(val)), enc); err != nil {
		return err
	}
	_, err = w.Write(val)
	return err
}

func (e *encoder) writeSequence(w io.Writer, a *Attribute, enc Encoding) error {
	if e.cfg.undefinedSeq {
		if err := writeHeader(w, a.tag, vr.SQ, undefinedLength, enc); err != nil {
			return err
		}
		for _, item := range a.items {
			if err := e.writeItem(w, item, enc); err != nil {
				return err
			}
		}
		return writeHeader(w, tag.SequenceDelimitationItem, vr.NONE, 0, enc)
	}
	var buf bytes.Buffer
	for _, item := range a.items {
		if err := e.writeItem(&buf, item, enc); err != nil {
			return err
		}
	}
	if err := writeHeader(w, a.tag, vr.SQ, uint32(buf.Len()), enc); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func (e *encoder) writeItem(w io.Writer, item *AttributeSet, enc Encoding) error {
	if e.cfg.undefinedItem {
		if err := writeHeader(w, tag.Item, vr.NONE, undefinedLength, enc); err != nil {
			return err
		}
		if err := e.writeSet(w, item, enc); err != nil {
			return err
		}
		return writeHeader(w, tag.ItemDelimitationItem, vr.NONE, 0, enc)
	}
	var buf bytes.Buffer
	if err := e.writeSet(&buf, item, enc); err != nil {
		return err
	}
	if err := writeHeader(w, tag.Item, vr.NONE, uint32(buf.Len()), enc); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func (e *encoder) writeFragments(w io.Writer, a *Attribute, enc Encoding) error {
	v := a.vr
	if v != vr.OW {
		v = vr.OB
	}
	if err := writeHeader(w, a.tag, v, undefinedLength, enc); err != nil {
		return err
	}
	for i := range a.fragments {
		data, err := a.FragmentBytes(i)
		if err != nil {
			return err
		}
		if len(data)%2 == 1 {
			data = append(data[:len(data):len(data)], 0)
		}
		if err := writeHeader(w, tag.Item, vr.NONE, uint32(len(data)), enc); err != nil {
			return err
		}
		if _, err := w.Write(data); err != nil {
			return err
		}
	}
	return writeHeader(w, tag.SequenceDelimitationItem, vr.NONE, 0, enc)
}

// writeHeader writes tag, VR (explicit encodings, not for delimiters) and length
func writeHeader(w io.Writer, t tag.Tag, v vr.VR, length uint32, enc Encoding) error {
	order := enc.order()
	var b [12]byte
	order.PutUint16(b[0:], t.Group())
	order.PutUint16(b[2:], t.Element())
	n := 8
	switch {
	case !enc.ExplicitVR || t.Group() == 0xFFFE:
		order.PutUint32(b[4:], length)
	case v.LongLength():
		copy(b[4:], v)
		order.PutUint32(b[8:], length)
		n = 12
	default:
		if length > 0xFFFF {
			return errs.Precondition("write header", "%v: %d bytes do not fit a %s length field", t, length, v)
		}
		copy(b[4:], v)
		order.PutUint16(b[6:], uint16(length))
	}
	_, err := w.Write(b[:n])
	return err
}
