package dicom

import (
	"bytes"
	"compress/flate"
	"encoding/binary"
	"io"
	"log/slog"
	"os"

	"github.com/jpfielding/dicomimg.go/pkg/dicom/tag"
	"github.com/jpfielding/dicomimg.go/pkg/dicom/transfer"
	"github.com/jpfielding/dicomimg.go/pkg/dicom/vr"
	"github.com/jpfielding/dicomimg.go/pkg/errs"
)

// Encoding is the byte level layout of a data set
type Encoding struct {
	ExplicitVR bool
	BigEndian  bool
}

// The three encodings a data set can use
var (
	ImplicitVRLittleEndian = Encoding{ExplicitVR: false, BigEndian: false}
	ExplicitVRLittleEndian = Encoding{ExplicitVR: true, BigEndian: false}
	ExplicitVRBigEndian    = Encoding{ExplicitVR: true, BigEndian: true}
)

// EncodingOf returns the data set encoding of a transfer syntax
func EncodingOf(ts transfer.Syntax) Encoding {
	switch {
	case ts == transfer.ImplicitVRLittleEndian:
		return ImplicitVRLittleEndian
	case ts.IsBigEndian():
		return ExplicitVRBigEndian
	}
	return ExplicitVRLittleEndian
}

func (e Encoding) order() binary.ByteOrder {
	if e.BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// ReadOption configures parsing
type ReadOption func(*readConfig)

type readConfig struct {
	strict         bool
	lazyItems      bool
	deferThreshold int64
	bulkURI        string
}

func defaultReadConfig() readConfig {
	return readConfig{lazyItems: true, deferThreshold: 64 << 10}
}

// WithStrict turns recoverable inconsistencies (LUT length mismatches) into
// format errors for consumers that honour File.Strict
func WithStrict(strict bool) ReadOption {
	return func(c *readConfig) { c.strict = strict }
}

// WithLazyItems parses defined-length sequence items on first access
func WithLazyItems(lazy bool) ReadOption {
	return func(c *readConfig) { c.lazyItems = lazy }
}

// WithDeferThreshold leaves values of at least n bytes in the source until
// they are read; n <= 0 reads everything eagerly
func WithDeferThreshold(n int64) ReadOption {
	return func(c *readConfig) { c.deferThreshold = n }
}

// WithBulkDataURI exposes deferred values as bulk data references into uri
func WithBulkDataURI(uri string) ReadOption {
	return func(c *readConfig) { c.bulkURI = uri }
}

// File is a parsed DICOM stream
type File struct {
	Meta     *AttributeSet
	Dataset  *AttributeSet
	Syntax   transfer.Syntax
	Encoding Encoding
	Source   io.ReaderAt
	Size     int64
	Strict   bool

	closer io.Closer
}

// Close releases the backing file, if any
func (f *File) Close() error {
	if f.closer == nil {
		return nil
	}
	return f.closer.Close()
}

// ReadFile opens and parses path. Deferred values read from the open file,
// so the File must be closed by the caller.
func ReadFile(path string, opts ...ReadOption) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	st, err := fh.Stat()
	if err != nil {
		fh.Close()
		return nil, err
	}
	f, err := Parse(fh, st.Size(), opts...)
	if f != nil {
		f.closer = fh
	} else {
		fh.Close()
	}
	return f, err
}

// ReadBytes parses an in-memory stream
func ReadBytes(b []byte, opts ...ReadOption) (*File, error) {
	return Parse(bytes.NewReader(b), int64(len(b)), opts...)
}

// Parse reads an optional preamble, the file meta group and the data set.
// On a format error the attributes read so far are returned with the error.
func Parse(src io.ReaderAt, size int64, opts ...ReadOption) (*File, error) {
	cfg := defaultReadConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	p := &parser{src: src, size: size, cfg: cfg}
	f := &File{Meta: NewSet(), Dataset: NewSet(), Source: src, Size: size, Strict: cfg.strict}

	var pos int64
	if size >= 132 {
		if b, err := p.read(128, 4); err == nil && string(b) == "DICM" {
			pos = 132
		}
	}
	// group 0002 is always explicit VR little endian
	for pos+8 <= size {
		b, err := p.read(pos, 2)
		if err != nil || binary.LittleEndian.Uint16(b) != 0x0002 {
			break
		}
		h, err := p.readHeader(pos, ExplicitVRLittleEndian)
		if err != nil {
			return f, err
		}
		a, next, err := p.readAttribute(h, ExplicitVRLittleEndian)
		if err != nil {
			return f, err
		}
		f.Meta.add(a)
		pos = next
	}

	if ts, ok := f.Meta.GetString(tag.TransferSyntaxUID); ok {
		f.Syntax = transfer.FromUID(ts)
		f.Encoding = EncodingOf(f.Syntax)
	} else {
		f.Encoding = p.sniff(pos)
		switch f.Encoding {
		case ImplicitVRLittleEndian:
			f.Syntax = transfer.ImplicitVRLittleEndian
		case ExplicitVRBigEndian:
			f.Syntax = transfer.ExplicitVRBigEndian
		default:
			f.Syntax = transfer.ExplicitVRLittleEndian
		}
		slog.Debug("no transfer syntax in file meta, guessed encoding", "syntax", f.Syntax)
	}

	if f.Syntax.IsDeflated() {
		inflated, err := io.ReadAll(flate.NewReader(io.NewSectionReader(src, pos, size-pos)))
		if err != nil {
			return f, errs.Format("inflate", "deflated data set: %w", err)
		}
		p = &parser{src: bytes.NewReader(inflated), size: int64(len(inflated)), cfg: cfg}
		pos = 0
	}
	_, err := p.readSet(f.Dataset, pos, p.size, f.Encoding, false)
	return f, err
}

// ParseDataset parses length bytes at offset as a bare data set
func ParseDataset(src io.ReaderAt, offset, length int64, enc Encoding, opts ...ReadOption) (*AttributeSet, error) {
	cfg := defaultReadConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	p := &parser{src: src, size: offset + length, cfg: cfg}
	s := NewSet()
	_, err := p.readSet(s, offset, offset+length, enc, false)
	return s, err
}

// parser holds no per-call state so lazily populated sets can share it
type parser struct {
	src  io.ReaderAt
	size int64
	cfg  readConfig
}

type header struct {
	tag      tag.Tag
	vr       vr.VR
	length   uint32
	valuePos int64
}

func (p *parser) read(pos int64, n int) ([]byte, error) {
	if pos < 0 || pos+int64(n) > p.size {
		return nil, errs.Format("read", "%d bytes at %d past end of stream (%d): %w", n, pos, p.size, io.ErrUnexpectedEOF)
	}
	b := make([]byte, n)
	if _, err := p.src.ReadAt(b, pos); err != nil && err != io.EOF {
		return nil, errs.Format("read", "%d bytes at %d: %w", n, pos, err)
	}
	return b, nil
}

// sniff guesses the encoding of a data set without file meta
func (p *parser) sniff(pos int64) Encoding {
	b, err := p.read(pos, 6)
	if err != nil {
		return ExplicitVRLittleEndian
	}
	if !vr.IsValid(b[4:6]) {
		return ImplicitVRLittleEndian
	}
	if b[0] == 0 && b[1] != 0 {
		return ExplicitVRBigEndian
	}
	return ExplicitVRLittleEndian
}

func (p *parser) readHeader(pos int64, enc Encoding) (header, error) {
	b, err := p.read(pos, 8)
	if err != nil {
		return header{}, err
	}
	order := enc.order()
	t := tag.New(order.Uint16(b), order.Uint16(b[2:]))
	if t.Group() == 0xFFFE {
		return header{tag: t, vr: vr.NONE, length: order.Uint32(b[4:]), valuePos: pos + 8}, nil
	}
	if !enc.ExplicitVR {
		return header{tag: t, vr: tag.VROf(t), length: order.Uint32(b[4:]), valuePos: pos + 8}, nil
	}
	v, ok := vr.Parse(string(b[4:6]))
	if !ok {
		return header{}, errs.Format("read header", "%v at %d: invalid VR %q", t, pos, b[4:6])
	}
	if !v.LongLength() {
		return header{tag: t, vr: v, length: uint32(order.Uint16(b[6:])), valuePos: pos + 8}, nil
	}
	l, err := p.read(pos+8, 4)
	if err != nil {
		return header{}, err
	}
	return header{tag: t, vr: v, length: order.Uint32(l), valuePos: pos + 12}, nil
}

// readSet fills s from [pos, end), or up to the item delimiter when undefined
func (p *parser) readSet(s *AttributeSet, pos, end int64, enc Encoding, undefined bool) (int64, error) {
	for {
		if !undefined && pos >= end {
			return pos, nil
		}
		if undefined && pos >= p.size {
			return pos, errs.Format("read set", "missing item delimitation: %w", io.ErrUnexpectedEOF)
		}
		h, err := p.readHeader(pos, enc)
		if err != nil {
			return pos, err
		}
		switch h.tag {
		case tag.ItemDelimitationItem:
			if undefined {
				return h.valuePos, nil
			}
			slog.Debug("stray item delimitation in defined length item", "pos", pos)
			pos = h.valuePos
			continue
		case tag.Item, tag.SequenceDelimitationItem:
			return pos, errs.Format("read set", "unexpected %v at %d", h.tag, pos)
		}
		a, next, err := p.readAttribute(h, enc)
		if err != nil {
			return pos, err
		}
		s.add(a)
		pos = next
	}
}

func (p *parser) readAttribute(h header, enc Encoding) (*Attribute, int64, error) {
	a := &Attribute{tag: h.tag, vr: h.vr, offset: h.valuePos, source: p.src, bigEndian: enc.BigEndian}
	if h.length == undefinedLength {
		a.undefined = true
		a.decoded = true
		switch h.vr {
		case vr.SQ:
			next, err := p.readItems(a, h.valuePos, 0, enc, true)
			return a, next, err
		case vr.UN:
			// unknown VR with undefined length is an implicit little endian sequence
			a.vr = vr.SQ
			next, err := p.readItems(a, h.valuePos, 0, ImplicitVRLittleEndian, true)
			return a, next, err
		case vr.OB, vr.OW:
			next, err := p.readFragments(a, h.valuePos, enc)
			return a, next, err
		}
		return a, h.valuePos, errs.Format("read attribute", "%v: undefined length for %s", h.tag, h.vr)
	}
	end := h.valuePos + int64(h.length)
	if end > p.size {
		return a, h.valuePos, errs.Format("read attribute", "%v: value of %d bytes at %d: %w", h.tag, h.length, h.valuePos, io.ErrUnexpectedEOF)
	}
	if h.vr == vr.SQ {
		a.decoded = true
		next, err := p.readItems(a, h.valuePos, end, enc, false)
		return a, next, err
	}
	if p.cfg.deferThreshold > 0 && int64(h.length) >= p.cfg.deferThreshold {
		a.deferred = &span{pos: h.valuePos, length: int64(h.length)}
		if p.cfg.bulkURI != "" {
			b := NewBulkData(p.cfg.bulkURI, h.valuePos, int64(h.length))
			a.bulk = &b
		}
		return a, end, nil
	}
	raw, err := p.read(h.valuePos, int(h.length))
	if err != nil {
		return a, h.valuePos, err
	}
	a.raw = raw
	return a, end, nil
}

func (p *parser) readItems(a *Attribute, pos, end int64, enc Encoding, undefined bool) (int64, error) {
	a.items = []*AttributeSet{}
	for {
		if !undefined && pos >= end {
			return pos, nil
		}
		h, err := p.readHeader(pos, enc)
		if err != nil {
			return pos, err
		}
		switch h.tag {
		case tag.SequenceDelimitationItem:
			return h.valuePos, nil
		case tag.Item:
		default:
			return pos, errs.Format("read sequence", "%v: expected item at %d, got %v", a.tag, pos, h.tag)
		}
		item := NewSet()
		if h.length == undefinedLength {
			next, err := p.readSet(item, h.valuePos, 0, enc, true)
			a.appendItem(item)
			if err != nil {
				return next, err
			}
			pos = next
			continue
		}
		itemEnd := h.valuePos + int64(h.length)
		if itemEnd > p.size {
			return pos, errs.Format("read sequence", "%v: item of %d bytes at %d: %w", a.tag, h.length, h.valuePos, io.ErrUnexpectedEOF)
		}
		if p.cfg.lazyItems {
			item.lazy = &lazySource{p: p, pos: h.valuePos, length: int64(h.length), enc: enc}
		} else if _, err := p.readSet(item, h.valuePos, itemEnd, enc, false); err != nil {
			a.appendItem(item)
			return pos, err
		}
		a.appendItem(item)
		pos = itemEnd
	}
}

// readFragments records the byte range of each item up to the sequence
// delimiter; fragment bytes are not read
func (p *parser) readFragments(a *Attribute, pos int64, enc Encoding) (int64, error) {
	a.fragments = []Fragment{}
	for {
		h, err := p.readHeader(pos, enc)
		if err != nil {
			return pos, err
		}
		switch h.tag {
		case tag.SequenceDelimitationItem:
			return h.valuePos, nil
		case tag.Item:
		default:
			return pos, errs.Format("read fragments", "%v: expected item at %d, got %v", a.tag, pos, h.tag)
		}
		if h.length == undefinedLength {
			return pos, errs.Format("read fragments", "%v: fragment %d has undefined length", a.tag, len(a.fragments))
		}
		end := h.valuePos + int64(h.length)
		if end > p.size {
			return pos, errs.Format("read fragments", "%v: fragment of %d bytes at %d: %w", a.tag, h.length, h.valuePos, io.ErrUnexpectedEOF)
		}
		a.fragments = append(a.fragments, Fragment{Offset: h.valuePos, Length: int64(h.length)})
		pos = end
	}
}
