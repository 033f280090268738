// Package charset maps DICOM Specific Character Set terms onto text encodings
// and decodes values that switch code elements with ISO 2022 escapes.
package charset

import (
	"bytes"
	"log/slog"
	"strings"

	htmlcharset "golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/unicode"
)

const esc = 0x1B

// Set is a parsed Specific Character Set (0008,0005) value
type Set struct {
	terms []string
	encs  []encoding.Encoding // nil entry is the default repertoire
}

// Default is the default character repertoire (ISO-IR 6)
var Default = &Set{terms: []string{""}, encs: []encoding.Encoding{nil}}

// labels maps defined terms to WHATWG labels understood by html/charset
var labels = map[string]string{
	"ISO_IR 100":      "iso-ir-100",
	"ISO_IR 101":      "iso-ir-101",
	"ISO_IR 109":      "iso-ir-109",
	"ISO_IR 110":      "iso-ir-110",
	"ISO_IR 144":      "iso-ir-144",
	"ISO_IR 127":      "iso-ir-127",
	"ISO_IR 126":      "iso-ir-126",
	"ISO_IR 138":      "iso-ir-138",
	"ISO_IR 148":      "iso-ir-148",
	"ISO_IR 166":      "tis-620",
	"ISO 2022 IR 100": "iso-ir-100",
	"ISO 2022 IR 101": "iso-ir-101",
	"ISO 2022 IR 109": "iso-ir-109",
	"ISO 2022 IR 110": "iso-ir-110",
	"ISO 2022 IR 144": "iso-ir-144",
	"ISO 2022 IR 127": "iso-ir-127",
	"ISO 2022 IR 126": "iso-ir-126",
	"ISO 2022 IR 138": "iso-ir-138",
	"ISO 2022 IR 148": "iso-ir-148",
	"ISO 2022 IR 166": "tis-620",
}

// escapes selects the code element announced by an ISO 2022 escape sequence.
// Multi-byte Japanese elements keep their escape and go through ISO2022JP.
var escapes = map[string]encoding.Encoding{
	"\x1b(B":  nil,
	"\x1b(J":  nil,
	"\x1b)I":  japanese.ShiftJIS,
	"\x1b$B":  japanese.ISO2022JP,
	"\x1b$(D": japanese.ISO2022JP,
	"\x1b$)C": korean.EUCKR,
	"\x1b$)A": simplifiedchinese.GBK,
	"\x1b-A":  charmap.ISO8859_1,
	"\x1b-B":  charmap.ISO8859_2,
	"\x1b-C":  charmap.ISO8859_3,
	"\x1b-D":  charmap.ISO8859_4,
	"\x1b-L":  charmap.ISO8859_5,
	"\x1b-G":  charmap.ISO8859_6,
	"\x1b-F":  charmap.ISO8859_7,
	"\x1b-H":  charmap.ISO8859_8,
	"\x1b-M":  charmap.ISO8859_9,
	"\x1b-b":  charmap.ISO8859_15,
	"\x1b-T":  charmap.Windows874,
}

// Lookup resolves one defined term. Unknown terms fall back to the WHATWG
// label table so that common mislabels ("UTF-8", "ISO-8859-1") still work.
func Lookup(term string) (encoding.Encoding, bool) {
	term = strings.TrimSpace(term)
	switch term {
	case "", "ISO_IR 6", "ISO 2022 IR 6":
		return nil, true
	case "ISO_IR 192":
		return unicode.UTF8, true
	case "GB18030":
		return simplifiedchinese.GB18030, true
	case "GBK", "ISO 2022 IR 58":
		return simplifiedchinese.GBK, true
	case "ISO_IR 13", "ISO 2022 IR 13":
		return japanese.ShiftJIS, true
	case "ISO 2022 IR 87", "ISO 2022 IR 159":
		return japanese.ISO2022JP, true
	case "ISO 2022 IR 149":
		return korean.EUCKR, true
	}
	label, ok := labels[term]
	if !ok {
		label = term
	}
	if enc, _ := htmlcharset.Lookup(label); enc != nil {
		return enc, true
	}
	return nil, false
}

// Parse builds a Set from the values of Specific Character Set
func Parse(terms ...string) *Set {
	if len(terms) == 0 {
		return Default
	}
	s := &Set{terms: terms}
	for _, t := range terms {
		enc, ok := Lookup(t)
		if !ok {
			slog.Warn("unknown specific character set, using default repertoire", "term", t)
		}
		s.encs = append(s.encs, enc)
	}
	return s
}

// Terms returns the defined terms this set was parsed from
func (s *Set) Terms() []string { return s.terms }

func (s *Set) String() string { return strings.Join(s.terms, `\`) }

// IsDefault returns true when no extension is active
func (s *Set) IsDefault() bool {
	for _, e := range s.encs {
		if e != nil {
			return false
		}
	}
	return true
}

// Decode converts an encoded value to UTF-8
func (s *Set) Decode(b []byte) string {
	if s == nil || s.IsDefault() {
		return string(b)
	}
	if bytes.IndexByte(b, esc) < 0 {
		return decodeWith(s.encs[0], b)
	}
	var sb strings.Builder
	enc := s.encs[0]
	for len(b) > 0 {
		if b[0] != esc {
			next := bytes.IndexByte(b, esc)
			if next < 0 {
				next = len(b)
			}
			sb.WriteString(decodeWith(enc, b[:next]))
			b = b[next:]
			continue
		}
		n := escapeLen(b)
		seq := string(b[:n])
		e, known := escapes[seq]
		if !known {
			slog.Debug("unknown ISO 2022 escape sequence", "seq", []byte(seq))
			b = b[n:]
			continue
		}
		enc = e
		if e == japanese.ISO2022JP {
			// the decoder consumes the escape itself
			next := bytes.IndexByte(b[n:], esc)
			if next < 0 {
				next = len(b) - n
			}
			sb.WriteString(decodeWith(e, b[:n+next]))
			b = b[n+next:]
			enc = nil
			continue
		}
		b = b[n:]
	}
	return sb.String()
}

// Encode converts UTF-8 to the first code element of the set
func (s *Set) Encode(v string) ([]byte, error) {
	if s == nil {
		return []byte(v), nil
	}
	for _, e := range s.encs {
		if e == nil {
			continue
		}
		return e.NewEncoder().Bytes([]byte(v))
	}
	return []byte(v), nil
}

func decodeWith(e encoding.Encoding, b []byte) string {
	if e == nil {
		return string(b)
	}
	out, err := e.NewDecoder().Bytes(b)
	if err != nil {
		slog.Debug("charset decode failed, keeping raw bytes", "error", err)
		return string(b)
	}
	return string(out)
}

// escapeLen returns the length of the escape sequence at b[0]: ESC,
// intermediate bytes 0x20-0x2F, one final byte.
func escapeLen(b []byte) int {
	i := 1
	for i < len(b) && b[i] >= 0x20 && b[i] <= 0x2F {
		i++
	}
	if i < len(b) {
		i++
	}
	return i
}
