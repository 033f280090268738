package dicom

import (
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/jpfielding/dicomimg.go/pkg/dicom/vr"
)

// String returns an indented dump of the set, one attribute per line
func (s *AttributeSet) String() string {
	if s == nil {
		return "<nil>"
	}
	var b strings.Builder
	s.dump(&b, 0, nil)
	return b.String()
}

// Dump writes the attributes accepted by keep (all when nil), descending
// into sequence items
func (s *AttributeSet) Dump(keep func(*Attribute) bool) string {
	var b strings.Builder
	s.dump(&b, 0, keep)
	return b.String()
}

func (s *AttributeSet) dump(b *strings.Builder, depth int, keep func(*Attribute) bool) {
	indent := strings.Repeat(">", depth)
	for a := range s.All() {
		if keep != nil && !keep(a) && a.vr != vr.SQ {
			continue
		}
		b.WriteString(indent)
		b.WriteString(a.String())
		b.WriteString("\n")
		for _, item := range a.items {
			item.dump(b, depth+1, keep)
		}
	}
}

// jsonAttribute follows the DICOM JSON model (PS3.18 F.2)
type jsonAttribute struct {
	VR           string `json:"vr"`
	Value        []any  `json:"Value,omitempty"`
	InlineBinary string `json:"InlineBinary,omitempty"`
	BulkDataURI  string `json:"BulkDataURI,omitempty"`
}

// MarshalJSON encodes the set in the DICOM JSON model
func (s *AttributeSet) MarshalJSON() ([]byte, error) {
	out := make(map[string]jsonAttribute, s.Len())
	for a := range s.All() {
		out[a.tag.Hex()] = a.toJSON()
	}
	return json.Marshal(out)
}

// MarshalJSON encodes one attribute in the DICOM JSON model
func (a *Attribute) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.toJSON())
}

func (a *Attribute) toJSON() jsonAttribute {
	j := jsonAttribute{VR: string(a.vr)}
	switch {
	case a.vr == vr.SQ:
		for _, item := range a.items {
			j.Value = append(j.Value, item)
		}
		return j
	case a.bulk != nil:
		j.BulkDataURI = a.bulk.URI
		return j
	case a.fragments != nil:
		return j
	}
	switch a.vr.Kind() {
	case vr.KindBinary:
		if b := a.Bytes(); len(b) > 0 {
			j.InlineBinary = base64.StdEncoding.EncodeToString(b)
		}
	case vr.KindInt, vr.KindIntString:
		for _, v := range a.Ints() {
			j.Value = append(j.Value, v)
		}
	case vr.KindFloat, vr.KindDecimal:
		for _, v := range a.Floats() {
			j.Value = append(j.Value, v)
		}
	default:
		for _, v := range a.Strings() {
			if a.vr == vr.PN {
				j.Value = append(j.Value, map[string]string{"Alphabetic": v})
				continue
			}
			j.Value = append(j.Value, v)
		}
	}
	return j
}
