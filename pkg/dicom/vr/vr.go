// Package vr defines DICOM Value Representations
package vr

// VR represents a DICOM Value Representation
type VR string

// Standard DICOM Value Representations
const (
	NONE VR = ""   // Delimiters and items carry no VR
	AE   VR = "AE" // Application Entity (16 bytes max)
	AS   VR = "AS" // Age String (4 bytes fixed)
	AT   VR = "AT" // Attribute Tag (4 bytes fixed)
	CS   VR = "CS" // Code String (16 bytes max)
	DA   VR = "DA" // Date (8 bytes fixed)
	DS   VR = "DS" // Decimal String (16 bytes max)
	DT   VR = "DT" // DateTime (26 bytes max)
	FL   VR = "FL" // Floating Point Single (4 bytes fixed)
	FD   VR = "FD" // Floating Point Double (8 bytes fixed)
	IS   VR = "IS" // Integer String (12 bytes max)
	LO   VR = "LO" // Long String (64 bytes max)
	LT   VR = "LT" // Long Text (10240 bytes max)
	OB   VR = "OB" // Other Byte String
	OD   VR = "OD" // Other Double String
	OF   VR = "OF" // Other Float String
	OL   VR = "OL" // Other Long
	OW   VR = "OW" // Other Word String
	PN   VR = "PN" // Person Name (64 bytes max per component)
	SH   VR = "SH" // Short String (16 bytes max)
	SL   VR = "SL" // Signed Long (4 bytes fixed)
	SQ   VR = "SQ" // Sequence of Items
	SS   VR = "SS" // Signed Short (2 bytes fixed)
	ST   VR = "ST" // Short Text (1024 bytes max)
	TM   VR = "TM" // Time (16 bytes max)
	UC   VR = "UC" // Unlimited Characters
	UI   VR = "UI" // Unique Identifier (64 bytes max)
	UL   VR = "UL" // Unsigned Long (4 bytes fixed)
	UN   VR = "UN" // Unknown
	UR   VR = "UR" // Universal Resource Identifier
	US   VR = "US" // Unsigned Short (2 bytes fixed)
	UT   VR = "UT" // Unlimited Text
)

// Kind groups VRs that share a value codec.
type Kind int

const (
	KindNone       Kind = iota
	KindText            // backslash separated strings
	KindSingleText      // one string, backslash is data
	KindDecimal         // DS
	KindIntString       // IS
	KindInt             // binary integers
	KindFloat           // binary floats
	KindBinary          // opaque words
	KindSequence
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindSingleText:
		return "single-text"
	case KindDecimal:
		return "decimal"
	case KindIntString:
		return "int-string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBinary:
		return "binary"
	case KindSequence:
		return "sequence"
	default:
		return "none"
	}
}

// Kind returns the codec family of the VR
func (v VR) Kind() Kind {
	switch v {
	case AE, AS, CS, DA, DT, LO, PN, SH, TM, UC, UI:
		return KindText
	case LT, ST, UT, UR:
		return KindSingleText
	case DS:
		return KindDecimal
	case IS:
		return KindIntString
	case AT, SL, SS, UL, US:
		return KindInt
	case FL, FD:
		return KindFloat
	case OB, OD, OF, OL, OW, UN:
		return KindBinary
	case SQ:
		return KindSequence
	default:
		return KindNone
	}
}

// LongLength returns true if the VR uses a 4-byte length with 2 reserved
// bytes in explicit VR encodings
func (v VR) LongLength() bool {
	switch v {
	case OB, OD, OF, OL, OW, SQ, UC, UN, UR, UT:
		return true
	default:
		return false
	}
}

// PaddingByte returns the byte used to pad values to even length
func (v VR) PaddingByte() byte {
	switch v.Kind() {
	case KindBinary, KindInt, KindFloat:
		return 0
	}
	if v == UI {
		return 0
	}
	return ' '
}

// IsString returns true if this VR contains string data
func (v VR) IsString() bool {
	switch v.Kind() {
	case KindText, KindSingleText, KindDecimal, KindIntString:
		return true
	default:
		return false
	}
}

// UsesCharset returns true when the value is subject to Specific Character Set
func (v VR) UsesCharset() bool {
	switch v {
	case LO, LT, PN, SH, ST, UC, UT:
		return true
	default:
		return false
	}
}

// Signed returns true for signed binary integers
func (v VR) Signed() bool {
	return v == SS || v == SL
}

// ValueSize returns the fixed size in bytes for fixed-size VRs, or the word
// size for OB/OW/OL/OF/OD. 0 means variable.
func (v VR) ValueSize() int {
	switch v {
	case OB, UN:
		return 1
	case SS, US, OW:
		return 2
	case AT, FL, SL, UL, OL, OF:
		return 4
	case FD, OD:
		return 8
	default:
		return 0
	}
}

// Parse validates a two letter VR code
func Parse(s string) (VR, bool) {
	v := VR(s)
	if len(s) != 2 || v.Kind() == KindNone {
		return NONE, false
	}
	return v, true
}

// IsValid reports whether b holds a known VR code
func IsValid(b []byte) bool {
	if len(b) < 2 {
		return false
	}
	_, ok := Parse(string(b[:2]))
	return ok
}
