package tag

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// String returns a string representation of the Tag (GGGG,EEEE)
func (t Tag) String() string {
	return fmt.Sprintf("(%04X,%04X)", t.Group(), t.Element())
}

// Hex returns the 8 digit form used as key by the DICOM JSON model
func (t Tag) Hex() string {
	return fmt.Sprintf("%08X", uint32(t))
}

// MarshalJSON returns a JSON representation of the Tag
func (t Tag) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// Parse accepts "(GGGG,EEEE)", "GGGG,EEEE", "GGGGEEEE" or a dictionary keyword
func Parse(s string) (Tag, error) {
	s = strings.TrimSpace(s)
	if t, ok := ByKeyword(s); ok {
		return t, nil
	}
	h := strings.NewReplacer("(", "", ")", "", ",", "").Replace(s)
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil || len(h) != 8 {
		return 0, fmt.Errorf("invalid tag %q", s)
	}
	return Tag(v), nil
}
