package rle

import (
	"bytes"
	"errors"
	"fmt"
)

// encodePackBits compresses one segment. Runs of two or more bytes are
// replicated; a literal ends where a run of three starts.
func encodePackBits(data []byte) []byte {
	if len(data) == 0 {
		return nil
	}
	var buf bytes.Buffer
	for i := 0; i < len(data); {
		run := 1
		for i+run < len(data) && run < 128 && data[i+run] == data[i] {
			run++
		}
		if run > 1 {
			buf.WriteByte(byte(int8(1 - run)))
			buf.WriteByte(data[i])
			i += run
			continue
		}
		lit := 1
		for i+lit < len(data) && lit < 128 {
			if i+lit+2 < len(data) && data[i+lit] == data[i+lit+1] && data[i+lit] == data[i+lit+2] {
				break
			}
			lit++
		}
		buf.WriteByte(byte(lit - 1))
		buf.Write(data[i : i+lit])
		i += lit
	}
	return buf.Bytes()
}

// decodePackBits expands one segment, stopping once expectedLen bytes are
// out when expectedLen is positive
func decodePackBits(data []byte, expectedLen int) ([]byte, error) {
	var buf bytes.Buffer
	if expectedLen > 0 {
		buf.Grow(expectedLen)
	}
	for i := 0; i < len(data); {
		if expectedLen > 0 && buf.Len() >= expectedLen {
			break
		}
		n := int8(data[i])
		i++
		switch {
		case n == -128:
			// no-op
		case n >= 0:
			count := int(n) + 1
			if i+count > len(data) {
				return nil, fmt.Errorf("rle: compressed data truncated in literal run (i=%d, count=%d, len=%d)", i, count, len(data))
			}
			buf.Write(data[i : i+count])
			i += count
		default:
			if i >= len(data) {
				return nil, errors.New("rle: compressed data truncated in replicate run")
			}
			buf.Write(bytes.Repeat(data[i:i+1], int(-n)+1))
			i++
		}
	}
	return buf.Bytes(), nil
}
