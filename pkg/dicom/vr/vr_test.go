package vr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKind(t *testing.T) {
	tests := []struct {
		vr   VR
		kind Kind
	}{
		{PN, KindText},
		{UI, KindText},
		{LT, KindSingleText},
		{UR, KindSingleText},
		{DS, KindDecimal},
		{IS, KindIntString},
		{AT, KindInt},
		{US, KindInt},
		{FD, KindFloat},
		{OW, KindBinary},
		{UN, KindBinary},
		{SQ, KindSequence},
		{NONE, KindNone},
	}
	for _, tt := range tests {
		t.Run(string(tt.vr)+"/"+tt.kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.vr.Kind())
		})
	}
}

func TestHeaderAndPadding(t *testing.T) {
	for _, v := range []VR{OB, OD, OF, OL, OW, SQ, UC, UN, UR, UT} {
		assert.True(t, v.LongLength(), v)
	}
	for _, v := range []VR{AE, CS, DS, LO, US, UL, FD, PN} {
		assert.False(t, v.LongLength(), v)
	}
	assert.Equal(t, byte(0), UI.PaddingByte())
	assert.Equal(t, byte(0), OB.PaddingByte())
	assert.Equal(t, byte(' '), CS.PaddingByte())
	assert.Equal(t, byte(' '), LT.PaddingByte())
}

func TestCharsetAffected(t *testing.T) {
	for _, v := range []VR{SH, LO, ST, LT, PN, UC, UT} {
		assert.True(t, v.UsesCharset(), v)
	}
	for _, v := range []VR{CS, UI, AE, DS, UR} {
		assert.False(t, v.UsesCharset(), v)
	}
}

func TestParse(t *testing.T) {
	v, ok := Parse("OW")
	assert.True(t, ok)
	assert.Equal(t, OW, v)
	_, ok = Parse("ZZ")
	assert.False(t, ok)
	assert.True(t, IsValid([]byte("SQ")))
	assert.False(t, IsValid([]byte{0x10, 0x00}))
}
