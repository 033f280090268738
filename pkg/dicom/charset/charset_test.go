package charset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRepertoire(t *testing.T) {
	assert.True(t, Default.IsDefault())
	assert.Equal(t, "Doe^John", Default.Decode([]byte("Doe^John")))
	assert.True(t, Parse().IsDefault())
}

func TestLatin1(t *testing.T) {
	s := Parse("ISO_IR 100")
	assert.Equal(t, "Buc^Jérôme", s.Decode([]byte("Buc^J\xe9r\xf4me")))
	b, err := s.Encode("Jérôme")
	require.NoError(t, err)
	assert.Equal(t, []byte("J\xe9r\xf4me"), b)
}

func TestUTF8(t *testing.T) {
	s := Parse("ISO_IR 192")
	assert.Equal(t, "Wang^XiaoDong=王^小東", s.Decode([]byte("Wang^XiaoDong=王^小東")))
}

func TestJapaneseEscapes(t *testing.T) {
	s := Parse("", "ISO 2022 IR 87")
	raw := []byte("Yamada^Tarou=\x1b$B;3ED\x1b(B^\x1b$BB@O:\x1b(B")
	assert.Equal(t, "Yamada^Tarou=山田^太郎", s.Decode(raw))
}

func TestLookupFallsBackToLabels(t *testing.T) {
	_, ok := Lookup("UTF-8")
	assert.True(t, ok)
	_, ok = Lookup("NOT A CHARSET")
	assert.False(t, ok)
	assert.Equal(t, `ISO_IR 100\ISO 2022 IR 87`, Parse("ISO_IR 100", "ISO 2022 IR 87").String())
}
