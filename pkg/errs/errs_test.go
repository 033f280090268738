package errs

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatWrapsCause(t *testing.T) {
	err := Format("read", "value at %d: %w", 12, io.ErrUnexpectedEOF)
	assert.True(t, IsFormat(err))
	assert.False(t, IsPrecondition(err))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, "read: value at 12: unexpected EOF", err.Error())

	var e *Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, "read", e.Op)
}

func TestPanicCarriesPrecondition(t *testing.T) {
	defer func() {
		r := recover()
		require.NotNil(t, r)
		err, ok := r.(error)
		require.True(t, ok)
		assert.True(t, IsPrecondition(err))
	}()
	Panic("lookup", "index %d outside [%d,%d]", 9, 0, 3)
}

func TestErrorWithoutCause(t *testing.T) {
	e := &Error{Kind: ErrFormat, Op: "inflate"}
	assert.Equal(t, "inflate: format violation", e.Error())
	assert.ErrorIs(t, e, ErrFormat)
}
