package serr

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsErrCode(t *testing.T) {
	err := NewErr(TErrNoMem, "pages")
	assert.True(t, IsErrCode(err, TErrNoMem))
	assert.False(t, IsErrCode(err, TErrInval))
	assert.True(t, err.IsErrNoMem())

	wrapped := fmt.Errorf("load: %w", err)
	assert.True(t, IsErrCode(wrapped, TErrNoMem))
	assert.False(t, IsErrCode(fmt.Errorf("plain"), TErrNoMem))
}

func TestUnwrap(t *testing.T) {
	inner := fmt.Errorf("short read")
	err := NewErrError(TErrFormat, "prog.coff", inner)
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "bad executable format")
	assert.Contains(t, err.Error(), "short read")
}
