package shell

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTailBuffer(t *testing.T) {
	tb := newTailBuffer(8)

	_, _ = tb.Write([]byte("abc"))
	_, _ = tb.Write([]byte("defg"))
	assert.Equal(t, "abcdefg", string(tb.Bytes()))

	_, _ = tb.Write([]byte("hij"))
	assert.Equal(t, "cdefghij", string(tb.Bytes()))

	n, err := tb.Write([]byte("0123456789"))
	assert.NoError(t, err)
	assert.Equal(t, 10, n)
	assert.Equal(t, "23456789", string(tb.Bytes()))
}
