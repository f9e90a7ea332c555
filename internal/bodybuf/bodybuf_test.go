package bodybuf_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itnpc/httpmock/internal/bodybuf"
)

func TestBuffer_BytesReplaysIdenticalData(t *testing.T) {
	b := bodybuf.New(strings.NewReader("payload"))
	first, err := b.Bytes()
	require.NoError(t, err)
	second, err := b.Bytes()
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, "payload", string(first))
}

func TestBuffer_NilSourceIsEmpty(t *testing.T) {
	b := bodybuf.New(nil)
	data, err := b.Bytes()
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestBuffer_ReaderStartsFromBeginningEachTime(t *testing.T) {
	b := bodybuf.New(strings.NewReader("hello"))
	r1, err := b.Reader()
	require.NoError(t, err)
	buf := make([]byte, 2)
	_, _ = r1.Read(buf)
	assert.Equal(t, "he", string(buf))

	r2, err := b.Reader()
	require.NoError(t, err)
	buf2 := make([]byte, 5)
	n, _ := r2.Read(buf2)
	assert.Equal(t, "hello", string(buf2[:n]))
}
