// Package bodybuf buffers a request body on first read so predicate
// evaluation, pre-dispatch callbacks and any later matcher can all read it
// independently, without one consumer starving the next.
package bodybuf

import (
	"bytes"
	"io"
	"sync"
)

// Buffer wraps an io.Reader (possibly nil) and replays its bytes to every
// caller of Bytes, buffering the underlying reader exactly once on first
// read. It is safe for concurrent use.
type Buffer struct {
	mu   sync.Mutex
	src  io.Reader
	data []byte
	read bool
	err  error
}

// New wraps src. A nil src behaves as an empty body.
func New(src io.Reader) *Buffer {
	return &Buffer{src: src}
}

// Bytes returns the full body, buffering the source reader on the first
// call. Subsequent calls (from a predicate, then a callback, then response
// synthesis) see the identical bytes without re-reading the source.
func (b *Buffer) Bytes() ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.read {
		b.read = true
		if b.src != nil {
			b.data, b.err = io.ReadAll(b.src)
		}
	}
	return b.data, b.err
}

// Reader returns a fresh io.Reader over the buffered bytes, positioned at
// the start, so a caller can stream it as if it were reading untouched.
func (b *Buffer) Reader() (io.Reader, error) {
	data, err := b.Bytes()
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}
