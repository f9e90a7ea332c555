package recipe

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/itnpc/httpmock"
)

// ContentProducer materializes a Recipe's response entity body lazily, at
// dispatch time. It is never evaluated at registration time and, for
// thunk-style producers, never cached across dispatches.
type ContentProducer interface {
	Produce(ctx context.Context, req *httpmock.Request) (io.Reader, error)
}

type staticBytes struct{ b []byte }

func (s staticBytes) Produce(context.Context, *httpmock.Request) (io.Reader, error) {
	return bytes.NewReader(s.b), nil
}

// StaticBytes is a ContentProducer that always returns the same bytes, by
// reference, across dispatches.
func StaticBytes(b []byte) ContentProducer { return staticBytes{b: b} }

type byteThunk struct{ fn func(ctx context.Context, req *httpmock.Request) ([]byte, error) }

func (t byteThunk) Produce(ctx context.Context, req *httpmock.Request) (io.Reader, error) {
	b, err := t.fn(ctx, req)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(b), nil
}

// ByteThunk wraps a synchronous byte-producing function, re-invoked on
// every dispatch of a reusable Recipe.
func ByteThunk(fn func(ctx context.Context, req *httpmock.Request) ([]byte, error)) ContentProducer {
	return byteThunk{fn: fn}
}

// AsyncByteThunk wraps a byte-producing function expected to suspend on ctx
// (e.g. it awaits something) before returning. Go has no separate async
// keyword, so this is the same shape as ByteThunk; the distinction is
// documentation of intent, and both honor ctx cancellation identically.
func AsyncByteThunk(fn func(ctx context.Context, req *httpmock.Request) ([]byte, error)) ContentProducer {
	return byteThunk{fn: fn}
}

type streamThunk struct {
	fn func(ctx context.Context, req *httpmock.Request) (io.Reader, error)
}

func (t streamThunk) Produce(ctx context.Context, req *httpmock.Request) (io.Reader, error) {
	return t.fn(ctx, req)
}

// StreamThunk opens a fresh readable stream on every dispatch. A stream
// producer must be a thunk rather than a handle so a reusable Recipe
// hands each dispatch an unconsumed stream instead of replaying (or
// exhausting) one opened earlier.
func StreamThunk(fn func(ctx context.Context, req *httpmock.Request) (io.Reader, error)) ContentProducer {
	return streamThunk{fn: fn}
}

// HeaderSource is a set of static headers optionally extended by a thunk
// evaluated at dispatch time; the thunk's result is merged over a clone of
// the static headers rather than replacing them.
type HeaderSource struct {
	Static http.Header
	Thunk  func(ctx context.Context, req *httpmock.Request) (http.Header, error)
}

// Resolve merges the thunk's result (if any) over a clone of Static.
func (h HeaderSource) Resolve(ctx context.Context, req *httpmock.Request) (http.Header, error) {
	merged := cloneHeader(h.Static)
	if h.Thunk == nil {
		return merged, nil
	}
	extra, err := h.Thunk(ctx, req)
	if err != nil {
		return nil, err
	}
	for k, vs := range extra {
		merged[http.CanonicalHeaderKey(k)] = append([]string(nil), vs...)
	}
	return merged, nil
}

func cloneHeader(h http.Header) http.Header {
	out := make(http.Header, len(h))
	for k, vs := range h {
		out[k] = append([]string(nil), vs...)
	}
	return out
}
