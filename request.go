package httpmock

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/itnpc/httpmock/internal/bodybuf"
)

// Request is the read-only, structured outgoing request handed to the core
// by the host's HTTP client plumbing. It is never mutated by the matcher,
// builder, registry or dispatcher.
type Request struct {
	Method  string
	URI     URI
	Headers http.Header

	ctx  context.Context
	body *bodybuf.Buffer
}

// NewRequest constructs a Request. ctx carries the cancellation signal; a
// nil ctx is treated as context.Background(). body may be nil for an empty
// body.
func NewRequest(ctx context.Context, method string, uri URI, headers http.Header, body io.Reader) *Request {
	if ctx == nil {
		ctx = context.Background()
	}
	if headers == nil {
		headers = http.Header{}
	}
	return &Request{
		Method:  strings.ToUpper(method),
		URI:     uri,
		Headers: headers,
		ctx:     ctx,
		body:    bodybuf.New(body),
	}
}

// Context returns the request's cancellation signal.
func (r *Request) Context() context.Context {
	if r.ctx == nil {
		return context.Background()
	}
	return r.ctx
}

// Cancelled reports whether the request's cancellation signal has already
// fired, used by the dispatcher's step 1 fast-path check.
func (r *Request) Cancelled() bool {
	select {
	case <-r.Context().Done():
		return true
	default:
		return false
	}
}

// Body returns the full request body. The underlying reader is buffered on
// first read so repeated calls (predicate, then callback) observe the same
// bytes.
func (r *Request) Body() ([]byte, error) {
	return r.body.Bytes()
}

// HeaderValues returns the values for a header, case-insensitively, per
// http.Header's own canonicalization.
func (r *Request) HeaderValues(name string) []string {
	return r.Headers.Values(name)
}
