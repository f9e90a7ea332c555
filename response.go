package httpmock

import (
	"io"
	"net/http"
)

// Response is what the core hands back to the host: status, reason,
// version, headers split between message and entity, and the entity body
// as a stream so the caller decides whether to buffer it.
type Response struct {
	StatusCode     int
	ReasonPhrase   string
	ProtoMajor     int
	ProtoMinor     int
	MessageHeaders http.Header
	EntityHeaders  http.Header
	Body           io.Reader
}

// EmptyResponse is the permissive-mode sentinel returned by the dispatcher
// when nothing matched and the registry isn't configured to fail.
func EmptyResponse() *Response {
	return &Response{
		StatusCode:     http.StatusOK,
		ProtoMajor:     1,
		ProtoMinor:     1,
		MessageHeaders: http.Header{},
		EntityHeaders:  http.Header{},
		Body:           http.NoBody,
	}
}
