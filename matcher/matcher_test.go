package matcher_test

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/itnpc/httpmock"
	"github.com/itnpc/httpmock/matcher"
)

func newReq(t *testing.T, headers http.Header, body string) *httpmock.Request {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	return httpmock.NewRequest(context.Background(), "GET", httpmock.URI{}, headers, r)
}

func TestHeaderEqualsFold_AcceptsDifferentCase(t *testing.T) {
	h := http.Header{}
	h.Set("Accept", "APPLICATION/JSON")
	req := newReq(t, h, "")

	m := matcher.HeaderEqualsFold("Accept", "application/json")
	assert.True(t, m.IsMatch(req))
}

func TestHeaderEqualsFold_RejectsAbsence(t *testing.T) {
	req := newReq(t, http.Header{}, "")
	m := matcher.HeaderEqualsFold("Accept", "application/json")
	assert.False(t, m.IsMatch(req))
}

func TestHeaderPresent_AnyValue(t *testing.T) {
	h := http.Header{}
	h.Set("X-Trace", "anything")
	req := newReq(t, h, "")
	assert.True(t, matcher.HeaderPresent("X-Trace").IsMatch(req))
	assert.False(t, matcher.HeaderPresent("X-Missing").IsMatch(req))
}

func TestMatchAll_ShortCircuits(t *testing.T) {
	req := newReq(t, http.Header{}, "")
	calledSecond := false
	m := matcher.MatchAll(
		matcher.Predicate(func(*httpmock.Request) bool { return false }),
		matcher.Predicate(func(*httpmock.Request) bool { calledSecond = true; return true }),
	)
	assert.False(t, m.IsMatch(req))
	assert.False(t, calledSecond)
}

func TestMatchAll_EmptyAccepts(t *testing.T) {
	req := newReq(t, http.Header{}, "")
	assert.True(t, matcher.MatchAll().IsMatch(req))
}

func TestContent_DoesNotConsumeBodyForLaterReaders(t *testing.T) {
	req := newReq(t, http.Header{}, "hello")
	m := matcher.Content(func(b []byte) bool { return string(b) == "hello" })
	assert.True(t, m.IsMatch(req))

	body, err := req.Body()
	assert.NoError(t, err)
	assert.Equal(t, []byte("hello"), body)
}

func TestJSONPath_MatchesNestedField(t *testing.T) {
	req := newReq(t, http.Header{}, `{"user":{"id":"42"}}`)
	assert.True(t, matcher.JSONPath("user.id", "42").IsMatch(req))
	assert.False(t, matcher.JSONPath("user.id", "7").IsMatch(req))
}

func TestJSONPath_NonJSONBodyIsNonMatchNotError(t *testing.T) {
	req := newReq(t, http.Header{}, "not json")
	assert.False(t, matcher.JSONPath("user.id", "42").IsMatch(req))
}
