// Package matcher provides the predicates used to decide whether a request
// satisfies a recipe's preconditions: a canonical matcher (the Builder's
// canonical key plus attached header, content and raw-request sub-matchers)
// and a predicate matcher wrapping a user-supplied function, composed
// behind one small interface.
package matcher

import (
	"strings"

	"github.com/tidwall/gjson"

	"github.com/itnpc/httpmock"
)

// Matcher decides whether a Request satisfies a Recipe's preconditions. It
// must be pure with respect to the request; side effects are undefined
// behavior.
type Matcher interface {
	IsMatch(req *httpmock.Request) bool
}

// Func adapts a plain function to a Matcher.
type Func func(req *httpmock.Request) bool

// IsMatch implements Matcher.
func (f Func) IsMatch(req *httpmock.Request) bool { return f(req) }

// MatchAll returns a Matcher that accepts only if every matcher in ms
// accepts, short-circuiting on the first rejection.
func MatchAll(ms ...Matcher) Matcher {
	return Func(func(req *httpmock.Request) bool {
		for _, m := range ms {
			if m == nil {
				continue
			}
			if !m.IsMatch(req) {
				return false
			}
		}
		return true
	})
}

// Predicate wraps a user-provided function as a Matcher, the free-form half
// of a recipe's two registration styles; there is no MatchAny — callers
// compose disjunctions themselves inside the predicate.
func Predicate(fn func(req *httpmock.Request) bool) Matcher {
	return Func(fn)
}

// HeaderEquals returns a Matcher requiring the header named key to be
// present with a value set equal to want (case-insensitive key, per
// http.Header; values compared verbatim). An empty want expresses "present
// with any value".
func HeaderEquals(key string, want ...string) Matcher {
	return Func(func(req *httpmock.Request) bool {
		got := req.HeaderValues(key)
		if len(got) == 0 {
			return false
		}
		if len(want) == 0 {
			return true
		}
		return sameSet(got, want)
	})
}

// HeaderPresent returns a Matcher requiring the header named key to be
// present with any value.
func HeaderPresent(key string) Matcher {
	return HeaderEquals(key)
}

// sameSet reports whether a and b contain the same values, ignoring order
// and duplicates.
func sameSet(a, b []string) bool {
	am := toSet(a)
	bm := toSet(b)
	if len(am) != len(bm) {
		return false
	}
	for v := range am {
		if !bm[v] {
			return false
		}
	}
	return true
}

func toSet(vs []string) map[string]bool {
	m := make(map[string]bool, len(vs))
	for _, v := range vs {
		m[v] = true
	}
	return m
}

// HeaderEqualsFold is HeaderEquals with case-insensitive value comparison,
// so Accept: application/json matches a request sending
// accept: APPLICATION/JSON.
func HeaderEqualsFold(key string, want ...string) Matcher {
	return Func(func(req *httpmock.Request) bool {
		got := req.HeaderValues(key)
		if len(got) == 0 {
			return false
		}
		if len(want) == 0 {
			return true
		}
		return sameSetFold(got, want)
	})
}

func sameSetFold(a, b []string) bool {
	am := toSetFold(a)
	bm := toSetFold(b)
	if len(am) != len(bm) {
		return false
	}
	for v := range am {
		if !bm[v] {
			return false
		}
	}
	return true
}

func toSetFold(vs []string) map[string]bool {
	m := make(map[string]bool, len(vs))
	for _, v := range vs {
		m[strings.ToLower(v)] = true
	}
	return m
}

// Content returns a Matcher whose predicate receives the buffered request
// body. Reading the body here never consumes it for a later callback or
// response path, since Request.Body() itself is backed by a replay buffer.
func Content(fn func(body []byte) bool) Matcher {
	return Func(func(req *httpmock.Request) bool {
		body, err := req.Body()
		if err != nil {
			return false
		}
		return fn(body)
	})
}

// JSONPath returns a Matcher requiring the request body, parsed as JSON, to
// have the value at path equal want. path uses gjson's dotted/indexed
// syntax (e.g. "user.id", "items.0.sku"). A body that fails to contain
// path, or isn't JSON at all, is a non-match rather than an error, since
// matchers must stay pure and side-effect free.
func JSONPath(path, want string) Matcher {
	return Content(func(body []byte) bool {
		res := gjson.GetBytes(body, path)
		return res.Exists() && res.String() == want
	})
}

// Raw is an alias for Predicate kept for readability at call sites that
// attach a raw-request predicate sub-matcher to a canonical Recipe.
func Raw(fn func(req *httpmock.Request) bool) Matcher {
	return Predicate(fn)
}
