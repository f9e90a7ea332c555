package recipe

import (
	"sort"
	"strings"

	"github.com/itnpc/httpmock"
)

// field is one component of a CanonicalKey: either a concrete, normalized
// value or the "any" wildcard sentinel. It is a plain comparable struct so
// CanonicalKey itself can be used as a Go map key for the registry's
// primary index.
type field struct {
	any bool
	val string
}

// Any returns the wildcard sentinel for a CanonicalKey component.
func Any() field { return field{any: true} }

// Exact returns a concrete value for a CanonicalKey component.
func Exact(v string) field { return field{val: v} }

func (f field) matches(v string) bool {
	return f.any || f.val == v
}

// QueryMode selects how a CanonicalKey's query component is compared.
type QueryMode int

const (
	// QueryVerbatim compares the raw query string exactly.
	QueryVerbatim QueryMode = iota
	// QuerySet compares the query as an unordered set of k=v pairs.
	QuerySet
)

// queryField is the query component of a CanonicalKey.
type queryField struct {
	any   bool
	mode  QueryMode
	value string // verbatim raw query, or the canonical sorted-pairs form
}

// AnyQuery returns the wildcard sentinel for the query component.
func AnyQuery() queryField { return queryField{any: true} }

// VerbatimQuery compares the query string exactly as given.
func VerbatimQuery(raw string) queryField {
	return queryField{mode: QueryVerbatim, value: raw}
}

// SetQuery compares the query as an unordered set of k=v pairs, parsed from
// raw the same way a request's query string is parsed.
func SetQuery(raw string) queryField {
	return queryField{mode: QuerySet, value: canonicalPairs(parsePairs(raw))}
}

// CanonicalKey is the (method, scheme, host, port, path, query) tuple used
// to index non-predicate Recipes. Two CanonicalKey values are == iff every
// component, including any wildcard markers, is equal —
// that equality is what "at most one active Recipe per canonical key"
// keys off of; it is not the same thing as whether a given concrete
// request matches the key (see Matches).
type CanonicalKey struct {
	Method field
	Scheme field
	Host   field
	Port   field
	Path   field
	Query  queryField
}

// NewCanonicalKey builds a CanonicalKey from Builder-supplied components.
func NewCanonicalKey(method, scheme, host, port, path field, query queryField) CanonicalKey {
	k := CanonicalKey{Method: method, Scheme: scheme, Host: host, Port: port, Path: path, Query: query}
	if !k.Method.any {
		k.Method.val = strings.ToUpper(k.Method.val)
	}
	if !k.Scheme.any {
		k.Scheme.val = strings.ToLower(k.Scheme.val)
	}
	if !k.Host.any {
		k.Host.val = strings.ToLower(k.Host.val)
	}
	if !k.Path.any {
		k.Path.val = httpmock.URI{Path: k.Path.val}.Normalized().Path
	}
	return k
}

// Matches reports whether the concrete, normalized request URI+method
// satisfies k, honoring any wildcard components.
func (k CanonicalKey) Matches(req *httpmock.Request) bool {
	n := req.URI.Normalized()
	if !k.Method.matches(strings.ToUpper(req.Method)) {
		return false
	}
	if !k.Scheme.matches(n.Scheme) {
		return false
	}
	if !k.Host.matches(n.Host) {
		return false
	}
	if !k.Port.matches(n.Port) {
		return false
	}
	if !k.Path.matches(n.Path) {
		return false
	}
	return k.Query.matches(n.RawQuery)
}

func (q queryField) matches(raw string) bool {
	if q.any {
		return true
	}
	switch q.mode {
	case QueryVerbatim:
		return q.value == raw
	case QuerySet:
		return q.value == canonicalPairs(parsePairs(raw))
	default:
		return false
	}
}

func parsePairs(raw string) map[string]string {
	pairs := map[string]string{}
	if raw == "" {
		return pairs
	}
	for _, kv := range strings.Split(raw, "&") {
		if kv == "" {
			continue
		}
		if i := strings.IndexByte(kv, '='); i >= 0 {
			pairs[kv[:i]] = kv[i+1:]
		} else {
			pairs[kv] = ""
		}
	}
	return pairs
}

// canonicalPairs serializes pairs into a deterministic, order-independent
// string so two equal sets of k=v pairs always produce the same
// CanonicalKey.Query value regardless of original ordering.
func canonicalPairs(pairs map[string]string) string {
	keys := make([]string, 0, len(pairs))
	for k := range pairs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+pairs[k])
	}
	return strings.Join(parts, "&")
}
