// Package builder implements the fluent Builder: a mutable assembler that
// produces immutable recipe.Recipe values through an explicit
// precondition/postcondition chain, registered against a Registry.
package builder

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/itnpc/httpmock"
	"github.com/itnpc/httpmock/matcher"
	"github.com/itnpc/httpmock/recipe"
)

// Registerer is the subset of registry.Registry the Builder needs. It is
// an interface (rather than a concrete *registry.Registry parameter) so
// builder never imports registry, keeping the dependency graph one-way.
type Registerer interface {
	Register(r *recipe.Recipe)
	RegisterPredicate(r *recipe.Recipe)
}

// Builder assembles one Recipe.Spec at a time. State captured by
// RegisterWith is a snapshot; later mutation of the same Builder for a
// further registration never reaches the already-registered Recipe.
type Builder struct {
	spec      recipe.Spec
	methodSet bool
	schemeSet bool
	hostSet   bool
	portSet   bool
	pathSet   bool
	querySet  bool
	key       struct {
		method, scheme, host, port, path string
		anyHost                          bool
		query                            string
		queryMode                        recipe.QueryMode
	}
	err error
}

// New returns a fresh Builder with defaults (status 200, reusable).
func New() *Builder {
	return &Builder{
		spec: recipe.Spec{
			Status:   200,
			Reusable: true,
		},
	}
}

// --- Preconditions (the "requests()" phase) ---

// Method sets the precondition HTTP method. An empty method is treated as
// the "any" sentinel.
func (b *Builder) Method(m string) *Builder {
	b.key.method = m
	b.methodSet = m != ""
	return b
}

// Get, Post, Put, Delete, Patch are convenience wrappers over Method.
func (b *Builder) Get() *Builder    { return b.Method(http.MethodGet) }
func (b *Builder) Post() *Builder   { return b.Method(http.MethodPost) }
func (b *Builder) Put() *Builder    { return b.Method(http.MethodPut) }
func (b *Builder) Delete() *Builder { return b.Method(http.MethodDelete) }
func (b *Builder) Patch() *Builder  { return b.Method(http.MethodPatch) }

// AnyMethod widens the method component to "any".
func (b *Builder) AnyMethod() *Builder {
	b.methodSet = false
	return b
}

// Scheme sets the precondition scheme (e.g. "https").
func (b *Builder) Scheme(s string) *Builder {
	b.key.scheme = s
	b.schemeSet = true
	return b
}

// Host sets the precondition host.
func (b *Builder) Host(h string) *Builder {
	b.key.host = h
	b.hostSet = true
	b.key.anyHost = false
	return b
}

// AnyHost widens the host component to "any".
func (b *Builder) AnyHost() *Builder {
	b.hostSet = true
	b.key.anyHost = true
	return b
}

// Port sets the precondition port.
func (b *Builder) Port(p string) *Builder {
	b.key.port = p
	b.portSet = true
	return b
}

// Path sets the precondition path.
func (b *Builder) Path(p string) *Builder {
	b.key.path = p
	b.pathSet = true
	return b
}

// AnyPath widens the path component to "any", the counterpart of AnyHost,
// used by the bundle loader's ignorePath item flag.
func (b *Builder) AnyPath() *Builder {
	b.pathSet = false
	return b
}

// AnyQuery widens the query component to "any", the counterpart of
// AnyPath/AnyHost, used by the bundle loader's ignoreQuery item flag.
func (b *Builder) AnyQuery() *Builder {
	b.querySet = false
	return b
}

// Query sets the precondition query, compared verbatim.
func (b *Builder) Query(raw string) *Builder {
	b.key.query = raw
	b.key.queryMode = recipe.QueryVerbatim
	b.querySet = true
	return b
}

// QueryParams sets the precondition query, compared as an unordered set of
// k=v pairs.
func (b *Builder) QueryParams(raw string) *Builder {
	b.key.query = raw
	b.key.queryMode = recipe.QuerySet
	b.querySet = true
	return b
}

// HeaderEquals attaches a header-equality sub-matcher.
func (b *Builder) HeaderEquals(name string, want ...string) *Builder {
	b.spec.Matchers = append(b.spec.Matchers, matcher.HeaderEqualsFold(name, want...))
	return b
}

// HeaderPresent attaches a header-presence sub-matcher.
func (b *Builder) HeaderPresent(name string) *Builder {
	b.spec.Matchers = append(b.spec.Matchers, matcher.HeaderPresent(name))
	return b
}

// Content attaches a request-content predicate sub-matcher.
func (b *Builder) Content(fn func(body []byte) bool) *Builder {
	b.spec.Matchers = append(b.spec.Matchers, matcher.Content(fn))
	return b
}

// Matches attaches a raw-request predicate sub-matcher. When used without
// any canonical precondition setter (Method/Scheme/Host/Port/Path/Query),
// the resulting Recipe registers as a free-form predicate Recipe rather
// than a canonical-keyed one.
func (b *Builder) Matches(fn func(req *httpmock.Request) bool) *Builder {
	b.spec.Matchers = append(b.spec.Matchers, matcher.Predicate(fn))
	b.spec.IsPredicate = true
	return b
}

// Priority sets the Recipe's selection priority. Only predicate Recipes
// consult it, when several of them accept the same request; canonical
// Recipes ignore it. Negative priorities are a BuilderError raised at
// registration time.
func (b *Builder) Priority(p int) *Builder {
	if p < 0 {
		b.err = &httpmock.BuilderError{Reason: "negative priority"}
		return b
	}
	v := p
	b.spec.Priority = &v
	return b
}

// --- Postconditions (the "responds()" phase) ---

// Responds is a no-op phase marker kept for readability at call sites,
// separating precondition calls from postcondition calls.
func (b *Builder) Responds() *Builder { return b }

// Status sets the response status code.
func (b *Builder) Status(code int) *Builder {
	b.spec.Status = code
	return b
}

// Reason sets the response reason phrase.
func (b *Builder) Reason(r string) *Builder {
	b.spec.Reason = r
	return b
}

// Version sets the response protocol version.
func (b *Builder) Version(major, minor int) *Builder {
	b.spec.ProtoMajor, b.spec.ProtoMinor = major, minor
	return b
}

// ResponseHeader adds a static response (message) header.
func (b *Builder) ResponseHeader(name, value string) *Builder {
	if b.spec.ResponseHdrs.Static == nil {
		b.spec.ResponseHdrs.Static = http.Header{}
	}
	b.spec.ResponseHdrs.Static.Add(name, value)
	return b
}

// ResponseHeaderThunk installs a thunk merged over the static response
// headers at dispatch time.
func (b *Builder) ResponseHeaderThunk(fn func(ctx context.Context, req *httpmock.Request) (http.Header, error)) *Builder {
	b.spec.ResponseHdrs.Thunk = fn
	return b
}

// ContentHeader adds a static content (entity) header.
func (b *Builder) ContentHeader(name, value string) *Builder {
	if b.spec.ContentHdrs.Static == nil {
		b.spec.ContentHdrs.Static = http.Header{}
	}
	b.spec.ContentHdrs.Static.Add(name, value)
	return b
}

// ContentHeaderThunk installs a thunk merged over the static content
// headers at dispatch time.
func (b *Builder) ContentHeaderThunk(fn func(ctx context.Context, req *httpmock.Request) (http.Header, error)) *Builder {
	b.spec.ContentHdrs.Thunk = fn
	return b
}

// ContentType is a media-type convenience that reduces to a primitive
// content header.
func (b *Builder) ContentType(mediaType string) *Builder {
	return b.ContentHeader("Content-Type", mediaType)
}

// ContentEncoding is a gzip-passthrough-marker convenience that reduces to
// a primitive content header: it tells the host the body is already
// encoded as enc (e.g. "gzip") and must not be re-encoded or transparently
// decoded on the way out.
func (b *Builder) ContentEncoding(enc string) *Builder {
	return b.ContentHeader("Content-Encoding", enc)
}

// Body sets a static response body.
func (b *Builder) Body(b2 []byte) *Builder {
	b.spec.Content = recipe.StaticBytes(b2)
	return b
}

// BodyThunk sets a synchronous byte-thunk response body.
func (b *Builder) BodyThunk(fn func(ctx context.Context, req *httpmock.Request) ([]byte, error)) *Builder {
	b.spec.Content = recipe.ByteThunk(fn)
	return b
}

// AsyncBodyThunk sets an async byte-thunk response body.
func (b *Builder) AsyncBodyThunk(fn func(ctx context.Context, req *httpmock.Request) ([]byte, error)) *Builder {
	b.spec.Content = recipe.AsyncByteThunk(fn)
	return b
}

// StreamBody sets a stream-thunk response body, opened fresh on each
// dispatch.
func (b *Builder) StreamBody(fn func(ctx context.Context, req *httpmock.Request) (httpReader, error)) *Builder {
	b.spec.Content = recipe.StreamThunk(fn)
	return b
}

// JSON is a convenience postcondition that sets the status, a
// Content-Type: application/json content header and a static body
// marshaled from v, reducing to the primitive Status/ContentType/Body
// calls. Struct marshaling is stdlib's job; gjson/sjson operate on
// already-serialized JSON text, not arbitrary Go values, so they have no
// role here.
func (b *Builder) JSON(status int, v any) *Builder {
	data, err := json.Marshal(v)
	if err != nil {
		b.err = &httpmock.BuilderError{Reason: "invalid JSON content: " + err.Error()}
		return b
	}
	return b.Status(status).ContentType("application/json").Body(data)
}

// PreDispatch installs the pre-dispatch callback. Errors it returns
// propagate unchanged, wrapped as *httpmock.UserCallbackError.
func (b *Builder) PreDispatch(fn func(ctx context.Context, req *httpmock.Request) error) *Builder {
	b.spec.PreDispatch = fn
	return b
}

// Reusable sets the reusable flag (default true, see New).
func (b *Builder) Reusable(v bool) *Builder {
	b.spec.Reusable = v
	return b
}

// UserData sets the opaque data map passed to callbacks.
func (b *Builder) UserData(data map[string]any) *Builder {
	b.spec.UserData = data
	return b
}

// RegisterWith snapshots the current Builder state into a Recipe and
// installs it into reg, then returns the Recipe. The Builder itself is
// left untouched so further chained registrations can reuse it.
func (b *Builder) RegisterWith(reg Registerer) (*recipe.Recipe, error) {
	if b.err != nil {
		return nil, b.err
	}
	spec := b.spec
	if spec.IsPredicate && (b.methodSet || b.schemeSet || b.hostSet || b.portSet || b.pathSet || b.querySet) {
		spec.IsPredicate = false
	}
	if !spec.IsPredicate {
		spec.Key = b.canonicalKey()
	}
	r := recipe.New(spec)
	if r.IsPredicate() {
		reg.RegisterPredicate(r)
	} else {
		reg.Register(r)
	}
	return r, nil
}

func (b *Builder) canonicalKey() recipe.CanonicalKey {
	method := recipe.Any()
	if b.methodSet {
		method = recipe.Exact(b.key.method)
	}
	scheme := recipe.Any()
	if b.schemeSet {
		scheme = recipe.Exact(b.key.scheme)
	}
	host := recipe.Any()
	if b.hostSet && !b.key.anyHost {
		host = recipe.Exact(b.key.host)
	}
	port := recipe.Any()
	if b.portSet {
		port = recipe.Exact(b.key.port)
	}
	path := recipe.Any()
	if b.pathSet {
		path = recipe.Exact(b.key.path)
	}
	query := recipe.AnyQuery()
	if b.querySet {
		if b.key.queryMode == recipe.QuerySet {
			query = recipe.SetQuery(b.key.query)
		} else {
			query = recipe.VerbatimQuery(b.key.query)
		}
	}
	return recipe.NewCanonicalKey(method, scheme, host, port, path, query)
}

// httpReader is exactly io.Reader, aliased so StreamBody's intent is
// obvious at the call site.
type httpReader = io.Reader
