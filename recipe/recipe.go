// Package recipe implements the Recipe (interception entry) data model: an
// immutable-at-registration snapshot of what to match and how to respond,
// self-contained enough to own its own matching and response synthesis.
package recipe

import (
	"context"

	"github.com/google/uuid"

	"github.com/itnpc/httpmock"
	"github.com/itnpc/httpmock/matcher"
)

// Spec is the mutable description a Builder assembles before registering.
// Recipe.New takes a defensive snapshot of Spec so later mutation of the
// Spec (or the Builder that produced it) never reaches an already
// registered Recipe.
type Spec struct {
	IsPredicate bool
	Key         CanonicalKey
	Matchers    []matcher.Matcher

	Priority *int

	Status       int
	Reason       string
	ProtoMajor   int
	ProtoMinor   int
	ResponseHdrs HeaderSource
	ContentHdrs  HeaderSource
	Content      ContentProducer

	PreDispatch func(ctx context.Context, req *httpmock.Request) error
	Reusable    bool
	UserData    map[string]any
}

// Recipe is the immutable snapshot produced from a Spec.
type Recipe struct {
	id          string
	isPredicate bool
	key         CanonicalKey
	matchers    []matcher.Matcher

	priority *int

	status       int
	reason       string
	protoMajor   int
	protoMinor   int
	responseHdrs HeaderSource
	contentHdrs  HeaderSource
	content      ContentProducer

	preDispatch func(ctx context.Context, req *httpmock.Request) error
	reusable    bool
	userData    map[string]any
}

// New snapshots spec into an immutable Recipe.
func New(spec Spec) *Recipe {
	status := spec.Status
	if status == 0 {
		status = 200
	}
	protoMajor, protoMinor := spec.ProtoMajor, spec.ProtoMinor
	if protoMajor == 0 && protoMinor == 0 {
		protoMajor, protoMinor = 1, 1
	}
	content := spec.Content
	if content == nil {
		content = StaticBytes(nil)
	}

	return &Recipe{
		id:           uuid.NewString(),
		isPredicate:  spec.IsPredicate,
		key:          spec.Key,
		matchers:     append([]matcher.Matcher(nil), spec.Matchers...),
		priority:     clonePriority(spec.Priority),
		status:       status,
		reason:       spec.Reason,
		protoMajor:   protoMajor,
		protoMinor:   protoMinor,
		responseHdrs: cloneHeaderSource(spec.ResponseHdrs),
		contentHdrs:  cloneHeaderSource(spec.ContentHdrs),
		content:      content,
		preDispatch:  spec.PreDispatch,
		reusable:     spec.Reusable,
		userData:     cloneUserData(spec.UserData),
	}
}

func clonePriority(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneHeaderSource(h HeaderSource) HeaderSource {
	return HeaderSource{Static: cloneHeader(h.Static), Thunk: h.Thunk}
}

func cloneUserData(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// ID is a unique identifier assigned at snapshot time.
func (r *Recipe) ID() string { return r.id }

// IsPredicate reports whether this Recipe was registered as a free-form
// predicate Recipe rather than a canonical-keyed one.
func (r *Recipe) IsPredicate() bool { return r.isPredicate }

// Key returns the canonical key. Only meaningful when !IsPredicate().
func (r *Recipe) Key() CanonicalKey { return r.key }

// Priority returns the Recipe's priority, or nil if absent (absent sorts
// as lowest).
func (r *Recipe) Priority() *int { return r.priority }

// HasMatchers reports whether any sub-matcher is attached beyond the
// canonical key itself. The registry uses this to decide whether
// registering a new bare-key Recipe truly replaces an older one at the
// same key, or whether the two coexist and are disambiguated by
// sub-matchers at lookup time — multiple Recipes may share a canonical
// key, and registration order matters.
func (r *Recipe) HasMatchers() bool { return len(r.matchers) > 0 }

// PriorityRank returns an int usable for ordering: absent priority sorts
// below every explicit, non-negative priority.
func (r *Recipe) PriorityRank() int {
	if r.priority == nil {
		return -1
	}
	return *r.priority
}

// UserData returns the opaque data passed to callbacks, or nil.
func (r *Recipe) UserData() map[string]any { return r.userData }

// Reusable reports whether the Recipe may dispatch more than once.
func (r *Recipe) Reusable() bool { return r.reusable }

// Accepts reports whether req satisfies this Recipe's full matching
// contract: for a canonical Recipe, the canonical key plus every attached
// sub-matcher must accept; for a predicate Recipe, every attached matcher
// alone.
func (r *Recipe) Accepts(req *httpmock.Request) bool {
	if !r.isPredicate && !r.key.Matches(req) {
		return false
	}
	return matcher.MatchAll(r.matchers...).IsMatch(req)
}

// RunPreDispatch invokes the pre-dispatch callback, if any, wrapping any
// failure as *httpmock.UserCallbackError.
func (r *Recipe) RunPreDispatch(ctx context.Context, req *httpmock.Request) error {
	if r.preDispatch == nil {
		return nil
	}
	if err := r.preDispatch(ctx, req); err != nil {
		return &httpmock.UserCallbackError{Cause: err}
	}
	return nil
}

// Synthesize resolves response/content header thunks over their static
// bases, then opens the content producer. Status in the 5xx range is
// returned as a structured response exactly like any other; translating it
// into a client-side exception is the host's job, not ours.
func (r *Recipe) Synthesize(ctx context.Context, req *httpmock.Request) (*httpmock.Response, error) {
	respHdrs, err := r.responseHdrs.Resolve(ctx, req)
	if err != nil {
		return nil, &httpmock.UserCallbackError{Cause: err}
	}
	contentHdrs, err := r.contentHdrs.Resolve(ctx, req)
	if err != nil {
		return nil, &httpmock.UserCallbackError{Cause: err}
	}
	body, err := r.content.Produce(ctx, req)
	if err != nil {
		return nil, &httpmock.UserCallbackError{Cause: err}
	}
	return &httpmock.Response{
		StatusCode:     r.status,
		ReasonPhrase:   r.reason,
		ProtoMajor:     r.protoMajor,
		ProtoMinor:     r.protoMinor,
		MessageHeaders: respHdrs,
		EntityHeaders:  contentHdrs,
		Body:           body,
	}, nil
}
