// Package registry implements the Registry: an ordered store of Recipes,
// keyed by canonical fingerprint or tracked as a predicate list, with a
// stack of scope layers for temporary overrides. Mutations take the write
// side of one RWMutex; lookups take its read side and may run in parallel.
package registry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/itnpc/httpmock"
	"github.com/itnpc/httpmock/internal/log"
	"github.com/itnpc/httpmock/recipe"
)

// ScopeHandle identifies a pushed scope layer. BeginScope/EndScope pairs
// must be LIFO; a handle that doesn't match the current top layer is a
// ScopeMisuse.
type ScopeHandle string

// MissingRecipeFunc is the onMissingRecipe fallback. A nil response with a
// nil error means "abstain" — the Dispatcher falls through to
// throwOnUnmatched / the permissive sentinel.
type MissingRecipeFunc func(ctx context.Context, req *httpmock.Request) (*httpmock.Response, error)

// GlobalMutator runs after every synthesized response, matched or not.
// Mutators see the final request and may edit resp in place; they never
// change the dispatch outcome.
type GlobalMutator func(ctx context.Context, req *httpmock.Request, resp *httpmock.Response)

// Config configures a Registry at construction. A nil Config is all
// defaults: permissive mode, no fallback, no mutators, a nop logger.
type Config struct {
	ThrowOnUnmatched bool
	OnMissingRecipe  MissingRecipeFunc
	GlobalMutators   []GlobalMutator
	Logger           log.Logger
	// EventBuffer sizes the channel returned by Events. 0 disables event
	// emission entirely (Events returns nil).
	EventBuffer int
}

// DispatchResult classifies how one dispatch concluded, for DispatchEvent.
type DispatchResult string

const (
	ResultMatched             DispatchResult = "matched"
	ResultUnmatchedPermissive DispatchResult = "unmatched-permissive"
	ResultUnmatchedStrict     DispatchResult = "unmatched-strict"
	ResultCancelled           DispatchResult = "cancelled"
)

// DispatchEvent is an observational record of one dispatch. It never
// affects the dispatch outcome.
type DispatchEvent struct {
	RecipeID string
	Result   DispatchResult
	Took     time.Duration
}

// DispatchStats are running counters exposed read-only off the Registry,
// useful for test assertions ("was this recipe hit exactly once") without
// the host needing its own bookkeeping.
type DispatchStats struct {
	Total     int64
	Matched   int64
	Unmatched int64
	Cancelled int64
	ByRecipe  map[string]int64
}

// layer is one entry in the scope stack: its own canonical-key bucket and
// predicate list, so popping a scope discards exactly what was added while
// it was on top.
type layer struct {
	handle ScopeHandle

	// canonical holds canonical-keyed Recipes in registration order. A
	// request may match several entries sharing a base key but
	// disambiguated by sub-matchers; Lookup walks this slice
	// most-recent-first so, among entries that all accept a request, the
	// latest registration wins.
	canonical []*recipe.Recipe
	// bareKeyIndex tracks the single bare (no sub-matcher) Recipe
	// currently holding a given key in this layer, so re-registering a
	// bare key actually evicts the old entry instead of just shadowing
	// it (bounding growth for the common re-stub-in-place usage).
	bareKeyIndex map[recipe.CanonicalKey]*recipe.Recipe

	predicates []*recipe.Recipe
}

func newLayer(h ScopeHandle) *layer {
	return &layer{handle: h, bareKeyIndex: map[recipe.CanonicalKey]*recipe.Recipe{}}
}

// Registry is the scope-stacked store of Recipes. The zero value is not
// usable; construct with New.
type Registry struct {
	mu     sync.RWMutex
	layers []*layer

	throwOnUnmatched bool
	onMissingRecipe  MissingRecipeFunc
	mutators         []GlobalMutator
	log              log.Logger

	statsMu sync.Mutex
	stats   DispatchStats
	events  chan DispatchEvent
}

// New constructs an empty Registry with one base scope layer that can
// never be popped. cfg may be nil for all defaults.
func New(cfg *Config) *Registry {
	if cfg == nil {
		cfg = &Config{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Nop()
	}
	var events chan DispatchEvent
	if cfg.EventBuffer > 0 {
		events = make(chan DispatchEvent, cfg.EventBuffer)
	}
	root := newLayer("")
	return &Registry{
		layers:           []*layer{root},
		throwOnUnmatched: cfg.ThrowOnUnmatched,
		onMissingRecipe:  cfg.OnMissingRecipe,
		mutators:         append([]GlobalMutator(nil), cfg.GlobalMutators...),
		log:              logger,
		stats:            DispatchStats{ByRecipe: map[string]int64{}},
		events:           events,
	}
}

// Register installs a canonical-keyed Recipe into the top scope layer,
// replacing any prior bare (no sub-matcher) Recipe at the same key within
// that layer. A Recipe that also carries sub-matchers is appended alongside
// any existing same-key entries instead, since the two are distinguished at
// lookup time, not at the index — multiple Recipes may share a canonical
// key, disambiguated by their sub-matchers.
func (r *Registry) Register(rec *recipe.Recipe) {
	r.mu.Lock()
	defer r.mu.Unlock()
	top := r.top()
	if !rec.HasMatchers() {
		if old, ok := top.bareKeyIndex[rec.Key()]; ok {
			top.canonical = removeRecipe(top.canonical, old)
		}
		top.bareKeyIndex[rec.Key()] = rec
	}
	top.canonical = append(top.canonical, rec)
	r.log.Debug("register", "id", rec.ID(), "predicate", false)
}

// RegisterPredicate appends a free-form predicate Recipe to the top scope
// layer's predicate list.
func (r *Registry) RegisterPredicate(rec *recipe.Recipe) {
	r.mu.Lock()
	defer r.mu.Unlock()
	top := r.top()
	top.predicates = append(top.predicates, rec)
	r.log.Debug("register", "id", rec.ID(), "predicate", true)
}

// Deregister removes the bare Recipe at key from the top scope layer, if
// any. It never touches lower layers. Reports whether anything was
// removed.
func (r *Registry) Deregister(key recipe.CanonicalKey) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	top := r.top()
	old, ok := top.bareKeyIndex[key]
	if !ok {
		return false
	}
	top.canonical = removeRecipe(top.canonical, old)
	delete(top.bareKeyIndex, key)
	r.log.Debug("deregister", "id", old.ID())
	return true
}

// DeregisterRecipe removes a specific Recipe instance from the top scope
// layer, whichever list it lives in. Reports whether it was found.
func (r *Registry) DeregisterRecipe(rec *recipe.Recipe) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeFromTop(rec)
}

func (r *Registry) removeFromTop(rec *recipe.Recipe) bool {
	top := r.top()
	if idx := indexOfRecipe(top.canonical, rec); idx >= 0 {
		top.canonical = append(top.canonical[:idx], top.canonical[idx+1:]...)
		if top.bareKeyIndex[rec.Key()] == rec {
			delete(top.bareKeyIndex, rec.Key())
		}
		return true
	}
	if idx := indexOfRecipe(top.predicates, rec); idx >= 0 {
		top.predicates = append(top.predicates[:idx], top.predicates[idx+1:]...)
		return true
	}
	return false
}

// BeginScope pushes a new, empty scope layer and returns a handle used to
// pop it again.
func (r *Registry) BeginScope() ScopeHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := ScopeHandle(uuid.NewString())
	r.layers = append(r.layers, newLayer(h))
	r.log.Debug("begin_scope", "handle", string(h))
	return h
}

// EndScope pops the top scope layer, discarding everything registered into
// it. h must match the current top layer's handle exactly; a mismatch, or
// popping the un-poppable root layer, is ErrScopeMisuse.
func (r *Registry) EndScope(h ScopeHandle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.layers) <= 1 {
		return httpmock.ErrScopeMisuse
	}
	top := r.layers[len(r.layers)-1]
	if top.handle != h {
		return httpmock.ErrScopeMisuse
	}
	r.layers = r.layers[:len(r.layers)-1]
	r.log.Debug("end_scope", "handle", string(h))
	return nil
}

// top returns the current top layer. Callers must hold r.mu.
func (r *Registry) top() *layer { return r.layers[len(r.layers)-1] }

// Lookup selects the Recipe that should handle req: scan canonical entries
// layer by layer (innermost first), then fall back to a global
// priority/recency scan across every layer's predicate list.
func (r *Registry) Lookup(req *httpmock.Request) (*recipe.Recipe, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := len(r.layers) - 1; i >= 0; i-- {
		l := r.layers[i]
		for j := len(l.canonical) - 1; j >= 0; j-- {
			if l.canonical[j].Accepts(req) {
				return l.canonical[j], true
			}
		}
	}

	var best *recipe.Recipe
	bestRank := 0
	bestLayer := -1
	bestSeq := -1
	for i, l := range r.layers {
		for j, p := range l.predicates {
			if !p.Accepts(req) {
				continue
			}
			rank := p.PriorityRank()
			if best == nil || rank > bestRank ||
				(rank == bestRank && (i > bestLayer || (i == bestLayer && j > bestSeq))) {
				best, bestRank, bestLayer, bestSeq = p, rank, i, j
			}
		}
	}
	if best != nil {
		return best, true
	}
	return nil, false
}

// Consume removes a non-reusable Recipe after its first successful
// dispatch, wherever it currently lives across the whole scope stack.
// Unlike Deregister/DeregisterRecipe, this is not limited to the top layer,
// since the Recipe being consumed may have been registered in any
// still-open scope.
func (r *Registry) Consume(rec *recipe.Recipe) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.layers {
		if idx := indexOfRecipe(l.canonical, rec); idx >= 0 {
			l.canonical = append(l.canonical[:idx], l.canonical[idx+1:]...)
			if l.bareKeyIndex[rec.Key()] == rec {
				delete(l.bareKeyIndex, rec.Key())
			}
			r.log.Debug("consume", "id", rec.ID())
			return
		}
		if idx := indexOfRecipe(l.predicates, rec); idx >= 0 {
			l.predicates = append(l.predicates[:idx], l.predicates[idx+1:]...)
			r.log.Debug("consume", "id", rec.ID())
			return
		}
	}
}

// ThrowOnUnmatched reports the strict-mode flag.
func (r *Registry) ThrowOnUnmatched() bool { return r.throwOnUnmatched }

// OnMissingRecipe returns the configured fallback, or nil.
func (r *Registry) OnMissingRecipe() MissingRecipeFunc { return r.onMissingRecipe }

// ApplyGlobalMutators runs every configured mutator, in registration order,
// over resp.
func (r *Registry) ApplyGlobalMutators(ctx context.Context, req *httpmock.Request, resp *httpmock.Response) {
	for _, m := range r.mutators {
		m(ctx, req, resp)
	}
}

// Logger returns the Registry's configured logger, used by the Dispatcher
// to trace dispatch outcomes at the same verbosity the Registry logs
// mutations at.
func (r *Registry) Logger() log.Logger { return r.log }

// RecordDispatch updates the running DispatchStats and, if an event channel
// was configured, offers evt to it without blocking — a full channel drops
// the event rather than stall a dispatch.
func (r *Registry) RecordDispatch(evt DispatchEvent) {
	r.statsMu.Lock()
	r.stats.Total++
	switch evt.Result {
	case ResultMatched:
		r.stats.Matched++
		r.stats.ByRecipe[evt.RecipeID]++
	case ResultUnmatchedPermissive, ResultUnmatchedStrict:
		r.stats.Unmatched++
	case ResultCancelled:
		r.stats.Cancelled++
	}
	r.statsMu.Unlock()

	if r.events == nil {
		return
	}
	select {
	case r.events <- evt:
	default:
	}
}

// Stats returns a snapshot of the running dispatch counters.
func (r *Registry) Stats() DispatchStats {
	r.statsMu.Lock()
	defer r.statsMu.Unlock()
	byRecipe := make(map[string]int64, len(r.stats.ByRecipe))
	for k, v := range r.stats.ByRecipe {
		byRecipe[k] = v
	}
	s := r.stats
	s.ByRecipe = byRecipe
	return s
}

// Events returns the channel DispatchEvents are offered to, or nil if no
// EventBuffer was configured.
func (r *Registry) Events() <-chan DispatchEvent { return r.events }

func indexOfRecipe(list []*recipe.Recipe, rec *recipe.Recipe) int {
	for i, c := range list {
		if c == rec {
			return i
		}
	}
	return -1
}

func removeRecipe(list []*recipe.Recipe, rec *recipe.Recipe) []*recipe.Recipe {
	if idx := indexOfRecipe(list, rec); idx >= 0 {
		return append(list[:idx], list[idx+1:]...)
	}
	return list
}
