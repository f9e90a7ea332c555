// Package dispatcher implements the per-request algorithm that turns an
// outgoing Request into a synthesized Response, a fallback, or a failure,
// staged as build lookup context → consult registry → compute response →
// apply mutators → emit event.
package dispatcher

import (
	"context"
	"time"

	"github.com/itnpc/httpmock"
	"github.com/itnpc/httpmock/registry"
)

// Dispatcher turns a Request into a Response by consulting a Registry.
// It holds no state of its own beyond the Registry reference.
type Dispatcher struct {
	reg *registry.Registry
}

// New returns a Dispatcher backed by reg.
func New(reg *registry.Registry) *Dispatcher {
	return &Dispatcher{reg: reg}
}

// Dispatch runs the dispatch algorithm:
//
//  1. a request already cancelled fails fast, before any lookup;
//  2. the Registry is consulted for a matching Recipe;
//  3. on a miss, onMissingRecipe is tried, then throwOnUnmatched, then
//     the permissive empty-200 sentinel;
//  4. a matched Recipe's pre-dispatch callback runs, cancellation-aware;
//  5. the Recipe's response is synthesized;
//  6. global response mutators run;
//  7. a non-reusable Recipe is consumed;
//  8. the response is returned.
func (d *Dispatcher) Dispatch(ctx context.Context, req *httpmock.Request) (*httpmock.Response, error) {
	start := time.Now()
	log := d.reg.Logger()

	if req.Cancelled() {
		d.reg.RecordDispatch(registry.DispatchEvent{Result: registry.ResultCancelled, Took: time.Since(start)})
		log.Debug("dispatch", "result", "cancelled-before-lookup")
		return nil, httpmock.ErrCancelled
	}

	rec, ok := d.reg.Lookup(req)
	if !ok {
		return d.dispatchMissing(ctx, req, start)
	}

	if err := rec.RunPreDispatch(ctx, req); err != nil {
		if req.Cancelled() {
			d.reg.RecordDispatch(registry.DispatchEvent{RecipeID: rec.ID(), Result: registry.ResultCancelled, Took: time.Since(start)})
			return nil, httpmock.ErrCancelled
		}
		return nil, err
	}
	if req.Cancelled() {
		d.reg.RecordDispatch(registry.DispatchEvent{RecipeID: rec.ID(), Result: registry.ResultCancelled, Took: time.Since(start)})
		return nil, httpmock.ErrCancelled
	}

	resp, err := rec.Synthesize(ctx, req)
	if err != nil {
		if req.Cancelled() {
			d.reg.RecordDispatch(registry.DispatchEvent{RecipeID: rec.ID(), Result: registry.ResultCancelled, Took: time.Since(start)})
			return nil, httpmock.ErrCancelled
		}
		return nil, err
	}
	if req.Cancelled() {
		d.reg.RecordDispatch(registry.DispatchEvent{RecipeID: rec.ID(), Result: registry.ResultCancelled, Took: time.Since(start)})
		return nil, httpmock.ErrCancelled
	}

	d.reg.ApplyGlobalMutators(ctx, req, resp)

	if !rec.Reusable() {
		d.reg.Consume(rec)
	}

	d.reg.RecordDispatch(registry.DispatchEvent{RecipeID: rec.ID(), Result: registry.ResultMatched, Took: time.Since(start)})
	log.Debug("dispatch", "result", "matched", "recipe", rec.ID())
	return resp, nil
}

// dispatchMissing handles a lookup miss: try onMissingRecipe, then
// throwOnUnmatched, then the permissive sentinel.
func (d *Dispatcher) dispatchMissing(ctx context.Context, req *httpmock.Request, start time.Time) (*httpmock.Response, error) {
	log := d.reg.Logger()

	if fallback := d.reg.OnMissingRecipe(); fallback != nil {
		resp, err := fallback(ctx, req)
		if err != nil {
			return nil, &httpmock.UserCallbackError{Cause: err}
		}
		if resp != nil {
			d.reg.ApplyGlobalMutators(ctx, req, resp)
			d.reg.RecordDispatch(registry.DispatchEvent{Result: registry.ResultMatched, Took: time.Since(start)})
			log.Debug("dispatch", "result", "fallback")
			return resp, nil
		}
		// fallback abstained; fall through to strict/permissive handling.
	}

	if d.reg.ThrowOnUnmatched() {
		d.reg.RecordDispatch(registry.DispatchEvent{Result: registry.ResultUnmatchedStrict, Took: time.Since(start)})
		log.Debug("dispatch", "result", "unmatched-strict")
		return nil, httpmock.ErrUnmatchedRequest
	}

	resp := httpmock.EmptyResponse()
	d.reg.ApplyGlobalMutators(ctx, req, resp)
	d.reg.RecordDispatch(registry.DispatchEvent{Result: registry.ResultUnmatchedPermissive, Took: time.Since(start)})
	log.Debug("dispatch", "result", "unmatched-permissive")
	return resp, nil
}
