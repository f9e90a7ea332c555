package registry_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itnpc/httpmock"
	"github.com/itnpc/httpmock/builder"
	"github.com/itnpc/httpmock/recipe"
	"github.com/itnpc/httpmock/registry"
)

func req(host, path string) *httpmock.Request {
	return httpmock.NewRequest(context.Background(), "GET", httpmock.URI{Host: host, Path: path}, nil, nil)
}

func TestRegistry_ScopeIsolation(t *testing.T) {
	reg := registry.New(nil)
	_, err := builder.New().Get().Host("a.example").Path("/x").Status(1).RegisterWith(reg)
	require.NoError(t, err)

	h := reg.BeginScope()
	_, err = builder.New().Get().Host("b.example").Path("/y").Status(2).RegisterWith(reg)
	require.NoError(t, err)

	rec, ok := reg.Lookup(req("b.example", "/y"))
	require.True(t, ok)
	assert.Equal(t, 2, statusOf(t, rec))

	require.NoError(t, reg.EndScope(h))

	_, ok = reg.Lookup(req("b.example", "/y"))
	assert.False(t, ok, "R2 must not be observable after EndScope")

	rec, ok = reg.Lookup(req("a.example", "/x"))
	require.True(t, ok)
	assert.Equal(t, 1, statusOf(t, rec))
}

func TestRegistry_ScopeShadowing(t *testing.T) {
	reg := registry.New(nil)
	_, err := builder.New().Get().Host("api.example").Path("/v").Status(1).RegisterWith(reg)
	require.NoError(t, err)

	h := reg.BeginScope()
	_, err = builder.New().Get().Host("api.example").Path("/v").Status(2).RegisterWith(reg)
	require.NoError(t, err)

	rec, ok := reg.Lookup(req("api.example", "/v"))
	require.True(t, ok)
	assert.Equal(t, 2, statusOf(t, rec))

	require.NoError(t, reg.EndScope(h))
	rec, ok = reg.Lookup(req("api.example", "/v"))
	require.True(t, ok)
	assert.Equal(t, 1, statusOf(t, rec))
}

func TestRegistry_EndScopeOutOfOrderIsScopeMisuse(t *testing.T) {
	reg := registry.New(nil)
	h1 := reg.BeginScope()
	_ = reg.BeginScope()
	err := reg.EndScope(h1)
	assert.ErrorIs(t, err, httpmock.ErrScopeMisuse)
}

func TestRegistry_EndScopeOnRootIsScopeMisuse(t *testing.T) {
	reg := registry.New(nil)
	err := reg.EndScope(registry.ScopeHandle("nonexistent"))
	assert.ErrorIs(t, err, httpmock.ErrScopeMisuse)
}

func TestRegistry_PriorityOrdersPredicateSelection(t *testing.T) {
	reg := registry.New(nil)
	_, err := builder.New().
		Matches(func(r *httpmock.Request) bool { return r.URI.Host == "google.com" }).
		Priority(1).Status(1).Body([]byte("A")).RegisterWith(reg)
	require.NoError(t, err)
	_, err = builder.New().
		Matches(func(r *httpmock.Request) bool { return strings.Contains(r.URI.Host, "google") }).
		Priority(2).Status(2).Body([]byte("B")).RegisterWith(reg)
	require.NoError(t, err)
	_, err = builder.New().
		Matches(func(r *httpmock.Request) bool { return true }).
		Status(3).Body([]byte("D")).RegisterWith(reg)
	require.NoError(t, err)

	rec, ok := reg.Lookup(req("google.com", "/"))
	require.True(t, ok)
	assert.Equal(t, "A", bodyOf(t, rec))

	rec, ok = reg.Lookup(req("google.co.uk", "/"))
	require.True(t, ok)
	assert.Equal(t, "B", bodyOf(t, rec))

	rec, ok = reg.Lookup(req("example.org", "/"))
	require.True(t, ok)
	assert.Equal(t, "D", bodyOf(t, rec))
}

func TestRegistry_EqualPriorityBreaksTieByRecency(t *testing.T) {
	reg := registry.New(nil)
	always := func(*httpmock.Request) bool { return true }
	_, err := builder.New().Matches(always).Priority(1).Status(1).Body([]byte("first")).RegisterWith(reg)
	require.NoError(t, err)
	_, err = builder.New().Matches(always).Priority(1).Status(1).Body([]byte("second")).RegisterWith(reg)
	require.NoError(t, err)

	rec, ok := reg.Lookup(req("x", "/"))
	require.True(t, ok)
	assert.Equal(t, "second", bodyOf(t, rec))
}

func TestRegistry_BareKeyReRegistrationReplacesInSameScope(t *testing.T) {
	reg := registry.New(nil)
	_, err := builder.New().Get().Host("api.example").Path("/x").Status(1).RegisterWith(reg)
	require.NoError(t, err)
	_, err = builder.New().Get().Host("api.example").Path("/x").Status(2).RegisterWith(reg)
	require.NoError(t, err)

	rec, ok := reg.Lookup(req("api.example", "/x"))
	require.True(t, ok)
	assert.Equal(t, 2, statusOf(t, rec))
}

func TestRegistry_DeregisterOnlyAffectsTopScope(t *testing.T) {
	reg := registry.New(nil)
	key := recipe.NewCanonicalKey(
		recipe.Exact("GET"), recipe.Any(), recipe.Exact("api.example"), recipe.Any(), recipe.Exact("/x"), recipe.AnyQuery(),
	)
	_, err := builder.New().Get().Host("api.example").Path("/x").Status(1).RegisterWith(reg)
	require.NoError(t, err)

	h := reg.BeginScope()
	_, err = builder.New().Get().Host("api.example").Path("/x").Status(2).RegisterWith(reg)
	require.NoError(t, err)
	assert.True(t, reg.Deregister(key), "the inner scope's own registration at this key should be removed")

	// the inner layer is now empty at this key, so lookup falls through to
	// the outer layer's original Recipe — deregister never reaches down
	// into a lower scope.
	rec, ok := reg.Lookup(req("api.example", "/x"))
	require.True(t, ok)
	assert.Equal(t, 1, statusOf(t, rec))

	require.NoError(t, reg.EndScope(h))
	rec, ok = reg.Lookup(req("api.example", "/x"))
	require.True(t, ok)
	assert.Equal(t, 1, statusOf(t, rec))
}

func TestRegistry_MissingWithStrictModeFails(t *testing.T) {
	reg := registry.New(&registry.Config{ThrowOnUnmatched: true})
	_, ok := reg.Lookup(req("nobody.example", "/"))
	assert.False(t, ok)
}

func TestRegistry_EventsObservesDispatchOutcome(t *testing.T) {
	reg := registry.New(&registry.Config{EventBuffer: 4})
	_, err := builder.New().Get().Host("api.example").Path("/x").Status(200).RegisterWith(reg)
	require.NoError(t, err)

	rec, ok := reg.Lookup(req("api.example", "/x"))
	require.True(t, ok)
	reg.RecordDispatch(registry.DispatchEvent{RecipeID: rec.ID(), Result: registry.ResultMatched})

	select {
	case evt := <-reg.Events():
		assert.Equal(t, registry.ResultMatched, evt.Result)
		assert.Equal(t, rec.ID(), evt.RecipeID)
	default:
		t.Fatal("expected an event on the buffered channel")
	}
}

func TestRegistry_EventsNilWithoutBuffer(t *testing.T) {
	reg := registry.New(nil)
	assert.Nil(t, reg.Events())
}

func TestRegistry_ConcurrentLookupsDoNotRace(t *testing.T) {
	reg := registry.New(nil)
	_, err := builder.New().Get().Host("api.example").Path("/x").Status(1).RegisterWith(reg)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = reg.Lookup(req("api.example", "/x"))
		}()
	}
	wg.Wait()
}

func statusOf(t *testing.T, r *recipe.Recipe) int {
	t.Helper()
	resp, err := r.Synthesize(context.Background(), req("", ""))
	require.NoError(t, err)
	return resp.StatusCode
}

func bodyOf(t *testing.T, r *recipe.Recipe) string {
	t.Helper()
	resp, err := r.Synthesize(context.Background(), req("", ""))
	require.NoError(t, err)
	b := make([]byte, 64)
	n, _ := resp.Body.Read(b)
	return string(b[:n])
}
