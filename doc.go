// Package httpmock provides the request and response primitives shared by
// the matching-and-dispatch engine: httpmock/matcher, httpmock/recipe,
// httpmock/builder, httpmock/registry, httpmock/dispatcher and httpmock/hook.
//
// httpmock never opens a socket and never parses HTTP off the wire. A
// Request is a structured value the host's HTTP client plumbing hands to a
// Hook; the engine matches it against a registry.Registry of pre-declared
// recipe.Recipe values and synthesizes a Response locally.
//
// A typical test wires things up as:
//
//	reg := registry.New(nil)
//	builder.New().
//		Get().Scheme("https").Host("api.example").Path("/terms").
//		Responds().JSON(200, map[string]any{"id": 1}).
//		RegisterWith(reg)
//
//	h := hook.New(reg)
//	resp, err := h.Handle(ctx, req)
package httpmock
