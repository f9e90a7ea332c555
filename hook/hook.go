// Package hook implements the thin adapter exposing the Dispatcher
// through whatever seam the host's HTTP stack expects. It has no state of
// its own beyond a Registry reference; the host's actual client plumbing
// and its factory glue live outside this package.
package hook

import (
	"context"

	"github.com/itnpc/httpmock"
	"github.com/itnpc/httpmock/dispatcher"
	"github.com/itnpc/httpmock/registry"
)

// Hook is the single sink the host's HTTP stack calls into. Its shape
// (ctx + Request in, Response + error out) is intentionally the only
// thing this package specifies: whatever adapter code translates the
// host's native request/response types at the actual extension seam is
// the host's own factory glue, left out of the core.
type Hook struct {
	d *dispatcher.Dispatcher
}

// New builds a Hook over reg, each call opening its own Dispatcher (the
// Dispatcher is stateless beyond the Registry reference, so sharing one
// or minting fresh ones per Hook is equivalent).
func New(reg *registry.Registry) *Hook {
	return &Hook{d: dispatcher.New(reg)}
}

// Handle delegates to the Dispatcher.
func (h *Hook) Handle(ctx context.Context, req *httpmock.Request) (*httpmock.Response, error) {
	return h.d.Dispatch(ctx, req)
}
