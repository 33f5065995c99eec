package module

import (
	"github.com/tangent-ml/tangent/internal/device"
	"github.com/tangent-ml/tangent/internal/network"
)

// Context is the pending-operation value returned by Forward and consumed by
// exactly one Backward. It makes the forward-pending state explicit: a nil or
// consumed context cannot yield an input gradient, so stale or double
// consumption fails the precondition check instead of producing silently
// wrong gradients.
//
// A Context is bound to the module instance and batch size that produced it.
// It is not safe for concurrent use; keeping one in-flight forward/backward
// pair per instance is the caller's responsibility.
type Context struct {
	owner    Module
	batch    int
	prepared bool
	consumed bool

	// fwdGrad holds the encoding's per-sample derivative data. It is
	// populated when the forward task executes and released as soon as
	// the matching backward consumes it.
	fwdGrad *device.Matrix

	// netState is filled in by the network forward task.
	netState *network.ForwardState

	// sub-contexts of a composite pass
	encCtx  *Context
	netCtx  *Context
	encoded *device.Matrix
}

// Prepared reports whether the forward pass retained input-gradient data.
func (c *Context) Prepared() bool { return c != nil && c.prepared }

// Consumed reports whether a backward pass already consumed this context.
func (c *Context) Consumed() bool { return c != nil && c.consumed }

// take validates that ctx belongs to m with batch n and marks it consumed.
// needPrepared additionally demands retained input-gradient data.
func take(ctx *Context, m Module, n int, needPrepared bool) error {
	if ctx == nil {
		return ErrNoContext
	}
	if ctx.owner != m || ctx.batch != n {
		return ErrContextMismatch
	}
	if ctx.consumed {
		return ErrContextConsumed
	}
	if needPrepared && !ctx.prepared {
		return ErrNoContext
	}
	ctx.consumed = true
	return nil
}
