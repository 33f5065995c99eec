package module

import "errors"

// Contract-violation sentinels. These indicate a broken call sequence, not a
// recoverable runtime condition; the caller must restructure its calls.
var (
	// ErrNoContext is returned when Backward demands an input gradient
	// without a gradient-prepared Forward context.
	ErrNoContext = errors.New("module: input gradient requested without a gradient-prepared forward pass")

	// ErrContextConsumed is returned when a Forward context is passed to
	// Backward a second time.
	ErrContextConsumed = errors.New("module: forward context already consumed by a previous backward pass")

	// ErrContextMismatch is returned when a context is passed to a module
	// other than the one that produced it, or with a different batch size.
	ErrContextMismatch = errors.New("module: forward context does not match this backward call")
)
