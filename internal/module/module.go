// Package module implements the differentiable module contract shared by
// encodings, networks, and their composition.
//
// A module never owns parameter storage: parameter and gradient buffers are
// caller-allocated, bound for the duration of one call, and never cached.
// All operations enqueue their work onto the caller's stream and return
// immediately; buffer contents are defined only after the stream is
// synchronized. Backward overwrites the bound gradient buffer; callers
// wanting accumulation across batches keep their own accumulator.
package module

import (
	"fmt"

	"github.com/tangent-ml/tangent/internal/device"
)

// Module is the contract implemented by Encoding, Network, and
// NetworkWithInputEncoding.
type Module interface {
	// Inference evaluates the transform over n samples without touching
	// any gradient state. It is safe to call repeatedly with different
	// parameter buffers.
	Inference(stream *device.Stream, n int, input, output *device.Matrix, params *device.Buffer) error

	// Forward evaluates the transform and returns the pending-operation
	// context its matching Backward consumes. When prepareInputGradients
	// is set the context additionally retains the data needed to produce
	// an input gradient.
	Forward(stream *device.Stream, n int, input, output *device.Matrix, params *device.Buffer, prepareInputGradients bool) (*Context, error)

	// Backward consumes ctx and the upstream gradient dLdOutput, writing
	// parameter gradients into dLdParams (overwrite semantics) and, when
	// dLdInput is non-nil, an input gradient. Requesting an input
	// gradient without a gradient-prepared, unconsumed context is a
	// precondition violation reported synchronously.
	Backward(stream *device.Stream, n int, ctx *Context, dLdInput, dLdOutput *device.Matrix, dLdParams *device.Buffer, input, output *device.Matrix, params *device.Buffer) error

	// InputWidth returns the input dimensionality.
	InputWidth() int
	// OutputWidth returns the padded output dimensionality callers must
	// allocate; rows past the logical width are defined as zero.
	OutputWidth() int
	// ParamCount returns the length of the parameter buffer.
	ParamCount() int
	// ParamPrecision returns the compute precision parameters are bound in.
	ParamPrecision() device.Precision

	// InitializeParams deterministically fills a full-precision parameter
	// slice of length ParamCount from the seed. Two calls with the same
	// seed and configuration produce identical contents.
	InitializeParams(seed uint64, paramsFull []float32) error
}

func checkBatch(n int) error {
	if n <= 0 {
		return fmt.Errorf("module: batch size must be positive, got %d", n)
	}
	return nil
}

func checkParamBuffer(name string, buf *device.Buffer, want int, prec device.Precision) error {
	if buf == nil {
		if want == 0 {
			return nil
		}
		return fmt.Errorf("module: %s buffer is nil, need %d elements", name, want)
	}
	if buf.Len() != want {
		return fmt.Errorf("module: %s buffer has %d elements, need %d", name, buf.Len(), want)
	}
	if buf.Precision() != prec {
		return fmt.Errorf("module: %s buffer is %s, module computes in %s", name, buf.Precision(), prec)
	}
	return nil
}

func checkMatrix(name string, m *device.Matrix, rows, n int, prec device.Precision) error {
	if m == nil {
		return fmt.Errorf("module: %s matrix is nil", name)
	}
	if m.Rows() < rows {
		return fmt.Errorf("module: %s matrix has %d rows, need %d", name, m.Rows(), rows)
	}
	if m.Cols() < n {
		return fmt.Errorf("module: %s matrix has %d columns, batch is %d", name, m.Cols(), n)
	}
	if m.Precision() != prec {
		return fmt.Errorf("module: %s matrix is %s, need %s", name, m.Precision(), prec)
	}
	return nil
}
