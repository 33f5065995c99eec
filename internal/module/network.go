package module

import (
	"fmt"
	"math/rand"

	"github.com/tangent-ml/tangent/internal/device"
	"github.com/tangent-ml/tangent/internal/network"
)

// Network adapts a layer chain to the Module contract. Its host boundary is
// already in compute precision: in the broader pipeline the network consumes
// encoded activations, so input and output matrices carry the compute
// precision tag and callers are responsible for matching widths.
type Network struct {
	mlp  *network.MLP
	prec device.Precision
}

var _ Module = (*Network)(nil)

func newNetworkModule(mlp *network.MLP) *Network {
	return &Network{mlp: mlp, prec: mlp.Precision()}
}

// InputWidth returns the input activation row count.
func (m *Network) InputWidth() int { return m.mlp.InputWidth() }

// OutputWidth returns the padded output row count.
func (m *Network) OutputWidth() int { return m.mlp.PaddedOutputWidth() }

// ParamCount returns the weight count of the layer chain.
func (m *Network) ParamCount() int { return m.mlp.NumParams() }

// ParamPrecision returns the compute precision.
func (m *Network) ParamPrecision() device.Precision { return m.prec }

func (m *Network) checkCall(n int, input, output *device.Matrix, params *device.Buffer) error {
	if err := checkBatch(n); err != nil {
		return err
	}
	if err := checkMatrix("input", input, m.mlp.InputWidth(), n, m.prec); err != nil {
		return err
	}
	if err := checkMatrix("output", output, m.mlp.PaddedOutputWidth(), n, m.prec); err != nil {
		return err
	}
	return checkParamBuffer("params", params, m.mlp.NumParams(), m.prec)
}

// Inference evaluates the chain binding only the inference parameter slot;
// no activations are retained and no gradient buffers are touched.
func (m *Network) Inference(stream *device.Stream, n int, input, output *device.Matrix, params *device.Buffer) error {
	if err := m.checkCall(n, input, output, params); err != nil {
		return err
	}
	stream.Enqueue(func() error {
		return m.mlp.Inference(stream.Accelerator(), n, params, input, output)
	})
	return nil
}

// Forward evaluates the chain and records the activations its Backward needs.
// prepareInputGradients is threaded through to the chain.
func (m *Network) Forward(stream *device.Stream, n int, input, output *device.Matrix, params *device.Buffer, prepareInputGradients bool) (*Context, error) {
	if err := m.checkCall(n, input, output, params); err != nil {
		return nil, err
	}
	ctx := &Context{owner: m, batch: n, prepared: prepareInputGradients}
	stream.Enqueue(func() error {
		st, err := m.mlp.Forward(stream.Accelerator(), n, params, input, output, prepareInputGradients)
		if err != nil {
			return err
		}
		ctx.netState = st
		return nil
	})
	return ctx, nil
}

// Backward consumes ctx and writes parameter gradients. A nil dLdInput passes
// a nil gradient matrix through; the layer chain degrades gracefully in that
// case, so unlike the encoding variant this is not an error.
func (m *Network) Backward(stream *device.Stream, n int, ctx *Context, dLdInput, dLdOutput *device.Matrix, dLdParams *device.Buffer, input, output *device.Matrix, params *device.Buffer) error {
	if err := checkBatch(n); err != nil {
		return err
	}
	if err := checkMatrix("dL/doutput", dLdOutput, m.mlp.PaddedOutputWidth(), n, m.prec); err != nil {
		return err
	}
	if dLdInput != nil {
		if err := checkMatrix("dL/dinput", dLdInput, m.mlp.InputWidth(), n, m.prec); err != nil {
			return err
		}
	}
	if err := checkParamBuffer("params", params, m.mlp.NumParams(), m.prec); err != nil {
		return err
	}
	if err := checkParamBuffer("dL/dparams", dLdParams, m.mlp.NumParams(), m.prec); err != nil {
		return err
	}
	// Parameter gradients need the recorded activations, so the context is
	// required even when no input gradient is requested; producing an input
	// gradient additionally requires a gradient-prepared forward pass.
	if err := take(ctx, m, n, dLdInput != nil); err != nil {
		return fmt.Errorf("network backward: %w", err)
	}

	stream.Enqueue(func() error {
		return m.mlp.Backward(stream.Accelerator(), n, params, ctx.netState, dLdOutput, dLdInput, dLdParams)
	})
	return nil
}

// InitializeParams deterministically fills paramsFull from the seed using
// Xavier-uniform weights; output padding rows are zero.
func (m *Network) InitializeParams(seed uint64, paramsFull []float32) error {
	if len(paramsFull) != m.mlp.NumParams() {
		return fmt.Errorf("module: parameter slice has %d elements, need %d", len(paramsFull), m.mlp.NumParams())
	}
	rng := rand.New(rand.NewSource(int64(seed)))
	m.mlp.Initialize(rng, paramsFull)
	return nil
}
