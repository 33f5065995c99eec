package module

import (
	"fmt"
	"math/rand"

	"github.com/tangent-ml/tangent/internal/device"
	"github.com/tangent-ml/tangent/internal/encoding"
)

// Encoding adapts a coordinate encoder to the Module contract. Input is
// always full precision, output always compute precision.
type Encoding struct {
	enc  encoding.Encoder
	prec device.Precision
}

var _ Module = (*Encoding)(nil)

func newEncodingModule(enc encoding.Encoder, prec device.Precision) *Encoding {
	return &Encoding{enc: enc, prec: prec}
}

// InputWidth returns the number of dimensions to encode.
func (m *Encoding) InputWidth() int { return m.enc.InputWidth() }

// OutputWidth returns the padded encoded dimensionality.
func (m *Encoding) OutputWidth() int { return m.enc.PaddedOutputWidth() }

// ParamCount returns the encoder's parameter count.
func (m *Encoding) ParamCount() int { return m.enc.NumParams() }

// ParamPrecision returns the compute precision.
func (m *Encoding) ParamPrecision() device.Precision { return m.prec }

func (m *Encoding) checkCall(n int, input, output *device.Matrix, params *device.Buffer) error {
	if err := checkBatch(n); err != nil {
		return err
	}
	if err := checkMatrix("input", input, m.enc.InputWidth(), n, device.Float32); err != nil {
		return err
	}
	if err := checkMatrix("output", output, m.enc.PaddedOutputWidth(), n, m.prec); err != nil {
		return err
	}
	return checkParamBuffer("params", params, m.enc.NumParams(), m.prec)
}

// Inference encodes n samples. No gradient state is bound or retained.
func (m *Encoding) Inference(stream *device.Stream, n int, input, output *device.Matrix, params *device.Buffer) error {
	if err := m.checkCall(n, input, output, params); err != nil {
		return err
	}
	stream.Enqueue(func() error {
		return m.enc.Encode(n, input, output, nil)
	})
	return nil
}

// Forward encodes n samples. With prepareInputGradients set, the returned
// context carries the forward-gradient buffer the matching Backward needs to
// produce an input gradient.
func (m *Encoding) Forward(stream *device.Stream, n int, input, output *device.Matrix, params *device.Buffer, prepareInputGradients bool) (*Context, error) {
	if err := m.checkCall(n, input, output, params); err != nil {
		return nil, err
	}
	ctx := &Context{owner: m, batch: n}
	var fwdGrad *device.Matrix
	if prepareInputGradients && m.enc.ForwardGradientDims() > 0 {
		fwdGrad = device.NewMatrix(m.enc.ForwardGradientDims(), n, device.Float32)
		ctx.prepared = true
		ctx.fwdGrad = fwdGrad
	}
	stream.Enqueue(func() error {
		return m.enc.Encode(n, input, output, fwdGrad)
	})
	return ctx, nil
}

// Backward consumes the upstream gradient. Requesting dLdInput requires the
// forward-gradient data of an unconsumed, gradient-prepared context; the
// data is released as soon as it is consumed, so a second backward demanding
// an input gradient fails the same check.
func (m *Encoding) Backward(stream *device.Stream, n int, ctx *Context, dLdInput, dLdOutput *device.Matrix, dLdParams *device.Buffer, input, output *device.Matrix, params *device.Buffer) error {
	if err := checkBatch(n); err != nil {
		return err
	}
	if err := checkMatrix("dL/doutput", dLdOutput, m.enc.PaddedOutputWidth(), n, m.prec); err != nil {
		return err
	}
	if err := checkMatrix("input", input, m.enc.InputWidth(), n, device.Float32); err != nil {
		return err
	}
	if err := checkParamBuffer("params", params, m.enc.NumParams(), m.prec); err != nil {
		return err
	}
	if err := checkParamBuffer("dL/dparams", dLdParams, m.enc.NumParams(), m.prec); err != nil {
		return err
	}

	var fwdGrad *device.Matrix
	if dLdInput != nil {
		if err := checkMatrix("dL/dinput", dLdInput, m.enc.InputWidth(), n, device.Float32); err != nil {
			return err
		}
		if err := take(ctx, m, n, true); err != nil {
			return fmt.Errorf("encoding backward: %w", err)
		}
		fwdGrad = ctx.fwdGrad
		ctx.fwdGrad = nil // single consumption
	} else if ctx != nil {
		if err := take(ctx, m, n, false); err != nil {
			return fmt.Errorf("encoding backward: %w", err)
		}
		ctx.fwdGrad = nil
	}

	stream.Enqueue(func() error {
		return m.enc.Backward(n, input, dLdOutput, fwdGrad, dLdInput, dLdParams)
	})
	return nil
}

// InitializeParams deterministically fills paramsFull from the seed.
func (m *Encoding) InitializeParams(seed uint64, paramsFull []float32) error {
	if len(paramsFull) != m.enc.NumParams() {
		return fmt.Errorf("module: parameter slice has %d elements, need %d", len(paramsFull), m.enc.NumParams())
	}
	rng := rand.New(rand.NewSource(int64(seed)))
	m.enc.Initialize(rng, paramsFull)
	return nil
}
