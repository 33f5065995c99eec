package module

import (
	"fmt"
	"math/rand"

	"github.com/tangent-ml/tangent/internal/device"
)

// NetworkWithInputEncoding composes an encoding feeding a network behind a
// single module surface. The parameter buffer concatenates the network's
// parameters followed by the encoding's; callers address only the combined
// range.
type NetworkWithInputEncoding struct {
	enc  *Encoding
	net  *Network
	prec device.Precision
}

var _ Module = (*NetworkWithInputEncoding)(nil)

func newComposite(enc *Encoding, net *Network) (*NetworkWithInputEncoding, error) {
	if enc.OutputWidth() != net.InputWidth() {
		return nil, fmt.Errorf("module: encoding emits %d dims, network expects %d", enc.OutputWidth(), net.InputWidth())
	}
	if enc.ParamPrecision() != net.ParamPrecision() {
		return nil, fmt.Errorf("module: encoding computes in %s, network in %s", enc.ParamPrecision(), net.ParamPrecision())
	}
	return &NetworkWithInputEncoding{enc: enc, net: net, prec: net.ParamPrecision()}, nil
}

// InputWidth returns the coordinate dimensionality.
func (m *NetworkWithInputEncoding) InputWidth() int { return m.enc.InputWidth() }

// OutputWidth returns the network's padded output width.
func (m *NetworkWithInputEncoding) OutputWidth() int { return m.net.OutputWidth() }

// ParamCount returns the combined parameter count.
func (m *NetworkWithInputEncoding) ParamCount() int {
	return m.net.ParamCount() + m.enc.ParamCount()
}

// ParamPrecision returns the compute precision.
func (m *NetworkWithInputEncoding) ParamPrecision() device.Precision { return m.prec }

// splitParams views the concatenated buffer as its network and encoding
// ranges. Views alias the caller's memory; nothing is copied or retained.
func (m *NetworkWithInputEncoding) splitParams(buf *device.Buffer) (netBuf, encBuf *device.Buffer, err error) {
	netBuf, err = buf.Slice(0, m.net.ParamCount())
	if err != nil {
		return nil, nil, err
	}
	encBuf, err = buf.Slice(m.net.ParamCount(), m.enc.ParamCount())
	if err != nil {
		return nil, nil, err
	}
	return netBuf, encBuf, nil
}

func (m *NetworkWithInputEncoding) checkCall(n int, input, output *device.Matrix, params *device.Buffer) error {
	if err := checkBatch(n); err != nil {
		return err
	}
	if err := checkMatrix("input", input, m.enc.InputWidth(), n, device.Float32); err != nil {
		return err
	}
	if err := checkMatrix("output", output, m.net.OutputWidth(), n, m.prec); err != nil {
		return err
	}
	return checkParamBuffer("params", params, m.ParamCount(), m.prec)
}

// Inference encodes the batch into a scratch activation matrix and runs the
// network's inference path on it.
func (m *NetworkWithInputEncoding) Inference(stream *device.Stream, n int, input, output *device.Matrix, params *device.Buffer) error {
	if err := m.checkCall(n, input, output, params); err != nil {
		return err
	}
	netParams, encParams, err := m.splitParams(params)
	if err != nil {
		return err
	}
	encoded := device.NewMatrix(m.enc.OutputWidth(), n, m.prec)
	if err := m.enc.Inference(stream, n, input, encoded, encParams); err != nil {
		return err
	}
	return m.net.Inference(stream, n, encoded, output, netParams)
}

// Forward runs encoding then network, chaining their contexts into one
// composite pending operation.
func (m *NetworkWithInputEncoding) Forward(stream *device.Stream, n int, input, output *device.Matrix, params *device.Buffer, prepareInputGradients bool) (*Context, error) {
	if err := m.checkCall(n, input, output, params); err != nil {
		return nil, err
	}
	netParams, encParams, err := m.splitParams(params)
	if err != nil {
		return nil, err
	}
	encoded := device.NewMatrix(m.enc.OutputWidth(), n, m.prec)
	encCtx, err := m.enc.Forward(stream, n, input, encoded, encParams, prepareInputGradients)
	if err != nil {
		return nil, err
	}
	// The network must retain an input gradient whenever backward will have
	// to reach the encoding: a requested input gradient or encoding
	// parameter gradients.
	netPrepare := prepareInputGradients || m.enc.ParamCount() > 0
	netCtx, err := m.net.Forward(stream, n, encoded, output, netParams, netPrepare)
	if err != nil {
		return nil, err
	}
	return &Context{
		owner:    m,
		batch:    n,
		prepared: prepareInputGradients,
		encCtx:   encCtx,
		netCtx:   netCtx,
		encoded:  encoded,
	}, nil
}

// Backward propagates through network then encoding. The input gradient, when
// requested, requires a gradient-prepared composite context.
func (m *NetworkWithInputEncoding) Backward(stream *device.Stream, n int, ctx *Context, dLdInput, dLdOutput *device.Matrix, dLdParams *device.Buffer, input, output *device.Matrix, params *device.Buffer) error {
	if err := checkBatch(n); err != nil {
		return err
	}
	if err := checkMatrix("dL/doutput", dLdOutput, m.net.OutputWidth(), n, m.prec); err != nil {
		return err
	}
	if dLdInput != nil {
		if err := checkMatrix("dL/dinput", dLdInput, m.enc.InputWidth(), n, device.Float32); err != nil {
			return err
		}
	}
	if err := checkMatrix("input", input, m.enc.InputWidth(), n, device.Float32); err != nil {
		return err
	}
	if err := checkParamBuffer("params", params, m.ParamCount(), m.prec); err != nil {
		return err
	}
	if err := checkParamBuffer("dL/dparams", dLdParams, m.ParamCount(), m.prec); err != nil {
		return err
	}
	netParams, encParams, err := m.splitParams(params)
	if err != nil {
		return err
	}
	netGrads, encGrads, err := m.splitParams(dLdParams)
	if err != nil {
		return err
	}
	// Recoverable shape errors above must not burn the context; it is
	// consumed only once this call is going to enqueue work.
	if err := take(ctx, m, n, dLdInput != nil); err != nil {
		return fmt.Errorf("composite backward: %w", err)
	}

	// The encoding sees a gradient only when something downstream of it is
	// wanted: an input gradient or encoding parameter gradients.
	var dLdEncoded *device.Matrix
	if dLdInput != nil || m.enc.ParamCount() > 0 {
		dLdEncoded = device.NewMatrix(m.enc.OutputWidth(), n, m.prec)
	}

	if err := m.net.Backward(stream, n, ctx.netCtx, dLdEncoded, dLdOutput, netGrads, ctx.encoded, output, netParams); err != nil {
		return err
	}
	if dLdEncoded != nil {
		if err := m.enc.Backward(stream, n, ctx.encCtx, dLdInput, dLdEncoded, encGrads, input, ctx.encoded, encParams); err != nil {
			return err
		}
	}
	return nil
}

// InitializeParams fills the concatenated parameter range deterministically:
// network weights first, then encoding parameters, from one seeded sequence.
func (m *NetworkWithInputEncoding) InitializeParams(seed uint64, paramsFull []float32) error {
	if len(paramsFull) != m.ParamCount() {
		return fmt.Errorf("module: parameter slice has %d elements, need %d", len(paramsFull), m.ParamCount())
	}
	rng := rand.New(rand.NewSource(int64(seed)))
	m.net.mlp.Initialize(rng, paramsFull[:m.net.ParamCount()])
	m.enc.enc.Initialize(rng, paramsFull[m.net.ParamCount():])
	return nil
}
