package network

import (
	"fmt"
	"math"
	"math/rand"
	"strings"

	"github.com/tangent-ml/tangent/internal/config"
	"github.com/tangent-ml/tangent/internal/device"
)

// InputAlignment is the element granularity the layer chain wants its input
// width padded to.
const InputAlignment = 16

// outputAlignment pads the output layer so every layer width stays aligned.
const outputAlignment = 16

type activation int

const (
	actNone activation = iota
	actReLU
)

func parseActivation(name string) (activation, error) {
	switch strings.ToLower(name) {
	case "none", "linear":
		return actNone, nil
	case "relu":
		return actReLU, nil
	default:
		return 0, fmt.Errorf("network: unsupported activation %q", name)
	}
}

type layerShape struct {
	out, in int
}

// MLP is a bias-free multi-layer perceptron operating in compute precision.
// Weight matrices are packed contiguously into the caller's parameter buffer,
// each row-major [out x in]: input layer, hidden layers, output layer.
type MLP struct {
	inputWidth   int
	hiddenWidth  int
	outputWidth  int
	paddedOutput int
	hiddenLayers int
	act          activation
	prec         device.Precision

	shapes  []layerShape
	offsets []int
	nParams int
}

// NewMLP builds the layer chain described by desc.
// Recognized keys: n_neurons, n_hidden_layers, activation.
func NewMLP(desc config.Descriptor, inputWidth, outputWidth int, prec device.Precision) (*MLP, error) {
	if inputWidth <= 0 || outputWidth <= 0 {
		return nil, fmt.Errorf("network: widths must be positive, got input %d output %d", inputWidth, outputWidth)
	}
	act, err := parseActivation(desc.Str("activation", "relu"))
	if err != nil {
		return nil, err
	}
	m := &MLP{
		inputWidth:   inputWidth,
		hiddenWidth:  desc.Int("n_neurons", 64),
		outputWidth:  outputWidth,
		paddedOutput: (outputWidth + outputAlignment - 1) / outputAlignment * outputAlignment,
		hiddenLayers: desc.Int("n_hidden_layers", 2),
		act:          act,
		prec:         prec,
	}
	if m.hiddenLayers < 0 {
		return nil, fmt.Errorf("network: n_hidden_layers must be >= 0, got %d", m.hiddenLayers)
	}
	if m.hiddenLayers > 0 && m.hiddenWidth <= 0 {
		return nil, fmt.Errorf("network: n_neurons must be positive, got %d", m.hiddenWidth)
	}

	if m.hiddenLayers == 0 {
		m.shapes = []layerShape{{m.paddedOutput, m.inputWidth}}
	} else {
		m.shapes = append(m.shapes, layerShape{m.hiddenWidth, m.inputWidth})
		for i := 1; i < m.hiddenLayers; i++ {
			m.shapes = append(m.shapes, layerShape{m.hiddenWidth, m.hiddenWidth})
		}
		m.shapes = append(m.shapes, layerShape{m.paddedOutput, m.hiddenWidth})
	}
	for _, s := range m.shapes {
		m.offsets = append(m.offsets, m.nParams)
		m.nParams += s.out * s.in
	}
	return m, nil
}

// InputWidth returns the expected input row count.
func (m *MLP) InputWidth() int { return m.inputWidth }

// OutputWidth returns the logical output dimensionality.
func (m *MLP) OutputWidth() int { return m.outputWidth }

// PaddedOutputWidth returns the allocated output row count.
func (m *MLP) PaddedOutputWidth() int { return m.paddedOutput }

// NumParams returns the total weight count.
func (m *MLP) NumParams() int { return m.nParams }

// Precision returns the compute precision.
func (m *MLP) Precision() device.Precision { return m.prec }

// bindParams stages each layer's weights out of the caller's buffer.
// Views are rebuilt on every call; nothing is retained.
func (m *MLP) bindParams(params *device.Buffer) ([][]float32, error) {
	if params.Len() != m.nParams {
		return nil, fmt.Errorf("network: parameter buffer has %d elements, need %d", params.Len(), m.nParams)
	}
	weights := make([][]float32, len(m.shapes))
	for l, s := range m.shapes {
		w := make([]float32, s.out*s.in)
		for i := range w {
			w[i] = params.Float(m.offsets[l] + i)
		}
		weights[l] = w
	}
	return weights, nil
}

// ForwardState carries the per-layer activations one Forward pass recorded
// for its matching Backward.
type ForwardState struct {
	// activations[l] is the row-major input to layer l; the last entry is
	// the masked output layer result.
	activations [][]float32
	batch       int
	inputGrads  bool
}

// PreparedInputGradients reports whether the pass retained input-gradient data.
func (s *ForwardState) PreparedInputGradients() bool { return s.inputGrads }

func (m *MLP) applyActivation(v []float32) {
	if m.act == actReLU {
		for i, x := range v {
			if x < 0 {
				v[i] = 0
			}
		}
	}
}

// run executes the layer chain. When record is true the per-layer inputs are
// retained for backward.
func (m *MLP) run(acc device.Accelerator, n int, weights [][]float32, input, output *device.Matrix, record, inputGrads bool) (*ForwardState, error) {
	if err := checkWidth("input", input, m.inputWidth, n); err != nil {
		return nil, err
	}
	if err := checkWidth("output", output, m.paddedOutput, n); err != nil {
		return nil, err
	}

	var st *ForwardState
	if record {
		st = &ForwardState{batch: n, inputGrads: inputGrads}
	}

	a := readMatrix(input, m.inputWidth, n)
	for l, s := range m.shapes {
		if record {
			st.activations = append(st.activations, a)
		}
		z := make([]float32, s.out*n)
		if err := gemm(acc, s.out, n, s.in, weights[l], a, z); err != nil {
			return nil, err
		}
		if l < len(m.shapes)-1 {
			m.applyActivation(z)
		} else {
			// Padding rows are defined as zero regardless of the
			// bound parameters.
			for r := m.outputWidth; r < m.paddedOutput; r++ {
				for c := 0; c < n; c++ {
					z[r*n+c] = 0
				}
			}
		}
		roundSlice(z, m.prec)
		a = z
	}
	if record {
		st.activations = append(st.activations, a)
	}
	writeMatrix(a, output, m.paddedOutput, n)
	return st, nil
}

// Inference evaluates the chain without retaining activations.
func (m *MLP) Inference(acc device.Accelerator, n int, params *device.Buffer, input, output *device.Matrix) error {
	weights, err := m.bindParams(params)
	if err != nil {
		return err
	}
	_, err = m.run(acc, n, weights, input, output, false, false)
	return err
}

// Forward evaluates the chain and records the state Backward needs.
func (m *MLP) Forward(acc device.Accelerator, n int, params *device.Buffer, input, output *device.Matrix, prepareInputGradients bool) (*ForwardState, error) {
	weights, err := m.bindParams(params)
	if err != nil {
		return nil, err
	}
	return m.run(acc, n, weights, input, output, true, prepareInputGradients)
}

// Backward propagates dLdOutput through the recorded state. Parameter
// gradients overwrite dLdParams; dLdInput may be nil when no input gradient
// is wanted.
func (m *MLP) Backward(acc device.Accelerator, n int, params *device.Buffer, st *ForwardState, dLdOutput, dLdInput *device.Matrix, dLdParams *device.Buffer) error {
	if st == nil {
		return fmt.Errorf("network: backward requires the state of a prior forward pass")
	}
	if st.batch != n {
		return fmt.Errorf("network: forward batch was %d, backward got %d", st.batch, n)
	}
	if dLdInput != nil && !st.inputGrads {
		return fmt.Errorf("network: input gradient requested but the forward pass did not prepare one")
	}
	if err := checkWidth("dL/doutput", dLdOutput, m.paddedOutput, n); err != nil {
		return err
	}
	if dLdParams.Len() != m.nParams {
		return fmt.Errorf("network: gradient buffer has %d elements, need %d", dLdParams.Len(), m.nParams)
	}
	weights, err := m.bindParams(params)
	if err != nil {
		return err
	}

	delta := readMatrix(dLdOutput, m.paddedOutput, n)
	// Upstream gradients of padding rows carry no meaning.
	for r := m.outputWidth; r < m.paddedOutput; r++ {
		for c := 0; c < n; c++ {
			delta[r*n+c] = 0
		}
	}

	for l := len(m.shapes) - 1; l >= 0; l-- {
		s := m.shapes[l]
		aPrev := st.activations[l]

		// dW = delta @ aPrev^T
		aPrevT := make([]float32, n*s.in)
		transpose(aPrev, s.in, n, aPrevT)
		dW := make([]float32, s.out*s.in)
		if err := gemm(acc, s.out, s.in, n, delta, aPrevT, dW); err != nil {
			return err
		}
		for i, v := range dW {
			dLdParams.SetFloat(m.offsets[l]+i, v)
		}

		if l == 0 && dLdInput == nil {
			break
		}

		// delta_prev = W^T @ delta
		wT := make([]float32, s.in*s.out)
		transpose(weights[l], s.out, s.in, wT)
		deltaPrev := make([]float32, s.in*n)
		if err := gemm(acc, s.in, n, s.out, wT, delta, deltaPrev); err != nil {
			return err
		}

		if l > 0 && m.act == actReLU {
			// aPrev is the post-activation of layer l-1.
			for i, v := range aPrev {
				if v <= 0 {
					deltaPrev[i] = 0
				}
			}
		}
		delta = deltaPrev
	}

	if dLdInput != nil {
		if err := checkWidth("dL/dinput", dLdInput, m.inputWidth, n); err != nil {
			return err
		}
		writeMatrix(delta, dLdInput, m.inputWidth, n)
	}
	return nil
}

// Initialize fills dst with Xavier-uniform weights, deterministically in
// layer-then-row-major order. Output padding rows stay zero.
func (m *MLP) Initialize(rng *rand.Rand, dst []float32) {
	last := len(m.shapes) - 1
	for l, s := range m.shapes {
		bound := float32(math.Sqrt(6.0 / float64(s.in+s.out)))
		for r := 0; r < s.out; r++ {
			for c := 0; c < s.in; c++ {
				v := (rng.Float32()*2 - 1) * bound
				if l == last && r >= m.outputWidth {
					v = 0
				}
				dst[m.offsets[l]+r*s.in+c] = v
			}
		}
	}
}
