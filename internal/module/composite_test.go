package module

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tangent-ml/tangent/internal/config"
	"github.com/tangent-ml/tangent/internal/device"
)

func newIdentityComposite(t *testing.T, inputDims, outputDims int) *NetworkWithInputEncoding {
	t.Helper()
	m, err := NewNetworkWithInputEncoding(inputDims, outputDims, config.Descriptor{
		"precision": "float32",
		"encoding":  config.Descriptor{"otype": "identity"},
		"network": config.Descriptor{
			"n_hidden_layers": 0,
			"activation":      "none",
		},
	})
	require.NoError(t, err)
	return m
}

func TestCompositeDims(t *testing.T) {
	m, err := NewNetworkWithInputEncoding(2, 3, config.Descriptor{
		"encoding": config.Descriptor{"otype": "frequency", "n_frequencies": 4},
		"network":  config.Descriptor{"n_neurons": 16, "n_hidden_layers": 1},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, m.InputWidth())
	assert.Equal(t, 16, m.OutputWidth())
	// frequency emits 2*4*2 = 16 dims; 16x16 hidden plus 16x16 output.
	assert.Equal(t, 16*16+16*16, m.ParamCount())
	assert.Equal(t, device.Float16, m.ParamPrecision())
}

func TestCompositeDefaultsToIdentityEncoding(t *testing.T) {
	m, err := NewNetworkWithInputEncoding(16, 1, config.Descriptor{
		"network": config.Descriptor{"n_hidden_layers": 0},
	})
	require.NoError(t, err)
	assert.Equal(t, 16, m.InputWidth())
	assert.Equal(t, 16*16, m.ParamCount())
}

func TestCompositeFactoryErrors(t *testing.T) {
	_, err := NewNetworkWithInputEncoding(2, 1, config.Descriptor{})
	assert.Error(t, err) // no network section

	_, err = NewNetworkWithInputEncoding(2, 1, config.Descriptor{
		"precision": "float64",
		"network":   config.Descriptor{},
	})
	assert.Error(t, err)

	_, err = NewNetworkWithInputEncoding(2, 1, config.Descriptor{
		"encoding": config.Descriptor{"otype": "hashgrid"},
		"network":  config.Descriptor{},
	})
	assert.Error(t, err)
}

func TestCompositeEndToEnd(t *testing.T) {
	m := newIdentityComposite(t, 3, 1)
	require.Equal(t, 16*16, m.ParamCount())
	s := device.NewStream()
	defer s.Close()

	params := device.NewBuffer(m.ParamCount(), device.Float32)
	// Output row 0 weights over the first three encoded dims.
	params.SetFloat(0, 1)
	params.SetFloat(1, 2)
	params.SetFloat(2, 3)

	n := 1
	input := device.NewMatrix(3, n, device.Float32)
	input.Set(0, 0, 1)
	input.Set(1, 0, 0.5)
	input.Set(2, 0, -1)
	output := device.NewMatrix(16, n, device.Float32)

	ctx, err := m.Forward(s, n, input, output, params, true)
	require.NoError(t, err)
	mustSync(t, s)
	assert.Equal(t, float32(1+2*0.5+3*-1), output.At(0, 0))
	// Rows past the logical output width read zero.
	for r := 1; r < 16; r++ {
		assert.Equal(t, float32(0), output.At(r, 0), "row %d", r)
	}

	dLdOutput := device.NewMatrix(16, n, device.Float32)
	dLdOutput.Set(0, 0, 1)
	dLdInput := device.NewMatrix(3, n, device.Float32)
	dLdParams := device.NewBuffer(m.ParamCount(), device.Float32)
	require.NoError(t, m.Backward(s, n, ctx, dLdInput, dLdOutput, dLdParams, input, output, params))
	mustSync(t, s)

	// dL/dW row 0 is the encoded input; dL/dx is W's row 0.
	assert.Equal(t, float32(1), dLdParams.Float(0))
	assert.Equal(t, float32(0.5), dLdParams.Float(1))
	assert.Equal(t, float32(-1), dLdParams.Float(2))
	assert.Equal(t, float32(1), dLdInput.At(0, 0))
	assert.Equal(t, float32(2), dLdInput.At(1, 0))
	assert.Equal(t, float32(3), dLdInput.At(2, 0))
}

func TestCompositeInferenceMatchesForward(t *testing.T) {
	m := newIdentityComposite(t, 3, 1)
	s := device.NewStream()
	defer s.Close()

	params := device.NewBuffer(m.ParamCount(), device.Float32)
	seedInto(t, m, params)

	n := 5
	input := device.NewMatrix(3, n, device.Float32)
	for c := 0; c < n; c++ {
		input.Set(0, c, float32(c)*0.1)
		input.Set(1, c, float32(c)*-0.2)
		input.Set(2, c, 0.3)
	}
	infOut := device.NewMatrix(16, n, device.Float32)
	fwdOut := device.NewMatrix(16, n, device.Float32)

	require.NoError(t, m.Inference(s, n, input, infOut, params))
	_, err := m.Forward(s, n, input, fwdOut, params, false)
	require.NoError(t, err)
	mustSync(t, s)

	for c := 0; c < n; c++ {
		for r := 0; r < 16; r++ {
			assert.Equal(t, fwdOut.At(r, c), infOut.At(r, c))
		}
	}
}

func TestCompositeZeroUpstreamGradient(t *testing.T) {
	m := newIdentityComposite(t, 3, 1)
	s := device.NewStream()
	defer s.Close()

	params := device.NewBuffer(m.ParamCount(), device.Float32)
	seedInto(t, m, params)

	n := 8
	input := device.NewMatrix(3, n, device.Float32)
	for c := 0; c < n; c++ {
		input.Set(0, c, float32(c))
	}
	output := device.NewMatrix(16, n, device.Float32)
	ctx, err := m.Forward(s, n, input, output, params, false)
	require.NoError(t, err)

	dLdOutput := device.NewMatrix(16, n, device.Float32) // all zero
	dLdParams := device.NewBuffer(m.ParamCount(), device.Float32)
	dLdParams.SetFloat(3, -7) // stale contents must not survive
	require.NoError(t, m.Backward(s, n, ctx, nil, dLdOutput, dLdParams, input, output, params))
	mustSync(t, s)

	for i := 0; i < m.ParamCount(); i++ {
		assert.Equal(t, float32(0), dLdParams.Float(i), "param %d", i)
	}
}

func TestCompositeInitializeDeterministic(t *testing.T) {
	m := newIdentityComposite(t, 3, 1)

	a := make([]float32, m.ParamCount())
	b := make([]float32, m.ParamCount())
	require.NoError(t, m.InitializeParams(1337, a))
	require.NoError(t, m.InitializeParams(1337, b))
	assert.Equal(t, a, b)
}

func TestCompositeBackwardPreconditions(t *testing.T) {
	m := newIdentityComposite(t, 3, 1)
	s := device.NewStream()
	defer s.Close()

	params := device.NewBuffer(m.ParamCount(), device.Float32)
	n := 1
	input := device.NewMatrix(3, n, device.Float32)
	output := device.NewMatrix(16, n, device.Float32)
	dLdOutput := device.NewMatrix(16, n, device.Float32)
	dLdInput := device.NewMatrix(3, n, device.Float32)
	dLdParams := device.NewBuffer(m.ParamCount(), device.Float32)

	err := m.Backward(s, n, nil, dLdInput, dLdOutput, dLdParams, input, output, params)
	assert.ErrorIs(t, err, ErrNoContext)

	// A context prepared without input gradients cannot yield one.
	ctx, err := m.Forward(s, n, input, output, params, false)
	require.NoError(t, err)
	err = m.Backward(s, n, ctx, dLdInput, dLdOutput, dLdParams, input, output, params)
	assert.ErrorIs(t, err, ErrNoContext)

	ctx, err = m.Forward(s, n, input, output, params, true)
	require.NoError(t, err)
	require.NoError(t, m.Backward(s, n, ctx, dLdInput, dLdOutput, dLdParams, input, output, params))
	err = m.Backward(s, n, ctx, dLdInput, dLdOutput, dLdParams, input, output, params)
	assert.ErrorIs(t, err, ErrContextConsumed)
	mustSync(t, s)
}

func TestCompositeCallValidation(t *testing.T) {
	m := newIdentityComposite(t, 3, 1)
	s := device.NewStream()
	defer s.Close()

	params := device.NewBuffer(m.ParamCount(), device.Float32)
	input := device.NewMatrix(3, 4, device.Float32)
	output := device.NewMatrix(16, 4, device.Float32)

	// Bad batch sizes are synchronous errors, never panics.
	assert.Error(t, m.Inference(s, -1, input, output, params))
	assert.Error(t, m.Inference(s, 0, input, output, params))
	assert.Error(t, m.Inference(s, 8, input, output, params)) // batch exceeds columns
	_, err := m.Forward(s, -1, input, output, params, false)
	assert.Error(t, err)

	assert.Error(t, m.Inference(s, 4, device.NewMatrix(2, 4, device.Float32), output, params))
	assert.Error(t, m.Inference(s, 4, input, device.NewMatrix(8, 4, device.Float32), params))
	// Output must carry the compute precision.
	assert.Error(t, m.Inference(s, 4, input, device.NewMatrix(16, 4, device.Float16), params))

	dLdOutput := device.NewMatrix(16, 4, device.Float32)
	dLdParams := device.NewBuffer(m.ParamCount(), device.Float32)
	assert.Error(t, m.Backward(s, -1, nil, nil, dLdOutput, dLdParams, input, output, params))
	mustSync(t, s)
}

func TestCompositeShapeErrorPreservesContext(t *testing.T) {
	m := newIdentityComposite(t, 3, 1)
	s := device.NewStream()
	defer s.Close()

	params := device.NewBuffer(m.ParamCount(), device.Float32)
	n := 2
	input := device.NewMatrix(3, n, device.Float32)
	output := device.NewMatrix(16, n, device.Float32)

	ctx, err := m.Forward(s, n, input, output, params, true)
	require.NoError(t, err)

	dLdInput := device.NewMatrix(3, n, device.Float32)
	dLdParams := device.NewBuffer(m.ParamCount(), device.Float32)

	// A recoverable shape error must not burn the pending context.
	short := device.NewMatrix(4, n, device.Float32)
	err = m.Backward(s, n, ctx, dLdInput, short, dLdParams, input, output, params)
	require.Error(t, err)
	assert.False(t, ctx.Consumed())

	dLdOutput := device.NewMatrix(16, n, device.Float32)
	require.NoError(t, m.Backward(s, n, ctx, dLdInput, dLdOutput, dLdParams, input, output, params))
	assert.True(t, ctx.Consumed())
	mustSync(t, s)
}

func TestCompositeInstancesOnSeparateStreams(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m := newIdentityComposite(t, 3, 1)
			s := device.NewStream()
			defer s.Close()

			params := device.NewBuffer(m.ParamCount(), device.Float32)
			params.SetFloat(0, 1)

			n := 2
			input := device.NewMatrix(3, n, device.Float32)
			input.Set(0, 0, 1)
			input.Set(0, 1, 2)
			output := device.NewMatrix(16, n, device.Float32)
			dLdOutput := device.NewMatrix(16, n, device.Float32)
			dLdOutput.Set(0, 0, 1)
			dLdOutput.Set(0, 1, 1)
			dLdParams := device.NewBuffer(m.ParamCount(), device.Float32)

			for iter := 0; iter < 50; iter++ {
				ctx, err := m.Forward(s, n, input, output, params, false)
				assert.NoError(t, err)
				assert.NoError(t, m.Backward(s, n, ctx, nil, dLdOutput, dLdParams, input, output, params))
				assert.NoError(t, s.Synchronize())
				assert.Equal(t, float32(1), output.At(0, 0))
				assert.Equal(t, float32(2), output.At(0, 1))
				assert.Equal(t, float32(3), dLdParams.Float(0)) // x0 summed over the batch
			}
		}()
	}
	wg.Wait()
}

func TestCompositeHalfPrecisionPipeline(t *testing.T) {
	m, err := NewNetworkWithInputEncoding(2, 1, config.Descriptor{
		"encoding": config.Descriptor{"otype": "frequency", "n_frequencies": 4},
		"network":  config.Descriptor{"n_neurons": 16, "n_hidden_layers": 1},
	})
	require.NoError(t, err)
	require.Equal(t, device.Float16, m.ParamPrecision())
	s := device.NewStream()
	defer s.Close()

	full := make([]float32, m.ParamCount())
	require.NoError(t, m.InitializeParams(9, full))
	params := device.NewBuffer(m.ParamCount(), device.Float16)
	require.NoError(t, params.CopyFromFloat32(full))

	n := 3
	input := device.NewMatrix(2, n, device.Float32) // coordinates stay full precision
	input.Set(0, 0, 0.25)
	input.Set(1, 1, -0.5)
	output := device.NewMatrix(16, n, device.Float16)

	ctx, err := m.Forward(s, n, input, output, params, true)
	require.NoError(t, err)

	dLdOutput := device.NewMatrix(16, n, device.Float16)
	dLdOutput.Set(0, 0, 1)
	dLdInput := device.NewMatrix(2, n, device.Float32)
	dLdParams := device.NewBuffer(m.ParamCount(), device.Float16)
	require.NoError(t, m.Backward(s, n, ctx, dLdInput, dLdOutput, dLdParams, input, output, params))
	mustSync(t, s)

	// The half pipeline runs end to end and produces finite values with
	// zeroed padding rows.
	for c := 0; c < n; c++ {
		for r := 0; r < 16; r++ {
			assert.False(t, math.IsNaN(float64(output.At(r, c))))
			if r >= 1 {
				assert.Equal(t, float32(0), output.At(r, c))
			}
		}
		assert.False(t, math.IsNaN(float64(dLdInput.At(0, c))))
	}
}
