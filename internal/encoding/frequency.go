package encoding

import (
	"math"
	"math/rand"

	"github.com/tangent-ml/tangent/internal/config"
	"github.com/tangent-ml/tangent/internal/device"
	"github.com/tangent-ml/tangent/internal/parallel"
)

// frequency encodes each coordinate as sin/cos pairs over octave-spaced
// frequencies: for input dimension i and octave j it emits
// sin(2^j * pi * x_i) and cos(2^j * pi * x_i).
type frequency struct {
	inputDims   int
	nFreq       int
	outputWidth int
	paddedWidth int
}

func newFrequency(desc config.Descriptor, inputDims, granularity int) (Encoder, error) {
	nFreq := desc.Int("n_frequencies", 12)
	width := inputDims * nFreq * 2
	return &frequency{
		inputDims:   inputDims,
		nFreq:       nFreq,
		outputWidth: width,
		paddedWidth: padWidth(width, granularity),
	}, nil
}

func (e *frequency) InputWidth() int        { return e.inputDims }
func (e *frequency) OutputWidth() int       { return e.outputWidth }
func (e *frequency) PaddedOutputWidth() int { return e.paddedWidth }

// ForwardGradientDims stores one derivative per encoded element.
func (e *frequency) ForwardGradientDims() int { return e.outputWidth }

func (e *frequency) NumParams() int { return 0 }

func (e *frequency) Encode(n int, input, output, fwdGrad *device.Matrix) error {
	if err := checkBatch("frequency", n, input, output, e.inputDims, e.paddedWidth); err != nil {
		return err
	}
	parallel.Columns(n, func(c int) {
		for i := 0; i < e.inputDims; i++ {
			x := float64(input.At(i, c))
			for j := 0; j < e.nFreq; j++ {
				freq := math.Pi * float64(uint64(1)<<j)
				phase := freq * x
				s, cs := math.Sincos(phase)

				row := i*e.nFreq*2 + j*2
				output.Set(row, c, float32(s))
				output.Set(row+1, c, float32(cs))
				if fwdGrad != nil {
					// d sin(f x)/dx = f cos(f x); d cos(f x)/dx = -f sin(f x)
					fwdGrad.Set(row, c, float32(freq*cs))
					fwdGrad.Set(row+1, c, float32(-freq*s))
				}
			}
		}
		for r := e.outputWidth; r < e.paddedWidth; r++ {
			output.Set(r, c, 0)
		}
	})
	return nil
}

func (e *frequency) Backward(n int, input, dLdOutput, fwdGrad, dLdInput *device.Matrix, dLdParams *device.Buffer) error {
	if dLdInput == nil {
		return nil
	}
	parallel.Columns(n, func(c int) {
		for i := 0; i < e.inputDims; i++ {
			var sum float32
			for j := 0; j < e.nFreq*2; j++ {
				row := i*e.nFreq*2 + j
				sum += dLdOutput.At(row, c) * fwdGrad.At(row, c)
			}
			dLdInput.Set(i, c, sum)
		}
	})
	return nil
}

func (e *frequency) Initialize(rng *rand.Rand, dst []float32) {}
