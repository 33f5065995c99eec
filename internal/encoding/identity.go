package encoding

import (
	"math/rand"

	"github.com/tangent-ml/tangent/internal/config"
	"github.com/tangent-ml/tangent/internal/device"
	"github.com/tangent-ml/tangent/internal/parallel"
)

// identity passes coordinates through an affine map: out = in*scale + offset.
type identity struct {
	inputDims   int
	paddedWidth int
	scale       float32
	offset      float32
}

func newIdentity(desc config.Descriptor, inputDims, granularity int) (Encoder, error) {
	return &identity{
		inputDims:   inputDims,
		paddedWidth: padWidth(inputDims, granularity),
		scale:       float32(desc.Float("scale", 1.0)),
		offset:      float32(desc.Float("offset", 0.0)),
	}, nil
}

func (e *identity) InputWidth() int          { return e.inputDims }
func (e *identity) OutputWidth() int         { return e.inputDims }
func (e *identity) PaddedOutputWidth() int   { return e.paddedWidth }
func (e *identity) ForwardGradientDims() int { return e.inputDims }
func (e *identity) NumParams() int           { return 0 }

func (e *identity) Encode(n int, input, output, fwdGrad *device.Matrix) error {
	if err := checkBatch("identity", n, input, output, e.inputDims, e.paddedWidth); err != nil {
		return err
	}
	parallel.Columns(n, func(c int) {
		for r := 0; r < e.inputDims; r++ {
			output.Set(r, c, input.At(r, c)*e.scale+e.offset)
		}
		for r := e.inputDims; r < e.paddedWidth; r++ {
			output.Set(r, c, 0)
		}
		if fwdGrad != nil {
			for r := 0; r < e.inputDims; r++ {
				fwdGrad.Set(r, c, e.scale)
			}
		}
	})
	return nil
}

func (e *identity) Backward(n int, input, dLdOutput, fwdGrad, dLdInput *device.Matrix, dLdParams *device.Buffer) error {
	if dLdInput == nil {
		return nil
	}
	parallel.Columns(n, func(c int) {
		for r := 0; r < e.inputDims; r++ {
			dLdInput.Set(r, c, dLdOutput.At(r, c)*fwdGrad.At(r, c))
		}
	})
	return nil
}

func (e *identity) Initialize(rng *rand.Rand, dst []float32) {}
