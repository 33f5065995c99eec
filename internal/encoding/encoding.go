// Package encoding implements coordinate encoders: transforms from
// low-dimensional full-precision inputs to higher-dimensional
// compute-precision representations.
package encoding

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/tangent-ml/tangent/internal/config"
	"github.com/tangent-ml/tangent/internal/device"
)

// Encoder is the algorithm surface consumed by the module layer. Encode and
// Backward are synchronous kernels; the module wrapper schedules them onto a
// stream.
type Encoder interface {
	// InputWidth returns the number of input dimensions to encode.
	InputWidth() int
	// OutputWidth returns the logical encoded dimensionality.
	OutputWidth() int
	// PaddedOutputWidth returns the allocated output dimensionality;
	// rows past OutputWidth are written as zero.
	PaddedOutputWidth() int
	// ForwardGradientDims returns the per-sample element count of the
	// forward-gradient buffer, or 0 when the encoder cannot produce
	// input gradients.
	ForwardGradientDims() int
	// NumParams returns the encoder's parameter count.
	NumParams() int

	// Encode writes PaddedOutputWidth rows per sample into output.
	// When fwdGrad is non-nil it additionally records the per-sample
	// derivative data Backward needs to produce an input gradient.
	Encode(n int, input, output, fwdGrad *device.Matrix) error

	// Backward consumes the upstream gradient. When dLdInput is non-nil,
	// fwdGrad must hold the data recorded by the matching Encode call.
	// Parameter gradients, when the encoder has parameters, overwrite
	// dLdParams.
	Backward(n int, input, dLdOutput, fwdGrad, dLdInput *device.Matrix, dLdParams *device.Buffer) error

	// Initialize fills dst (length NumParams) deterministically from rng.
	Initialize(rng *rand.Rand, dst []float32)
}

type factory func(desc config.Descriptor, inputDims, granularity int) (Encoder, error)

var registry = map[string]factory{
	"identity":  newIdentity,
	"frequency": newFrequency,
}

// New constructs the encoder selected by the descriptor's "otype" key.
// granularity is the alignment the padded output width must satisfy.
func New(desc config.Descriptor, inputDims, granularity int) (Encoder, error) {
	if inputDims <= 0 {
		return nil, fmt.Errorf("encoding: input dims must be positive, got %d", inputDims)
	}
	if granularity <= 0 {
		granularity = 1
	}
	otype := desc.Str("otype", "identity")
	f, ok := registry[strings.ToLower(otype)]
	if !ok {
		return nil, fmt.Errorf("encoding: unsupported otype %q", otype)
	}
	return f(desc, inputDims, granularity)
}

// padWidth rounds width up to a multiple of granularity.
func padWidth(width, granularity int) int {
	return (width + granularity - 1) / granularity * granularity
}

func checkBatch(name string, n int, input, output *device.Matrix, inWidth, paddedWidth int) error {
	if input.Rows() < inWidth {
		return fmt.Errorf("encoding: %s input has %d rows, need %d", name, input.Rows(), inWidth)
	}
	if output.Rows() < paddedWidth {
		return fmt.Errorf("encoding: %s output has %d rows, need %d", name, output.Rows(), paddedWidth)
	}
	if input.Cols() < n || output.Cols() < n {
		return fmt.Errorf("encoding: %s batch of %d exceeds matrix columns (%d in, %d out)", name, n, input.Cols(), output.Cols())
	}
	return nil
}
