package module

import (
	"fmt"

	"github.com/tangent-ml/tangent/internal/config"
	"github.com/tangent-ml/tangent/internal/device"
	"github.com/tangent-ml/tangent/internal/encoding"
	"github.com/tangent-ml/tangent/internal/logger"
	"github.com/tangent-ml/tangent/internal/network"
)

// parsePrecision resolves the compute precision from a descriptor's
// "precision" key. Half precision is the default, matching the intended
// deployment of small fully device-resident models.
func parsePrecision(desc config.Descriptor) (device.Precision, error) {
	switch name := desc.Str("precision", "float16"); name {
	case "float16":
		return device.Float16, nil
	case "float32":
		return device.Float32, nil
	default:
		return 0, fmt.Errorf("module: unsupported precision %q", name)
	}
}

// NewEncoding constructs a standalone encoding module. alignment is the
// granularity the padded output width must satisfy; pass 1 when the consumer
// has no alignment requirement.
func NewEncoding(inputDims, alignment int, desc config.Descriptor) (*Encoding, error) {
	prec, err := parsePrecision(desc)
	if err != nil {
		return nil, err
	}
	enc, err := encoding.New(desc, inputDims, alignment)
	if err != nil {
		return nil, err
	}
	m := newEncodingModule(enc, prec)
	logger.Default().Debug("encoding module created",
		"otype", desc.Str("otype", "identity"),
		"n_input_dims", m.InputWidth(),
		"n_output_dims", m.OutputWidth(),
		"n_params", m.ParamCount(),
		"precision", prec.String())
	return m, nil
}

// NewNetwork constructs a standalone network module whose boundary is
// already in compute precision.
func NewNetwork(inputDims, outputDims int, desc config.Descriptor) (*Network, error) {
	prec, err := parsePrecision(desc)
	if err != nil {
		return nil, err
	}
	mlp, err := network.NewMLP(desc, inputDims, outputDims, prec)
	if err != nil {
		return nil, err
	}
	m := newNetworkModule(mlp)
	logger.Default().Debug("network module created",
		"n_input_dims", m.InputWidth(),
		"n_output_dims", m.OutputWidth(),
		"n_params", m.ParamCount(),
		"precision", prec.String())
	return m, nil
}

// NewNetworkWithInputEncoding constructs the composite module from a
// top-level descriptor of the shape
//
//	{ "encoding": {...}, "network": {...}, "precision": "float16" }
//
// An absent "encoding" key selects the identity encoding, so a plain network
// and an encoded network share one code path.
func NewNetworkWithInputEncoding(inputDims, outputDims int, desc config.Descriptor) (*NetworkWithInputEncoding, error) {
	netDesc := desc.Sub("network")
	if netDesc == nil {
		return nil, fmt.Errorf("module: descriptor is missing the network section")
	}
	prec, err := parsePrecision(desc)
	if err != nil {
		return nil, err
	}

	encDesc := desc.Sub("encoding")
	if encDesc == nil {
		encDesc = config.Descriptor{"otype": "identity"}
	}
	enc, err := encoding.New(encDesc, inputDims, network.InputAlignment)
	if err != nil {
		return nil, err
	}

	mlp, err := network.NewMLP(netDesc, enc.PaddedOutputWidth(), outputDims, prec)
	if err != nil {
		return nil, err
	}

	m, err := newComposite(newEncodingModule(enc, prec), newNetworkModule(mlp))
	if err != nil {
		return nil, err
	}
	logger.Default().Debug("composite module created",
		"encoding", encDesc.Str("otype", "identity"),
		"n_input_dims", m.InputWidth(),
		"n_encoded_dims", enc.PaddedOutputWidth(),
		"n_output_dims", m.OutputWidth(),
		"n_params", m.ParamCount(),
		"precision", prec.String())
	return m, nil
}
