// Copyright 2025 The Tangent Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package module exposes tangent's differentiable module contract: a uniform
// inference / forward / backward surface over coordinate encodings, layer
// chains, and their composition.
//
// Modules never own parameter storage. The caller allocates parameter,
// gradient, and activation buffers sized from the module's reported
// dimensions, binds them per call, and drives a strict forward -> backward
// sequence per batch on an explicit stream:
//
//	model, _ := module.NewNetworkWithInputEncoding(3, 1, desc)
//
//	stream := device.NewStream()
//	defer stream.Close()
//
//	full := make([]float32, model.ParamCount())
//	_ = model.InitializeParams(1337, full)
//	params := device.NewBuffer(model.ParamCount(), model.ParamPrecision())
//	_ = params.CopyFromFloat32(full)
//
//	ctx, _ := model.Forward(stream, batch, in, out, params, true)
//	_ = model.Backward(stream, batch, ctx, dIn, dOut, grads, in, out, params)
//	_ = stream.Synchronize()
//
// Backward overwrites the bound gradient buffer; callers wanting
// accumulation across batches keep their own accumulator.
package module

import (
	"github.com/tangent-ml/tangent/internal/config"
	"github.com/tangent-ml/tangent/internal/module"
)

// Module is the contract implemented by all variants.
type Module = module.Module

// Context is the pending-operation value returned by Forward and consumed by
// exactly one Backward.
type Context = module.Context

// Encoding transforms low-dimensional full-precision coordinates into a
// higher-dimensional compute-precision representation.
type Encoding = module.Encoding

// Network transforms an input activation batch through a parameterized layer
// chain, entirely in compute precision.
type Network = module.Network

// NetworkWithInputEncoding composes an encoding feeding a network behind a
// single parameter surface.
type NetworkWithInputEncoding = module.NetworkWithInputEncoding

// Contract-violation sentinels.
var (
	ErrNoContext       = module.ErrNoContext
	ErrContextConsumed = module.ErrContextConsumed
	ErrContextMismatch = module.ErrContextMismatch
)

// Descriptor is a nested configuration document selecting an algorithm and
// its hyperparameters.
type Descriptor = config.Descriptor

// DescriptorFromJSON parses a descriptor from JSON.
func DescriptorFromJSON(data []byte) (Descriptor, error) { return config.FromJSON(data) }

// DescriptorFromYAML parses a descriptor from YAML.
func DescriptorFromYAML(data []byte) (Descriptor, error) { return config.FromYAML(data) }

// NewEncoding constructs a standalone encoding module. alignment is the
// granularity the padded output width must satisfy (1 = none).
func NewEncoding(inputDims, alignment int, desc Descriptor) (*Encoding, error) {
	return module.NewEncoding(inputDims, alignment, desc)
}

// NewNetwork constructs a standalone network module.
func NewNetwork(inputDims, outputDims int, desc Descriptor) (*Network, error) {
	return module.NewNetwork(inputDims, outputDims, desc)
}

// NewNetworkWithInputEncoding constructs the composite module from a
// top-level descriptor { encoding?, network, precision? }. An absent
// encoding section selects the identity encoding.
func NewNetworkWithInputEncoding(inputDims, outputDims int, desc Descriptor) (*NetworkWithInputEncoding, error) {
	return module.NewNetworkWithInputEncoding(inputDims, outputDims, desc)
}
