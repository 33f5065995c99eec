//go:build webgpu

// Copyright 2025 The Tangent Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package webgpu provides the WebGPU accelerator for dense kernels.
//
// The accelerator attaches to a stream; kernels enqueued afterwards offload
// their GEMMs to the GPU:
//
//	gpu, err := webgpu.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer gpu.Release()
//
//	stream := device.NewStream()
//	stream.SetAccelerator(gpu)
package webgpu

import (
	internalwebgpu "github.com/tangent-ml/tangent/internal/backend/webgpu"

	"github.com/tangent-ml/tangent/device"
)

// Backend is the WebGPU accelerator implementation.
type Backend = internalwebgpu.Backend

// Compile-time check that Backend implements device.Accelerator.
var _ device.Accelerator = (*Backend)(nil)

// New creates a new WebGPU accelerator.
//
// Returns an error if WebGPU initialization fails (e.g. no compatible GPU).
// Call Release() when done to free GPU resources.
func New() (*Backend, error) {
	return internalwebgpu.New()
}

// IsAvailable checks if WebGPU is available on the current system, allowing
// graceful fallback to the portable kernels when it is not.
func IsAvailable() bool {
	return internalwebgpu.IsAvailable()
}
