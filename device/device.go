// Copyright 2025 The Tangent Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package device exposes the execution primitives tangent modules run on:
// ordered streams, precision-tagged buffers, and column-major batch matrices.
//
// A Stream is an ordered asynchronous execution context: work enqueued on one
// stream executes in enqueue order, and buffer contents are defined only
// after Synchronize returns. Independent streams are fully isolated;
// cross-stream ordering is the caller's responsibility.
//
// Example:
//
//	stream := device.NewStream()
//	defer stream.Close()
//
//	params := device.NewBuffer(model.ParamCount(), model.ParamPrecision())
//	out := device.NewMatrix(model.OutputWidth(), batch, model.ParamPrecision())
//	_ = model.Inference(stream, batch, in, out, params)
//	if err := stream.Synchronize(); err != nil {
//	    log.Fatal(err)
//	}
package device

import (
	"github.com/tangent-ml/tangent/internal/device"
)

// Precision identifies the numeric representation of buffer elements.
type Precision = device.Precision

// Supported element precisions.
const (
	Float16 = device.Float16
	Float32 = device.Float32
)

// Stream is an ordered asynchronous execution context.
type Stream = device.Stream

// Buffer is a contiguous device-style array of compute-precision values.
type Buffer = device.Buffer

// Matrix is a column-major batch view over a Buffer.
type Matrix = device.Matrix

// Accelerator offloads dense kernels for work enqueued on a stream.
type Accelerator = device.Accelerator

// NewStream creates a stream and starts its worker.
func NewStream() *Stream { return device.NewStream() }

// NewBuffer allocates a zeroed buffer of n elements.
func NewBuffer(n int, prec Precision) *Buffer { return device.NewBuffer(n, prec) }

// NewMatrix allocates a dense rows x cols matrix with pitch == rows.
func NewMatrix(rows, cols int, prec Precision) *Matrix { return device.NewMatrix(rows, cols, prec) }

// MatrixFromBuffer wraps an existing buffer as a rows x cols matrix with the
// given pitch.
func MatrixFromBuffer(buf *Buffer, rows, cols, pitch int) (*Matrix, error) {
	return device.MatrixFromBuffer(buf, rows, cols, pitch)
}
