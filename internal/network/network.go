// Package network implements the parameterized layer-chain algorithms that
// back the network module variant. Kernels are synchronous; the module layer
// schedules them onto a stream.
package network

import (
	"fmt"

	"github.com/tangent-ml/tangent/internal/device"
)

// gemm computes C = A @ B for row-major float32 slices, offloading to the
// accelerator when one is attached.
func gemm(acc device.Accelerator, m, n, k int, a, b, c []float32) error {
	if acc != nil {
		return acc.Gemm(m, n, k, a, b, c)
	}
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			var sum float32
			for p := 0; p < k; p++ {
				sum += a[i*k+p] * b[p*n+j]
			}
			c[i*n+j] = sum
		}
	}
	return nil
}

// transpose writes the [rows x cols] row-major matrix src into dst as
// [cols x rows].
func transpose(src []float32, rows, cols int, dst []float32) {
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			dst[j*rows+i] = src[i*cols+j]
		}
	}
}

// roundSlice quantizes values through the compute precision so staging
// buffers match what precision-tagged storage would hold.
func roundSlice(v []float32, prec device.Precision) {
	if prec != device.Float16 {
		return
	}
	for i, x := range v {
		v[i] = device.HalfToFloat(device.FloatToHalf(x))
	}
}

// readMatrix stages n columns of m into a row-major [rows x n] slice.
func readMatrix(m *device.Matrix, rows, n int) []float32 {
	out := make([]float32, rows*n)
	for c := 0; c < n; c++ {
		for r := 0; r < rows; r++ {
			out[r*n+c] = m.At(r, c)
		}
	}
	return out
}

// writeMatrix stores a row-major [rows x n] slice into m's first n columns.
func writeMatrix(src []float32, m *device.Matrix, rows, n int) {
	for c := 0; c < n; c++ {
		for r := 0; r < rows; r++ {
			m.Set(r, c, src[r*n+c])
		}
	}
}

func checkWidth(name string, m *device.Matrix, rows, n int) error {
	if m.Rows() < rows {
		return fmt.Errorf("network: %s has %d rows, need %d", name, m.Rows(), rows)
	}
	if m.Cols() < n {
		return fmt.Errorf("network: %s has %d columns, batch is %d", name, m.Cols(), n)
	}
	return nil
}
