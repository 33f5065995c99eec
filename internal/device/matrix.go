package device

import "fmt"

// Matrix is a column-major batch view over a Buffer: each column holds one
// sample, pitch is the element distance between consecutive columns
// (pitch >= rows, extra rows satisfy alignment padding).
type Matrix struct {
	buf   *Buffer
	rows  int
	cols  int
	pitch int
}

// NewMatrix allocates a dense rows x cols matrix with pitch == rows.
func NewMatrix(rows, cols int, prec Precision) *Matrix {
	return &Matrix{
		buf:   NewBuffer(rows*cols, prec),
		rows:  rows,
		cols:  cols,
		pitch: rows,
	}
}

// MatrixFromBuffer wraps an existing buffer as a rows x cols matrix with the
// given pitch. The buffer must hold at least pitch*cols elements.
func MatrixFromBuffer(buf *Buffer, rows, cols, pitch int) (*Matrix, error) {
	if pitch < rows {
		return nil, fmt.Errorf("device: pitch %d smaller than rows %d", pitch, rows)
	}
	if need := pitch * cols; buf.Len() < need {
		return nil, fmt.Errorf("device: buffer has %d elements, matrix needs %d", buf.Len(), need)
	}
	return &Matrix{buf: buf, rows: rows, cols: cols, pitch: pitch}, nil
}

// Rows returns the row count (channels).
func (m *Matrix) Rows() int { return m.rows }

// Cols returns the column count (batch size).
func (m *Matrix) Cols() int { return m.cols }

// Pitch returns the element stride between columns.
func (m *Matrix) Pitch() int { return m.pitch }

// Precision returns the element precision.
func (m *Matrix) Precision() Precision { return m.buf.prec }

// Buffer returns the backing buffer.
func (m *Matrix) Buffer() *Buffer { return m.buf }

// At reads element (r, c) as float32.
func (m *Matrix) At(r, c int) float32 {
	return m.buf.Float(c*m.pitch + r)
}

// Set writes element (r, c) from float32.
func (m *Matrix) Set(r, c int, v float32) {
	m.buf.SetFloat(c*m.pitch+r, v)
}

// Zero clears the matrix including padding rows.
func (m *Matrix) Zero() {
	m.buf.Zero()
}

// Col returns a column as a freshly read full-precision slice.
func (m *Matrix) Col(c int) []float32 {
	out := make([]float32, m.rows)
	for r := range out {
		out[r] = m.At(r, c)
	}
	return out
}
