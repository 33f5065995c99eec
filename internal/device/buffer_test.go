package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferFloat32(t *testing.T) {
	b := NewBuffer(4, Float32)
	assert.Equal(t, 4, b.Len())
	assert.Equal(t, Float32, b.Precision())

	b.SetFloat(2, 3.5)
	assert.Equal(t, float32(3.5), b.Float(2))
	assert.Equal(t, float32(0), b.Float(0))
}

func TestBufferFloat16Quantizes(t *testing.T) {
	b := NewBuffer(2, Float16)
	b.SetFloat(0, 0.1)
	// Stored as binary16: close, but not exact.
	assert.InDelta(t, 0.1, b.Float(0), 1e-4)
	assert.NotEqual(t, float32(0.1), b.Float(0))
}

func TestBufferCopyRoundTrip(t *testing.T) {
	b := NewBuffer(3, Float32)
	require.NoError(t, b.CopyFromFloat32([]float32{1, 2, 3}))

	out := make([]float32, 3)
	require.NoError(t, b.CopyToFloat32(out))
	assert.Equal(t, []float32{1, 2, 3}, out)

	assert.Error(t, b.CopyFromFloat32([]float32{1}))
	assert.Error(t, b.CopyToFloat32(make([]float32, 5)))
}

func TestBufferSliceAliases(t *testing.T) {
	b := NewBuffer(6, Float32)
	view, err := b.Slice(2, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, view.Len())

	view.SetFloat(0, 7)
	assert.Equal(t, float32(7), b.Float(2))

	_, err = b.Slice(4, 3)
	assert.Error(t, err)
	_, err = b.Slice(-1, 2)
	assert.Error(t, err)
}

func TestMatrixColumnMajorPitch(t *testing.T) {
	buf := NewBuffer(8, Float32)
	// 3 rows padded to pitch 4, 2 columns.
	m, err := MatrixFromBuffer(buf, 3, 2, 4)
	require.NoError(t, err)

	m.Set(1, 1, 5)
	// Element (1, 1) lives at 1*pitch + 1.
	assert.Equal(t, float32(5), buf.Float(5))
	assert.Equal(t, float32(5), m.At(1, 1))
	assert.Equal(t, []float32{0, 5, 0}, m.Col(1))

	_, err = MatrixFromBuffer(buf, 5, 2, 4)
	assert.Error(t, err)
	_, err = MatrixFromBuffer(buf, 3, 4, 4)
	assert.Error(t, err)
}
