package device

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Buffer is a contiguous device-style array of compute-precision values.
//
// A Buffer is a typed view: element access converts between the tagged
// precision and float32 at the boundary, so callers never reinterpret raw
// memory themselves. Buffers backing module parameters are caller-owned;
// modules bind them per call and must not retain them (see module.Module).
type Buffer struct {
	data []byte
	prec Precision
	n    int
}

// NewBuffer allocates a zeroed buffer of n elements with the given precision.
func NewBuffer(n int, prec Precision) *Buffer {
	if n < 0 {
		panic(fmt.Sprintf("device: negative buffer length %d", n))
	}
	return &Buffer{
		data: make([]byte, n*prec.Size()),
		prec: prec,
		n:    n,
	}
}

// Len returns the number of elements.
func (b *Buffer) Len() int {
	if b == nil {
		return 0
	}
	return b.n
}

// Precision returns the element precision tag.
func (b *Buffer) Precision() Precision { return b.prec }

// Float reads element i, converting to float32.
func (b *Buffer) Float(i int) float32 {
	switch b.prec {
	case Float16:
		return HalfToFloat(binary.LittleEndian.Uint16(b.data[i*2:]))
	case Float32:
		return math.Float32frombits(binary.LittleEndian.Uint32(b.data[i*4:]))
	default:
		panic("unknown precision")
	}
}

// SetFloat writes element i, converting from float32.
func (b *Buffer) SetFloat(i int, v float32) {
	switch b.prec {
	case Float16:
		binary.LittleEndian.PutUint16(b.data[i*2:], FloatToHalf(v))
	case Float32:
		binary.LittleEndian.PutUint32(b.data[i*4:], math.Float32bits(v))
	default:
		panic("unknown precision")
	}
}

// CopyFromFloat32 fills the buffer from a full-precision slice.
// Returns an error on length mismatch.
func (b *Buffer) CopyFromFloat32(src []float32) error {
	if len(src) != b.n {
		return fmt.Errorf("device: copy length mismatch: buffer has %d elements, source has %d", b.n, len(src))
	}
	for i, v := range src {
		b.SetFloat(i, v)
	}
	return nil
}

// CopyToFloat32 reads the buffer into a full-precision slice.
// Returns an error on length mismatch.
func (b *Buffer) CopyToFloat32(dst []float32) error {
	if len(dst) != b.n {
		return fmt.Errorf("device: copy length mismatch: buffer has %d elements, destination has %d", b.n, len(dst))
	}
	for i := range dst {
		dst[i] = b.Float(i)
	}
	return nil
}

// Slice returns a view of n elements starting at off, sharing memory with b.
func (b *Buffer) Slice(off, n int) (*Buffer, error) {
	if off < 0 || n < 0 || off+n > b.n {
		return nil, fmt.Errorf("device: slice [%d:%d] out of range for buffer of %d elements", off, off+n, b.n)
	}
	return &Buffer{
		data: b.data[off*b.prec.Size() : (off+n)*b.prec.Size()],
		prec: b.prec,
		n:    n,
	}, nil
}

// Zero clears all elements.
func (b *Buffer) Zero() {
	for i := range b.data {
		b.data[i] = 0
	}
}
