// Package device provides the execution primitives shared by all tangent
// modules: ordered streams, precision-tagged buffers, and column-major
// batch matrices.
package device

// Precision identifies the numeric representation of buffer elements.
type Precision int

// Supported element precisions.
const (
	Float16 Precision = iota
	Float32
)

// Size returns the byte size of one element.
func (p Precision) Size() int {
	switch p {
	case Float16:
		return 2
	case Float32:
		return 4
	default:
		panic("unknown precision")
	}
}

// String returns a human-readable precision name.
func (p Precision) String() string {
	switch p {
	case Float16:
		return "float16"
	case Float32:
		return "float32"
	default:
		return "unknown"
	}
}
