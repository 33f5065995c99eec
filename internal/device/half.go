package device

import "math"

// FloatToHalf converts a float32 to IEEE 754 binary16 bits.
// Subnormal results are flushed to zero.
func FloatToHalf(f float32) uint16 {
	bits := math.Float32bits(f)
	sign := uint16((bits >> 31) & 0x1)
	exp := int16((bits >> 23) & 0xFF)
	mant := bits & 0x7FFFFF

	var outExp uint16
	var outMant uint16

	switch exp {
	case 0:
		// Zero or float32 subnormal, both map to signed zero.
		return sign << 15
	case 0xFF:
		// Inf or NaN
		outExp = 0x1F
		if mant != 0 {
			outMant = 0x200
		}
	default:
		newExp := exp - 127 + 15
		switch {
		case newExp >= 31:
			// Overflow to Inf
			outExp = 0x1F
		case newExp <= 0:
			// Underflow to zero
			outExp = 0
		default:
			outExp = uint16(newExp)
			outMant = uint16(mant >> 13)
		}
	}

	return (sign << 15) | (outExp << 10) | outMant
}

// HalfToFloat converts IEEE 754 binary16 bits to a float32.
func HalfToFloat(h uint16) float32 {
	sign := uint32((h >> 15) & 0x1)
	exp := uint32((h >> 10) & 0x1F)
	mant := uint32(h & 0x3FF)

	var outBits uint32

	switch exp {
	case 0:
		// Subnormal or zero -> zero
		outBits = sign << 31
	case 0x1F:
		// Inf or NaN
		outBits = (sign << 31) | 0x7F800000
		if mant != 0 {
			outBits |= mant << 13
		}
	default:
		newExp := exp + 127 - 15
		outBits = (sign << 31) | (newExp << 23) | (mant << 13)
	}

	return math.Float32frombits(outBits)
}

// FloatToHalfSlice converts src into dst element-wise.
func FloatToHalfSlice(src []float32, dst []uint16) {
	for i, v := range src {
		dst[i] = FloatToHalf(v)
	}
}

// HalfToFloatSlice converts src into dst element-wise.
func HalfToFloatSlice(src []uint16, dst []float32) {
	for i, v := range src {
		dst[i] = HalfToFloat(v)
	}
}
