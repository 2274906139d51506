package meshlet

import (
	"fmt"
	"math"
)

// Quantize maps v in [0, 1] to an unsigned code of the given width, rounding
// to the nearest code. Values outside [0, 1] are clamped and NaN maps to 0.
// Widths outside [1, 32] are a programming error and panic; the codec never
// asks for fewer than 4 bits.
func Quantize(v float32, bits uint32) uint32 {
	return quantizeUnit(float64(v), bits)
}

// Dequantize is the inverse of Quantize: code / (2^bits - 1).
func Dequantize(code uint32, bits uint32) float32 {
	return float32(dequantizeUnit(code, bits))
}

func quantizeUnit(x float64, bits uint32) uint32 {
	scale := quantScale(bits)
	switch {
	case !(x > 0):
		return 0
	case x >= 1:
		return uint32(scale)
	}
	return uint32(math.Floor(x*scale + 0.5))
}

func dequantizeUnit(code uint32, bits uint32) float64 {
	return float64(code) / quantScale(bits)
}

// normalizeAxis maps v into [0, 1] relative to [lo, hi]. The division runs in
// float64 so that 32-bit codes keep every bit of a float32 coordinate.
// Zero-extent axes map to 0.
func normalizeAxis(v, lo, hi float32) float64 {
	extent := float64(hi) - float64(lo)
	if !(extent > 0) {
		return 0
	}
	t := (float64(v) - float64(lo)) / extent
	switch {
	case t < 0:
		return 0
	case t > 1:
		return 1
	}
	return t
}

// quantizePosition returns the code of v on one axis of [lo, hi].
func quantizePosition(v, lo, hi float32, bits uint32) uint32 {
	return quantizeUnit(normalizeAxis(v, lo, hi), bits)
}

// dequantizePosition rebuilds a coordinate from its code, rounding to
// float32 once at the end. Code 0 yields lo exactly and the full code hi.
func dequantizePosition(code, bits uint32, lo, hi float32) float32 {
	extent := float64(hi) - float64(lo)
	return float32(float64(lo) + dequantizeUnit(code, bits)*extent)
}

// QuantizationStep returns the spacing between adjacent codes, 1/(2^bits-1).
// It is also the round trip error bound of Quantize/Dequantize.
func QuantizationStep(bits uint32) float64 {
	return 1 / quantScale(bits)
}

func quantScale(bits uint32) float64 {
	if bits == 0 || bits > 32 {
		panic(fmt.Sprintf("meshlet: quantization width %d out of range [1, 32]", bits))
	}
	return float64(uint64(1)<<bits - 1)
}

// encodeNormal maps a normal component from [-1, 1] to an 8-bit code.
func encodeNormal(n float32) uint32 {
	return Quantize(n*0.5+0.5, NormalBits)
}

func decodeNormal(code uint32) float32 {
	return Dequantize(code, NormalBits)*2 - 1
}
