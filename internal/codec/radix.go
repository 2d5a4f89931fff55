package codec

import "strconv"

// Fixed-point scales. Anything whose scaled magnitude does not fit in an
// int64 has no defined encoding.
const (
	floatPrecision  = 1000000
	doublePrecision = 10000000000

	radix = 36
)

// Quantize32 truncates x*1e6 toward zero. The product is taken in float32 so
// the result matches what the device firmware puts on the wire.
func Quantize32(x float32) int64 {
	return int64(x * floatPrecision)
}

func Dequantize32(i int64) float32 {
	return float32(i) / floatPrecision
}

// Quantize64 truncates x*1e10 toward zero.
func Quantize64(x float64) int64 {
	return int64(x * doublePrecision)
}

func Dequantize64(i int64) float64 {
	return float64(i) / doublePrecision
}

// FormatInt36 renders v with digits 0-9a-z, most significant first, "-" for negatives.
func FormatInt36(v int64) string {
	return strconv.FormatInt(v, radix)
}

// ParseInt36 is the strict inverse of FormatInt36.
func ParseInt36(s string) (int64, error) {
	return strconv.ParseInt(s, radix, 64)
}

// ParseInt36Lenient mirrors the legacy parser: malformed text reads as 0.
func ParseInt36Lenient(s string) int64 {
	v, err := ParseInt36(s)
	if err != nil {
		return 0
	}
	return v
}
