package frame

import (
	"encoding/binary"
	"math"
)

const (
	// WordSize is the encoded size of one float64.
	WordSize = 8

	// SentinelBits is the quiet NaN that terminates a message.
	SentinelBits uint64 = 0x7ff800100400a05b
)

// Sentinel is SentinelBits in wire order.
var Sentinel = [WordSize]byte{0x5b, 0xa0, 0x00, 0x04, 0x10, 0x00, 0xf8, 0x7f}

// IsSentinel reports whether v would be read back as a message terminator.
func IsSentinel(v float64) bool {
	return math.Float64bits(v) == SentinelBits
}

// PutFloats encodes src into dst as little-endian words and returns the
// number of bytes written. dst must hold at least len(src)*WordSize bytes.
func PutFloats(dst []byte, src []float64) int {
	if len(src) == 0 {
		return 0
	}
	_ = dst[len(src)*WordSize-1]
	for i, v := range src {
		binary.LittleEndian.PutUint64(dst[i*WordSize:], math.Float64bits(v))
	}
	return len(src) * WordSize
}

// AppendFloats appends the little-endian encoding of src to dst.
func AppendFloats(dst []byte, src ...float64) []byte {
	for _, v := range src {
		dst = binary.LittleEndian.AppendUint64(dst, math.Float64bits(v))
	}
	return dst
}

// Floats decodes every complete word of src. Trailing bytes that do not
// form a full word are ignored.
func Floats(src []byte) []float64 {
	out := make([]float64, len(src)/WordSize)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(src[i*WordSize:]))
	}
	return out
}
