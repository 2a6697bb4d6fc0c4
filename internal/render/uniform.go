package render

import (
	"encoding/binary"
	"math"
)

// Uniform block sizes, std140.
const (
	viewDataSize  = 16 * 4
	lightDataSize = 8 * 4
)

// putFloats writes vals into a new little-endian byte slice.
func putFloats(vals ...float32) []byte {
	b := make([]byte, len(vals)*4)
	for i, v := range vals {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
	return b
}
