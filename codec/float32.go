package codec

import (
	"encoding/binary"
	"fmt"
	"math"
)

// lengthPrefix is the size of the element count written before the floats.
const lengthPrefix = 8

// Float32 encodes a vector as a little-endian uint64 element count followed by
// little-endian IEEE-754 float32 values.
type Float32 struct{}

// Marshal encodes vec.
func (Float32) Marshal(vec []float32) ([]byte, error) {
	return appendFloat32(make([]byte, 0, lengthPrefix+4*len(vec)), vec), nil
}

// Unmarshal decodes data produced by Marshal.
func (Float32) Unmarshal(data []byte) ([]float32, error) {
	if len(data) < lengthPrefix {
		return nil, fmt.Errorf("%w: %d bytes, want at least %d", ErrCorrupt, len(data), lengthPrefix)
	}
	n := binary.LittleEndian.Uint64(data)
	body := data[lengthPrefix:]
	if n > uint64(len(body))/4 || uint64(len(body)) != 4*n {
		return nil, fmt.Errorf("%w: length prefix %d does not match %d payload bytes", ErrCorrupt, n, len(body))
	}
	vec := make([]float32, n)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(body[4*i:]))
	}
	return vec, nil
}

// Name returns "float32".
func (Float32) Name() string { return "float32" }

func appendFloat32(dst []byte, vec []float32) []byte {
	dst = binary.LittleEndian.AppendUint64(dst, uint64(len(vec)))
	for _, f := range vec {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(f))
	}
	return dst
}
