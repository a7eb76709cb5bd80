// Package codec centralizes vector payload encoding.
//
// Codec selection is a breaking-change boundary: bytes persisted by one codec
// cannot be decoded by another. Backups record the codec name in their header
// so a restore can verify it.
package codec

import (
	"errors"
	"fmt"
)

// ErrCorrupt is returned when stored bytes cannot be decoded.
var ErrCorrupt = errors.New("codec: corrupt vector payload")

// VectorCodec encodes/decodes float32 vectors.
// Implementations must be safe for concurrent use.
type VectorCodec interface {
	Marshal(vec []float32) ([]byte, error)
	Unmarshal(data []byte) ([]float32, error)
	Name() string
}

// ByName returns a built-in codec by its stable name.
func ByName(name string) (VectorCodec, bool) {
	switch name {
	case "float32":
		return Float32{}, true
	case "float32-zstd":
		return NewZstd(), true
	default:
		return nil, false
	}
}

// MustMarshal is a helper for tests and benchmarks.
func MustMarshal(c VectorCodec, vec []float32) []byte {
	if c == nil {
		c = Default
	}
	b, err := c.Marshal(vec)
	if err != nil {
		panic(fmt.Errorf("codec %s marshal failed: %w", c.Name(), err))
	}
	return b
}

// Default is the codec used when none is configured.
var Default VectorCodec = Float32{}
