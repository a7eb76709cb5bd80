package codec

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// Zstd wraps the Float32 layout in a zstd frame. Useful for high-dimensional
// vectors with low entropy (quantized or sparse-ish embeddings).
type Zstd struct {
	once sync.Once
	enc  *zstd.Encoder
	dec  *zstd.Decoder
	err  error
}

// NewZstd returns a zstd vector codec.
func NewZstd() *Zstd { return &Zstd{} }

func (z *Zstd) init() error {
	z.once.Do(func() {
		z.enc, z.err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
		if z.err != nil {
			return
		}
		z.dec, z.err = zstd.NewReader(nil)
	})
	return z.err
}

// Marshal encodes and compresses vec.
func (z *Zstd) Marshal(vec []float32) ([]byte, error) {
	if err := z.init(); err != nil {
		return nil, err
	}
	raw := appendFloat32(make([]byte, 0, lengthPrefix+4*len(vec)), vec)
	return z.enc.EncodeAll(raw, nil), nil
}

// Unmarshal decompresses and decodes data.
func (z *Zstd) Unmarshal(data []byte) ([]float32, error) {
	if err := z.init(); err != nil {
		return nil, err
	}
	raw, err := z.dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return Float32{}.Unmarshal(raw)
}

// Name returns "float32-zstd".
func (*Zstd) Name() string { return "float32-zstd" }
