package codec

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodecs(t *testing.T) {
	vectors := [][]float32{
		{},
		{1.5},
		{0.1, -0.2, 0.3, float32(math.Inf(1)), math.MaxFloat32},
		make([]float32, 768),
	}

	for _, name := range []string{"float32", "float32-zstd"} {
		c, ok := ByName(name)
		require.True(t, ok)
		assert.Equal(t, name, c.Name())

		t.Run(name, func(t *testing.T) {
			for _, vec := range vectors {
				b, err := c.Marshal(vec)
				require.NoError(t, err)

				got, err := c.Unmarshal(b)
				require.NoError(t, err)
				assert.Equal(t, vec, got)
			}
		})
	}

	_, ok := ByName("protobuf")
	assert.False(t, ok)
}

func TestFloat32Corrupt(t *testing.T) {
	c := Float32{}

	_, err := c.Unmarshal([]byte{1, 2})
	assert.ErrorIs(t, err, ErrCorrupt)

	b := MustMarshal(c, []float32{1, 2, 3})
	_, err = c.Unmarshal(b[:len(b)-1])
	assert.ErrorIs(t, err, ErrCorrupt)

	// Huge length prefix must not allocate.
	bogus := append([]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x7f}, 0, 0, 0, 0)
	_, err = c.Unmarshal(bogus)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestZstdCorrupt(t *testing.T) {
	_, err := NewZstd().Unmarshal([]byte("definitely not zstd"))
	assert.ErrorIs(t, err, ErrCorrupt)
}
