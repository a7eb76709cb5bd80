package testutil

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUniformVectors(t *testing.T) {
	rng := NewRNG(4711)

	v := rng.UniformVectors(8, 32)

	assert.Equal(t, 8, len(v))
	assert.Equal(t, 32, len(v[0]))
	assert.LessOrEqual(t, v[0][0], float32(1.0))
	assert.GreaterOrEqual(t, v[1][0], float32(0.0))
}

func TestReset(t *testing.T) {
	rng := NewRNG(4711)
	v1 := rng.UniformVectors(1, 10)
	rng.Reset()
	v2 := rng.UniformVectors(1, 10)

	assert.Equal(t, v1, v2)
	assert.Equal(t, int64(4711), rng.Seed())
}

func TestZipf(t *testing.T) {
	rng := NewRNG(1)

	counts := make([]int, 10)
	for range 1000 {
		i := rng.Zipf(10, 1.5)
		require.GreaterOrEqual(t, i, 0)
		require.Less(t, i, 10)
		counts[i]++
	}
	assert.Greater(t, counts[0], counts[9])
	assert.Equal(t, 0, rng.Zipf(1, 2))
}

func TestWorkload(t *testing.T) {
	cfg := WorkloadConfig{Ops: 200, IDs: 20, MaxTS: 50, Dim: 3, DeleteP: 0.3, ZipfSkew: 1.2}

	ops := NewRNG(7).Workload(cfg)
	require.Len(t, ops, 200)
	assert.Equal(t, ops, NewRNG(7).Workload(cfg))

	var deletes int
	for _, op := range ops {
		assert.GreaterOrEqual(t, op.TS, int64(1))
		assert.LessOrEqual(t, op.TS, int64(50))
		assert.Regexp(t, `^id-\d{4}$`, op.ID)
		if op.Delete {
			deletes++
			assert.Nil(t, op.Vector)
		} else {
			assert.Len(t, op.Vector, 3)
		}
	}
	assert.Greater(t, deletes, 0)
	assert.Less(t, deletes, 200)
}

func TestWorkloadNegativeTS(t *testing.T) {
	ops := NewRNG(3).Workload(WorkloadConfig{Ops: 300, IDs: 10, MaxTS: 20, Dim: 1, NegativeTS: true})

	var negative, positive int
	for _, op := range ops {
		assert.GreaterOrEqual(t, op.TS, int64(-20))
		assert.LessOrEqual(t, op.TS, int64(20))
		switch {
		case op.TS < 0:
			negative++
		case op.TS > 0:
			positive++
		}
	}
	assert.Greater(t, negative, 0)
	assert.Greater(t, positive, 0)
}

func TestModelLiveNonPositive(t *testing.T) {
	m := NewModel([]Op{
		{ID: "zero", TS: 0, Vector: []float32{1}},
		{ID: "neg", TS: -5, Vector: []float32{2}},
		{ID: "negdel", TS: -5, Vector: []float32{3}},
		{ID: "negdel", TS: -10, Delete: true},
	})

	live := m.Live()
	require.Len(t, live, 1)
	assert.Equal(t, "negdel", live[0].ID)
}

func TestModel(t *testing.T) {
	ops := []Op{
		{ID: "a", TS: 10, Vector: []float32{1}},
		{ID: "a", TS: 5, Vector: []float32{2}}, // replaces the first insert
		{ID: "b", TS: 20, Vector: []float32{3}},
		{ID: "b", TS: 20, Delete: true},
		{ID: "c", TS: 30, Vector: []float32{4}},
		{ID: "c", TS: 60, Delete: true},
		{ID: "d", TS: 70, Vector: []float32{5}},
	}
	m := NewModel(ops)

	inserts, deletes := m.Len()
	assert.Equal(t, 4, inserts)
	assert.Equal(t, 2, deletes)

	live := m.Live()
	require.Len(t, live, 2)
	assert.Equal(t, "a", live[0].ID)
	assert.Equal(t, []float32{2}, live[0].Vector)
	assert.Equal(t, "d", live[1].ID)

	out := m.Drain(50)
	assert.Equal(t, map[string]Op{
		"a": {ID: "a", TS: 5, Vector: []float32{2}},
		"b": {ID: "b", TS: 20, Delete: true},
		"c": {ID: "c", TS: 30, Vector: []float32{4}},
	}, out)

	inserts, deletes = m.Len()
	assert.Equal(t, 1, inserts)
	assert.Equal(t, 1, deletes)

	out = m.Drain(100)
	assert.Equal(t, map[string]Op{
		"c": {ID: "c", TS: 60, Delete: true},
		"d": {ID: "d", TS: 70, Vector: []float32{5}},
	}, out)
	assert.Empty(t, m.Drain(1000))
}

func TestMaxAbsDiff(t *testing.T) {
	assert.Equal(t, 0.0, MaxAbsDiff([]float32{1, 2}, []float32{1, 2}))
	assert.InDelta(t, 0.5, MaxAbsDiff([]float32{1, 2}, []float32{1.5, 2}), 1e-9)
	assert.True(t, math.IsInf(MaxAbsDiff([]float32{1}, nil), 1))
}
