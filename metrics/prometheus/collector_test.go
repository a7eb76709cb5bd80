package prometheus

import (
	"context"
	"errors"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecqueue"
)

func TestCollector(t *testing.T) {
	reg := prom.NewRegistry()
	c := NewCollector(reg, "vq")

	c.RecordPush(vecqueue.KindInsert, time.Millisecond, nil)
	c.RecordPush(vecqueue.KindInsert, time.Millisecond, errors.New("x"))
	c.RecordPop(vecqueue.KindDelete, time.Millisecond, nil)
	c.RecordDrainBatch(3, 2, time.Millisecond, nil)
	c.RecordRange(5, 1, time.Millisecond, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.ops.WithLabelValues("push", "insert", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ops.WithLabelValues("push", "insert", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ops.WithLabelValues("pop", "delete", "ok")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.drained.WithLabelValues("insert")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.drained.WithLabelValues("delete")))
	assert.Equal(t, 5.0, testutil.ToFloat64(c.rangeSeen.WithLabelValues("emitted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.rangeSeen.WithLabelValues("skipped")))

	n, err := testutil.GatherAndCount(reg, "vq_operation_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestCollectorWithQueue(t *testing.T) {
	ctx := context.Background()
	reg := prom.NewRegistry()

	q, err := vecqueue.Open(ctx, t.TempDir(), vecqueue.WithMetricsCollector(NewCollector(reg, "vq")))
	require.NoError(t, err)
	defer q.Close()

	require.NoError(t, q.PushInsert(ctx, "a", []float32{1}, vecqueue.WithTimestamp(1)))
	require.NoError(t, q.PushDelete(ctx, "b", vecqueue.WithTimestamp(2)))

	items, err := q.DrainQueues(ctx, 10, 0).Collect()
	require.NoError(t, err)
	require.Len(t, items, 2)

	n, err := testutil.GatherAndCount(reg, "vq_operations_total", "vq_drained_entries_total")
	require.NoError(t, err)
	assert.Positive(t, n)
}
