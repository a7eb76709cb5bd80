package vecqueue

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBasicMetricsCollector(t *testing.T) {
	ctx := context.Background()
	metrics := &BasicMetricsCollector{}
	q := openTestQueue(t, WithMetricsCollector(metrics))

	require.NoError(t, q.PushInsert(ctx, "a", []float32{1}))
	require.NoError(t, q.PushInsert(ctx, "b", []float32{1}))
	require.NoError(t, q.PushDelete(ctx, "a"))
	assert.ErrorIs(t, q.PushDelete(ctx, " "), ErrInvalidUUID)

	_, err := q.PopDelete(ctx, "a")
	require.NoError(t, err)
	_, err = q.PopDelete(ctx, "a")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = q.InsertExists(ctx, "b")
	require.NoError(t, err)
	_, err = q.DeleteExists(ctx, "b")
	require.ErrorIs(t, err, ErrNotFound)

	stats := metrics.GetStats()
	assert.Equal(t, int64(2), stats.InsertPushCount)
	assert.Equal(t, int64(2), stats.DeletePushCount)
	assert.Equal(t, int64(1), stats.PushErrors)
	assert.Equal(t, int64(2), stats.PopCount)
	assert.Equal(t, int64(1), stats.PopErrors)
	assert.Equal(t, int64(2), stats.LookupCount)
	assert.Equal(t, int64(1), stats.LookupErrors)
}

func TestNoopMetricsCollector(t *testing.T) {
	var mc MetricsCollector = NoopMetricsCollector{}
	mc.RecordPush(KindInsert, 0, nil)
	mc.RecordPop(KindDelete, 0, nil)
	mc.RecordLookup(0, nil)
	mc.RecordDrainBatch(1, 1, 0, nil)
	mc.RecordRange(1, 0, 0, nil)
}

func TestLogger(t *testing.T) {
	ctx := context.Background()

	var buf bytes.Buffer
	logger := NewLogger(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	q := openTestQueue(t, WithLogger(logger))

	require.NoError(t, q.PushInsert(ctx, "a", []float32{1}, WithTimestamp(7)))
	_, err := q.PopDelete(ctx, "a")
	require.ErrorIs(t, err, ErrNotFound)

	var msgs []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		msgs = append(msgs, m)
	}

	find := func(msg string) map[string]any {
		for _, m := range msgs {
			if m["msg"] == msg {
				return m
			}
		}
		t.Fatalf("no log record %q", msg)
		return nil
	}

	opened := find("queue opened")
	assert.NotEmpty(t, opened["path"])

	push := find("push completed")
	assert.Equal(t, "insert", push["queue"])
	assert.Equal(t, "a", push["id"])
	assert.Equal(t, float64(7), push["ts"])

	miss := find("pop missed")
	assert.Equal(t, "delete", miss["queue"])
	assert.Equal(t, "DEBUG", miss["level"])
}
