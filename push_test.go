package vecqueue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecqueue/codec"
	"github.com/hupe1980/vecqueue/internal/store"
)

func TestPushInsert(t *testing.T) {
	ctx := context.Background()
	q := openTestQueue(t)

	require.NoError(t, q.PushInsert(ctx, "a", []float32{1, 2, 3}, WithTimestamp(100)))
	assert.Equal(t, uint64(1), q.InsertLen())

	ts, err := q.InsertExists(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(100), ts)

	t.Run("ReplacesPrevious", func(t *testing.T) {
		require.NoError(t, q.PushInsert(ctx, "a", []float32{4}, WithTimestamp(200)))
		assert.Equal(t, uint64(1), q.InsertLen())

		vec, ts, err := q.GetVector(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, []float32{4}, vec)
		assert.Equal(t, int64(200), ts)

		// The old data entry is gone, not just shadowed.
		var n int
		require.NoError(t, q.db.View(func(tx *store.Tx) error {
			return tx.Scan(store.InsertQueue, store.Bounds{}, func(_, _ []byte) error {
				n++
				return nil
			})
		}))
		assert.Equal(t, 1, n)
	})

	t.Run("DefaultTimestampFromClock", func(t *testing.T) {
		now := time.Unix(1700000000, 42)
		q := openTestQueue(t, WithClock(func() time.Time { return now }))

		require.NoError(t, q.PushInsert(ctx, "b", []float32{1}))
		ts, err := q.InsertExists(ctx, "b")
		require.NoError(t, err)
		assert.Equal(t, now.UnixNano(), ts)
	})
}

func TestPushDelete(t *testing.T) {
	ctx := context.Background()
	q := openTestQueue(t)

	require.NoError(t, q.PushDelete(ctx, "a", WithTimestamp(5)))
	require.NoError(t, q.PushDelete(ctx, "a", WithTimestamp(7)))
	assert.Equal(t, uint64(1), q.DeleteLen())
	assert.Equal(t, uint64(0), q.InsertLen())

	ts, err := q.DeleteExists(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(7), ts)

	_, err = q.InsertExists(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPopInsert(t *testing.T) {
	ctx := context.Background()
	q := openTestQueue(t)

	require.NoError(t, q.PushInsert(ctx, "a", []float32{1.5, 2.5}, WithTimestamp(100)))

	vec, ts, err := q.PopInsert(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []float32{1.5, 2.5}, vec)
	assert.Equal(t, int64(100), ts)
	assert.Equal(t, uint64(0), q.InsertLen())

	_, _, err = q.PopInsert(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, uint64(0), q.InsertLen())
}

func TestPopDelete(t *testing.T) {
	ctx := context.Background()
	q := openTestQueue(t)

	require.NoError(t, q.PushDelete(ctx, "a", WithTimestamp(9)))

	ts, err := q.PopDelete(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(9), ts)
	assert.Equal(t, uint64(0), q.DeleteLen())

	_, err = q.PopDelete(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPopInsertCorruptPayload(t *testing.T) {
	ctx := context.Background()
	q := openTestQueue(t)

	writeRaw(t, q, "bad", 10, []byte{1, 2})

	_, _, err := q.PopInsert(ctx, "bad")
	var ce *CodecError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "bad", ce.ID)
	assert.ErrorIs(t, err, codec.ErrCorrupt)

	// The failed pop did not remove anything.
	ts, err := q.InsertExists(ctx, "bad")
	require.NoError(t, err)
	assert.Equal(t, int64(10), ts)
}

func TestPopMissingDataEntry(t *testing.T) {
	ctx := context.Background()
	q := openTestQueue(t)

	require.NoError(t, q.db.Update(func(tx *store.Tx) error {
		return tx.Set(store.DeleteIndex, []byte("orphan"), []byte{0, 0, 0, 0, 0, 0, 0, 3})
	}))

	_, err := q.PopDelete(ctx, "orphan")
	assert.ErrorIs(t, err, ErrNotFound)

	ts, err := q.DeleteExists(ctx, "orphan")
	require.NoError(t, err)
	assert.Equal(t, int64(3), ts)
}

func TestInvalidID(t *testing.T) {
	ctx := context.Background()
	q := openTestQueue(t)

	ops := map[string]func(id string) error{
		"PushInsert": func(id string) error { return q.PushInsert(ctx, id, []float32{1}) },
		"PushDelete": func(id string) error { return q.PushDelete(ctx, id) },
		"PopInsert": func(id string) error {
			_, _, err := q.PopInsert(ctx, id)
			return err
		},
		"PopDelete": func(id string) error {
			_, err := q.PopDelete(ctx, id)
			return err
		},
		"InsertExists": func(id string) error {
			_, err := q.InsertExists(ctx, id)
			return err
		},
		"GetVectorWithTimestamp": func(id string) error {
			_, err := q.GetVectorWithTimestamp(ctx, id)
			return err
		},
	}

	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			for _, id := range []string{"", "   ", "\t\n"} {
				assert.ErrorIs(t, op(id), ErrInvalidUUID)
			}
		})
	}

	assert.Equal(t, uint64(0), q.InsertLen())
	assert.Equal(t, uint64(0), q.DeleteLen())
}

func TestPushCancelledContext(t *testing.T) {
	q := openTestQueue(t, WithMaxWorkers(1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Hold the only worker slot so the push has to wait for it.
	release := make(chan struct{})
	acquired := make(chan struct{})
	go func() {
		_ = q.pool.Do(context.Background(), func() error {
			close(acquired)
			<-release
			return nil
		})
	}()
	<-acquired
	defer close(release)

	err := q.PushInsert(ctx, "a", []float32{1})
	var te *TaskError
	require.ErrorAs(t, err, &te)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, uint64(0), q.InsertLen())
}
