package vecqueue

import (
	"context"
	"errors"
	"time"

	"github.com/hupe1980/vecqueue/internal/keycodec"
	"github.com/hupe1980/vecqueue/internal/store"
)

// RangeItem is a live pending insert as seen by Range.
type RangeItem struct {
	ID        string
	Vector    []float32
	Timestamp int64
}

// Range streams every live pending insert, in key order. An insert is live
// when its timestamp is greater than that of the pending delete, or greater
// than 0 when there is none. It reads one
// point-in-time snapshot and never modifies the queue. Entries whose key or
// payload cannot be decoded are skipped.
func (q *PersistentQueue) Range(ctx context.Context) *Stream[RangeItem] {
	return startStream(ctx, q, func(ctx context.Context, emit func(RangeItem) bool) error {
		start := time.Now()
		emitted, skipped, err := q.rangeSnapshot(ctx, emit)
		q.opts.metricsCollector.RecordRange(emitted, skipped, time.Since(start), err)
		q.opts.logger.LogRange(ctx, emitted, skipped, err)
		return err
	})
}

// rangeSnapshot pages through the insert queue of a single snapshot. Each
// page is read as one unit of work; items are handed to emit outside of it
// so a slow consumer does not hold a worker slot.
func (q *PersistentQueue) rangeSnapshot(ctx context.Context, emit func(RangeItem) bool) (emitted, skipped int, err error) {
	var snap *store.Snapshot
	if err := q.do(ctx, "range", func() error {
		var err error
		snap, err = q.db.NewSnapshot()
		return err
	}); err != nil {
		return 0, 0, err
	}
	defer func() { _ = snap.Close() }()

	pageSize := q.opts.drainBatchSize
	var from []byte
	for {
		var (
			page []RangeItem
			last []byte
			seen int
		)
		err := q.do(ctx, "range", func() error {
			return snap.View(func(tx *store.Tx) error {
				return tx.Scan(store.InsertQueue, store.Bounds{From: from, Limit: pageSize}, func(key, val []byte) error {
					seen++
					last = append(last[:0], key...)

					ts, id, err := keycodec.Decode(key)
					if err != nil {
						q.opts.logger.DebugContext(ctx, "range skipped malformed key", "key", key, "error", err)
						skipped++
						return nil
					}
					delTS, _, err := indexTimestamp(tx, KindDelete, id)
					var kpe *KeyParseError
					if errors.As(err, &kpe) {
						q.opts.logger.DebugContext(ctx, "range skipped malformed delete index", "id", id, "error", err)
						skipped++
						return nil
					}
					if err != nil {
						return err
					}
					if ts <= delTS {
						return nil
					}
					vec, err := q.opts.codec.Unmarshal(val)
					if err != nil {
						q.opts.logger.DebugContext(ctx, "range skipped undecodable vector", "id", id, "error", err)
						skipped++
						return nil
					}
					page = append(page, RangeItem{ID: id, Vector: vec, Timestamp: ts})
					return nil
				})
			})
		})
		if err != nil {
			return emitted, skipped, err
		}

		for _, it := range page {
			if !emit(it) {
				return emitted, skipped, nil
			}
			emitted++
		}
		if seen < pageSize {
			return emitted, skipped, nil
		}
		from = store.Successor(last)
	}
}
