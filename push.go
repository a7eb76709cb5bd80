package vecqueue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/vecqueue/internal/keycodec"
	"github.com/hupe1980/vecqueue/internal/store"
)

// PushInsert stages vec for insertion under id. An existing pending insert
// for id is replaced. The timestamp defaults to the current time in
// nanoseconds; use WithTimestamp to set it explicitly.
func (q *PersistentQueue) PushInsert(ctx context.Context, id string, vec []float32, opts ...PushOption) error {
	start := time.Now()
	ts, err := q.push(ctx, KindInsert, id, vec, opts)
	q.opts.metricsCollector.RecordPush(KindInsert, time.Since(start), err)
	q.opts.logger.LogPush(ctx, KindInsert, id, ts, err)
	return err
}

// PushDelete stages the deletion of id. An existing pending delete for id is
// replaced.
func (q *PersistentQueue) PushDelete(ctx context.Context, id string, opts ...PushOption) error {
	start := time.Now()
	ts, err := q.push(ctx, KindDelete, id, nil, opts)
	q.opts.metricsCollector.RecordPush(KindDelete, time.Since(start), err)
	q.opts.logger.LogPush(ctx, KindDelete, id, ts, err)
	return err
}

func (q *PersistentQueue) push(ctx context.Context, kind Kind, id string, vec []float32, optFns []PushOption) (int64, error) {
	if err := validateID(id); err != nil {
		return 0, err
	}

	var po pushOptions
	for _, fn := range optFns {
		fn(&po)
	}
	ts := po.ts
	if !po.hasTS {
		ts = q.now()
	}

	payload := []byte{}
	if kind == KindInsert {
		b, err := q.opts.codec.Marshal(vec)
		if err != nil {
			return ts, &CodecError{ID: id, Op: "encode", cause: err}
		}
		payload = b
	}

	var replaced bool
	err := q.do(ctx, "push "+kind.String(), func() error {
		return q.db.Update(func(tx *store.Tx) error {
			var err error
			replaced, err = putEntry(tx, kind, id, ts, payload)
			return err
		})
	})
	if err != nil {
		return ts, err
	}
	if !replaced {
		q.counter(kind).Add(1)
	}
	return ts, nil
}

// putEntry writes the data and index entries of id, removing any previous
// pair first. It reports whether a previous entry existed.
func putEntry(tx *store.Tx, kind Kind, id string, ts int64, payload []byte) (bool, error) {
	replaced := true
	old, err := tx.Take(kind.indexNS(), []byte(id))
	switch {
	case errors.Is(err, store.ErrKeyNotFound):
		replaced = false
	case err != nil:
		return false, err
	default:
		oldTS, err := keycodec.DecodeTimestamp(old)
		if err != nil {
			return false, newKeyParseError(old, err)
		}
		if err := tx.Delete(kind.queueNS(), keycodec.Encode(oldTS, id)); err != nil {
			return false, err
		}
	}

	if err := tx.Set(kind.indexNS(), []byte(id), keycodec.EncodeTimestamp(ts)); err != nil {
		return false, err
	}
	if err := tx.Set(kind.queueNS(), keycodec.Encode(ts, id), payload); err != nil {
		return false, err
	}
	return replaced, nil
}

// PopInsert removes the pending insert for id and returns its vector and
// timestamp. It returns ErrNotFound when id has no pending insert. A payload
// that cannot be decoded leaves the queue untouched.
func (q *PersistentQueue) PopInsert(ctx context.Context, id string) ([]float32, int64, error) {
	start := time.Now()
	var vec []float32
	ts, err := q.pop(ctx, KindInsert, id, func(payload []byte) error {
		v, err := q.opts.codec.Unmarshal(payload)
		if err != nil {
			return &CodecError{ID: id, Op: "decode", cause: err}
		}
		vec = v
		return nil
	})
	q.opts.metricsCollector.RecordPop(KindInsert, time.Since(start), err)
	q.opts.logger.LogPop(ctx, KindInsert, id, err)
	if err != nil {
		return nil, 0, err
	}
	return vec, ts, nil
}

// PopDelete removes the pending delete for id and returns its timestamp.
func (q *PersistentQueue) PopDelete(ctx context.Context, id string) (int64, error) {
	start := time.Now()
	ts, err := q.pop(ctx, KindDelete, id, nil)
	q.opts.metricsCollector.RecordPop(KindDelete, time.Since(start), err)
	q.opts.logger.LogPop(ctx, KindDelete, id, err)
	if err != nil {
		return 0, err
	}
	return ts, nil
}

// pop removes the index and data entries of id. decode, when set, sees the
// payload before the removal is committed and may veto it.
func (q *PersistentQueue) pop(ctx context.Context, kind Kind, id string, decode func([]byte) error) (int64, error) {
	if err := validateID(id); err != nil {
		return 0, err
	}

	var ts int64
	err := q.do(ctx, "pop "+kind.String(), func() error {
		return q.db.Update(func(tx *store.Tx) error {
			raw, err := tx.Take(kind.indexNS(), []byte(id))
			if errors.Is(err, store.ErrKeyNotFound) {
				return ErrNotFound
			}
			if err != nil {
				return err
			}
			if ts, err = keycodec.DecodeTimestamp(raw); err != nil {
				return newKeyParseError(raw, err)
			}

			payload, err := tx.Take(kind.queueNS(), keycodec.Encode(ts, id))
			if errors.Is(err, store.ErrKeyNotFound) {
				q.opts.logger.LogInconsistency(ctx, kind, id, ts)
				return fmt.Errorf("%w: no %s entry for %q at %d", ErrNotFound, kind, id, ts)
			}
			if err != nil {
				return err
			}
			if decode != nil {
				return decode(payload)
			}
			return nil
		})
	})
	if err != nil {
		return 0, err
	}
	q.counter(kind).Add(-1)
	return ts, nil
}
