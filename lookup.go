package vecqueue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/vecqueue/internal/keycodec"
	"github.com/hupe1980/vecqueue/internal/store"
)

// VectorState is the combined view of both queues for one id.
type VectorState struct {
	// Vector is the pending insert payload, nil when there is no pending insert.
	// It is set even when a newer delete shadows the insert.
	Vector []float32
	// InsertTS is the pending insert timestamp, 0 when absent.
	InsertTS int64
	// DeleteTS is the pending delete timestamp, 0 when absent.
	DeleteTS int64
	// Exists reports whether the insert is live: it exists and InsertTS is
	// strictly greater than DeleteTS. A missing delete counts as 0.
	Exists bool
}

// InsertExists returns the timestamp of the pending insert for id, or
// ErrNotFound.
func (q *PersistentQueue) InsertExists(ctx context.Context, id string) (int64, error) {
	return q.exists(ctx, KindInsert, id)
}

// DeleteExists returns the timestamp of the pending delete for id, or
// ErrNotFound.
func (q *PersistentQueue) DeleteExists(ctx context.Context, id string) (int64, error) {
	return q.exists(ctx, KindDelete, id)
}

func (q *PersistentQueue) exists(ctx context.Context, kind Kind, id string) (ts int64, err error) {
	start := time.Now()
	defer func() { q.opts.metricsCollector.RecordLookup(time.Since(start), err) }()

	if err := validateID(id); err != nil {
		return 0, err
	}

	var found bool
	err = q.do(ctx, "exists "+kind.String(), func() error {
		return q.db.View(func(tx *store.Tx) error {
			var err error
			ts, found, err = indexTimestamp(tx, kind, id)
			return err
		})
	})
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, ErrNotFound
	}
	return ts, nil
}

// GetVector returns the pending vector for id when it is live, that is when
// its insert is strictly newer than any pending delete. A delete with an equal
// timestamp wins.
func (q *PersistentQueue) GetVector(ctx context.Context, id string) ([]float32, int64, error) {
	st, err := q.GetVectorWithTimestamp(ctx, id)
	if err != nil {
		return nil, 0, err
	}
	if !st.Exists {
		return nil, 0, ErrNotFound
	}
	return st.Vector, st.InsertTS, nil
}

// GetVectorWithTimestamp returns the state of id across both queues. Ids
// that were never pushed, or only deleted, are not an error.
func (q *PersistentQueue) GetVectorWithTimestamp(ctx context.Context, id string) (st VectorState, err error) {
	start := time.Now()
	defer func() { q.opts.metricsCollector.RecordLookup(time.Since(start), err) }()

	if err := validateID(id); err != nil {
		return VectorState{}, err
	}

	var payload []byte
	err = q.do(ctx, "get vector", func() error {
		return q.db.View(func(tx *store.Tx) error {
			insTS, hasInsert, err := indexTimestamp(tx, KindInsert, id)
			if err != nil {
				return err
			}
			delTS, _, err := indexTimestamp(tx, KindDelete, id)
			if err != nil {
				return err
			}
			st = VectorState{InsertTS: insTS, DeleteTS: delTS}
			if !hasInsert {
				return nil
			}

			payload, err = tx.Get(store.InsertQueue, keycodec.Encode(insTS, id))
			if errors.Is(err, store.ErrKeyNotFound) {
				q.opts.logger.LogInconsistency(ctx, KindInsert, id, insTS)
				return fmt.Errorf("%w: no insert entry for %q at %d", ErrNotFound, id, insTS)
			}
			return err
		})
	})
	if err != nil {
		return VectorState{}, err
	}
	if payload == nil {
		return st, nil
	}

	vec, err := q.opts.codec.Unmarshal(payload)
	if err != nil {
		return VectorState{}, &CodecError{ID: id, Op: "decode", cause: err}
	}
	st.Vector = vec
	st.Exists = st.InsertTS > st.DeleteTS
	return st, nil
}

// indexTimestamp reads the index entry of id. found is false when absent.
func indexTimestamp(tx *store.Tx, kind Kind, id string) (ts int64, found bool, err error) {
	raw, err := tx.Get(kind.indexNS(), []byte(id))
	if errors.Is(err, store.ErrKeyNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	ts, err = keycodec.DecodeTimestamp(raw)
	if err != nil {
		return 0, false, newKeyParseError(raw, err)
	}
	return ts, true, nil
}
