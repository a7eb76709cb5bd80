package vecqueue

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/hupe1980/vecqueue/internal/keycodec"
	"github.com/hupe1980/vecqueue/internal/store"
)

// DrainItem is one resolved outcome of a drain: either an insert carrying a
// vector or a delete.
type DrainItem struct {
	Kind      Kind
	ID        string
	Vector    []float32 // nil for deletes
	Timestamp int64
}

func (it DrainItem) String() string {
	return fmt.Sprintf("%s(%s)@%d", it.Kind, it.ID, it.Timestamp)
}

// DrainQueues consumes every pending operation timestamped at or before now
// and streams one resolved outcome per id, in timestamp order within each
// batch. When an id has both an insert and a delete, the newer one wins and
// a delete wins ties. Consumed entries are removed from storage batch by
// batch, up to batchSize entries per queue per batch, until nothing at or
// before now remains. batchSize <= 0 selects the configured default.
//
// A failing batch removes nothing; its error is the last item of the stream.
// Items of a committed batch that the consumer does not receive, because it
// closed the stream early, are lost.
func (q *PersistentQueue) DrainQueues(ctx context.Context, now int64, batchSize int) *Stream[DrainItem] {
	if batchSize <= 0 {
		batchSize = q.opts.drainBatchSize
	}

	return startStream(ctx, q, func(ctx context.Context, emit func(DrainItem) bool) error {
		for {
			items, err := q.drainBatch(ctx, now, batchSize)
			if err != nil {
				return err
			}
			if len(items) == 0 {
				return nil
			}
			for _, it := range items {
				if !emit(it) {
					return nil
				}
			}
		}
	})
}

// drainBatch resolves and removes one batch as a single unit of work.
func (q *PersistentQueue) drainBatch(ctx context.Context, now int64, limit int) ([]DrainItem, error) {
	start := time.Now()

	var d *drainer
	err := q.do(ctx, "drain", func() error {
		return q.db.Update(func(tx *store.Tx) error {
			d = &drainer{
				tx:      tx,
				decode:  q.opts.codec.Unmarshal,
				now:     now,
				windows: keycodec.DueWindows(now),
				limit:   limit,
				deletes: make(map[string]pendingEntry),
				seen:    make(map[string]struct{}),
			}
			return d.run()
		})
	})

	var inserts, deletes, emitted int
	if err == nil {
		inserts, deletes, emitted = d.removedInserts, d.removedDeletes, len(d.items)
		q.inserts.Add(-int64(inserts))
		q.deletes.Add(-int64(deletes))
	}
	q.opts.metricsCollector.RecordDrainBatch(inserts, deletes, time.Since(start), err)
	q.opts.logger.LogDrainBatch(ctx, now, inserts, deletes, emitted, err)
	if err != nil {
		return nil, err
	}
	return d.items, nil
}

type pendingEntry struct {
	id      string
	ts      int64
	payload []byte
}

// drainer holds the working state of one batch.
type drainer struct {
	tx     *store.Tx
	decode func([]byte) ([]float32, error)
	now     int64
	windows []keycodec.Window
	limit   int

	// deletes maps id to a pending delete that has not been resolved yet;
	// order keeps the scan order of its keys.
	deletes map[string]pendingEntry
	order   []string
	// seen holds ids whose insert was handled in this batch.
	seen map[string]struct{}

	items          []DrainItem
	removedInserts int
	removedDeletes int
}

func (d *drainer) run() error {
	if err := d.scan(store.DeleteQueue, func(e pendingEntry) {
		d.deletes[e.id] = pendingEntry{id: e.id, ts: e.ts}
		d.order = append(d.order, e.id)
	}); err != nil {
		return err
	}

	var inserts []pendingEntry
	if err := d.scan(store.InsertQueue, func(e pendingEntry) {
		e.payload = append([]byte{}, e.payload...)
		inserts = append(inserts, e)
	}); err != nil {
		return err
	}

	for _, ins := range inserts {
		if err := d.resolveInsert(ins); err != nil {
			return err
		}
	}

	for _, id := range d.order {
		del, ok := d.deletes[id]
		if !ok {
			continue
		}
		if err := d.resolveDelete(del); err != nil {
			return err
		}
	}

	slices.SortStableFunc(d.items, func(a, b DrainItem) int {
		switch {
		case a.Timestamp < b.Timestamp:
			return -1
		case a.Timestamp > b.Timestamp:
			return 1
		}
		return 0
	})
	return nil
}

// scan visits up to limit due entries of a queue namespace, oldest first.
func (d *drainer) scan(ns store.Namespace, fn func(pendingEntry)) error {
	n := 0
	for _, w := range d.windows {
		b := store.Bounds{From: w.From, Until: w.Until}
		if d.limit > 0 {
			if n >= d.limit {
				return nil
			}
			b.Limit = d.limit - n
		}
		err := d.tx.Scan(ns, b, func(key, val []byte) error {
			ts, id, err := keycodec.Decode(key)
			if err != nil {
				return newKeyParseError(key, err)
			}
			n++
			fn(pendingEntry{id: id, ts: ts, payload: val})
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// resolveInsert consumes one due insert. The conflicting delete is taken
// from the batch or, when it fell outside the scan window, from the index.
func (d *drainer) resolveInsert(ins pendingEntry) error {
	d.seen[ins.id] = struct{}{}
	if err := d.remove(KindInsert, ins.id, ins.ts); err != nil {
		return err
	}

	del, ok := d.deletes[ins.id]
	if !ok {
		var err error
		if del, ok, err = d.dueEntry(KindDelete, ins.id); err != nil {
			return err
		}
		if ok {
			d.deletes[ins.id] = del
			d.order = append(d.order, ins.id)
		}
	}

	if ok && del.ts >= ins.ts {
		return nil
	}
	if ok {
		delete(d.deletes, ins.id)
		if err := d.remove(KindDelete, del.id, del.ts); err != nil {
			return err
		}
	}
	return d.emitInsert(ins)
}

// resolveDelete consumes one due delete left unresolved by the insert pass.
func (d *drainer) resolveDelete(del pendingEntry) error {
	delete(d.deletes, del.id)
	if err := d.remove(KindDelete, del.id, del.ts); err != nil {
		return err
	}

	if _, handled := d.seen[del.id]; !handled {
		ins, ok, err := d.dueEntry(KindInsert, del.id)
		if err != nil {
			return err
		}
		if ok {
			d.seen[del.id] = struct{}{}
			if ins.ts > del.ts {
				// Read before the removal below hides the entry from this batch.
				if ins.payload, err = d.tx.Get(store.InsertQueue, keycodec.Encode(ins.ts, ins.id)); err != nil {
					return err
				}
			}
			if err := d.remove(KindInsert, ins.id, ins.ts); err != nil {
				return err
			}
			if ins.ts > del.ts {
				return d.emitInsert(ins)
			}
		}
	}

	d.items = append(d.items, DrainItem{Kind: KindDelete, ID: del.id, Timestamp: del.ts})
	return nil
}

// dueEntry looks up the pending entry of id through the index and reports it
// only when it is due.
func (d *drainer) dueEntry(kind Kind, id string) (pendingEntry, bool, error) {
	ts, found, err := indexTimestamp(d.tx, kind, id)
	if err != nil || !found || ts > d.now {
		return pendingEntry{}, false, err
	}
	return pendingEntry{id: id, ts: ts}, true, nil
}

func (d *drainer) emitInsert(ins pendingEntry) error {
	vec, err := d.decode(ins.payload)
	if err != nil {
		return &CodecError{ID: ins.id, Op: "decode", cause: err}
	}
	d.items = append(d.items, DrainItem{Kind: KindInsert, ID: ins.id, Vector: vec, Timestamp: ins.ts})
	return nil
}

// remove deletes the data and index entries of id. Removals are staged in the
// batch and take effect on commit.
func (d *drainer) remove(kind Kind, id string, ts int64) error {
	if err := d.tx.Delete(kind.queueNS(), keycodec.Encode(ts, id)); err != nil {
		return err
	}
	if err := d.tx.Delete(kind.indexNS(), []byte(id)); err != nil {
		return err
	}
	if kind == KindInsert {
		d.removedInserts++
	} else {
		d.removedDeletes++
	}
	return nil
}
