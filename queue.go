package vecqueue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/vecqueue/internal/store"
	"github.com/hupe1980/vecqueue/resource"
)

// Kind identifies one of the two pending queues.
type Kind uint8

const (
	// KindInsert is the queue of pending vector insertions.
	KindInsert Kind = iota
	// KindDelete is the queue of pending deletions.
	KindDelete
)

func (k Kind) String() string {
	switch k {
	case KindInsert:
		return "insert"
	case KindDelete:
		return "delete"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

func (k Kind) queueNS() store.Namespace {
	if k == KindInsert {
		return store.InsertQueue
	}
	return store.DeleteQueue
}

func (k Kind) indexNS() store.Namespace {
	if k == KindInsert {
		return store.InsertIndex
	}
	return store.DeleteIndex
}

// Queue is the full set of operations of a staging queue.
type Queue interface {
	PushInsert(ctx context.Context, id string, vec []float32, opts ...PushOption) error
	PushDelete(ctx context.Context, id string, opts ...PushOption) error
	PopInsert(ctx context.Context, id string) ([]float32, int64, error)
	PopDelete(ctx context.Context, id string) (int64, error)

	InsertExists(ctx context.Context, id string) (int64, error)
	DeleteExists(ctx context.Context, id string) (int64, error)
	GetVector(ctx context.Context, id string) ([]float32, int64, error)
	GetVectorWithTimestamp(ctx context.Context, id string) (VectorState, error)

	DrainQueues(ctx context.Context, now int64, batchSize int) *Stream[DrainItem]
	Range(ctx context.Context) *Stream[RangeItem]

	InsertLen() uint64
	DeleteLen() uint64
}

var _ Queue = (*PersistentQueue)(nil)

// PersistentQueue is a Queue persisted in a pebble database. It is safe for
// concurrent use.
type PersistentQueue struct {
	db   *store.Store
	pool *resource.Controller
	opts options

	inserts atomic.Int64
	deletes atomic.Int64

	// mu guards closed and registration of stream producers.
	mu      sync.Mutex
	closed  bool
	streams sync.WaitGroup
	done    context.Context
	stop    context.CancelFunc
}

// Open opens the queue stored at path, creating it when absent. Pending
// counts are reconstructed from the index namespaces once, at open time.
func Open(ctx context.Context, path string, optFns ...Option) (*PersistentQueue, error) {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.logger = opts.logger.WithPath(path)

	db, err := store.Open(path, store.Options{
		CacheSize:   opts.cacheSize,
		Compression: opts.compression,
	})
	if err != nil {
		err = translateError("open", err)
		opts.logger.LogOpen(ctx, 0, 0, err)
		return nil, err
	}

	inserts, deletes, err := countPending(db)
	if err != nil {
		_ = db.Close()
		err = translateError("open", err)
		opts.logger.LogOpen(ctx, 0, 0, err)
		return nil, err
	}

	q := &PersistentQueue{
		db: db,
		pool: resource.NewController(resource.Config{
			MaxWorkers:         opts.maxWorkers,
			IOLimitBytesPerSec: opts.backupIOLimit,
		}),
		opts: opts,
	}
	q.inserts.Store(int64(inserts))
	q.deletes.Store(int64(deletes))
	q.done, q.stop = context.WithCancel(context.Background())

	opts.logger.LogOpen(ctx, inserts, deletes, nil)
	return q, nil
}

// countPending counts the index namespaces, which hold exactly one entry
// per pending id.
func countPending(db *store.Store) (inserts, deletes uint64, err error) {
	if inserts, err = db.Count(store.InsertIndex); err != nil {
		return 0, 0, err
	}
	if deletes, err = db.Count(store.DeleteIndex); err != nil {
		return 0, 0, err
	}
	return inserts, deletes, nil
}

// Close stops running streams, waits for their producers and closes the
// database. Operations after Close return ErrClosed. Close is idempotent.
func (q *PersistentQueue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	q.mu.Unlock()

	q.stop()
	q.streams.Wait()
	q.pool.Close()

	if err := q.db.Close(); err != nil {
		return translateError("close", err)
	}
	q.opts.logger.Info("queue closed")
	return nil
}

// InsertLen returns the number of pending inserts.
func (q *PersistentQueue) InsertLen() uint64 { return uint64(q.inserts.Load()) }

// DeleteLen returns the number of pending deletes.
func (q *PersistentQueue) DeleteLen() uint64 { return uint64(q.deletes.Load()) }

// Stats describes the current state of a queue.
type Stats struct {
	Path           string
	InsertLen      uint64
	DeleteLen      uint64
	MaxWorkers     int64
	RunningWorkers int64
	Codec          string
}

// Stats returns a snapshot of queue statistics.
func (q *PersistentQueue) Stats() Stats {
	return Stats{
		Path:           q.db.Path(),
		InsertLen:      q.InsertLen(),
		DeleteLen:      q.DeleteLen(),
		MaxWorkers:     q.pool.MaxWorkers(),
		RunningWorkers: q.pool.Running(),
		Codec:          q.opts.codec.Name(),
	}
}

func (q *PersistentQueue) counter(kind Kind) *atomic.Int64 {
	if kind == KindInsert {
		return &q.inserts
	}
	return &q.deletes
}

func (q *PersistentQueue) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// do runs fn as one unit of blocking work on the worker pool.
func (q *PersistentQueue) do(ctx context.Context, op string, fn func() error) error {
	if q.isClosed() {
		return ErrClosed
	}
	return translateError(op, q.pool.Do(ctx, fn))
}

func (q *PersistentQueue) now() int64 {
	return q.opts.clock().UnixNano()
}

func validateID(id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrInvalidUUID
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
