package store

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/pebble"
)

// numLevels is the number of LSM levels pebble manages.
const numLevels = 7

var (
	// ErrKeyNotFound is returned by Tx.Get when the key is absent.
	ErrKeyNotFound = errors.New("store: key not found")

	// ErrReadOnly is returned when a mutation is attempted inside View.
	ErrReadOnly = errors.New("store: read-only transaction")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("store: closed")
)

// Namespace is an independently addressable key space.
type Namespace string

const (
	InsertQueue Namespace = "insert_queue"
	DeleteQueue Namespace = "delete_queue"
	InsertIndex Namespace = "insert_index"
	DeleteIndex Namespace = "delete_index"
)

// Namespaces lists every namespace the store manages.
var Namespaces = []Namespace{InsertQueue, DeleteQueue, InsertIndex, DeleteIndex}

func (ns Namespace) prefix() []byte {
	return []byte(string(ns) + "/")
}

func (ns Namespace) key(k []byte) []byte {
	p := ns.prefix()
	out := make([]byte, 0, len(p)+len(k))
	out = append(out, p...)
	return append(out, k...)
}

// bounds returns the iteration bounds for ns. A nil upper scans to the end of
// the namespace, otherwise the scan stops before ns.key(upper).
func (ns Namespace) bounds(upper []byte) (lo, hi []byte) {
	lo = ns.prefix()
	if upper != nil {
		return lo, ns.key(upper)
	}
	hi = append([]byte{}, lo...)
	hi[len(hi)-1]++
	return lo, hi
}

// Options configures the underlying pebble database.
type Options struct {
	// CacheSize is the block cache capacity in bytes. Zero uses pebble's default.
	CacheSize int64

	// Compression enables snappy block compression on every level.
	Compression bool
}

// Store is a handle to the database. It is safe for concurrent use; copies of
// the pointer share the same database.
type Store struct {
	db     *pebble.DB
	path   string
	mu     sync.Mutex // serializes Update
	closed atomic.Bool
}

// Open opens (or creates) the database rooted at path.
func Open(path string, opts Options) (*Store, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("store: create directory: %w", err)
	}

	pebbleOpts := &pebble.Options{}
	if opts.CacheSize > 0 {
		cache := pebble.NewCache(opts.CacheSize)
		defer cache.Unref()
		pebbleOpts.Cache = cache
	}

	compression := pebble.NoCompression
	if opts.Compression {
		compression = pebble.SnappyCompression
	}
	pebbleOpts.Levels = make([]pebble.LevelOptions, numLevels)
	for i := range pebbleOpts.Levels {
		pebbleOpts.Levels[i].Compression = compression
	}

	db, err := pebble.Open(path, pebbleOpts)
	if err != nil {
		return nil, fmt.Errorf("store: open pebble at %s: %w", path, err)
	}

	return &Store{db: db, path: path}, nil
}

// Path returns the directory the store was opened at.
func (s *Store) Path() string { return s.path }

// Update runs fn inside a read-write transaction. All mutations made by fn
// are committed atomically and durably, or not at all when fn returns an
// error or the commit fails.
func (s *Store) Update(fn func(tx *Tx) error) error {
	if s.closed.Load() {
		return ErrClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batch := s.db.NewIndexedBatch()
	defer func() { _ = batch.Close() }()

	if err := fn(&Tx{r: batch, w: batch}); err != nil {
		return err
	}
	if batch.Empty() {
		return nil
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// View runs fn against a consistent point-in-time snapshot.
func (s *Store) View(fn func(tx *Tx) error) error {
	if s.closed.Load() {
		return ErrClosed
	}

	snap := s.db.NewSnapshot()
	defer func() { _ = snap.Close() }()

	return fn(&Tx{r: snap})
}

// Snapshot is a long-lived point-in-time view. It lets a caller read a
// consistent state across several separate units of work.
type Snapshot struct {
	store *Store
	snap  *pebble.Snapshot
}

// NewSnapshot pins the current state of the database. The caller must Close
// it before closing the store.
func (s *Store) NewSnapshot() (*Snapshot, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	return &Snapshot{store: s, snap: s.db.NewSnapshot()}, nil
}

// View runs fn against the pinned state.
func (sn *Snapshot) View(fn func(tx *Tx) error) error {
	if sn.store.closed.Load() {
		return ErrClosed
	}
	return fn(&Tx{r: sn.snap})
}

// Close releases the snapshot.
func (sn *Snapshot) Close() error {
	return sn.snap.Close()
}

// Count returns the number of keys in ns. It scans the namespace and is meant
// for one-shot initialization only.
func (s *Store) Count(ns Namespace) (uint64, error) {
	var n uint64
	err := s.View(func(tx *Tx) error {
		return tx.Scan(ns, Bounds{}, func(_, _ []byte) error {
			n++
			return nil
		})
	})
	return n, err
}

// Close flushes and closes the database. It is safe to call more than once.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}
