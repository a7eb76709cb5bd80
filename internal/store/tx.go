package store

import (
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
)

// errStopScan ends a Scan early without reporting an error.
var errStopScan = errors.New("store: stop scan")

// Tx is a transaction scoped to a single Update or View call. It must not be
// retained after the callback returns.
type Tx struct {
	r pebble.Reader
	w *pebble.Batch // nil for read-only transactions
}

// Get returns a copy of the value stored under key in ns.
func (tx *Tx) Get(ns Namespace, key []byte) ([]byte, error) {
	val, closer, err := tx.r.Get(ns.key(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get %s: %w", ns, err)
	}
	out := append([]byte{}, val...)
	if err := closer.Close(); err != nil {
		return nil, fmt.Errorf("store: get %s: %w", ns, err)
	}
	return out, nil
}

// Set writes key -> val in ns.
func (tx *Tx) Set(ns Namespace, key, val []byte) error {
	if tx.w == nil {
		return ErrReadOnly
	}
	if err := tx.w.Set(ns.key(key), val, nil); err != nil {
		return fmt.Errorf("store: set %s: %w", ns, err)
	}
	return nil
}

// Delete removes key from ns. Deleting an absent key is not an error.
func (tx *Tx) Delete(ns Namespace, key []byte) error {
	if tx.w == nil {
		return ErrReadOnly
	}
	if err := tx.w.Delete(ns.key(key), nil); err != nil {
		return fmt.Errorf("store: delete %s: %w", ns, err)
	}
	return nil
}

// Take reads and removes key from ns. It returns ErrKeyNotFound, and mutates
// nothing, when the key is absent.
func (tx *Tx) Take(ns Namespace, key []byte) ([]byte, error) {
	val, err := tx.Get(ns, key)
	if err != nil {
		return nil, err
	}
	if err := tx.Delete(ns, key); err != nil {
		return nil, err
	}
	return val, nil
}

// Bounds restricts a Scan. Keys are namespace-relative.
type Bounds struct {
	// From is the inclusive start key; nil starts at the beginning of the namespace.
	From []byte
	// Until is the exclusive end key; nil runs to the end of the namespace.
	Until []byte
	// Limit stops the scan after this many entries when positive.
	Limit int
}

// Scan calls fn for each entry of ns within b in ascending key order. The key
// handed to fn has the namespace prefix stripped. The slices passed to fn are
// only valid during the call.
func (tx *Tx) Scan(ns Namespace, b Bounds, fn func(key, val []byte) error) error {
	lo, hi := ns.bounds(b.Until)
	prefixLen := len(lo)
	if b.From != nil {
		lo = ns.key(b.From)
	}
	it, err := tx.r.NewIter(&pebble.IterOptions{LowerBound: lo, UpperBound: hi})
	if err != nil {
		return fmt.Errorf("store: iterate %s: %w", ns, err)
	}
	defer func() { _ = it.Close() }()

	n := 0
	for ok := it.First(); ok; ok = it.Next() {
		if b.Limit > 0 && n >= b.Limit {
			break
		}
		n++
		if err := fn(it.Key()[prefixLen:], it.Value()); err != nil {
			if errors.Is(err, errStopScan) {
				return nil
			}
			return err
		}
	}
	if err := it.Error(); err != nil {
		return fmt.Errorf("store: iterate %s: %w", ns, err)
	}
	return nil
}

// Successor returns the smallest key strictly greater than key.
func Successor(key []byte) []byte {
	out := make([]byte, len(key)+1)
	copy(out, key)
	return out
}

// StopScan returns the sentinel that ends a Scan early without error.
func StopScan() error { return errStopScan }
