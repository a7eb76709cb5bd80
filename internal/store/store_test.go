package store

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), Options{CacheSize: 1 << 20, Compression: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestUpdateAndView(t *testing.T) {
	s := openTestStore(t)

	err := s.Update(func(tx *Tx) error {
		require.NoError(t, tx.Set(InsertQueue, []byte("k1"), []byte("v1")))
		require.NoError(t, tx.Set(InsertIndex, []byte("k1"), []byte("i1")))

		// Read-your-writes inside the same transaction.
		v, err := tx.Get(InsertQueue, []byte("k1"))
		require.NoError(t, err)
		assert.Equal(t, []byte("v1"), v)
		return nil
	})
	require.NoError(t, err)

	err = s.View(func(tx *Tx) error {
		v, err := tx.Get(InsertIndex, []byte("k1"))
		require.NoError(t, err)
		assert.Equal(t, []byte("i1"), v)

		_, err = tx.Get(DeleteIndex, []byte("k1"))
		assert.ErrorIs(t, err, ErrKeyNotFound)

		assert.ErrorIs(t, tx.Set(InsertQueue, []byte("x"), nil), ErrReadOnly)
		return nil
	})
	require.NoError(t, err)
}

func TestUpdateRollsBackOnError(t *testing.T) {
	s := openTestStore(t)
	boom := errors.New("boom")

	err := s.Update(func(tx *Tx) error {
		require.NoError(t, tx.Set(DeleteQueue, []byte("k"), nil))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	n, err := s.Count(DeleteQueue)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestNamespacesAreIsolated(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Update(func(tx *Tx) error {
		for _, ns := range Namespaces {
			if err := tx.Set(ns, []byte{0xff, 0xff}, []byte(ns)); err != nil {
				return err
			}
		}
		return tx.Set(InsertQueue, []byte{0x00}, []byte("low"))
	}))

	for _, ns := range Namespaces {
		n, err := s.Count(ns)
		require.NoError(t, err)
		if ns == InsertQueue {
			assert.Equal(t, uint64(2), n)
		} else {
			assert.Equal(t, uint64(1), n, "namespace %s", ns)
		}
	}
}

func TestScanBoundsAndLimit(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Update(func(tx *Tx) error {
		for _, k := range []string{"a", "b", "c", "d"} {
			if err := tx.Set(InsertQueue, []byte(k), []byte(k)); err != nil {
				return err
			}
		}
		return nil
	}))

	collect := func(b Bounds) []string {
		var out []string
		require.NoError(t, s.View(func(tx *Tx) error {
			return tx.Scan(InsertQueue, b, func(k, _ []byte) error {
				out = append(out, string(k))
				return nil
			})
		}))
		return out
	}

	assert.Equal(t, []string{"a", "b", "c", "d"}, collect(Bounds{}))
	assert.Equal(t, []string{"a", "b"}, collect(Bounds{Until: []byte("c")}))
	assert.Equal(t, []string{"a", "b", "c"}, collect(Bounds{Limit: 3}))
	assert.Equal(t, []string{"c", "d"}, collect(Bounds{From: Successor([]byte("b"))}))
	assert.Equal(t, []string{"b"}, collect(Bounds{From: []byte("b"), Until: []byte("c")}))

	var seen int
	require.NoError(t, s.View(func(tx *Tx) error {
		return tx.Scan(InsertQueue, Bounds{}, func(_, _ []byte) error {
			seen++
			return StopScan()
		})
	}))
	assert.Equal(t, 1, seen)
}

func TestTake(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Update(func(tx *Tx) error {
		return tx.Set(DeleteIndex, []byte("id"), []byte("ts"))
	}))

	require.NoError(t, s.Update(func(tx *Tx) error {
		v, err := tx.Take(DeleteIndex, []byte("id"))
		require.NoError(t, err)
		assert.Equal(t, []byte("ts"), v)

		_, err = tx.Take(DeleteIndex, []byte("id"))
		assert.ErrorIs(t, err, ErrKeyNotFound)
		return nil
	}))

	n, err := s.Count(DeleteIndex)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestReopenPersists(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir, Options{})
	require.NoError(t, err)
	require.NoError(t, s.Update(func(tx *Tx) error {
		return tx.Set(InsertIndex, []byte("persist"), []byte("1"))
	}))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.Update(func(*Tx) error { return nil }), ErrClosed)

	s2, err := Open(dir, Options{})
	require.NoError(t, err)
	defer s2.Close()

	n, err := s2.Count(InsertIndex)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)
}

func TestSnapshotIsStable(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Update(func(tx *Tx) error {
		return tx.Set(InsertQueue, []byte("before"), nil)
	}))

	snap, err := s.NewSnapshot()
	require.NoError(t, err)
	defer snap.Close()

	require.NoError(t, s.Update(func(tx *Tx) error {
		return tx.Set(InsertQueue, []byte("after"), nil)
	}))

	var keys []string
	require.NoError(t, snap.View(func(tx *Tx) error {
		return tx.Scan(InsertQueue, Bounds{}, func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	}))
	assert.Equal(t, []string{"before"}, keys)
}
