// Package store adapts a pebble database into the four namespaces used by the
// staging queue: insert_queue, delete_queue, insert_index and delete_index.
//
// Namespaces are key prefixes inside one database, so a single pebble batch
// commits mutations across all four atomically. Read-modify-write updates are
// serialized by the store because pebble batches provide atomic commit but no
// isolation between concurrent read-then-write sequences.
package store
