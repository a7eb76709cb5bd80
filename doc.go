// Package vecqueue provides a durable staging queue for vector ingestion.
//
// A queue holds, per id, at most one pending insert (a vector) and at most
// one pending delete, each stamped with a timestamp. Producers push
// operations; a downstream indexer periodically drains everything due up to
// a cutoff and receives exactly one resolved outcome per id. Pending state is
// kept in an embedded pebble database and survives restarts.
//
// # Quick Start
//
//	ctx := context.Background()
//	q, err := vecqueue.Open(ctx, "./queue")
//	if err != nil {
//	    panic(err)
//	}
//	defer q.Close()
//
//	_ = q.PushInsert(ctx, "doc-1", []float32{0.1, 0.2, 0.3})
//	_ = q.PushDelete(ctx, "doc-2")
//
// Drain everything due now:
//
//	stream := q.DrainQueues(ctx, time.Now().UnixNano(), 0)
//	defer stream.Close()
//	for item, err := range stream.All() {
//	    if err != nil {
//	        return err
//	    }
//	    switch item.Kind {
//	    case vecqueue.KindInsert:
//	        index.Add(item.ID, item.Vector)
//	    case vecqueue.KindDelete:
//	        index.Remove(item.ID)
//	    }
//	}
//
// # Conflict Resolution
//
// When an id has both a pending insert and a pending delete, the operation
// with the greater timestamp wins. A delete wins a tie. Lookups, Range and
// DrainQueues apply the same rule.
//
// # Timestamps
//
// Timestamps are int64 nanoseconds and default to the wall clock at push
// time. Keys order by the unsigned big-endian form of the timestamp, so Range
// visits negative timestamps after every non-negative one. DrainQueues
// compares timestamps numerically: a cutoff drains every entry at or before
// it, negative ones included. A missing delete counts as timestamp 0, so an
// insert at ts <= 0 with no pending delete is not live.
//
// # Concurrency
//
// All storage work runs on a bounded worker pool (see package resource).
// Read-modify-write operations are serialized by the storage layer, and each
// one commits atomically across the data and index namespaces.
package vecqueue
