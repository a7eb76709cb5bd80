package vecqueue

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems; see
// metrics/prometheus for a ready-made Prometheus collector.
type MetricsCollector interface {
	// RecordPush is called after each push into the insert or delete queue.
	RecordPush(kind Kind, duration time.Duration, err error)

	// RecordPop is called after each explicit pop.
	RecordPop(kind Kind, duration time.Duration, err error)

	// RecordLookup is called after each existence check or vector lookup.
	RecordLookup(duration time.Duration, err error)

	// RecordDrainBatch is called after each drain batch. inserts and deletes
	// are the number of entries removed from each queue.
	RecordDrainBatch(inserts, deletes int, duration time.Duration, err error)

	// RecordRange is called when a range scan ends. skipped counts entries
	// that could not be decoded.
	RecordRange(emitted, skipped int, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordPush(Kind, time.Duration, error)           {}
func (NoopMetricsCollector) RecordPop(Kind, time.Duration, error)            {}
func (NoopMetricsCollector) RecordLookup(time.Duration, error)               {}
func (NoopMetricsCollector) RecordDrainBatch(int, int, time.Duration, error) {}
func (NoopMetricsCollector) RecordRange(int, int, time.Duration, error)      {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	InsertPushCount  atomic.Int64
	DeletePushCount  atomic.Int64
	PushErrors       atomic.Int64
	PushTotalNanos   atomic.Int64
	PopCount         atomic.Int64
	PopErrors        atomic.Int64
	LookupCount      atomic.Int64
	LookupErrors     atomic.Int64
	DrainBatchCount  atomic.Int64
	DrainBatchErrors atomic.Int64
	DrainedInserts   atomic.Int64
	DrainedDeletes   atomic.Int64
	DrainTotalNanos  atomic.Int64
	RangeCount       atomic.Int64
	RangeEmitted     atomic.Int64
	RangeSkipped     atomic.Int64
}

// RecordPush implements MetricsCollector.
func (b *BasicMetricsCollector) RecordPush(kind Kind, duration time.Duration, err error) {
	if kind == KindInsert {
		b.InsertPushCount.Add(1)
	} else {
		b.DeletePushCount.Add(1)
	}
	b.PushTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.PushErrors.Add(1)
	}
}

// RecordPop implements MetricsCollector.
func (b *BasicMetricsCollector) RecordPop(_ Kind, _ time.Duration, err error) {
	b.PopCount.Add(1)
	if err != nil {
		b.PopErrors.Add(1)
	}
}

// RecordLookup implements MetricsCollector.
func (b *BasicMetricsCollector) RecordLookup(_ time.Duration, err error) {
	b.LookupCount.Add(1)
	if err != nil {
		b.LookupErrors.Add(1)
	}
}

// RecordDrainBatch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDrainBatch(inserts, deletes int, duration time.Duration, err error) {
	b.DrainBatchCount.Add(1)
	b.DrainTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.DrainBatchErrors.Add(1)
		return
	}
	b.DrainedInserts.Add(int64(inserts))
	b.DrainedDeletes.Add(int64(deletes))
}

// RecordRange implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRange(emitted, skipped int, _ time.Duration, _ error) {
	b.RangeCount.Add(1)
	b.RangeEmitted.Add(int64(emitted))
	b.RangeSkipped.Add(int64(skipped))
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		InsertPushCount:  b.InsertPushCount.Load(),
		DeletePushCount:  b.DeletePushCount.Load(),
		PushErrors:       b.PushErrors.Load(),
		PushAvgNanos:     b.getAvgPushNanos(),
		PopCount:         b.PopCount.Load(),
		PopErrors:        b.PopErrors.Load(),
		LookupCount:      b.LookupCount.Load(),
		LookupErrors:     b.LookupErrors.Load(),
		DrainBatchCount:  b.DrainBatchCount.Load(),
		DrainBatchErrors: b.DrainBatchErrors.Load(),
		DrainedInserts:   b.DrainedInserts.Load(),
		DrainedDeletes:   b.DrainedDeletes.Load(),
		RangeCount:       b.RangeCount.Load(),
		RangeEmitted:     b.RangeEmitted.Load(),
		RangeSkipped:     b.RangeSkipped.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgPushNanos() int64 {
	count := b.InsertPushCount.Load() + b.DeletePushCount.Load()
	if count == 0 {
		return 0
	}
	return b.PushTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	InsertPushCount  int64
	DeletePushCount  int64
	PushErrors       int64
	PushAvgNanos     int64
	PopCount         int64
	PopErrors        int64
	LookupCount      int64
	LookupErrors     int64
	DrainBatchCount  int64
	DrainBatchErrors int64
	DrainedInserts   int64
	DrainedDeletes   int64
	RangeCount       int64
	RangeEmitted     int64
	RangeSkipped     int64
}
