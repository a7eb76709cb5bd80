// Package prometheus exports queue metrics to Prometheus.
//
//	reg := prometheus.NewRegistry()
//	q, err := vecqueue.Open(ctx, path,
//	    vecqueue.WithMetricsCollector(vqprom.NewCollector(reg, "vecqueue")))
package prometheus

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/hupe1980/vecqueue"
)

const (
	labelQueue  = "queue"
	labelResult = "result"
	labelOp     = "op"
)

// Collector implements vecqueue.MetricsCollector on top of Prometheus
// counters and histograms.
type Collector struct {
	ops       *prom.CounterVec
	latency   *prom.HistogramVec
	drained   *prom.CounterVec
	rangeSeen *prom.CounterVec
}

var _ vecqueue.MetricsCollector = (*Collector)(nil)

// NewCollector registers the queue metrics on reg. namespace prefixes every
// metric name.
func NewCollector(reg prom.Registerer, namespace string) *Collector {
	f := promauto.With(reg)

	return &Collector{
		ops: f.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Total number of queue operations by operation, queue and result",
		}, []string{labelOp, labelQueue, labelResult}),
		latency: f.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Latency of queue operations (50 microseconds to 5 seconds)",
			Buckets:   prom.ExponentialBucketsRange(0.00005, 5, 12),
		}, []string{labelOp}),
		drained: f.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "drained_entries_total",
			Help:      "Total number of entries removed by drains",
		}, []string{labelQueue}),
		rangeSeen: f.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "range_entries_total",
			Help:      "Total number of entries visited by range scans, emitted or skipped",
		}, []string{labelResult}),
	}
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (c *Collector) observe(op, queue string, d time.Duration, err error) {
	c.ops.WithLabelValues(op, queue, result(err)).Inc()
	c.latency.WithLabelValues(op).Observe(d.Seconds())
}

// RecordPush implements vecqueue.MetricsCollector.
func (c *Collector) RecordPush(kind vecqueue.Kind, d time.Duration, err error) {
	c.observe("push", kind.String(), d, err)
}

// RecordPop implements vecqueue.MetricsCollector.
func (c *Collector) RecordPop(kind vecqueue.Kind, d time.Duration, err error) {
	c.observe("pop", kind.String(), d, err)
}

// RecordLookup implements vecqueue.MetricsCollector.
func (c *Collector) RecordLookup(d time.Duration, err error) {
	c.observe("lookup", "", d, err)
}

// RecordDrainBatch implements vecqueue.MetricsCollector.
func (c *Collector) RecordDrainBatch(inserts, deletes int, d time.Duration, err error) {
	c.observe("drain_batch", "", d, err)
	c.drained.WithLabelValues(vecqueue.KindInsert.String()).Add(float64(inserts))
	c.drained.WithLabelValues(vecqueue.KindDelete.String()).Add(float64(deletes))
}

// RecordRange implements vecqueue.MetricsCollector.
func (c *Collector) RecordRange(emitted, skipped int, d time.Duration, err error) {
	c.observe("range", "", d, err)
	c.rangeSeen.WithLabelValues("emitted").Add(float64(emitted))
	c.rangeSeen.WithLabelValues("skipped").Add(float64(skipped))
}
