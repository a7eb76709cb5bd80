package vecqueue

import (
	"log/slog"
	"time"

	"github.com/hupe1980/vecqueue/codec"
)

const (
	// DefaultCacheSize is the block cache capacity used when none is configured.
	DefaultCacheSize = 64 << 20

	// DefaultDrainBatchSize is used when DrainQueues is called with batchSize <= 0.
	DefaultDrainBatchSize = 1024

	// DefaultStreamBuffer is the capacity of the channel behind drain and range streams.
	DefaultStreamBuffer = 64
)

type options struct {
	cacheSize        int64
	compression      bool
	logger           *Logger
	metricsCollector MetricsCollector
	maxWorkers       int64
	drainBatchSize   int
	streamBuffer     int
	codec            codec.VectorCodec
	clock            func() time.Time
	backupIOLimit    int64
}

func defaultOptions() options {
	return options{
		cacheSize:        DefaultCacheSize,
		logger:           NoopLogger(),
		metricsCollector: NoopMetricsCollector{},
		drainBatchSize:   DefaultDrainBatchSize,
		streamBuffer:     DefaultStreamBuffer,
		codec:            codec.Default,
		clock:            time.Now,
	}
}

// Option configures Open.
type Option func(*options)

// WithCacheSize sets the block cache capacity in bytes, passed through to the
// storage engine at open time.
func WithCacheSize(bytes int64) Option {
	return func(o *options) {
		o.cacheSize = bytes
	}
}

// WithCompression enables block compression in the storage engine.
func WithCompression(enabled bool) Option {
	return func(o *options) {
		o.compression = enabled
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := vecqueue.NewJSONLogger(slog.LevelInfo)
//	q, _ := vecqueue.Open(ctx, "./queue", vecqueue.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &vecqueue.BasicMetricsCollector{}
//	q, _ := vecqueue.Open(ctx, "./queue", vecqueue.WithMetricsCollector(metrics))
//	// ... use q ...
//	stats := metrics.GetStats()
//	fmt.Printf("Pushes: %d, Avg latency: %dns\n", stats.InsertPushCount, stats.PushAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithMaxWorkers bounds how many storage operations run at once.
// Defaults to runtime.GOMAXPROCS(0).
func WithMaxWorkers(n int) Option {
	return func(o *options) {
		o.maxWorkers = int64(n)
	}
}

// WithDrainBatchSize sets the batch size DrainQueues uses when called with
// batchSize <= 0.
func WithDrainBatchSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.drainBatchSize = n
		}
	}
}

// WithStreamBuffer sets the channel capacity of drain and range streams.
// A producer blocks once this many items are waiting for the consumer.
func WithStreamBuffer(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.streamBuffer = n
		}
	}
}

// WithVectorCodec configures the codec used to persist vectors.
//
// The codec must match the one the database was written with.
// If nil is passed, codec.Default is used.
func WithVectorCodec(c codec.VectorCodec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithClock overrides the clock used for default push timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.clock = now
		}
	}
}

// WithBackupIOLimit caps backup and restore throughput in bytes per second.
// Zero means unlimited.
func WithBackupIOLimit(bytesPerSec int64) Option {
	return func(o *options) {
		o.backupIOLimit = bytesPerSec
	}
}

// PushOption configures a single push.
type PushOption func(*pushOptions)

type pushOptions struct {
	ts    int64
	hasTS bool
}

// WithTimestamp sets an explicit timestamp in nanoseconds instead of the
// current wall-clock time.
func WithTimestamp(ts int64) PushOption {
	return func(o *pushOptions) {
		o.ts = ts
		o.hasTS = true
	}
}
