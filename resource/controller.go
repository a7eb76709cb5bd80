// Package resource bounds the blocking work the queue performs.
//
// Every unit of work that touches the database runs through Controller.Do,
// which holds one of a fixed number of worker slots for its duration. Callers
// wait for a slot, never for another caller's disk I/O directly.
package resource

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ErrClosed is returned by Do after Close.
var ErrClosed = errors.New("resource: controller closed")

// PanicError is returned by Do when the work function panicked.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("resource: work panicked: %v", e.Value)
}

// Config holds resource limits.
type Config struct {
	// MaxWorkers is the maximum number of concurrently running work units.
	// If 0, defaults to runtime.GOMAXPROCS(0).
	MaxWorkers int64

	// IOLimitBytesPerSec caps throughput of rate-limited readers and writers.
	// If 0, unlimited.
	IOLimitBytesPerSec int64
}

// Controller manages worker slots and IO budget.
type Controller struct {
	cfg Config

	workers *semaphore.Weighted
	running atomic.Int64
	closed  atomic.Bool

	ioLimiter *rate.Limiter
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = int64(runtime.GOMAXPROCS(0))
	}

	c := &Controller{
		cfg:     cfg,
		workers: semaphore.NewWeighted(cfg.MaxWorkers),
	}

	if cfg.IOLimitBytesPerSec > 0 {
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), int(cfg.IOLimitBytesPerSec))
	}

	return c
}

// MaxWorkers returns the configured number of worker slots.
func (c *Controller) MaxWorkers() int64 { return c.cfg.MaxWorkers }

// Running returns the number of work units currently holding a slot.
func (c *Controller) Running() int64 { return c.running.Load() }

// Do waits for a worker slot and runs fn while holding it. It returns the
// error of fn, the context error if no slot became available in time,
// ErrClosed after Close, or a *PanicError if fn panicked.
func (c *Controller) Do(ctx context.Context, fn func() error) (err error) {
	if c.closed.Load() {
		return ErrClosed
	}
	if err := c.workers.Acquire(ctx, 1); err != nil {
		return err
	}
	c.running.Add(1)
	defer func() {
		c.running.Add(-1)
		c.workers.Release(1)
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()

	if c.closed.Load() {
		return ErrClosed
	}
	return fn()
}

// Close rejects further work. Work already holding a slot runs to completion.
func (c *Controller) Close() {
	c.closed.Store(true)
}

// AcquireIO waits until the IO limit allows the specified number of bytes.
func (c *Controller) AcquireIO(ctx context.Context, bytes int) error {
	if c == nil || c.ioLimiter == nil {
		return nil
	}
	// WaitN rejects requests larger than the burst; split them.
	burst := c.ioLimiter.Burst()
	for bytes > 0 {
		n := min(bytes, burst)
		if err := c.ioLimiter.WaitN(ctx, n); err != nil {
			return err
		}
		bytes -= n
	}
	return nil
}
