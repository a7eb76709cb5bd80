package vecqueue

import (
	"context"
	"io"
	"iter"
)

// Stream is a lazily produced sequence of items backed by a bounded channel.
// A background producer fills the channel; it blocks once the buffer is full
// and stops when the stream is closed. If production fails, the error is
// returned by Recv as the final item.
//
// A Stream is meant for a single consumer.
type Stream[T any] struct {
	ch     <-chan streamItem[T]
	cancel context.CancelFunc
	done   <-chan struct{}
	err    error
}

type streamItem[T any] struct {
	val T
	err error
}

// producer generates the items of a stream. emit reports false once the
// consumer has gone away; the producer should return promptly after that.
type producer[T any] func(ctx context.Context, emit func(T) bool) error

func newStream[T any](ctx context.Context, buffer int, produce producer[T], release func()) *Stream[T] {
	ctx, cancel := context.WithCancel(ctx)
	ch := make(chan streamItem[T], buffer)
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer release()
		defer close(ch)
		defer cancel()

		emit := func(v T) bool {
			select {
			case ch <- streamItem[T]{val: v}:
				return true
			case <-ctx.Done():
				return false
			}
		}

		err := produce(ctx, emit)
		if err == nil || ctx.Err() != nil {
			return
		}
		select {
		case ch <- streamItem[T]{err: err}:
		case <-ctx.Done():
		}
	}()

	return &Stream[T]{ch: ch, cancel: cancel, done: done}
}

// failedStream returns a stream whose only item is err.
func failedStream[T any](err error) *Stream[T] {
	ch := make(chan streamItem[T], 1)
	ch <- streamItem[T]{err: err}
	close(ch)
	done := make(chan struct{})
	close(done)
	return &Stream[T]{ch: ch, cancel: func() {}, done: done}
}

// Recv returns the next item. It returns io.EOF once the stream is exhausted
// or closed, and the production error if production failed. After a non-nil
// error every further call returns the same error.
func (s *Stream[T]) Recv() (T, error) {
	var zero T
	if s.err != nil {
		return zero, s.err
	}
	item, ok := <-s.ch
	if !ok {
		s.err = io.EOF
		return zero, io.EOF
	}
	if item.err != nil {
		s.err = item.err
		return zero, item.err
	}
	return item.val, nil
}

// All returns an iterator over the remaining items. Iteration ends after the
// last item or after yielding a non-nil error. Breaking out of the loop closes
// the stream.
//
//	for item, err := range stream.All() {
//	    if err != nil {
//	        return err
//	    }
//	    process(item)
//	}
func (s *Stream[T]) All() iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for {
			v, err := s.Recv()
			if err == io.EOF {
				return
			}
			if err != nil {
				yield(v, err)
				return
			}
			if !yield(v, nil) {
				s.Close()
				return
			}
		}
	}
}

// Collect reads the stream to the end.
func (s *Stream[T]) Collect() ([]T, error) {
	var out []T
	for v, err := range s.All() {
		if err != nil {
			return out, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Close stops the producer and waits for it to exit. Items still buffered
// are discarded. Close is safe to call more than once.
func (s *Stream[T]) Close() {
	s.cancel()
	<-s.done
	if s.err == nil {
		s.err = io.EOF
	}
}

// startStream runs produce on behalf of q. Producers are tied to the
// lifetime of the queue: Close cancels them and waits for them to exit.
func startStream[T any](ctx context.Context, q *PersistentQueue, produce producer[T]) *Stream[T] {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return failedStream[T](ErrClosed)
	}
	q.streams.Add(1)
	q.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	unlink := context.AfterFunc(q.done, cancel)

	return newStream(ctx, q.opts.streamBuffer, produce, func() {
		unlink()
		cancel()
		q.streams.Done()
	})
}
