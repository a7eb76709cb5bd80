package vecqueue

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/vecqueue/codec"
	"github.com/hupe1980/vecqueue/internal/keycodec"
	"github.com/hupe1980/vecqueue/internal/store"
	"github.com/hupe1980/vecqueue/resource"
)

var (
	// ErrInvalidUUID is returned when an id is empty or whitespace only.
	ErrInvalidUUID = errors.New("invalid uuid: id must not be empty")

	// ErrNotFound is returned when an id has no pending entry in the queried queue.
	ErrNotFound = errors.New("not found")

	// ErrClosed is returned by operations on a closed queue.
	ErrClosed = errors.New("queue closed")

	// ErrInvalidBackup is returned when a backup blob is malformed.
	ErrInvalidBackup = errors.New("invalid backup")
)

// StorageError wraps a failure of the underlying database.
type StorageError struct {
	Op    string
	cause error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error during %s: %v", e.Op, e.cause)
}

func (e *StorageError) Unwrap() error { return e.cause }

// CodecError indicates a vector payload could not be encoded or decoded.
//
// The original underlying error can be accessed via errors.Unwrap.
type CodecError struct {
	ID    string
	Op    string // "encode" or "decode"
	cause error
}

func (e *CodecError) Error() string {
	return fmt.Sprintf("failed to %s vector %q: %v", e.Op, e.ID, e.cause)
}

func (e *CodecError) Unwrap() error { return e.cause }

// KeyParseError indicates a stored key or index value is malformed. It
// signals storage corruption and is never repaired automatically.
//
// errors.Is(err, keycodec.ErrInvalidUTF8) reports the UTF-8 case.
type KeyParseError struct {
	Key   []byte
	cause error
}

func (e *KeyParseError) Error() string {
	return fmt.Sprintf("malformed key %x: %v", e.Key, e.cause)
}

func (e *KeyParseError) Unwrap() error { return e.cause }

// TaskError indicates the blocking work could not be dispatched or crashed.
type TaskError struct {
	cause error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("blocking task failed: %v", e.cause)
}

func (e *TaskError) Unwrap() error { return e.cause }

func newKeyParseError(key []byte, err error) error {
	return &KeyParseError{Key: append([]byte{}, key...), cause: err}
}

// translateError maps failures from the storage, codec and worker layers
// into the public error taxonomy. Errors already in the taxonomy pass through.
func translateError(op string, err error) error {
	if err == nil {
		return nil
	}

	var (
		kpe *KeyParseError
		ce  *CodecError
		se  *StorageError
		te  *TaskError
	)
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrInvalidUUID), errors.Is(err, ErrClosed),
		errors.As(err, &kpe), errors.As(err, &ce), errors.As(err, &se), errors.As(err, &te):
		return err
	case errors.Is(err, store.ErrClosed), errors.Is(err, resource.ErrClosed):
		return fmt.Errorf("%w: %w", ErrClosed, err)
	case errors.Is(err, store.ErrKeyNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, keycodec.ErrShortKey), errors.Is(err, keycodec.ErrInvalidUTF8),
		errors.Is(err, keycodec.ErrTimestampSize):
		return &KeyParseError{cause: err}
	case errors.Is(err, codec.ErrCorrupt):
		return &CodecError{Op: "decode", cause: err}
	}

	var pe *resource.PanicError
	if errors.As(err, &pe) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &TaskError{cause: err}
	}
	return &StorageError{Op: op, cause: err}
}
