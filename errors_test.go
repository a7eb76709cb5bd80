package vecqueue

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hupe1980/vecqueue/codec"
	"github.com/hupe1980/vecqueue/internal/keycodec"
	"github.com/hupe1980/vecqueue/internal/store"
	"github.com/hupe1980/vecqueue/resource"
)

func TestTranslateError(t *testing.T) {
	disk := errors.New("disk on fire")

	tests := []struct {
		name  string
		in    error
		check func(t *testing.T, err error)
	}{
		{
			name:  "Nil",
			in:    nil,
			check: func(t *testing.T, err error) { assert.NoError(t, err) },
		},
		{
			name: "StoreClosed",
			in:   store.ErrClosed,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrClosed)
				assert.ErrorIs(t, err, store.ErrClosed)
			},
		},
		{
			name:  "ControllerClosed",
			in:    resource.ErrClosed,
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrClosed) },
		},
		{
			name:  "KeyNotFound",
			in:    store.ErrKeyNotFound,
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrNotFound) },
		},
		{
			name: "InvalidUTF8",
			in:   keycodec.ErrInvalidUTF8,
			check: func(t *testing.T, err error) {
				var kpe *KeyParseError
				assert.ErrorAs(t, err, &kpe)
				assert.ErrorIs(t, err, keycodec.ErrInvalidUTF8)
			},
		},
		{
			name: "Corrupt",
			in:   codec.ErrCorrupt,
			check: func(t *testing.T, err error) {
				var ce *CodecError
				assert.ErrorAs(t, err, &ce)
			},
		},
		{
			name: "Panic",
			in:   &resource.PanicError{Value: "oops"},
			check: func(t *testing.T, err error) {
				var te *TaskError
				assert.ErrorAs(t, err, &te)
			},
		},
		{
			name: "Canceled",
			in:   context.Canceled,
			check: func(t *testing.T, err error) {
				var te *TaskError
				assert.ErrorAs(t, err, &te)
				assert.ErrorIs(t, err, context.Canceled)
			},
		},
		{
			name: "Storage",
			in:   disk,
			check: func(t *testing.T, err error) {
				var se *StorageError
				assert.ErrorAs(t, err, &se)
				assert.Equal(t, "push", se.Op)
				assert.ErrorIs(t, err, disk)
			},
		},
		{
			name: "PassThrough",
			in:   &CodecError{ID: "x", Op: "encode", cause: disk},
			check: func(t *testing.T, err error) {
				var ce *CodecError
				assert.ErrorAs(t, err, &ce)
				assert.Equal(t, "encode", ce.Op)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, translateError("push", tt.in))
		})
	}
}

func TestErrorMessages(t *testing.T) {
	cause := errors.New("cause")

	assert.Equal(t, "storage error during drain: cause", (&StorageError{Op: "drain", cause: cause}).Error())
	assert.Equal(t, `failed to decode vector "a": cause`, (&CodecError{ID: "a", Op: "decode", cause: cause}).Error())
	assert.Equal(t, "malformed key 0102: cause", newKeyParseError([]byte{1, 2}, cause).Error())
	assert.Equal(t, "blocking task failed: cause", (&TaskError{cause: cause}).Error())
}
