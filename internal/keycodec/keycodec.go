package keycodec

import (
	"encoding/binary"
	"errors"
	"math"
	"unicode/utf8"
)

// TimestampSize is the encoded width of a timestamp.
const TimestampSize = 8

var (
	// ErrShortKey is returned when a key or index value holds fewer than 8 bytes.
	ErrShortKey = errors.New("keycodec: key shorter than timestamp prefix")

	// ErrInvalidUTF8 is returned when the id suffix is not valid UTF-8.
	ErrInvalidUTF8 = errors.New("keycodec: id is not valid utf-8")

	// ErrTimestampSize is returned when an index value is not exactly 8 bytes.
	ErrTimestampSize = errors.New("keycodec: timestamp value must be 8 bytes")
)

// Encode returns the data key for (ts, id).
func Encode(ts int64, id string) []byte {
	key := make([]byte, TimestampSize+len(id))
	binary.BigEndian.PutUint64(key, uint64(ts))
	copy(key[TimestampSize:], id)
	return key
}

// Decode splits a data key into its timestamp and id.
func Decode(key []byte) (int64, string, error) {
	if len(key) < TimestampSize {
		return 0, "", ErrShortKey
	}
	rest := key[TimestampSize:]
	if !utf8.Valid(rest) {
		return 0, "", ErrInvalidUTF8
	}
	return int64(binary.BigEndian.Uint64(key)), string(rest), nil
}

// EncodeTimestamp returns the 8-byte big-endian index value for ts.
func EncodeTimestamp(ts int64) []byte {
	b := make([]byte, TimestampSize)
	binary.BigEndian.PutUint64(b, uint64(ts))
	return b
}

// DecodeTimestamp parses an index value written by EncodeTimestamp.
func DecodeTimestamp(b []byte) (int64, error) {
	if len(b) < TimestampSize {
		return 0, ErrShortKey
	}
	if len(b) != TimestampSize {
		return 0, ErrTimestampSize
	}
	return int64(binary.BigEndian.Uint64(b)), nil
}

// ValidID reports whether b can be used as an id read back from an index key.
func ValidID(b []byte) bool {
	return utf8.Valid(b)
}

// UpperBound returns the smallest key greater than every Encode(ts, id).
// It returns nil when no such bound exists (ts == math.MaxInt64), meaning
// the scan must run to the end of the namespace.
func UpperBound(ts int64) []byte {
	if ts == math.MaxInt64 {
		return nil
	}
	return EncodeTimestamp(ts + 1)
}

// Window is the half-open key range [From, Until). A nil From starts at the
// first key, a nil Until runs past the last one.
type Window struct {
	From  []byte
	Until []byte
}

// DueWindows returns the key ranges that hold exactly the keys with a
// timestamp at or before cutoff, in timestamp order. Negative timestamps
// encode above every non-negative one, so a non-negative cutoff needs the
// negative range followed by the range [0, cutoff].
func DueWindows(cutoff int64) []Window {
	negative := EncodeTimestamp(math.MinInt64)
	if cutoff < 0 {
		var until []byte
		if cutoff < -1 {
			until = EncodeTimestamp(cutoff + 1)
		}
		return []Window{{From: negative, Until: until}}
	}

	until := UpperBound(cutoff)
	if until == nil {
		until = negative
	}
	return []Window{{From: negative}, {Until: until}}
}
