// Package keycodec encodes (timestamp, id) pairs into sortable byte keys.
//
// Keys are timestamp-major: an 8-byte big-endian uint64(ts) followed by the
// raw id bytes. Within the non-negative and within the negative timestamps,
// byte order equals (timestamp, id) order; negative timestamps sort after all
// non-negative ones. DueWindows returns the key ranges that together hold
// exactly the entries with ts <= cutoff.
package keycodec
