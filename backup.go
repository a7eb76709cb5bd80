package vecqueue

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/vecqueue/blobstore"
	"github.com/hupe1980/vecqueue/codec"
	"github.com/hupe1980/vecqueue/resource"
)

const (
	backupMagic   = "VQBK"
	backupVersion = 1
)

// Compression selects how the body of a backup is compressed.
type Compression uint8

const (
	CompressionNone Compression = iota
	CompressionLZ4
	CompressionZstd
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("compression(%d)", uint8(c))
	}
}

// ParseCompression parses "none", "lz4" or "zstd".
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return 0, fmt.Errorf("unknown compression %q", s)
	}
}

// BackupOption configures Backup.
type BackupOption func(*backupOptions)

type backupOptions struct {
	compression Compression
	codec       codec.VectorCodec
}

// WithBackupCompression sets the compression of the backup body.
func WithBackupCompression(c Compression) BackupOption {
	return func(o *backupOptions) {
		o.compression = c
	}
}

// WithBackupCodec sets the codec vectors are written with. It defaults to the
// queue's codec. Restore reads the codec name from the backup header.
func WithBackupCodec(c codec.VectorCodec) BackupOption {
	return func(o *backupOptions) {
		if c != nil {
			o.codec = c
		}
	}
}

// Backup writes every live pending insert, as Range sees it, to the blob
// name in bs and returns the number of records written. The blob is only
// committed when the whole backup succeeded. Throughput is bounded by
// WithBackupIOLimit.
//
// A backup layout is a fixed header followed by a body that may be
// compressed:
//
//	header: "VQBK" | version u8 | compression u8 | codec name length u8 | codec name
//	record: id length uvarint | id | timestamp u64 big-endian | payload length uvarint | payload
//	footer: 0 uvarint | record count u64 big-endian
func (q *PersistentQueue) Backup(ctx context.Context, bs blobstore.BlobStore, name string, optFns ...BackupOption) (int, error) {
	opts := backupOptions{codec: q.opts.codec}
	for _, fn := range optFns {
		fn(&opts)
	}

	var records int
	pr, pw := io.Pipe()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		n, err := q.encodeBackup(gctx, pw, opts)
		records = n
		_ = pw.CloseWithError(err)
		return err
	})

	g.Go(func() error {
		w, err := bs.Create(gctx, name)
		if err != nil {
			_ = pr.CloseWithError(err)
			return err
		}
		if _, err := io.Copy(resource.NewRateLimitedWriter(gctx, w, q.pool), pr); err != nil {
			_ = w.Abort()
			_ = pr.CloseWithError(err)
			return err
		}
		return w.Close()
	})

	err := g.Wait()
	q.opts.logger.LogBackup(ctx, name, records, err)
	if err != nil {
		return 0, err
	}
	return records, nil
}

func (q *PersistentQueue) encodeBackup(ctx context.Context, w io.Writer, opts backupOptions) (int, error) {
	codecName := opts.codec.Name()
	if len(codecName) > 255 {
		return 0, fmt.Errorf("codec name %q too long", codecName)
	}

	header := make([]byte, 0, len(backupMagic)+3+len(codecName))
	header = append(header, backupMagic...)
	header = append(header, backupVersion, byte(opts.compression), byte(len(codecName)))
	header = append(header, codecName...)
	if _, err := w.Write(header); err != nil {
		return 0, err
	}

	body, err := compressWriter(w, opts.compression)
	if err != nil {
		return 0, err
	}
	closed := false
	defer func() {
		if !closed {
			_ = body.Close()
		}
	}()
	bw := bufio.NewWriter(body)

	stream := q.Range(ctx)
	defer stream.Close()

	var (
		records int
		scratch [binary.MaxVarintLen64 + 8]byte
	)
	for item, err := range stream.All() {
		if err != nil {
			return records, err
		}
		payload, err := opts.codec.Marshal(item.Vector)
		if err != nil {
			return records, &CodecError{ID: item.ID, Op: "encode", cause: err}
		}

		n := binary.PutUvarint(scratch[:], uint64(len(item.ID)))
		if _, err := bw.Write(scratch[:n]); err != nil {
			return records, err
		}
		if _, err := bw.WriteString(item.ID); err != nil {
			return records, err
		}
		binary.BigEndian.PutUint64(scratch[:8], uint64(item.Timestamp))
		n = binary.PutUvarint(scratch[8:], uint64(len(payload)))
		if _, err := bw.Write(scratch[:8+n]); err != nil {
			return records, err
		}
		if _, err := bw.Write(payload); err != nil {
			return records, err
		}
		records++
	}

	// An empty id cannot be pushed, so a zero length marks the footer.
	footer := binary.AppendUvarint(nil, 0)
	footer = binary.BigEndian.AppendUint64(footer, uint64(records))
	if _, err := bw.Write(footer); err != nil {
		return records, err
	}
	if err := bw.Flush(); err != nil {
		return records, err
	}
	closed = true
	return records, body.Close()
}

// Restore replays the backup stored under name in bs into the queue,
// pushing every record as an insert at its original timestamp. Pending
// inserts for the same ids are replaced. Records are pushed concurrently and
// independently, so a failed restore may leave some of them applied. It
// returns the number of records restored.
func (q *PersistentQueue) Restore(ctx context.Context, bs blobstore.BlobStore, name string) (int, error) {
	n, err := q.restore(ctx, bs, name)
	q.opts.logger.LogRestore(ctx, name, n, err)
	return n, err
}

func (q *PersistentQueue) restore(ctx context.Context, bs blobstore.BlobStore, name string) (int, error) {
	blob, err := bs.Open(ctx, name)
	if err != nil {
		return 0, err
	}
	defer func() { _ = blob.Close() }()

	rc, err := blobstore.NewReader(ctx, blob)
	if err != nil {
		return 0, err
	}
	defer func() { _ = rc.Close() }()

	r := bufio.NewReader(resource.NewRateLimitedReader(ctx, rc, q.pool))
	compression, vc, err := readBackupHeader(r)
	if err != nil {
		return 0, err
	}

	body, err := decompressReader(r, compression)
	if err != nil {
		return 0, err
	}
	defer func() { _ = body.Close() }()
	br := bufio.NewReader(body)

	var restored atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(int(q.pool.MaxWorkers()))

	read := 0
	readErr := func() error {
		for {
			id, ts, payload, err := readBackupRecord(br)
			if errors.Is(err, errBackupFooter) {
				break
			}
			if err != nil {
				return err
			}
			vec, err := vc.Unmarshal(payload)
			if err != nil {
				return &CodecError{ID: id, Op: "decode", cause: err}
			}
			read++
			g.Go(func() error {
				if err := q.PushInsert(gctx, id, vec, WithTimestamp(ts)); err != nil {
					return err
				}
				restored.Add(1)
				return nil
			})
			if gctx.Err() != nil {
				return nil
			}
		}

		var count [8]byte
		if _, err := io.ReadFull(br, count[:]); err != nil {
			return fmt.Errorf("%w: missing footer: %w", ErrInvalidBackup, err)
		}
		if want := binary.BigEndian.Uint64(count[:]); want != uint64(read) {
			return fmt.Errorf("%w: footer counts %d records, read %d", ErrInvalidBackup, want, read)
		}
		return nil
	}()

	if err := g.Wait(); err != nil {
		return int(restored.Load()), err
	}
	return int(restored.Load()), readErr
}

var errBackupFooter = errors.New("backup footer")

func readBackupHeader(r *bufio.Reader) (Compression, codec.VectorCodec, error) {
	var fixed [len(backupMagic) + 3]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		return 0, nil, fmt.Errorf("%w: short header: %w", ErrInvalidBackup, err)
	}
	if string(fixed[:len(backupMagic)]) != backupMagic {
		return 0, nil, fmt.Errorf("%w: bad magic", ErrInvalidBackup)
	}
	rest := fixed[len(backupMagic):]
	if rest[0] != backupVersion {
		return 0, nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidBackup, rest[0])
	}
	compression := Compression(rest[1])
	if compression > CompressionZstd {
		return 0, nil, fmt.Errorf("%w: unknown compression %d", ErrInvalidBackup, rest[1])
	}

	name := make([]byte, rest[2])
	if _, err := io.ReadFull(r, name); err != nil {
		return 0, nil, fmt.Errorf("%w: short header: %w", ErrInvalidBackup, err)
	}
	vc, ok := codec.ByName(string(name))
	if !ok {
		return 0, nil, fmt.Errorf("%w: unknown codec %q", ErrInvalidBackup, name)
	}
	return compression, vc, nil
}

// maxBackupField bounds id and payload lengths read from a backup.
const maxBackupField = 64 << 20

func readBackupRecord(r *bufio.Reader) (id string, ts int64, payload []byte, err error) {
	idLen, err := binary.ReadUvarint(r)
	if err != nil {
		return "", 0, nil, fmt.Errorf("%w: %w", ErrInvalidBackup, err)
	}
	if idLen == 0 {
		return "", 0, nil, errBackupFooter
	}
	if idLen > maxBackupField {
		return "", 0, nil, fmt.Errorf("%w: id length %d", ErrInvalidBackup, idLen)
	}

	buf := make([]byte, idLen+8)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", 0, nil, fmt.Errorf("%w: truncated record: %w", ErrInvalidBackup, err)
	}
	id = string(buf[:idLen])
	ts = int64(binary.BigEndian.Uint64(buf[idLen:]))

	n, err := binary.ReadUvarint(r)
	if err != nil {
		return "", 0, nil, fmt.Errorf("%w: truncated record: %w", ErrInvalidBackup, err)
	}
	if n > maxBackupField {
		return "", 0, nil, fmt.Errorf("%w: payload length %d", ErrInvalidBackup, n)
	}
	payload = make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return "", 0, nil, fmt.Errorf("%w: truncated record: %w", ErrInvalidBackup, err)
	}
	return id, ts, payload, nil
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func compressWriter(w io.Writer, c Compression) (io.WriteCloser, error) {
	switch c {
	case CompressionNone:
		return nopWriteCloser{w}, nil
	case CompressionLZ4:
		return lz4.NewWriter(w), nil
	case CompressionZstd:
		return zstd.NewWriter(w)
	default:
		return nil, fmt.Errorf("unknown compression %d", uint8(c))
	}
}

func decompressReader(r io.Reader, c Compression) (io.ReadCloser, error) {
	switch c {
	case CompressionNone:
		return io.NopCloser(r), nil
	case CompressionLZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	case CompressionZstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return dec.IOReadCloser(), nil
	default:
		return nil, fmt.Errorf("%w: unknown compression %d", ErrInvalidBackup, uint8(c))
	}
}
