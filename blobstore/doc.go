// Package blobstore provides the storage abstraction backups are written to.
//
// BlobStore is the interface for reading and writing immutable blobs.
// Implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - LocalStore: local filesystem, atomic rename on Close
//   - MemoryStore: in-process map, for tests
//   - minio.Store: MinIO and S3-compatible endpoints
//   - s3.Store: Amazon S3 with multipart streaming uploads
//
// # Custom Implementations
//
//	type BlobStore interface {
//	    Open(ctx, name) (Blob, error)             // Open for reading
//	    Create(ctx, name) (WritableBlob, error)   // Create for writing
//	    Delete(ctx, name) error
//	    List(ctx, prefix) ([]string, error)
//	}
//
// A WritableBlob becomes visible only after Close succeeds; Abort discards it.
package blobstore
