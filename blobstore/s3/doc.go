// Package s3 provides an S3 implementation of the blobstore.BlobStore interface.
//
// # Usage
//
//	cfg, _ := config.LoadDefaultConfig(ctx)
//	store := s3.NewStore(awss3.NewFromConfig(cfg), "my-bucket", "vecqueue/backups")
//	err := q.Backup(ctx, store, "2026-10-17.vqb")
//
// # Features
//
//   - Range reads for streaming restores
//   - Multipart uploads through the S3 upload manager
//   - Automatic pagination for listing
//   - Configurable prefix for multi-tenant isolation
package s3
