// Package blobstore provides object storage for blob-backed block devices.
//
// Store is the interface for reading and writing whole blobs by name.
// Implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - MemoryStore: in-process map, for tests
//   - LocalStore: local filesystem with atomic replace
//   - s3.Store: Amazon S3 with multipart uploads for large blobs
//   - minio.Store: MinIO and other S3-compatible services
//
// # Custom Implementations
//
//	type Store interface {
//	    Get(ctx, name) ([]byte, error)
//	    Put(ctx, name, data) error         // Atomic write
//	    Delete(ctx, name) error
//	    List(ctx, prefix) ([]string, error)
//	}
//
// Get of a missing blob must return an error matching ErrNotFound.
package blobstore
