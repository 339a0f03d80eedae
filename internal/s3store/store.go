// Package s3store talks to S3-compatible object storage: artifact
// uploads, remote retention and work-storage mirroring.
package s3store

import (
	"context"
	"time"
)

// ObjectInfo describes one stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// ObjectStore is the subset of object storage operations the backup
// system needs. *Store implements it against an S3 endpoint; tests use
// an in-memory fake.
type ObjectStore interface {
	// BucketExists reports whether the configured bucket is reachable.
	BucketExists(ctx context.Context) (bool, error)
	// List returns all objects under prefix, recursively.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	// Upload stores the local file at path under key with the given
	// metadata attached.
	Upload(ctx context.Context, key, path string, metadata map[string]string) error
	// Remove deletes a single object.
	Remove(ctx context.Context, key string) error
	// RemovePrefix deletes every object under prefix and returns how
	// many were removed.
	RemovePrefix(ctx context.Context, prefix string) (int, error)
	// Copy performs a server-side copy from srcKey in src's bucket to
	// dstKey in this store's bucket.
	Copy(ctx context.Context, src ObjectStore, srcKey, dstKey string) error
	// Bucket returns the bucket name, for log lines.
	Bucket() string
}
