package storage

import (
	"context"
	"io"
	"time"
)

// ObjectMeta is the subset of object metadata the catalog cares about.
type ObjectMeta struct {
	Size        int64
	ContentType string
	ETag        string
	VersionID   string
}

// ObjectInfo describes one listed object.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// ObjectVersion describes one entry from a versioned listing. DeleteMarker
// entries represent deletions.
type ObjectVersion struct {
	Key          string
	VersionID    string
	LastModified time.Time
	IsLatest     bool
	DeleteMarker bool
}

// ObjectStorage is the narrow contract against the blob store. Implementations
// must treat delete of a missing object as success.
type ObjectStorage interface {
	Put(ctx context.Context, bucket, key string, body io.Reader, contentType string) (*ObjectMeta, error)
	Get(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, bucket, key string) error
	Head(ctx context.Context, bucket, key string) (*ObjectMeta, error)
	List(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error)
	ListVersions(ctx context.Context, bucket, prefix string) ([]ObjectVersion, error)
	VersioningEnabled(ctx context.Context, bucket string) (bool, error)
}
