package storage

import (
	"context"
	"fmt"
	"strings"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/gcsblob" // GCS driver
	_ "gocloud.dev/blob/s3blob"  // S3 driver
	"gocloud.dev/gcerrors"
)

// BlobStore writes artifacts to an object-store bucket through the portable
// gocloud blob API.
type BlobStore struct {
	bucket *blob.Bucket
	scheme string
	name   string
	prefix string
}

// NewBlobStore opens the bucket named by a gs:// or s3:// URL. A path after
// the bucket name becomes a key prefix.
func NewBlobStore(ctx context.Context, bucketURL string) (*BlobStore, error) {
	scheme, rest, ok := strings.Cut(bucketURL, "://")
	if !ok {
		return nil, fmt.Errorf("invalid bucket URL %s", bucketURL)
	}
	name, prefix, _ := strings.Cut(rest, "/")
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	bucket, err := blob.OpenBucket(ctx, fmt.Sprintf("%s://%s", scheme, name))
	if err != nil {
		return nil, fmt.Errorf("open bucket %s: %w", bucketURL, err)
	}

	return &BlobStore{
		bucket: bucket,
		scheme: scheme,
		name:   name,
		prefix: prefix,
	}, nil
}

// Write stores data under key in the bucket.
func (s *BlobStore) Write(ctx context.Context, key string, data []byte) error {
	path := s.prefix + key

	w, err := s.bucket.NewWriter(ctx, path, nil)
	if err != nil {
		return fmt.Errorf("create writer for %s: %w", path, err)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("write data to %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close writer for %s: %w", path, err)
	}
	return nil
}

// Exists reports whether an object is present under key.
func (s *BlobStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.bucket.Attributes(ctx, s.prefix+key)
	if err == nil {
		return true, nil
	}
	if gcerrors.Code(err) == gcerrors.NotFound {
		return false, nil
	}
	return false, err
}

// URI returns the canonical URI for the given key.
func (s *BlobStore) URI(key string) string {
	return fmt.Sprintf("%s://%s/%s%s", s.scheme, s.name, s.prefix, key)
}

// Close releases the bucket handle.
func (s *BlobStore) Close() error {
	return s.bucket.Close()
}
