package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSBlobStore stores artifacts as objects in a Google Cloud Storage bucket.
type GCSBlobStore struct {
	client *storage.Client
	bucket string
}

// NewGCSBlobStore creates a BlobStore backed by the given bucket.
// credentialsFile is optional; when empty, application default credentials
// are used.
func NewGCSBlobStore(ctx context.Context, bucket, credentialsFile string) (*GCSBlobStore, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create GCS storage client: %w", err)
	}

	return &GCSBlobStore{client: client, bucket: bucket}, nil
}

// Put writes the artifact to the bucket under key.
func (s *GCSBlobStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if int64(len(data)) > MaxArtifactSize {
		return ErrArtifactTooLarge
	}

	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = "no-cache, no-store, must-revalidate"

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("write object %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close writer for %s: %w", key, err)
	}
	return nil
}

// Get reads the artifact stored under key.
func (s *GCSBlobStore) Get(ctx context.Context, key string) ([]byte, string, error) {
	obj := s.client.Bucket(s.bucket).Object(key)

	r, err := obj.NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, "", fmt.Errorf("%w: %s", ErrBlobNotFound, key)
		}
		return nil, "", fmt.Errorf("open object %s: %w", key, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, "", fmt.Errorf("read object %s: %w", key, err)
	}
	return data, r.Attrs.ContentType, nil
}

// Close releases the underlying client.
func (s *GCSBlobStore) Close() error {
	return s.client.Close()
}
