// Package blobstore persists published pamphlet PDFs. It defines the
// BlobStore interface the publication recorder writes through, an in-memory
// implementation for development and tests, and a Google Cloud Storage
// implementation for production.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	ErrBlobNotFound = errors.New("blob not found")
	ErrEmptyKey     = errors.New("blob key is required")
)

// MaxArtifactSize is the maximum allowed artifact size in bytes (50 MB).
// Pamphlets are a handful of A4 pages with embedded charts; anything larger
// indicates a malformed upload.
const MaxArtifactSize = 50 * 1024 * 1024

var ErrArtifactTooLarge = errors.New("artifact exceeds maximum allowed size")

// BlobStore is the contract for artifact storage backends. Keys are
// slash-separated paths such as "reports/2026/0826/<code>.pdf".
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, string, error)
}

type storedBlob struct {
	data        []byte
	contentType string
	storedAt    time.Time
}

// InMemoryBlobStore is a thread-safe, in-memory BlobStore for testing/dev.
type InMemoryBlobStore struct {
	mu    sync.RWMutex
	blobs map[string]*storedBlob
}

// NewInMemoryBlobStore returns a ready-to-use InMemoryBlobStore.
func NewInMemoryBlobStore() *InMemoryBlobStore {
	return &InMemoryBlobStore{
		blobs: make(map[string]*storedBlob),
	}
}

// Put validates inputs and stores the blob in memory.
func (s *InMemoryBlobStore) Put(_ context.Context, key string, data []byte, contentType string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if int64(len(data)) > MaxArtifactSize {
		return ErrArtifactTooLarge
	}

	stored := make([]byte, len(data))
	copy(stored, data)

	s.mu.Lock()
	s.blobs[key] = &storedBlob{
		data:        stored,
		contentType: contentType,
		storedAt:    time.Now().UTC(),
	}
	s.mu.Unlock()

	return nil
}

// Get returns a copy of the blob content and its content type.
func (s *InMemoryBlobStore) Get(_ context.Context, key string) ([]byte, string, error) {
	s.mu.RLock()
	blob, ok := s.blobs[key]
	s.mu.RUnlock()

	if !ok {
		return nil, "", fmt.Errorf("%w: %s", ErrBlobNotFound, key)
	}

	out := make([]byte, len(blob.data))
	copy(out, blob.data)
	return out, blob.contentType, nil
}

// Len returns the number of stored blobs.
func (s *InMemoryBlobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
