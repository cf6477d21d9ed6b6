// Package storage holds the object stores that keep file content bytes.
// Metadata and version bookkeeping live in the SQL repositories; a blob is
// only ever referenced through the storage key recorded there.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dmitrijs2005/wopihost/internal/common"
	"github.com/google/uuid"
)

// BlobStore stores immutable blobs by key. Get returns common.ErrorNotFound
// for unknown keys; Delete of an unknown key is not an error.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// NewKey returns a fresh storage key for a new blob of fileID.
func NewKey(fileID string) string {
	d := time.Now().UTC()
	return fmt.Sprintf("files/%s/%d/%02d/%02d/%v", fileID, d.Year(), d.Month(), d.Day(), uuid.New())
}

// MemoryStore is a BlobStore kept in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

func (s *MemoryStore) Put(_ context.Context, key string, data []byte, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[key] = bytes.Clone(data)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blobs[key]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, key)
	return nil
}

// Len reports how many blobs are stored.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
