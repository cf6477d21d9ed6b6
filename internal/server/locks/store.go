package locks

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/wopihost/internal/common"
	"github.com/dmitrijs2005/wopihost/internal/server/models"
)

// Store persists at most one LockRecord per file. Get returns
// common.ErrorNotFound for a file without a record; expiry is interpreted by
// the Manager, so stores may keep expired records around.
type Store interface {
	Get(ctx context.Context, fileID string) (*models.LockRecord, error)
	Put(ctx context.Context, rec *models.LockRecord) error
	Delete(ctx context.Context, fileID string) error
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu    sync.RWMutex
	locks map[string]models.LockRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{locks: make(map[string]models.LockRecord)}
}

func (s *MemoryStore) Get(_ context.Context, fileID string) (*models.LockRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.locks[fileID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &rec, nil
}

func (s *MemoryStore) Put(_ context.Context, rec *models.LockRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.locks[rec.FileID] = *rec
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, fileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.locks, fileID)
	return nil
}
