package tokens

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/wopihost/internal/common"
	"github.com/dmitrijs2005/wopihost/internal/server/models"
)

// Store persists at most one AccessToken per (file, identity) pair.
// Get returns common.ErrorNotFound when the pair has no token.
type Store interface {
	Get(ctx context.Context, fileID, identity string) (*models.AccessToken, error)
	Put(ctx context.Context, token *models.AccessToken) error
	Delete(ctx context.Context, fileID, identity string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type pairKey struct {
	fileID   string
	identity string
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu     sync.RWMutex
	tokens map[pairKey]models.AccessToken
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tokens: make(map[pairKey]models.AccessToken)}
}

func (s *MemoryStore) Get(_ context.Context, fileID, identity string) (*models.AccessToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tokens[pairKey{fileID, identity}]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &t, nil
}

func (s *MemoryStore) Put(_ context.Context, token *models.AccessToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tokens[pairKey{token.FileID, token.Identity}] = *token
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, fileID, identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.tokens, pairKey{fileID, identity})
	return nil
}

func (s *MemoryStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for k, t := range s.tokens {
		if t.Expired(now) {
			delete(s.tokens, k)
			n++
		}
	}
	return n, nil
}
