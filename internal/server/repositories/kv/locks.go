package kv

import (
	"context"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dmitrijs2005/wopihost/internal/common"
	"github.com/dmitrijs2005/wopihost/internal/server/models"
)

// LockStore implements locks.Store over Badger.
type LockStore struct {
	db *badger.DB
}

func NewLockStore(db *badger.DB) *LockStore {
	return &LockStore{db: db}
}

func (s *LockStore) Get(_ context.Context, fileID string) (*models.LockRecord, error) {
	var rec models.LockRecord
	var found bool
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		found, err = getJSON(txn, lockKey(fileID), &rec)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, common.ErrorNotFound
	}
	return &rec, nil
}

func (s *LockStore) Put(_ context.Context, rec *models.LockRecord) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, lockKey(rec.FileID), rec, rec.ExpiresAt, time.Now())
	})
}

func (s *LockStore) Delete(_ context.Context, fileID string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(lockKey(fileID))
	})
}
