package kv

import (
	"context"
	"encoding/json"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dmitrijs2005/wopihost/internal/common"
	"github.com/dmitrijs2005/wopihost/internal/server/models"
)

// TokenStore implements tokens.Store over Badger.
type TokenStore struct {
	db *badger.DB
}

func NewTokenStore(db *badger.DB) *TokenStore {
	return &TokenStore{db: db}
}

func (s *TokenStore) Get(_ context.Context, fileID, identity string) (*models.AccessToken, error) {
	var t models.AccessToken
	var found bool
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		found, err = getJSON(txn, tokenKey(fileID, identity), &t)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, common.ErrorNotFound
	}
	return &t, nil
}

func (s *TokenStore) Put(_ context.Context, t *models.AccessToken) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, tokenKey(t.FileID, t.Identity), t, t.ExpiresAt, time.Now())
	})
}

func (s *TokenStore) Delete(_ context.Context, fileID, identity string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(tokenKey(fileID, identity))
	})
}

// DeleteExpired scans every token and drops those expired at now.
func (s *TokenStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	var expired [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixToken)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			var t models.AccessToken
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &t) }); err != nil {
				return err
			}
			if t.Expired(now) {
				expired = append(expired, item.KeyCopy(nil))
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range expired {
		if err := wb.Delete(k); err != nil {
			return 0, err
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, err
	}
	return int64(len(expired)), nil
}
