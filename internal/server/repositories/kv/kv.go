// Package kv keeps access tokens and lock records in an embedded BadgerDB,
// for single-node deployments that run without PostgreSQL.
//
// Keys are namespaced by prefix:
//
//	tok:<file_id>\x00<identity>  -> JSON models.AccessToken
//	lock:<file_id>               -> JSON models.LockRecord
//
// Entries carry a Badger TTL matching their expiry so stale records are
// eventually compacted away even without an explicit purge.
package kv

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
)

const (
	prefixToken = "tok:"
	prefixLock  = "lock:"
)

// Open opens (or creates) the database at path. An empty path opens a purely
// in-memory database.
func Open(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", path, err)
	}
	return db, nil
}

func tokenKey(fileID, identity string) []byte {
	return []byte(prefixToken + fileID + "\x00" + identity)
}

func lockKey(fileID string) []byte {
	return []byte(prefixLock + fileID)
}

func setJSON(txn *badger.Txn, key []byte, v any, expiresAt, now time.Time) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	e := badger.NewEntry(key, b)
	if ttl := expiresAt.Sub(now); ttl > 0 {
		e = e.WithTTL(ttl)
	}
	return txn.SetEntry(e)
}

// getJSON decodes the value at key into v and reports whether it existed.
func getJSON(txn *badger.Txn, key []byte, v any) (bool, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}
