// Package bbolt provides a BBolt-backed document store.
package bbolt

import (
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/mkhatri/fragmentd/storage"
)

var fragmentsBucket = []byte("fragments")

// Store implements storage.Store backed by a BBolt database.
type Store struct {
	db *bbolt.DB
}

var _ storage.Store = (*Store)(nil)

// NewStore returns a Store backed by the given BBolt database.
func NewStore(db *bbolt.DB) (*Store, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(fragmentsBucket)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("creating fragments bucket: %w", err)
	}
	return &Store{db: db}, nil
}

// NewStoreFromFile opens a BBolt database at the given path and returns a new Store.
func NewStoreFromFile(path string, options *bbolt.Options) (*Store, error) {
	db, err := bbolt.Open(path, 0600, options)
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	return NewStore(db)
}

// Close closes the underlying BBolt database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Get(id string) (json.RawMessage, error) {
	var doc json.RawMessage
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(fragmentsBucket).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%s: %w", id, storage.ErrNotFound)
		}
		doc = append(json.RawMessage(nil), data...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *Store) Put(id string, doc json.RawMessage) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(fragmentsBucket).Put([]byte(id), doc)
	})
}

func (s *Store) Delete(id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(fragmentsBucket).Delete([]byte(id))
	})
}

func (s *Store) List() ([]string, error) {
	var ids []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(fragmentsBucket).ForEach(func(k, _ []byte) error {
			ids = append(ids, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}
