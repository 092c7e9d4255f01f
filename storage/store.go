// Package storage provides the document store abstraction for fragment data.
package storage

import (
	"encoding/json"
	"errors"
)

// ErrNotFound is returned when no document exists for the requested ID.
var ErrNotFound = errors.New("fragment document not found")

// Store is a keyed JSON-document store. Documents are opaque to the store;
// callers are responsible for ensuring they are valid JSON.
type Store interface {
	Get(id string) (json.RawMessage, error)
	Put(id string, doc json.RawMessage) error
	Delete(id string) error
	List() ([]string, error)
}
