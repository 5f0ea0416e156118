// Package db defines the minimal key/value contract the artifact store is
// built on. Every backend keeps its data for the lifetime of the process
// only, unless a filesystem path is given explicitly.
package db

import "errors"

// ErrKeyNotFound is returned by Get when the key does not exist.
var ErrKeyNotFound = errors.New("key not found")

const (
	// TypeInMemory is a map based backend.
	TypeInMemory = "memory"
	// TypePebble is a pebble backend, on an in-memory filesystem unless
	// Options.Path is set.
	TypePebble = "pebble"
)

// Options configures a backend.
type Options struct {
	Path string
}

// Database is a key/value store safe for concurrent use. Returned values
// are owned by the caller.
type Database interface {
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
	// Iterate calls callback for every key with the given prefix, in key
	// order, with the prefix removed from the key. Iteration stops when
	// callback returns false.
	Iterate(prefix []byte, callback func(key, value []byte) bool) error
	Close() error
}
