package inmemory

import (
	"bytes"
	"slices"
	"sync"

	"github.com/vocdoni/bonsai-local/db"
)

// InMemoryDB implements an ephemeral in-memory db.Database.
type InMemoryDB struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// Ensure that InMemoryDB implements the db.Database interface.
var _ db.Database = (*InMemoryDB)(nil)

// New returns a new in-memory database. Options are ignored.
func New(_ db.Options) (*InMemoryDB, error) {
	return &InMemoryDB{
		data: make(map[string][]byte),
	}, nil
}

func (d *InMemoryDB) Close() error {
	return nil
}

func (d *InMemoryDB) Get(key []byte) ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	value, ok := d.data[string(key)]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return bytes.Clone(value), nil
}

func (d *InMemoryDB) Set(key, value []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.data[string(key)] = bytes.Clone(value)
	return nil
}

func (d *InMemoryDB) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	// snapshot under the read lock so callbacks may call back into the db
	d.mu.RLock()
	keys := make([]string, 0, len(d.data))
	entries := make(map[string][]byte)
	for k, v := range d.data {
		if !bytes.HasPrefix([]byte(k), prefix) {
			continue
		}
		keys = append(keys, k)
		entries[k] = bytes.Clone(v)
	}
	d.mu.RUnlock()

	slices.Sort(keys)
	for _, k := range keys {
		if !callback([]byte(k)[len(prefix):], entries[k]) {
			return nil
		}
	}
	return nil
}
