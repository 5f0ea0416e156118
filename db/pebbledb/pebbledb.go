package pebbledb

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/vocdoni/bonsai-local/db"
)

// memDirname is the directory used inside the in-memory filesystem.
const memDirname = "bonsai-local"

// PebbleDB implements db.Database on top of pebble.
type PebbleDB struct {
	db        *pebble.DB
	writeOpts *pebble.WriteOptions
}

var _ db.Database = (*PebbleDB)(nil)

// New opens a pebble database. With an empty Options.Path the database
// lives on pebble's in-memory filesystem and vanishes with the process.
func New(opts db.Options) (*PebbleDB, error) {
	o := &pebble.Options{}
	dirname := opts.Path
	writeOpts := pebble.Sync
	if dirname == "" {
		o.FS = vfs.NewMem()
		dirname = memDirname
		writeOpts = pebble.NoSync
	}
	pdb, err := pebble.Open(dirname, o)
	if err != nil {
		return nil, fmt.Errorf("open pebble at %q: %w", dirname, err)
	}
	return &PebbleDB{db: pdb, writeOpts: writeOpts}, nil
}

func (d *PebbleDB) Close() error {
	return d.db.Close()
}

func (d *PebbleDB) Get(key []byte) ([]byte, error) {
	value, closer, err := d.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, db.ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = closer.Close() }()
	return bytes.Clone(value), nil
}

func (d *PebbleDB) Set(key, value []byte) error {
	return d.db.Set(key, value, d.writeOpts)
}

func (d *PebbleDB) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	iter, err := d.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: upperBound(prefix),
	})
	if err != nil {
		return err
	}
	for iter.First(); iter.Valid(); iter.Next() {
		key := bytes.Clone(iter.Key()[len(prefix):])
		if !callback(key, bytes.Clone(iter.Value())) {
			break
		}
	}
	return iter.Close()
}

// upperBound returns the smallest key greater than every key with the given
// prefix, or nil when no such key exists.
func upperBound(prefix []byte) []byte {
	end := bytes.Clone(prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
