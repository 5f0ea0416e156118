// Package metadb builds a db.Database from its type name.
package metadb

import (
	"fmt"

	"github.com/vocdoni/bonsai-local/db"
	"github.com/vocdoni/bonsai-local/db/inmemory"
	"github.com/vocdoni/bonsai-local/db/pebbledb"
)

// New returns a database of the given type.
func New(typ string, opts db.Options) (db.Database, error) {
	switch typ {
	case db.TypeInMemory:
		return inmemory.New(opts)
	case db.TypePebble:
		pdb, err := pebbledb.New(opts)
		if err != nil {
			return nil, err
		}
		return pdb, nil
	default:
		return nil, fmt.Errorf("invalid database type %q", typ)
	}
}
