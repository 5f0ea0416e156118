package inmemory

import (
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/bonsai-local/db"
	"github.com/vocdoni/bonsai-local/db/dbtest"
)

func newTestDB(t *testing.T) *InMemoryDB {
	database, err := New(db.Options{})
	qt.Assert(t, err, qt.IsNil)
	return database
}

func TestGetSet(t *testing.T) {
	dbtest.TestGetSet(t, newTestDB(t))
}

func TestIterate(t *testing.T) {
	dbtest.TestIterate(t, newTestDB(t))
}

func TestConcurrentAccess(t *testing.T) {
	dbtest.TestConcurrentAccess(t, newTestDB(t))
}
