// Package dbtest holds the behaviour every db.Database backend must share.
package dbtest

import (
	"fmt"
	"sync"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/bonsai-local/db"
)

// TestGetSet checks basic reads and writes.
func TestGetSet(t *testing.T, database db.Database) {
	c := qt.New(t)

	_, err := database.Get([]byte("missing"))
	c.Assert(err, qt.ErrorIs, db.ErrKeyNotFound)

	value := []byte("value")
	c.Assert(database.Set([]byte("key"), value), qt.IsNil)
	// mutating the caller's slice must not affect the stored copy
	value[0] = 'X'

	got, err := database.Get([]byte("key"))
	c.Assert(err, qt.IsNil)
	c.Assert(string(got), qt.Equals, "value")

	// neither must mutating the returned slice
	got[0] = 'Y'
	got, err = database.Get([]byte("key"))
	c.Assert(err, qt.IsNil)
	c.Assert(string(got), qt.Equals, "value")

	c.Assert(database.Set([]byte("key"), []byte("other")), qt.IsNil)
	got, err = database.Get([]byte("key"))
	c.Assert(err, qt.IsNil)
	c.Assert(string(got), qt.Equals, "other")
}

// TestIterate checks prefix iteration order, prefix stripping and early
// termination.
func TestIterate(t *testing.T, database db.Database) {
	c := qt.New(t)

	for _, k := range []string{"a/2", "a/1", "b/1", "a/3", "ab"} {
		c.Assert(database.Set([]byte(k), []byte("v"+k)), qt.IsNil)
	}

	var keys []string
	err := database.Iterate([]byte("a/"), func(key, value []byte) bool {
		keys = append(keys, string(key))
		c.Assert(string(value), qt.Equals, "va/"+string(key))
		return true
	})
	c.Assert(err, qt.IsNil)
	c.Assert(keys, qt.DeepEquals, []string{"1", "2", "3"})

	keys = nil
	err = database.Iterate([]byte("a/"), func(key, _ []byte) bool {
		keys = append(keys, string(key))
		return len(keys) < 2
	})
	c.Assert(err, qt.IsNil)
	c.Assert(keys, qt.HasLen, 2)

	count := 0
	c.Assert(database.Iterate(nil, func(_, _ []byte) bool {
		count++
		return true
	}), qt.IsNil)
	c.Assert(count, qt.Equals, 5)
}

// TestConcurrentAccess hammers the backend from several goroutines.
func TestConcurrentAccess(t *testing.T, database db.Database) {
	c := qt.New(t)

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 50 {
				key := []byte(fmt.Sprintf("k/%d/%d", i, j))
				if err := database.Set(key, key); err != nil {
					t.Error(err)
					return
				}
				if _, err := database.Get(key); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()

	count := 0
	c.Assert(database.Iterate([]byte("k/"), func(_, _ []byte) bool {
		count++
		return true
	}), qt.IsNil)
	c.Assert(count, qt.Equals, 8*50)
}
