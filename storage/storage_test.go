package storage

import (
	"fmt"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/bonsai-local/db"
	"github.com/vocdoni/bonsai-local/db/metadb"
	"github.com/vocdoni/bonsai-local/types"
	"golang.org/x/sync/errgroup"
)

func newTestStorage(t *testing.T, typ string, maxBytes uint64) *Storage {
	database, err := metadb.New(typ, db.Options{})
	qt.Assert(t, err, qt.IsNil)
	st := New(database, maxBytes)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestPutGet(t *testing.T) {
	for _, typ := range []string{db.TypeInMemory, db.TypePebble} {
		t.Run(typ, func(t *testing.T) {
			c := qt.New(t)
			st := newTestStorage(t, typ, 0)

			image := []byte("guest image")
			d1, err := st.Put(image)
			c.Assert(err, qt.IsNil)
			c.Assert(d1, qt.Equals, types.DigestOf(image))

			// idempotent content addressing
			d2, err := st.Put([]byte("guest image"))
			c.Assert(err, qt.IsNil)
			c.Assert(d2, qt.Equals, d1)
			count, size := st.Stats()
			c.Assert(count, qt.Equals, 1)
			c.Assert(size, qt.Equals, uint64(len(image)))

			got, err := st.Get(d1)
			c.Assert(err, qt.IsNil)
			c.Assert(got, qt.DeepEquals, image)
			c.Assert(st.Has(d1), qt.IsTrue)

			// returned bytes are a copy
			got[0] = 'X'
			again, err := st.Get(d1)
			c.Assert(err, qt.IsNil)
			c.Assert(again, qt.DeepEquals, image)

			_, err = st.Get(types.DigestOf([]byte("never uploaded")))
			c.Assert(err, qt.ErrorIs, ErrNotFound)
			c.Assert(st.Has(types.DigestOf([]byte("never uploaded"))), qt.IsFalse)

			_, err = st.Put(nil)
			c.Assert(err, qt.ErrorIs, ErrEmptyArtifact)
		})
	}
}

func TestCapacity(t *testing.T) {
	c := qt.New(t)
	st := newTestStorage(t, db.TypeInMemory, 10)

	_, err := st.Put([]byte("12345678"))
	c.Assert(err, qt.IsNil)
	_, err = st.Put([]byte("abc"))
	c.Assert(err, qt.ErrorIs, ErrStorageFull)
	count, size := st.Stats()
	c.Assert(count, qt.Equals, 1)
	c.Assert(size, qt.Equals, uint64(8))

	// duplicates never count against the limit
	_, err = st.Put([]byte("12345678"))
	c.Assert(err, qt.IsNil)
	_, err = st.Put([]byte("ab"))
	c.Assert(err, qt.IsNil)
}

func TestConcurrentPut(t *testing.T) {
	c := qt.New(t)
	st := newTestStorage(t, db.TypeInMemory, 0)

	var g errgroup.Group
	digests := make([]types.Digest, 32)
	for i := range digests {
		g.Go(func() error {
			d, err := st.Put([]byte(fmt.Sprintf("artifact-%d", i%4)))
			digests[i] = d
			return err
		})
	}
	c.Assert(g.Wait(), qt.IsNil)
	count, _ := st.Stats()
	c.Assert(count, qt.Equals, 4)
	for i, d := range digests {
		c.Assert(d, qt.Equals, types.DigestOf([]byte(fmt.Sprintf("artifact-%d", i%4))))
	}
}

func TestImageAliases(t *testing.T) {
	c := qt.New(t)
	st := newTestStorage(t, db.TypeInMemory, 0)

	c.Assert(st.CheckImageID("guest-1"), qt.IsNil)
	c.Assert(st.CheckImageID("bad id/"), qt.ErrorIs, ErrInvalidImageID)

	d, err := st.BindImage("guest-1", []byte("elf"))
	c.Assert(err, qt.IsNil)
	c.Assert(st.CheckImageID("guest-1"), qt.ErrorIs, ErrImageIDExists)

	// same content under the same id is fine
	again, err := st.BindImage("guest-1", []byte("elf"))
	c.Assert(err, qt.IsNil)
	c.Assert(again, qt.Equals, d)

	_, err = st.BindImage("guest-1", []byte("other elf"))
	c.Assert(err, qt.ErrorIs, ErrImageIDExists)

	resolved, err := st.Resolve("guest-1")
	c.Assert(err, qt.IsNil)
	c.Assert(resolved, qt.Equals, d)
	resolved, err = st.Resolve(d.String())
	c.Assert(err, qt.IsNil)
	c.Assert(resolved, qt.Equals, d)

	_, err = st.Resolve("guest-2")
	c.Assert(err, qt.ErrorIs, ErrNotFound)
	missing := types.DigestOf([]byte("missing")).String()
	_, err = st.Resolve(missing)
	c.Assert(err, qt.ErrorIs, ErrNotFound)

	// an image id shaped like a digest that is not stored
	c.Assert(st.CheckImageID(missing), qt.IsNil)
	bound, err := st.BindImage(missing, []byte("elf 2"))
	c.Assert(err, qt.IsNil)
	resolved, err = st.Resolve(missing)
	c.Assert(err, qt.IsNil)
	c.Assert(resolved, qt.Equals, bound)
}

func TestInputUploads(t *testing.T) {
	c := qt.New(t)
	st := newTestStorage(t, db.TypePebble, 0)

	id, err := st.NewInputUpload()
	c.Assert(err, qt.IsNil)

	// pending uploads do not resolve
	_, err = st.Resolve(id)
	c.Assert(err, qt.ErrorIs, ErrNotFound)

	d, err := st.BindInput(id, []byte("input"))
	c.Assert(err, qt.IsNil)
	resolved, err := st.Resolve(id)
	c.Assert(err, qt.IsNil)
	c.Assert(resolved, qt.Equals, d)

	_, err = st.BindInput(id, []byte("different input"))
	c.Assert(err, qt.IsNotNil)
	_, err = st.BindInput("00000000-0000-0000-0000-000000000000", []byte("input"))
	c.Assert(err, qt.ErrorIs, ErrUnknownUpload)
}
