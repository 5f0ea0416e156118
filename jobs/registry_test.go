package jobs

import (
	"fmt"
	"sync"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/google/uuid"
	"github.com/vocdoni/bonsai-local/types"
	"golang.org/x/sync/errgroup"
)

// fakeArtifacts is a set of known digests.
type fakeArtifacts map[types.Digest]bool

func (f fakeArtifacts) Has(d types.Digest) bool { return f[d] }

var (
	testImage   = types.DigestOf([]byte("image"))
	testInput   = types.DigestOf([]byte("input"))
	testReceipt = types.DigestOf([]byte("receipt"))
	known       = fakeArtifacts{testImage: true, testInput: true, testReceipt: true}
)

func TestCreateSession(t *testing.T) {
	c := qt.New(t)
	r := NewRegistry(KindSession, known, 0)

	id, err := r.CreateSession(testImage, testInput)
	c.Assert(err, qt.IsNil)
	_, err = uuid.Parse(id)
	c.Assert(err, qt.IsNil)

	job, err := r.Status(id)
	c.Assert(err, qt.IsNil)
	c.Assert(job.State, qt.Equals, Queued)
	c.Assert(job.Kind, qt.Equals, KindSession)
	c.Assert(job.Image, qt.Equals, testImage)
	c.Assert(job.Input, qt.Equals, testInput)
	c.Assert(job.CreatedAt.IsZero(), qt.IsFalse)

	select {
	case queued := <-r.Queue():
		c.Assert(queued, qt.Equals, id)
	default:
		c.Fatal("job was not queued")
	}

	_, err = r.CreateSnark(testReceipt)
	c.Assert(err, qt.ErrorIs, ErrWrongKind)
}

func TestCreateUnknownArtifact(t *testing.T) {
	c := qt.New(t)
	r := NewRegistry(KindSession, known, 0)

	missing := types.DigestOf([]byte("never uploaded"))
	_, err := r.CreateSession(testImage, missing)
	c.Assert(err, qt.ErrorIs, ErrUnknownArtifact)
	_, err = r.CreateSession(missing, testInput)
	c.Assert(err, qt.ErrorIs, ErrUnknownArtifact)

	// nothing registered, nothing queued
	c.Assert(r.Len()[Queued], qt.Equals, 0)
	c.Assert(len(r.Queue()), qt.Equals, 0)

	s := NewRegistry(KindSnark, known, 0)
	_, err = s.CreateSnark(missing)
	c.Assert(err, qt.ErrorIs, ErrUnknownArtifact)
}

func TestQueueFull(t *testing.T) {
	c := qt.New(t)
	r := NewRegistry(KindSnark, known, 2)

	for range 2 {
		_, err := r.CreateSnark(testReceipt)
		c.Assert(err, qt.IsNil)
	}
	_, err := r.CreateSnark(testReceipt)
	c.Assert(err, qt.ErrorIs, ErrQueueFull)
	c.Assert(r.Len()[Queued], qt.Equals, 2)

	<-r.Queue()
	_, err = r.CreateSnark(testReceipt)
	c.Assert(err, qt.IsNil)
}

func TestStateMachine(t *testing.T) {
	c := qt.New(t)

	c.Run("success path", func(c *qt.C) {
		r := NewRegistry(KindSession, known, 0)
		id, err := r.CreateSession(testImage, testInput)
		c.Assert(err, qt.IsNil)

		_, err = r.Result(id)
		c.Assert(err, qt.ErrorIs, ErrNotReady)

		job, err := r.Start(id)
		c.Assert(err, qt.IsNil)
		c.Assert(job.State, qt.Equals, Running)
		c.Assert(job.StartedAt.IsZero(), qt.IsFalse)

		_, err = r.Result(id)
		c.Assert(err, qt.ErrorIs, ErrNotReady)

		job, err = r.Succeed(id, testReceipt)
		c.Assert(err, qt.IsNil)
		c.Assert(job.State, qt.Equals, Succeeded)

		result, err := r.Result(id)
		c.Assert(err, qt.IsNil)
		c.Assert(result, qt.Equals, testReceipt)

		// terminal states are final
		_, err = r.Fail(id, "late failure")
		c.Assert(err, qt.ErrorIs, ErrIllegalTransition)
		_, err = r.Start(id)
		c.Assert(err, qt.ErrorIs, ErrIllegalTransition)
		job, err = r.Status(id)
		c.Assert(err, qt.IsNil)
		c.Assert(job.State, qt.Equals, Succeeded)
		c.Assert(job.Error, qt.Equals, "")
	})

	c.Run("failure path", func(c *qt.C) {
		r := NewRegistry(KindSession, known, 0)
		id, err := r.CreateSession(testImage, testInput)
		c.Assert(err, qt.IsNil)

		// a queued job cannot finish without running
		_, err = r.Succeed(id, testReceipt)
		c.Assert(err, qt.ErrorIs, ErrIllegalTransition)

		_, err = r.Start(id)
		c.Assert(err, qt.IsNil)
		_, err = r.Start(id)
		c.Assert(err, qt.ErrorIs, ErrIllegalTransition)

		job, err := r.Fail(id, "constraint #0 is not satisfied")
		c.Assert(err, qt.IsNil)
		c.Assert(job.State, qt.Equals, Failed)

		for range 3 {
			job, err = r.Status(id)
			c.Assert(err, qt.IsNil)
			c.Assert(job.State, qt.Equals, Failed)
			c.Assert(job.Error, qt.Equals, "constraint #0 is not satisfied")
		}
		_, err = r.Result(id)
		c.Assert(err, qt.ErrorIs, ErrNotReady)
		_, err = r.Succeed(id, testReceipt)
		c.Assert(err, qt.ErrorIs, ErrIllegalTransition)
	})
}

func TestUnknownJob(t *testing.T) {
	c := qt.New(t)
	r := NewRegistry(KindSession, known, 0)
	fabricated := uuid.New().String()

	_, err := r.Status(fabricated)
	c.Assert(err, qt.ErrorIs, ErrNotFound)
	_, err = r.Result(fabricated)
	c.Assert(err, qt.ErrorIs, ErrNotFound)
	_, err = r.Start(fabricated)
	c.Assert(err, qt.ErrorIs, ErrNotFound)
}

func TestNamespacesAreSeparate(t *testing.T) {
	c := qt.New(t)
	sessions := NewRegistry(KindSession, known, 0)
	snarks := NewRegistry(KindSnark, known, 0)

	id, err := sessions.CreateSession(testImage, testInput)
	c.Assert(err, qt.IsNil)
	_, err = snarks.Status(id)
	c.Assert(err, qt.ErrorIs, ErrNotFound)
}

func TestConcurrentTransitions(t *testing.T) {
	c := qt.New(t)
	const n = 64
	r := NewRegistry(KindSession, known, n)

	ids := make([]string, n)
	for i := range ids {
		id, err := r.CreateSession(testImage, testInput)
		c.Assert(err, qt.IsNil)
		ids[i] = id
	}

	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Start(id); err != nil {
				t.Error(err)
				return
			}
			var err error
			if i%2 == 0 {
				_, err = r.Succeed(id, testReceipt)
			} else {
				_, err = r.Fail(id, fmt.Sprintf("failure %d", i))
			}
			if err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	counts := r.Len()
	c.Assert(counts[Succeeded], qt.Equals, n/2)
	c.Assert(counts[Failed], qt.Equals, n/2)
	for i, id := range ids {
		job, err := r.Status(id)
		c.Assert(err, qt.IsNil)
		if i%2 == 1 {
			c.Assert(job.Error, qt.Equals, fmt.Sprintf("failure %d", i))
		}
	}
}

func TestConcurrentCreate(t *testing.T) {
	c := qt.New(t)
	const n = 64
	sessions := NewRegistry(KindSession, known, n)
	snarks := NewRegistry(KindSnark, known, n)

	var g errgroup.Group
	ids := make([]string, 2*n)
	for i := range n {
		g.Go(func() (err error) {
			ids[i], err = sessions.CreateSession(testImage, testInput)
			return err
		})
		g.Go(func() (err error) {
			ids[n+i], err = snarks.CreateSnark(testReceipt)
			return err
		})
	}
	c.Assert(g.Wait(), qt.IsNil)

	seen := make(map[string]bool, len(ids))
	for i, id := range ids {
		c.Assert(seen[id], qt.IsFalse, qt.Commentf("duplicate id %s", id))
		seen[id] = true
		reg := sessions
		if i >= n {
			reg = snarks
		}
		job, err := reg.Status(id)
		c.Assert(err, qt.IsNil)
		c.Assert(job.State, qt.Equals, Queued)
	}
	c.Assert(sessions.Len()[Queued], qt.Equals, n)
	c.Assert(snarks.Len()[Queued], qt.Equals, n)
	c.Assert(sessions.Queue(), qt.HasLen, n)
	c.Assert(snarks.Queue(), qt.HasLen, n)
}

func TestStateText(t *testing.T) {
	c := qt.New(t)
	for _, s := range []State{Queued, Running, Succeeded, Failed} {
		parsed, err := ParseState(s.Wire())
		c.Assert(err, qt.IsNil)
		c.Assert(parsed, qt.Equals, s)

		var back State
		text, err := s.MarshalText()
		c.Assert(err, qt.IsNil)
		c.Assert(back.UnmarshalText(text), qt.IsNil)
		c.Assert(back, qt.Equals, s)
	}
	c.Assert(Succeeded.Wire(), qt.Equals, "SUCCEEDED")
	c.Assert(Failed.IsTerminal(), qt.IsTrue)
	c.Assert(Running.IsTerminal(), qt.IsFalse)
	_, err := ParseState("aborted")
	c.Assert(err, qt.IsNotNil)
}
