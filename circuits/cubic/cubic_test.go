package cubic

import (
	"bytes"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/bonsai-local/prover"
)

func TestImageIsStable(t *testing.T) {
	c := qt.New(t)
	a, err := Image()
	c.Assert(err, qt.IsNil)
	b, err := Image()
	c.Assert(err, qt.IsNil)
	c.Assert(bytes.Equal(a, b), qt.IsTrue)

	ccs, err := prover.ReadImage(a)
	c.Assert(err, qt.IsNil)
	c.Assert(ccs.GetNbPublicVariables(), qt.Equals, 2) // one wire plus Y
}

func TestInputSatisfiesImage(t *testing.T) {
	c := qt.New(t)
	img, err := Image()
	c.Assert(err, qt.IsNil)
	ccs, err := prover.ReadImage(img)
	c.Assert(err, qt.IsNil)

	in, err := Input(3, Solve(3))
	c.Assert(err, qt.IsNil)
	w, err := prover.ReadInput(in)
	c.Assert(err, qt.IsNil)
	c.Assert(ccs.IsSolved(w), qt.IsNil)

	bad, err := Input(3, 34)
	c.Assert(err, qt.IsNil)
	w, err = prover.ReadInput(bad)
	c.Assert(err, qt.IsNil)
	c.Assert(ccs.IsSolved(w), qt.IsNotNil)
}
