// Package cubic is a minimal guest image used by the CLI example command and
// by tests. It proves knowledge of X such that X^3 + X + 5 == Y, with Y
// committed to the journal.
package cubic

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
)

// Circuit is the cubic equation constraint system.
type Circuit struct {
	X frontend.Variable `gnark:"x"`
	Y frontend.Variable `gnark:",public"`
}

// Define declares the circuit constraints.
func (c *Circuit) Define(api frontend.API) error {
	x3 := api.Mul(c.X, c.X, c.X)
	api.AssertIsEqual(c.Y, api.Add(x3, c.X, 5))
	return nil
}

var (
	imageOnce sync.Once
	image     []byte
	imageErr  error
)

// Image returns the serialized constraint system. Compilation is
// deterministic so the bytes, and therefore the digest, never change.
func Image() ([]byte, error) {
	imageOnce.Do(func() {
		ccs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, &Circuit{})
		if err != nil {
			imageErr = fmt.Errorf("compile cubic circuit: %w", err)
			return
		}
		var buf bytes.Buffer
		if _, err := ccs.WriteTo(&buf); err != nil {
			imageErr = fmt.Errorf("encode cubic circuit: %w", err)
			return
		}
		image = buf.Bytes()
	})
	return image, imageErr
}

// Input encodes the full witness for the given assignment. It does not
// check that the assignment satisfies the circuit.
func Input(x, y uint64) ([]byte, error) {
	w, err := frontend.NewWitness(&Circuit{X: x, Y: y}, ecc.BN254.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("create cubic witness: %w", err)
	}
	return w.MarshalBinary()
}

// Solve returns the Y matching x.
func Solve(x uint64) uint64 {
	return x*x*x + x + 5
}
