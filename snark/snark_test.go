package snark

import (
	"context"
	"fmt"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/bonsai-local/circuits/cubic"
	"github.com/vocdoni/bonsai-local/prover"
)

func proveCubic(c *qt.C, devMode bool, x uint64) *prover.Receipt {
	p, err := prover.NewGroth16Prover(1, devMode)
	c.Assert(err, qt.IsNil)
	img, err := cubic.Image()
	c.Assert(err, qt.IsNil)
	in, err := cubic.Input(x, cubic.Solve(x))
	c.Assert(err, qt.IsNil)
	receipt, err := p.Prove(context.Background(), img, in)
	c.Assert(err, qt.IsNil)
	return receipt
}

func TestConvert(t *testing.T) {
	c := qt.New(t)
	receipt := proveCubic(c, false, 3)
	encoded, err := receipt.Encode()
	c.Assert(err, qt.IsNil)

	out, err := Groth16Converter{}.Convert(context.Background(), encoded)
	c.Assert(err, qt.IsNil)
	snarkReceipt, err := Decode(out)
	c.Assert(err, qt.IsNil)

	c.Assert(snarkReceipt.ImageID, qt.Equals, receipt.ImageID)
	c.Assert([]byte(snarkReceipt.Journal), qt.DeepEquals, receipt.Journal)
	c.Assert(snarkReceipt.DevMode, qt.IsFalse)
	c.Assert(snarkReceipt.Snark.Public, qt.DeepEquals, []string{fmt.Sprintf("0x%064x", 35)})
	c.Assert(snarkReceipt.Snark.A[0], qt.HasLen, 66)
	c.Assert(snarkReceipt.Snark.A[0], qt.Not(qt.Equals), fmt.Sprintf("0x%064x", 0))
	// eight static words, no offsets
	c.Assert(snarkReceipt.Calldata, qt.HasLen, 8*32)
}

func TestCalldataMatchesSeal(t *testing.T) {
	c := qt.New(t)
	receipt := proveCubic(c, false, 2)
	snarkReceipt, err := FromReceipt(receipt)
	c.Assert(err, qt.IsNil)

	words := []string{
		snarkReceipt.Snark.A[0], snarkReceipt.Snark.A[1],
		snarkReceipt.Snark.B[0][0], snarkReceipt.Snark.B[0][1],
		snarkReceipt.Snark.B[1][0], snarkReceipt.Snark.B[1][1],
		snarkReceipt.Snark.C[0], snarkReceipt.Snark.C[1],
	}
	for i, w := range words {
		c.Assert(fmt.Sprintf("0x%x", []byte(snarkReceipt.Calldata[i*32:(i+1)*32])), qt.Equals, w)
	}
}

func TestConvertDevMode(t *testing.T) {
	c := qt.New(t)
	receipt := proveCubic(c, true, 3)
	snarkReceipt, err := FromReceipt(receipt)
	c.Assert(err, qt.IsNil)
	c.Assert(snarkReceipt.DevMode, qt.IsTrue)
	c.Assert(snarkReceipt.Snark.A[0], qt.Equals, fmt.Sprintf("0x%064x", 0))
	c.Assert(snarkReceipt.Snark.Public, qt.HasLen, 1)
	for _, b := range snarkReceipt.Calldata {
		c.Assert(b, qt.Equals, byte(0))
	}
}

func TestConvertRejectsBadReceipts(t *testing.T) {
	c := qt.New(t)
	conv := Groth16Converter{}

	_, err := conv.Convert(context.Background(), []byte("garbage"))
	c.Assert(err, qt.ErrorIs, ErrConversionFailure)

	receipt := proveCubic(c, false, 3)
	other := proveCubic(c, false, 4)
	receipt.Journal = other.Journal
	encoded, err := receipt.Encode()
	c.Assert(err, qt.IsNil)
	_, err = conv.Convert(context.Background(), encoded)
	c.Assert(err, qt.ErrorIs, ErrConversionFailure)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = conv.Convert(ctx, encoded)
	c.Assert(err, qt.ErrorIs, context.Canceled)
}
