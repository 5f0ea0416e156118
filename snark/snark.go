// Package snark converts proving session receipts into Ethereum-ready
// Groth16 seals. A conversion verifies the receipt first, so a SNARK
// receipt is only ever produced for a proof that checks.
package snark

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	groth16_bn254 "github.com/consensys/gnark/backend/groth16/bn254"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
	"github.com/vocdoni/bonsai-local/prover"
	"github.com/vocdoni/bonsai-local/types"
)

var (
	// ErrConversionFailure wraps every error caused by the source receipt.
	ErrConversionFailure = errors.New("snark conversion failure")
	// ErrCommitments is returned for proofs carrying Pedersen commitments,
	// which the EVM seal layout has no room for.
	ErrCommitments = errors.New("proofs with commitments are not supported")
)

// Seal is a Groth16 proof with coordinates in the order EVM verifiers
// expect. Every value is a 0x prefixed, 32 byte hex string.
type Seal struct {
	A      [2]string    `json:"a"`
	B      [2][2]string `json:"b"`
	C      [2]string    `json:"c"`
	Public []string     `json:"public"`
}

// Receipt is the output of a SNARK conversion job.
type Receipt struct {
	Snark    Seal           `json:"snark"`
	ImageID  types.Digest   `json:"image_id"`
	Journal  types.HexBytes `json:"journal"`
	Calldata types.HexBytes `json:"calldata"`
	DevMode  bool           `json:"dev_mode,omitempty"`
}

// Decode parses a SNARK receipt as served by the API.
func Decode(data []byte) (*Receipt, error) {
	r := &Receipt{}
	if err := json.Unmarshal(data, r); err != nil {
		return nil, fmt.Errorf("decode snark receipt: %w", err)
	}
	return r, nil
}

// Converter turns an encoded session receipt into an encoded SNARK receipt.
type Converter interface {
	Convert(ctx context.Context, receipt []byte) ([]byte, error)
}

// Groth16Converter converts BN254 Groth16 receipts.
type Groth16Converter struct{}

var _ Converter = Groth16Converter{}

// Convert implements Converter.
func (Groth16Converter) Convert(ctx context.Context, data []byte) (out []byte, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("%w: %v", ErrConversionFailure, r)
		}
	}()
	receipt, err := prover.DecodeReceipt(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConversionFailure, err)
	}
	snarkReceipt, err := FromReceipt(receipt)
	if err != nil {
		return nil, err
	}
	return json.Marshal(snarkReceipt)
}

// FromReceipt verifies a session receipt and builds its SNARK receipt.
// Dev mode receipts have nothing to verify and get an all-zero seal.
func FromReceipt(receipt *prover.Receipt) (*Receipt, error) {
	pub, err := receipt.PublicWitness()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConversionFailure, err)
	}
	public, err := publicInputs(pub.Vector())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConversionFailure, err)
	}
	out := &Receipt{
		ImageID: receipt.ImageID,
		Journal: receipt.Journal,
		DevMode: receipt.DevMode,
	}

	var proof *EVMProof
	if receipt.DevMode {
		proof = zeroProof()
	} else {
		if err := receipt.Verify(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConversionFailure, err)
		}
		gnarkProof, err := receipt.Proof()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConversionFailure, err)
		}
		g16proof, ok := gnarkProof.(*groth16_bn254.Proof)
		if !ok {
			return nil, fmt.Errorf("%w: expected groth16_bn254.Proof, got %T", ErrConversionFailure, gnarkProof)
		}
		if proof, err = FromGnarkProof(g16proof); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConversionFailure, err)
		}
	}

	out.Snark = proof.Seal(public)
	if out.Calldata, err = proof.ABIEncode(); err != nil {
		return nil, fmt.Errorf("encode calldata: %w", err)
	}
	return out, nil
}

func publicInputs(vector any) ([]*big.Int, error) {
	elems, ok := vector.(fr.Vector)
	if !ok {
		return nil, fmt.Errorf("unexpected public witness vector %T", vector)
	}
	public := make([]*big.Int, len(elems))
	for i := range elems {
		public[i] = elems[i].BigInt(new(big.Int))
	}
	return public, nil
}

// EVMProof is a Groth16 proof without commitments as big integers.
type EVMProof struct {
	Ar  [2]*big.Int
	Bs  [2][2]*big.Int
	Krs [2]*big.Int
}

func zeroProof() *EVMProof {
	p := &EVMProof{}
	for i := range 2 {
		p.Ar[i] = new(big.Int)
		p.Krs[i] = new(big.Int)
		p.Bs[i] = [2]*big.Int{new(big.Int), new(big.Int)}
	}
	return p
}

// FromGnarkProof converts a gnark proof. G2 coordinates are emitted
// imaginary part first.
func FromGnarkProof(proof *groth16_bn254.Proof) (*EVMProof, error) {
	if len(proof.Commitments) > 0 {
		return nil, ErrCommitments
	}
	return &EVMProof{
		Ar: [2]*big.Int{
			proof.Ar.X.BigInt(new(big.Int)),
			proof.Ar.Y.BigInt(new(big.Int)),
		},
		Bs: [2][2]*big.Int{
			{
				proof.Bs.X.A1.BigInt(new(big.Int)),
				proof.Bs.X.A0.BigInt(new(big.Int)),
			},
			{
				proof.Bs.Y.A1.BigInt(new(big.Int)),
				proof.Bs.Y.A0.BigInt(new(big.Int)),
			},
		},
		Krs: [2]*big.Int{
			proof.Krs.X.BigInt(new(big.Int)),
			proof.Krs.Y.BigInt(new(big.Int)),
		},
	}, nil
}

// Seal renders the proof and its public inputs as hex strings.
func (p *EVMProof) Seal(public []*big.Int) Seal {
	s := Seal{
		A: [2]string{hexWord(p.Ar[0]), hexWord(p.Ar[1])},
		B: [2][2]string{
			{hexWord(p.Bs[0][0]), hexWord(p.Bs[0][1])},
			{hexWord(p.Bs[1][0]), hexWord(p.Bs[1][1])},
		},
		C:      [2]string{hexWord(p.Krs[0]), hexWord(p.Krs[1])},
		Public: make([]string, len(public)),
	}
	for i, v := range public {
		s.Public[i] = hexWord(v)
	}
	return s
}

// ABIEncode packs the proof matching Solidity's
// (uint256[2],uint256[2][2],uint256[2]) layout.
func (p *EVMProof) ABIEncode() ([]byte, error) {
	pairType, err := abi.NewType("uint256[2]", "", nil)
	if err != nil {
		return nil, err
	}
	matrixType, err := abi.NewType("uint256[2][2]", "", nil)
	if err != nil {
		return nil, err
	}
	arguments := abi.Arguments{
		{Type: pairType},
		{Type: matrixType},
		{Type: pairType},
	}
	return arguments.Pack(p.Ar, p.Bs, p.Krs)
}

// hexWord renders a field element as a full 32 byte EVM word.
func hexWord(v *big.Int) string {
	word := uint256.MustFromBig(v).Bytes32()
	return hexutil.Encode(word[:])
}
