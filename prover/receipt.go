package prover

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/backend/witness"
	"github.com/fxamacker/cbor/v2"
	"github.com/vocdoni/bonsai-local/types"
)

// ErrDevModeReceipt is returned when a seal is requested from a receipt
// produced in dev mode.
var ErrDevModeReceipt = errors.New("dev mode receipt carries no proof")

// Receipt is the output of a proving session. It is stored CBOR encoded in
// the artifact store.
type Receipt struct {
	ImageID      types.Digest `cbor:"image_id"`
	Curve        string       `cbor:"curve"`
	Journal      []byte       `cbor:"journal"`
	Seal         []byte       `cbor:"seal,omitempty"`
	VerifyingKey []byte       `cbor:"vk,omitempty"`
	DevMode      bool         `cbor:"dev_mode,omitempty"`
}

// Encode serializes the receipt.
func (r *Receipt) Encode() ([]byte, error) {
	return cbor.Marshal(r)
}

// DecodeReceipt parses a receipt produced by Encode.
func DecodeReceipt(data []byte) (*Receipt, error) {
	r := &Receipt{}
	if err := cbor.Unmarshal(data, r); err != nil {
		return nil, fmt.Errorf("decode receipt: %w", err)
	}
	if r.Curve != Curve.String() {
		return nil, fmt.Errorf("unsupported receipt curve %q", r.Curve)
	}
	return r, nil
}

// PublicWitness decodes the journal.
func (r *Receipt) PublicWitness() (witness.Witness, error) {
	w, err := witness.New(Curve.ScalarField())
	if err != nil {
		return nil, err
	}
	if err := w.UnmarshalBinary(r.Journal); err != nil {
		return nil, fmt.Errorf("decode journal: %w", err)
	}
	return w, nil
}

// Proof decodes the seal.
func (r *Receipt) Proof() (groth16.Proof, error) {
	if r.DevMode {
		return nil, ErrDevModeReceipt
	}
	proof := groth16.NewProof(Curve)
	if _, err := proof.ReadFrom(bytes.NewReader(r.Seal)); err != nil {
		return nil, fmt.Errorf("decode seal: %w", err)
	}
	return proof, nil
}

// Key decodes the verifying key.
func (r *Receipt) Key() (groth16.VerifyingKey, error) {
	if r.DevMode {
		return nil, ErrDevModeReceipt
	}
	vk := groth16.NewVerifyingKey(Curve)
	if _, err := vk.ReadFrom(bytes.NewReader(r.VerifyingKey)); err != nil {
		return nil, fmt.Errorf("decode verifying key: %w", err)
	}
	return vk, nil
}

// Verify checks the seal against the verifying key and the journal.
func (r *Receipt) Verify() error {
	proof, err := r.Proof()
	if err != nil {
		return err
	}
	vk, err := r.Key()
	if err != nil {
		return err
	}
	pub, err := r.PublicWitness()
	if err != nil {
		return err
	}
	if err := groth16.Verify(proof, vk, pub); err != nil {
		return fmt.Errorf("verify receipt: %w", err)
	}
	return nil
}
