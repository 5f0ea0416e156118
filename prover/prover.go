// Package prover is the proof computation capability behind every proving
// session. Guest images are gnark BN254 R1CS constraint systems and inputs
// are full gnark witnesses; a session proves the witness satisfies the
// system with Groth16 and returns a Receipt.
package prover

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/backend/witness"
	"github.com/consensys/gnark/constraint"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/vocdoni/bonsai-local/log"
	"github.com/vocdoni/bonsai-local/types"
	"golang.org/x/sync/singleflight"
)

// DefaultKeyCacheSize is the number of images whose proving keys are kept.
const DefaultKeyCacheSize = 16

// Curve is the only curve images may be compiled for.
var Curve = ecc.BN254

// ErrProverFailure wraps every error caused by the image or the input. Such
// failures are deterministic and never retried.
var ErrProverFailure = errors.New("prover failure")

// Prover turns an image and an input into a Receipt.
type Prover interface {
	Prove(ctx context.Context, image, input []byte) (*Receipt, error)
}

// keyPair holds the Groth16 keys of one image.
type keyPair struct {
	pk      groth16.ProvingKey
	vkBytes []byte
}

// Groth16Prover proves with gnark's CPU Groth16 backend. Keys come from a
// local, untrusted setup run once per image and cached.
type Groth16Prover struct {
	devMode bool
	keys    *lru.Cache[types.Digest, *keyPair]
	setups  singleflight.Group
}

var _ Prover = (*Groth16Prover)(nil)

// NewGroth16Prover creates a prover caching the keys of up to cacheSize
// images. In dev mode the prover only checks that the input satisfies the
// image and returns a receipt without seal.
func NewGroth16Prover(cacheSize int, devMode bool) (*Groth16Prover, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultKeyCacheSize
	}
	keys, err := lru.New[types.Digest, *keyPair](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create key cache: %w", err)
	}
	return &Groth16Prover{devMode: devMode, keys: keys}, nil
}

// Prove implements Prover.
func (p *Groth16Prover) Prove(ctx context.Context, image, input []byte) (receipt *Receipt, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// gnark decoders may panic on malformed data
	defer func() {
		if r := recover(); r != nil {
			receipt = nil
			err = fmt.Errorf("%w: %v", ErrProverFailure, r)
		}
	}()

	imageID := types.DigestOf(image)
	ccs, err := ReadImage(image)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProverFailure, err)
	}
	w, err := ReadInput(input)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProverFailure, err)
	}
	pub, err := w.Public()
	if err != nil {
		return nil, fmt.Errorf("%w: extract public witness: %v", ErrProverFailure, err)
	}
	journal, err := pub.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("%w: encode public witness: %v", ErrProverFailure, err)
	}
	receipt = &Receipt{
		ImageID: imageID,
		Curve:   Curve.String(),
		Journal: journal,
	}

	if p.devMode {
		if err := ccs.IsSolved(w); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrProverFailure, err)
		}
		receipt.DevMode = true
		return receipt, nil
	}

	keys, err := p.keysFor(imageID, ccs)
	if err != nil {
		return nil, err
	}
	proof, err := CPUProverWithWitness(ccs, keys.pk, w)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProverFailure, err)
	}
	var seal bytes.Buffer
	if _, err := proof.WriteTo(&seal); err != nil {
		return nil, fmt.Errorf("encode proof: %w", err)
	}
	receipt.Seal = seal.Bytes()
	receipt.VerifyingKey = keys.vkBytes
	return receipt, nil
}

// keysFor returns the cached keys of the image, running the setup once
// even when several sessions of the same image start together.
func (p *Groth16Prover) keysFor(imageID types.Digest, ccs constraint.ConstraintSystem) (*keyPair, error) {
	if keys, ok := p.keys.Get(imageID); ok {
		return keys, nil
	}
	v, err, _ := p.setups.Do(string(imageID), func() (any, error) {
		if keys, ok := p.keys.Get(imageID); ok {
			return keys, nil
		}
		log.Debugw("running groth16 setup", "image", imageID.String(),
			"constraints", ccs.GetNbConstraints())
		pk, vk, err := groth16.Setup(ccs)
		if err != nil {
			return nil, fmt.Errorf("%w: setup: %v", ErrProverFailure, err)
		}
		var vkBuf bytes.Buffer
		if _, err := vk.WriteTo(&vkBuf); err != nil {
			return nil, fmt.Errorf("encode verifying key: %w", err)
		}
		keys := &keyPair{pk: pk, vkBytes: vkBuf.Bytes()}
		p.keys.Add(imageID, keys)
		return keys, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*keyPair), nil
}

// CPUProverWithWitness proves using CPU with an already-created witness.
func CPUProverWithWitness(ccs constraint.ConstraintSystem, pk groth16.ProvingKey, w witness.Witness) (groth16.Proof, error) {
	return groth16.Prove(ccs, pk, w)
}

// ReadImage decodes a serialized constraint system.
func ReadImage(image []byte) (constraint.ConstraintSystem, error) {
	if len(image) == 0 {
		return nil, errors.New("empty image")
	}
	ccs := groth16.NewCS(Curve)
	if _, err := ccs.ReadFrom(bytes.NewReader(image)); err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return ccs, nil
}

// ReadInput decodes a serialized full witness.
func ReadInput(input []byte) (witness.Witness, error) {
	w, err := witness.New(Curve.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("create witness: %w", err)
	}
	if err := w.UnmarshalBinary(input); err != nil {
		return nil, fmt.Errorf("decode input: %w", err)
	}
	return w, nil
}
