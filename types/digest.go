package types

import (
	"errors"
	"fmt"

	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
)

// ErrInvalidDigest is returned when a string is not a digest produced by
// DigestOf.
var ErrInvalidDigest = errors.New("invalid digest")

// Digest is the content address of an artifact: the string form of a CIDv1
// with the raw codec and a sha2-256 multihash. Equal bytes always produce
// the same Digest.
type Digest string

// DigestOf computes the Digest of data.
func DigestOf(data []byte) Digest {
	sum, err := mh.Sum(data, mh.SHA2_256, -1)
	if err != nil {
		// sha2-256 is always registered, this cannot fail
		panic(fmt.Sprintf("multihash sum: %v", err))
	}
	return Digest(cid.NewCidV1(cid.Raw, sum).String())
}

// ParseDigest validates s and returns it in canonical form. Only CIDv1 raw
// sha2-256 identifiers are accepted.
func ParseDigest(s string) (Digest, error) {
	c, err := cid.Decode(s)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidDigest, err)
	}
	if c.Version() != 1 || c.Type() != cid.Raw {
		return "", fmt.Errorf("%w: unsupported cid %s", ErrInvalidDigest, s)
	}
	decoded, err := mh.Decode(c.Hash())
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidDigest, err)
	}
	if decoded.Code != mh.SHA2_256 {
		return "", fmt.Errorf("%w: unsupported hash function %s", ErrInvalidDigest, decoded.Name)
	}
	return Digest(c.String()), nil
}

// String implements fmt.Stringer.
func (d Digest) String() string {
	return string(d)
}

// Bytes returns the raw 32 byte sha2-256 sum behind the digest, or nil if
// the digest is malformed.
func (d Digest) Bytes() HexBytes {
	c, err := cid.Decode(string(d))
	if err != nil {
		return nil
	}
	decoded, err := mh.Decode(c.Hash())
	if err != nil {
		return nil
	}
	return decoded.Digest
}
