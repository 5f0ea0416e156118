package storage

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/vocdoni/bonsai-local/db"
	"github.com/vocdoni/bonsai-local/log"
	"github.com/vocdoni/bonsai-local/types"
)

const maxImageIDLength = 128

var (
	ErrImageIDExists  = errors.New("image id already exists")
	ErrInvalidImageID = errors.New("invalid image id")
	ErrUnknownUpload  = errors.New("unknown input upload")
	// ErrUploadCompleted is returned when a filled upload id receives
	// different content.
	ErrUploadCompleted = errors.New("input upload already completed")
)

func aliasKey(prefix []byte, id string) []byte {
	return append(bytes.Clone(prefix), id...)
}

func validImageID(imageID string) bool {
	if imageID == "" || len(imageID) > maxImageIDLength {
		return false
	}
	for _, r := range imageID {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
		default:
			return false
		}
	}
	return true
}

// CheckImageID returns ErrImageIDExists if imageID is already bound to an
// artifact, which lets clients skip uploading the same guest twice.
func (s *Storage) CheckImageID(imageID string) error {
	if !validImageID(imageID) {
		return fmt.Errorf("%w: %q", ErrInvalidImageID, imageID)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, err := s.db.Get(aliasKey(imageAliasPrefix, imageID)); err == nil {
		return ErrImageIDExists
	}
	return nil
}

// BindImage stores data and binds imageID to its digest. Uploading the same
// bytes under the same id again is accepted, any other content is rejected
// with ErrImageIDExists.
func (s *Storage) BindImage(imageID string, data []byte) (types.Digest, error) {
	if !validImageID(imageID) {
		return "", fmt.Errorf("%w: %q", ErrInvalidImageID, imageID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := aliasKey(imageAliasPrefix, imageID)
	if bound, err := s.db.Get(key); err == nil {
		if types.Digest(bound) == types.DigestOf(data) {
			return types.Digest(bound), nil
		}
		return "", ErrImageIDExists
	}
	digest, err := s.put(data)
	if err != nil {
		return "", err
	}
	if err := s.db.Set(key, []byte(digest)); err != nil {
		return "", fmt.Errorf("bind image id %s: %w", imageID, err)
	}
	log.Debugw("image id bound", "imageID", imageID, "digest", digest.String())
	return digest, nil
}

// NewInputUpload reserves an upload id that BindInput later fills.
func (s *Storage) NewInputUpload() (string, error) {
	id := uuid.New().String()
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.Set(aliasKey(inputUploadPrefix, id), nil); err != nil {
		return "", fmt.Errorf("reserve input upload: %w", err)
	}
	return id, nil
}

// BindInput stores data for a reserved upload id. An upload id can only be
// filled once.
func (s *Storage) BindInput(uploadID string, data []byte) (types.Digest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := aliasKey(inputUploadPrefix, uploadID)
	bound, err := s.db.Get(key)
	if errors.Is(err, db.ErrKeyNotFound) {
		return "", fmt.Errorf("%w: %s", ErrUnknownUpload, uploadID)
	}
	if err != nil {
		return "", err
	}
	if len(bound) > 0 {
		if types.Digest(bound) == types.DigestOf(data) {
			return types.Digest(bound), nil
		}
		return "", fmt.Errorf("%w: %s", ErrUploadCompleted, uploadID)
	}
	digest, err := s.put(data)
	if err != nil {
		return "", err
	}
	if err := s.db.Set(key, []byte(digest)); err != nil {
		return "", fmt.Errorf("bind input upload %s: %w", uploadID, err)
	}
	return digest, nil
}

// Resolve turns a reference into the digest of a stored artifact. A
// reference is a digest, a bound image id or a completed input upload id.
// Stored digests win over an image id spelled the same way.
func (s *Storage) Resolve(ref string) (types.Digest, error) {
	if digest, err := types.ParseDigest(ref); err == nil && s.Has(digest) {
		return digest, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, prefix := range [][]byte{imageAliasPrefix, inputUploadPrefix} {
		bound, err := s.db.Get(aliasKey(prefix, ref))
		if err == nil && len(bound) > 0 {
			return types.Digest(bound), nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, ref)
}
