/*
Package storage is the content-addressed artifact store of bonsai-local.

Artifacts are immutable byte blobs (guest images, inputs, receipts and
SNARK receipts) addressed by types.Digest. Storing the same bytes twice
returns the same digest and keeps a single copy.

# Storage Organization

The store uses a key-value database with prefixed namespaces:

  - a/   : digest → artifact bytes
  - img/ : client chosen image id → digest
  - in/  : input upload uuid → digest (empty while the upload is pending)

Nothing survives the process unless the backend is opened on disk.
*/
package storage

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/vocdoni/bonsai-local/db"
	"github.com/vocdoni/bonsai-local/log"
	"github.com/vocdoni/bonsai-local/types"
)

const defaultCacheSize = 256

var (
	ErrNotFound      = errors.New("artifact not found")
	ErrStorageFull   = errors.New("artifact storage capacity exceeded")
	ErrEmptyArtifact = errors.New("empty artifact")

	// Prefixes
	artifactPrefix    = []byte("a/")
	imageAliasPrefix  = []byte("img/")
	inputUploadPrefix = []byte("in/")
)

// Storage is safe for concurrent use by every API handler and engine
// worker. Artifacts are only ever inserted and read.
type Storage struct {
	db       db.Database
	mu       sync.RWMutex
	cache    *lru.Cache[types.Digest, []byte]
	maxBytes uint64
	count    int
	size     uint64
}

// New creates a Storage on top of database. A maxBytes of zero disables
// the capacity check.
func New(database db.Database, maxBytes uint64) *Storage {
	cache, err := lru.New[types.Digest, []byte](defaultCacheSize)
	if err != nil {
		log.Fatalf("failed to create LRU cache: %v", err)
	}
	s := &Storage{
		db:       database,
		cache:    cache,
		maxBytes: maxBytes,
	}
	// account for artifacts already present in an on-disk backend
	if err := database.Iterate(artifactPrefix, func(_, value []byte) bool {
		s.count++
		s.size += uint64(len(value))
		return true
	}); err != nil {
		log.Warnw("failed to count existing artifacts", "error", err.Error())
	}
	return s
}

// Close closes the underlying database.
func (s *Storage) Close() error {
	return s.db.Close()
}

func artifactKey(d types.Digest) []byte {
	return append(bytes.Clone(artifactPrefix), d...)
}

// Put stores data and returns its digest. Storing bytes that are already
// present is a no-op returning the same digest.
func (s *Storage) Put(data []byte) (types.Digest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.put(data)
}

// put must be called with s.mu held for writing.
func (s *Storage) put(data []byte) (types.Digest, error) {
	if len(data) == 0 {
		return "", ErrEmptyArtifact
	}
	digest := types.DigestOf(data)
	if s.has(digest) {
		return digest, nil
	}
	if s.maxBytes > 0 && s.size+uint64(len(data)) > s.maxBytes {
		return "", fmt.Errorf("%w: %d bytes stored, %d requested, limit %d",
			ErrStorageFull, s.size, len(data), s.maxBytes)
	}
	if err := s.db.Set(artifactKey(digest), data); err != nil {
		return "", fmt.Errorf("store artifact %s: %w", digest, err)
	}
	s.count++
	s.size += uint64(len(data))
	log.Debugw("artifact stored", "digest", digest.String(), "size", len(data))
	return digest, nil
}

// Get returns a copy of the artifact bytes, or ErrNotFound.
func (s *Storage) Get(digest types.Digest) ([]byte, error) {
	if data, ok := s.cache.Get(digest); ok {
		return bytes.Clone(data), nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, err := s.db.Get(artifactKey(digest))
	if errors.Is(err, db.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, digest)
	}
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", digest, err)
	}
	s.cache.Add(digest, bytes.Clone(data))
	return data, nil
}

// Has reports whether the artifact exists.
func (s *Storage) Has(digest types.Digest) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.has(digest)
}

func (s *Storage) has(digest types.Digest) bool {
	if s.cache.Contains(digest) {
		return true
	}
	_, err := s.db.Get(artifactKey(digest))
	return err == nil
}

// Stats returns the number of stored artifacts and their total size.
func (s *Storage) Stats() (int, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count, s.size
}
