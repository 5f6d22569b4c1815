// Package lru implements a blob store that acts as a least-recently-used cache for a nested blob store.
package lru

import (
	"context"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"

	"github.com/bobg/cas"
	"github.com/bobg/cas/backend"
)

var _ cas.BlobStore = &Store{}

// Store implements a memory-based least-recently-used cache for a blob store.
// Writes pass through to the underlying blob store.
type Store struct {
	c *lru.Cache // Digest->[]byte
	s cas.BlobStore
}

// New produces a new Store backed by s and caching up to size blobs.
func New(s cas.BlobStore, size int) (*Store, error) {
	c, err := lru.New(size)
	return &Store{s: s, c: c}, err
}

// Get gets the blob with digest d.
func (s *Store) Get(ctx context.Context, d cas.Digest) ([]byte, error) {
	if got, ok := s.c.Get(d); ok {
		return append([]byte{}, got.([]byte)...), nil
	}
	blob, err := s.s.Get(ctx, d)
	if err != nil {
		return nil, err
	}
	s.c.Add(d, append([]byte{}, blob...))
	return blob, nil
}

// Put adds a blob to the store if it wasn't already present.
func (s *Store) Put(ctx context.Context, d cas.Digest, b []byte) (bool, error) {
	added, err := s.s.Put(ctx, d, b)
	if err != nil {
		return false, err
	}
	if added {
		s.c.Add(d, append([]byte{}, b...))
	}
	return added, nil
}

// ListDigests produces all blob digests in the store, in lexicographic order.
func (s *Store) ListDigests(ctx context.Context, start cas.Digest, f func(cas.Digest) error) error {
	return s.s.ListDigests(ctx, start, f)
}

// Len tells how many blobs are in the cache.
func (s *Store) Len() int {
	return s.c.Len()
}

func init() {
	backend.Register("lru", func(ctx context.Context, conf map[string]interface{}) (cas.BlobStore, error) {
		size, ok, err := backend.IntParam(conf, "size")
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errors.New(`missing "size" parameter`)
		}
		nested, err := backend.Nested(ctx, conf)
		if err != nil {
			return nil, err
		}
		return New(nested, size)
	})
}

// Close closes the nested store.
func (s *Store) Close() error {
	return backend.Close(s.s)
}
